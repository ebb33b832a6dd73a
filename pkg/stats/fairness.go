package stats

import (
	"math"

	"github.com/arnavshah/dispatch-api-go/pkg/models"
)

// FairnessScore returns a percentage (0-100) representing how evenly
// assignment hours are spread across volunteers. 100 means every volunteer
// carries the same load (standard deviation 0).
func FairnessScore(volunteers []models.Volunteer) float64 {
	if len(volunteers) == 0 {
		return 100.0
	}

	var sum float64
	for _, v := range volunteers {
		sum += v.AssignedHours
	}
	if sum == 0 {
		return 100.0 // nobody has worked yet
	}
	mean := sum / float64(len(volunteers))

	var varianceSum float64
	for _, v := range volunteers {
		diff := v.AssignedHours - mean
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(len(volunteers)))

	// 0% once the deviation reaches the mean
	score := (1.0 - stdDev/mean) * 100.0
	if score < 0 {
		return 0.0
	}
	return math.Round(score*100) / 100
}
