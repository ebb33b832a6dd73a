package matching

import (
	"math"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/models"
)

// ETAProvider estimates travel time between two locations. Implementations
// return false when no estimate is possible.
type ETAProvider interface {
	ETA(from, to models.Location) (time.Duration, bool)
}

// DefaultSpeedKmh is the average travel speed assumed by GreatCircle
const DefaultSpeedKmh = 40.0

// GreatCircle estimates ETAs from straight-line distance at a fixed speed
type GreatCircle struct {
	SpeedKmh float64
}

const earthRadiusKm = 6371.0

// ETA implements ETAProvider
func (g GreatCircle) ETA(from, to models.Location) (time.Duration, bool) {
	if !from.HasCoordinates() || !to.HasCoordinates() {
		if from.Name != "" && from.Name == to.Name {
			return 0, true
		}
		return 0, false
	}
	speed := g.SpeedKmh
	if speed <= 0 {
		speed = DefaultSpeedKmh
	}
	hours := DistanceKm(from, to) / speed
	return time.Duration(hours * float64(time.Hour)), true
}

// DistanceKm is the haversine distance between two coordinates
func DistanceKm(a, b models.Location) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
