package matching

import (
	"math"
	"time"
)

// ScoreWeights balances the four scoring signals. Weights are relative;
// the score is normalized by their sum.
type ScoreWeights struct {
	Proximity      float64 `yaml:"proximity" json:"proximity"`
	Specialization float64 `yaml:"specialization" json:"specialization"`
	Reliability    float64 `yaml:"reliability" json:"reliability"`
	Load           float64 `yaml:"load" json:"load"`
}

// DefaultWeights are used for any weight left at zero
var DefaultWeights = ScoreWeights{
	Proximity:      0.35,
	Specialization: 0.30,
	Reliability:    0.20,
	Load:           0.15,
}

func (w ScoreWeights) withDefaults() ScoreWeights {
	if w.Proximity == 0 {
		w.Proximity = DefaultWeights.Proximity
	}
	if w.Specialization == 0 {
		w.Specialization = DefaultWeights.Specialization
	}
	if w.Reliability == 0 {
		w.Reliability = DefaultWeights.Reliability
	}
	if w.Load == 0 {
		w.Load = DefaultWeights.Load
	}
	return w
}

func (w ScoreWeights) sum() float64 {
	return w.Proximity + w.Specialization + w.Reliability + w.Load
}

const (
	// DefaultTopK is the number of primary recommendations
	DefaultTopK = 2
	// DefaultHalfLife is the ETA at which proximity scores 0.5
	DefaultHalfLife = 20 * time.Minute

	neutral = 0.5
)

var conditionReliability = map[string]float64{
	"excellent": 1.0,
	"good":      0.8,
	"fair":      0.5,
	"poor":      0.2,
}

// proximity inverse-scales an ETA into (0,1]
func proximity(eta *float64, halfLife time.Duration) float64 {
	if eta == nil {
		return neutral
	}
	return 1 / (1 + *eta/halfLife.Minutes())
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
