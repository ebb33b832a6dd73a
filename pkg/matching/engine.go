// Package matching ranks registry candidates against a Demand. The engine
// is a pure function of its inputs; it never mutates the registries and its
// output is advisory.
package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/models"
)

// Warning codes emitted on recommendations
const (
	WarnNoCandidate   = "NoCandidateAvailable"
	WarnInsufficient  = "InsufficientCoverage"
	WarnRouteDegraded = "RouteDegraded"
)

// Options configures an Engine
type Options struct {
	Weights  ScoreWeights
	TopK     int
	HalfLife time.Duration
	ETA      ETAProvider
	Clock    func() time.Time
}

// Engine scores and ranks candidates
type Engine struct {
	weights  ScoreWeights
	topK     int
	halfLife time.Duration
	eta      ETAProvider
	now      func() time.Time
}

// NewEngine creates an engine, filling unset options with defaults
func NewEngine(opts Options) *Engine {
	e := &Engine{
		weights:  opts.Weights.withDefaults(),
		topK:     opts.TopK,
		halfLife: opts.HalfLife,
		eta:      opts.ETA,
		now:      opts.Clock,
	}
	if e.topK <= 0 {
		e.topK = DefaultTopK
	}
	if e.halfLife <= 0 {
		e.halfLife = DefaultHalfLife
	}
	if e.eta == nil {
		e.eta = GreatCircle{}
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// Weights returns the effective weights
func (e *Engine) Weights() ScoreWeights {
	return e.weights
}

// Snapshot is the registry state a recommendation is computed against
type Snapshot struct {
	Resources  []models.Resource
	Volunteers []models.Volunteer
}

type candidate struct {
	id        string
	loc       models.Location
	eta       *float64
	remaining int
	match     float64
	score     float64
	version   int64
	reason    string
}

// rejections counts filtered-out candidates per reason
type rejections struct {
	maintenance int
	reserved    int
	depleted    int
	deployed    int
	unavailable int
}

func (r rejections) reasons() []string {
	var out []string
	add := func(n int, what string) {
		if n > 0 {
			out = append(out, fmt.Sprintf("%d candidates %s", n, what))
		}
	}
	add(r.maintenance, "in maintenance")
	add(r.reserved, "on reserve hold")
	add(r.depleted, "with no units left")
	add(r.deployed, "already deployed")
	add(r.unavailable, "unavailable or off duty")
	return out
}

// Recommend ranks candidates for the demand. An empty pool is reported as a
// NoCandidateAvailable warning, never as an error.
func (e *Engine) Recommend(d models.Demand, snap Snapshot, signals *models.ExternalSignals) models.Recommendation {
	rec := models.Recommendation{
		RequestID:       d.RequestID,
		Recommendations: []models.Candidate{},
		Warnings:        []string{},
		GeneratedAt:     e.now(),
	}

	factor := 1.0
	if signals != nil && signals.ETAFactor > 1 {
		factor = signals.ETAFactor
	}

	var (
		pool []candidate
		rej  rejections
	)
	if d.SourceKind == models.SourceVolunteer {
		pool, rej = e.volunteerCandidates(d, snap.Volunteers, factor)
	} else {
		pool, rej = e.resourceCandidates(d, snap.Resources, factor)
	}

	if len(pool) == 0 {
		rec.Warnings = append(rec.Warnings, WarnNoCandidate)
		rec.Warnings = append(rec.Warnings, rej.reasons()...)
		return rec
	}

	sort.Slice(pool, func(i, j int) bool { return less(&pool[i], &pool[j]) })

	k := e.topK
	if k > len(pool) {
		k = len(pool)
	}
	primaries := pool[:k]
	alternates := pool[k:]
	if len(alternates) > e.topK {
		alternates = alternates[:e.topK]
	}

	out := make([]models.Candidate, len(primaries))
	covered := 0
	matchSum := 0.0
	for i := range primaries {
		out[i] = toCandidate(&primaries[i])
		covered += primaries[i].remaining
		matchSum += primaries[i].match
	}
	for i := range alternates {
		p := e.nearestPrimary(&alternates[i], primaries)
		out[p].AlternativeOptions = append(out[p].AlternativeOptions, toCandidate(&alternates[i]))
	}
	rec.Recommendations = out

	capacity := 0
	for i := range pool {
		capacity += pool[i].remaining
	}
	coverage := math.Min(1, float64(capacity)/float64(max(d.Quantity, 1)))
	avgMatch := matchSum / float64(len(primaries))
	rec.Confidence = int(math.Round(clamp(100*coverage*avgMatch, 0, 100)))

	if covered < d.Quantity {
		rec.Warnings = append(rec.Warnings,
			fmt.Sprintf("%s: primary recommendations cover %d of %d", WarnInsufficient, covered, d.Quantity))
		rec.Warnings = append(rec.Warnings, rej.reasons()...)
	}
	if signals != nil {
		if signals.WeatherDegraded {
			rec.Warnings = append(rec.Warnings, WarnRouteDegraded+": weather")
		}
		if signals.TrafficDegraded {
			rec.Warnings = append(rec.Warnings, WarnRouteDegraded+": traffic")
		}
		if signals.Note != "" && (signals.WeatherDegraded || signals.TrafficDegraded) {
			rec.Warnings = append(rec.Warnings, signals.Note)
		}
	}
	return rec
}

func (e *Engine) resourceCandidates(d models.Demand, resources []models.Resource, factor float64) ([]candidate, rejections) {
	var (
		pool []candidate
		rej  rejections
	)
	for i := range resources {
		r := &resources[i]
		if string(r.Category) != d.RequiredCapability && r.Type != d.RequiredCapability {
			continue
		}
		switch {
		case r.Status == models.ResourceMaintenance:
			rej.maintenance++
			continue
		case r.Status == models.ResourceReserved:
			rej.reserved++
			continue
		case r.AvailableQuantity <= 0:
			rej.depleted++
			continue
		}

		match := 1.0
		matchNote := "category match"
		if d.Specialty != "" {
			if r.Type == d.Specialty {
				matchNote = "exact type match"
			} else {
				match = 0.5
			}
		}
		reliability, ok := conditionReliability[strings.ToLower(r.Condition)]
		if !ok {
			reliability = neutral
		}
		load := 0.0
		if r.Quantity > 0 {
			load = float64(r.AllocatedQuantity) / float64(r.Quantity)
		}

		c := candidate{
			id:        r.ID,
			loc:       r.Location,
			eta:       e.estimate(r.Location, d.Location, factor),
			remaining: r.AvailableQuantity,
			match:     match,
			version:   r.Version,
		}
		c.score = e.score(c.eta, match, reliability, load)
		c.reason = fmt.Sprintf("%s; %s; %d units available", matchNote, etaNote(c.eta), r.AvailableQuantity)
		pool = append(pool, c)
	}
	return pool, rej
}

func (e *Engine) volunteerCandidates(d models.Demand, volunteers []models.Volunteer, factor float64) ([]candidate, rejections) {
	skills := d.RequiredSkills
	if len(skills) == 0 && d.RequiredCapability != "" {
		skills = []string{d.RequiredCapability}
	}
	var (
		pool []candidate
		rej  rejections
	)
	for i := range volunteers {
		v := &volunteers[i]
		matched := 0
		total := 0.0
		for _, s := range skills {
			switch {
			case v.Specialty == s:
				total += 1.0
				matched++
			case v.HasSkill(s):
				total += 0.75
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		switch v.Status {
		case models.VolunteerAvailable:
		case models.VolunteerDeployed:
			rej.deployed++
			continue
		default:
			rej.unavailable++
			continue
		}

		match := total / float64(len(skills))
		reliability := neutral
		ratingNote := "unrated"
		if v.PerformanceRating != nil {
			reliability = clamp(*v.PerformanceRating/5, 0, 1)
			ratingNote = fmt.Sprintf("rating %.1f", *v.PerformanceRating)
		}
		load := 0.0
		if v.MaxHours > 0 {
			load = clamp(v.AssignedHours/v.MaxHours, 0, 1)
		}

		c := candidate{
			id:        v.ID,
			loc:       v.Location,
			eta:       e.estimate(v.Location, d.Location, factor),
			remaining: 1,
			match:     match,
			version:   v.Version,
		}
		c.score = e.score(c.eta, match, reliability, load)
		c.reason = fmt.Sprintf("skills %d/%d; %s; %s", matched, len(skills), etaNote(c.eta), ratingNote)
		pool = append(pool, c)
	}
	return pool, rej
}

func (e *Engine) estimate(from, to models.Location, factor float64) *float64 {
	d, ok := e.eta.ETA(from, to)
	if !ok {
		return nil
	}
	m := round(d.Minutes()*factor, 2)
	return &m
}

func (e *Engine) score(eta *float64, match, reliability, load float64) float64 {
	w := e.weights
	s := w.Proximity*proximity(eta, e.halfLife) +
		w.Specialization*match +
		w.Reliability*reliability +
		w.Load*(1-load)
	return round(s/w.sum(), 6)
}

// nearestPrimary picks the primary closest to the alternate. Without
// coordinates the alternate hangs off the last primary.
func (e *Engine) nearestPrimary(alt *candidate, primaries []candidate) int {
	best := len(primaries) - 1
	bestETA := time.Duration(math.MaxInt64)
	for i := range primaries {
		d, ok := e.eta.ETA(alt.loc, primaries[i].loc)
		if ok && d < bestETA {
			best, bestETA = i, d
		}
	}
	return best
}

// less orders by score, then earlier ETA, then more remaining capacity,
// then id
func less(a, b *candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	ae, be := math.Inf(1), math.Inf(1)
	if a.eta != nil {
		ae = *a.eta
	}
	if b.eta != nil {
		be = *b.eta
	}
	if ae != be {
		return ae < be
	}
	if a.remaining != b.remaining {
		return a.remaining > b.remaining
	}
	return a.id < b.id
}

func toCandidate(c *candidate) models.Candidate {
	return models.Candidate{
		CandidateID:     c.id,
		Reason:          c.reason,
		ETAMinutes:      c.eta,
		EfficiencyScore: round(c.score*100, 1),
		Remaining:       c.remaining,
		SnapshotVersion: c.version,
	}
}

func etaNote(eta *float64) string {
	if eta == nil {
		return "ETA unknown"
	}
	return fmt.Sprintf("ETA %.0f min", *eta)
}
