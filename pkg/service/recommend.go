package service

import (
	"context"
	"errors"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
	"github.com/arnavshah/dispatch-api-go/pkg/matching"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"golang.org/x/sync/errgroup"
)

// asyncRefreshTimeout bounds a background recommendation refresh
const asyncRefreshTimeout = 30 * time.Second

// GetRecommendations ranks candidates for the request against a fresh
// registry snapshot. A computation overtaken by a newer one for the same
// request fails with a ConflictError instead of returning stale results.
func (s *Service) GetRecommendations(ctx context.Context, id string) (models.Recommendation, error) {
	d, err := s.demandFor(id)
	if err != nil {
		return models.Recommendation{}, err
	}
	rec, published, err := s.coord.Run(ctx, id, s.compute(d))
	if errors.Is(err, context.Canceled) || (err == nil && !published) {
		return models.Recommendation{}, apperr.Conflict(id, "recommendation superseded by a newer computation")
	}
	if err != nil {
		return models.Recommendation{}, err
	}
	return rec, nil
}

// RefreshRecommendations schedules a background recomputation and returns
// the latest published recommendation, if any
func (s *Service) RefreshRecommendations(id string) (models.Recommendation, bool, error) {
	d, err := s.demandFor(id)
	if err != nil {
		return models.Recommendation{}, false, err
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncRefreshTimeout)
		defer cancel()
		if _, published, err := s.coord.Run(ctx, id, s.compute(d)); err == nil && published {
			s.logger.Debug("recommendation refreshed", "request_id", id)
		}
	}()
	rec, ok := s.coord.Latest(id)
	return rec, ok, nil
}

// LatestRecommendation returns the most recent published recommendation
func (s *Service) LatestRecommendation(id string) (models.Recommendation, bool) {
	return s.coord.Latest(id)
}

// RefreshAll recomputes recommendations for every open request and returns
// how many were published
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	var ids []string
	for _, r := range s.ledger.ResourceRequests("") {
		if r.Status == models.RequestPending || r.Status == models.RequestApproved {
			ids = append(ids, r.ID)
		}
	}
	for _, r := range s.ledger.VolunteerRequests("") {
		if r.Status == models.VolunteerRequestOpen || r.Status == models.VolunteerRequestPartiallyFilled {
			ids = append(ids, r.ID)
		}
	}

	published := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.refreshConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			d, err := s.demandFor(id)
			if err != nil {
				// closed between listing and computing
				return nil
			}
			_, ok, err := s.coord.Run(gctx, id, s.compute(d))
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			published[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	n := 0
	for _, ok := range published {
		if ok {
			n++
		}
	}
	s.logger.Info("recommendations refreshed", "open_requests", len(ids), "published", n)
	return n, nil
}

// SetExternalSignals replaces the route and weather conditions used for
// ETA scaling and refreshes every open recommendation
func (s *Service) SetExternalSignals(ctx context.Context, sig models.ExternalSignals) (int, error) {
	if sig.ETAFactor < 0 {
		return 0, apperr.Validation("eta_factor", "must not be negative")
	}
	s.signals.Store(&sig)
	s.logger.Info("external signals updated",
		"weather_degraded", sig.WeatherDegraded,
		"traffic_degraded", sig.TrafficDegraded,
		"eta_factor", sig.ETAFactor,
	)
	return s.RefreshAll(ctx)
}

// ExternalSignals returns the current route and weather conditions
func (s *Service) ExternalSignals() models.ExternalSignals {
	if sig := s.signals.Load(); sig != nil {
		return *sig
	}
	return models.ExternalSignals{}
}

func (s *Service) compute(d models.Demand) func(context.Context) (models.Recommendation, error) {
	return func(ctx context.Context) (models.Recommendation, error) {
		if err := ctx.Err(); err != nil {
			return models.Recommendation{}, err
		}
		snap := matching.Snapshot{
			Resources:  s.resources.Snapshot(),
			Volunteers: s.volunteers.Snapshot(),
		}
		rec := s.engine.Recommend(d, snap, s.signals.Load())
		if err := ctx.Err(); err != nil {
			return models.Recommendation{}, err
		}
		return rec, nil
	}
}

// demandFor normalizes an open request, sized to what is still outstanding
func (s *Service) demandFor(id string) (models.Demand, error) {
	d, err := s.ledger.Demand(id)
	if err != nil {
		return models.Demand{}, err
	}
	if req, err := s.ledger.ResourceRequest(id); err == nil {
		if req.Status != models.RequestPending && req.Status != models.RequestApproved {
			return models.Demand{}, apperr.Transition(id, req.Status, "recommended")
		}
		d.Quantity = req.Outstanding()
		return d, nil
	}
	req, err := s.ledger.VolunteerRequest(id)
	if err != nil {
		return models.Demand{}, err
	}
	if req.Status == models.VolunteerRequestFilled || req.Status == models.VolunteerRequestCancelled {
		return models.Demand{}, apperr.Transition(id, req.Status, "recommended")
	}
	d.Quantity = req.NumberOfVolunteers - len(req.AssignedVolunteers)
	return d, nil
}
