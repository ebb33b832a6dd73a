package service

import (
	"context"

	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"github.com/arnavshah/dispatch-api-go/pkg/registry"
)

// RegisterResource adds a resource to the registry
func (s *Service) RegisterResource(ctx context.Context, r models.Resource) (models.Resource, error) {
	out, err := s.resources.Register(r)
	if err != nil {
		return models.Resource{}, err
	}
	s.saveResource(ctx, out.ID)
	s.logger.Info("resource registered", "resource_id", out.ID, "category", out.Category, "quantity", out.Quantity)
	return out, nil
}

// GetResource returns one resource
func (s *Service) GetResource(id string) (models.Resource, error) {
	return s.resources.Get(id)
}

// ListResources returns resources matching the filter
func (s *Service) ListResources(f registry.ResourceFilter) []models.Resource {
	return s.resources.List(f)
}

// UpdateResourceStatus applies an administrative status change
func (s *Service) UpdateResourceStatus(ctx context.Context, id string, status models.ResourceStatus, actor string) (models.Resource, error) {
	out, err := s.resources.UpdateStatus(ctx, id, status)
	if err != nil {
		return models.Resource{}, err
	}
	s.saveResource(ctx, id)
	s.logger.Info("resource status updated", "resource_id", id, "status", out.Status, "actor", actor)
	return out, nil
}

// RegisterVolunteer adds a volunteer to the registry
func (s *Service) RegisterVolunteer(ctx context.Context, v models.Volunteer) (models.Volunteer, error) {
	out, err := s.volunteers.Register(v)
	if err != nil {
		return models.Volunteer{}, err
	}
	s.saveVolunteer(ctx, out.ID)
	s.logger.Info("volunteer registered", "volunteer_id", out.ID, "specialty", out.Specialty)
	return out, nil
}

// GetVolunteer returns one volunteer
func (s *Service) GetVolunteer(id string) (models.Volunteer, error) {
	return s.volunteers.Get(id)
}

// ListVolunteers returns volunteers matching the filter
func (s *Service) ListVolunteers(f registry.VolunteerFilter) []models.Volunteer {
	return s.volunteers.List(f)
}

// SetVolunteerAvailability applies a manual availability toggle
func (s *Service) SetVolunteerAvailability(ctx context.Context, id string, status models.VolunteerStatus, actor string) (models.Volunteer, error) {
	out, err := s.volunteers.SetAvailability(ctx, id, status)
	if err != nil {
		return models.Volunteer{}, err
	}
	s.saveVolunteer(ctx, id)
	s.logger.Info("volunteer availability set", "volunteer_id", id, "status", out.Status, "hold_unavailable", out.HoldUnavailable, "actor", actor)
	return out, nil
}
