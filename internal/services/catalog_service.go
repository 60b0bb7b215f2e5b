package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/medconfirm/internal/models"
	"github.com/MrEthical07/medconfirm/internal/repositories"
)

// CatalogService manages subscription types and events.
type CatalogService struct {
	subscriptions repositories.SubscriptionTypeRepository
	events        repositories.EventRepository
	now           func() time.Time
}

func NewCatalogService(subscriptions repositories.SubscriptionTypeRepository, events repositories.EventRepository) *CatalogService {
	return &CatalogService{subscriptions: subscriptions, events: events, now: time.Now}
}

func (s *CatalogService) ListSubscriptionTypes(ctx context.Context) ([]models.SubscriptionType, error) {
	out, err := s.subscriptions.List(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.SubscriptionType{}
	}
	return out, nil
}

func (s *CatalogService) GetSubscriptionType(ctx context.Context, id string) (*models.SubscriptionType, error) {
	return s.subscriptions.GetByID(ctx, id)
}

func (s *CatalogService) CreateSubscriptionType(ctx context.Context, req models.SubscriptionTypeRequest) (*models.SubscriptionType, error) {
	st := subscriptionTypeFromRequest(req)
	if err := s.subscriptions.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *CatalogService) UpdateSubscriptionType(ctx context.Context, id string, req models.SubscriptionTypeRequest) (*models.SubscriptionType, error) {
	st := subscriptionTypeFromRequest(req)
	st.ID = id
	if err := s.subscriptions.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *CatalogService) DeleteSubscriptionType(ctx context.Context, id string) error {
	return s.subscriptions.Delete(ctx, id)
}

func subscriptionTypeFromRequest(req models.SubscriptionTypeRequest) *models.SubscriptionType {
	st := &models.SubscriptionType{
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		PriceCents:   req.PriceCents,
		Currency:     strings.ToUpper(strings.TrimSpace(req.Currency)),
		DurationDays: req.DurationDays,
		Active:       true,
	}
	if st.Currency == "" {
		st.Currency = "EUR"
	}
	if req.Active != nil {
		st.Active = *req.Active
	}
	return st
}

// ListEvents returns every event, or only upcoming ones.
func (s *CatalogService) ListEvents(ctx context.Context, upcoming bool) ([]models.Event, error) {
	var since *time.Time
	if upcoming {
		now := s.now().UTC()
		since = &now
	}
	out, err := s.events.List(ctx, since)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Event{}
	}
	return out, nil
}

func (s *CatalogService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return s.events.GetByID(ctx, id)
}

func (s *CatalogService) CreateEvent(ctx context.Context, req models.EventRequest) (*models.Event, error) {
	e, err := eventFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.events.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *CatalogService) UpdateEvent(ctx context.Context, id string, req models.EventRequest) (*models.Event, error) {
	e, err := eventFromRequest(req)
	if err != nil {
		return nil, err
	}
	e.ID = id
	if err := s.events.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *CatalogService) DeleteEvent(ctx context.Context, id string) error {
	return s.events.Delete(ctx, id)
}

func eventFromRequest(req models.EventRequest) (*models.Event, error) {
	if req.EndsAt != nil && req.EndsAt.Before(req.StartsAt) {
		return nil, fmt.Errorf("%w: ends_at before starts_at", ErrInvalidInput)
	}
	return &models.Event{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		StartsAt:    req.StartsAt.UTC(),
		EndsAt:      req.EndsAt,
	}, nil
}
