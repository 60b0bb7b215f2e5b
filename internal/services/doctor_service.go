package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/medconfirm/internal/models"
	"github.com/MrEthical07/medconfirm/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type DoctorService struct {
	doctors       repositories.DoctorRepository
	subscriptions repositories.SubscriptionTypeRepository
	now           func() time.Time
}

func NewDoctorService(doctors repositories.DoctorRepository, subscriptions repositories.SubscriptionTypeRepository) *DoctorService {
	return &DoctorService{doctors: doctors, subscriptions: subscriptions, now: time.Now}
}

// List pages through doctors. page starts at 1; limit is clamped to 1..100.
func (s *DoctorService) List(ctx context.Context, search, status string, page, limit int) (models.DoctorPage, error) {
	if status != "" && !models.ValidDoctorStatus(status) {
		return models.DoctorPage{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	items, total, err := s.doctors.List(ctx, models.DoctorFilter{
		Search: search,
		Status: status,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return models.DoctorPage{}, err
	}
	if items == nil {
		items = []models.Doctor{}
	}
	return models.DoctorPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *DoctorService) Get(ctx context.Context, id string) (*models.Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *DoctorService) Create(ctx context.Context, req models.CreateDoctorRequest) (*models.Doctor, error) {
	d := &models.Doctor{
		Email:     normalizeEmail(req.Email),
		FullName:  strings.TrimSpace(req.FullName),
		Specialty: strings.TrimSpace(req.Specialty),
		Phone:     strings.TrimSpace(req.Phone),
		Status:    req.Status,
	}
	if d.Status == "" {
		d.Status = models.DoctorStatusPending
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DoctorService) Update(ctx context.Context, id string, req models.UpdateDoctorRequest) (*models.Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Email != nil {
		d.Email = normalizeEmail(*req.Email)
	}
	if req.FullName != nil {
		d.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Specialty != nil {
		d.Specialty = strings.TrimSpace(*req.Specialty)
	}
	if req.Phone != nil {
		d.Phone = strings.TrimSpace(*req.Phone)
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DoctorService) Delete(ctx context.Context, id string) error {
	return s.doctors.Delete(ctx, id)
}

func (s *DoctorService) SetStatus(ctx context.Context, id, status string) (*models.Doctor, error) {
	if !models.ValidDoctorStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.doctors.SetStatus(ctx, id, status)
}

// AssignSubscription starts a subscription now; it expires after the type's
// duration.
func (s *DoctorService) AssignSubscription(ctx context.Context, id, subscriptionTypeID string) (*models.Doctor, error) {
	st, err := s.subscriptions.GetByID(ctx, subscriptionTypeID)
	if err != nil {
		return nil, err
	}
	if !st.Active {
		return nil, ErrSubscriptionInactive
	}
	expires := s.now().UTC().Add(time.Duration(st.DurationDays) * 24 * time.Hour)
	return s.doctors.AssignSubscription(ctx, id, st.ID, expires)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
