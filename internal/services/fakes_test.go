package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/medconfirm/internal/models"
	"github.com/MrEthical07/medconfirm/internal/repositories"
	"github.com/google/uuid"
)

type memoryDoctors struct {
	mu      sync.Mutex
	byID    map[string]models.Doctor
	filters []models.DoctorFilter
}

func newMemoryDoctors(doctors ...models.Doctor) *memoryDoctors {
	m := &memoryDoctors{byID: map[string]models.Doctor{}}
	for _, d := range doctors {
		m.byID[d.ID] = d
	}
	return m
}

func (m *memoryDoctors) List(_ context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, filter)
	var out []models.Doctor
	for _, d := range m.byID {
		if filter.Status == "" || d.Status == filter.Status {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if filter.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (m *memoryDoctors) GetByID(_ context.Context, id string) (*models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &d, nil
}

func (m *memoryDoctors) GetByEmail(_ context.Context, email string) (*models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.byID {
		if d.Email == email {
			return &d, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memoryDoctors) Create(_ context.Context, d *models.Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == d.Email {
			return repositories.ErrConflict
		}
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	m.byID[d.ID] = *d
	return nil
}

func (m *memoryDoctors) Update(_ context.Context, d *models.Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[d.ID]; !ok {
		return repositories.ErrNotFound
	}
	m.byID[d.ID] = *d
	return nil
}

func (m *memoryDoctors) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memoryDoctors) SetStatus(_ context.Context, id, status string) (*models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	d.Status = status
	m.byID[id] = d
	return &d, nil
}

func (m *memoryDoctors) AssignSubscription(_ context.Context, id, typeID string, expiresAt time.Time) (*models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	d.SubscriptionTypeID = &typeID
	d.SubscriptionExpiresAt = &expiresAt
	m.byID[id] = d
	return &d, nil
}

func (m *memoryDoctors) TouchUpdatedAt(_ context.Context, id string) error {
	_, err := m.SetStatus(context.Background(), id, m.byID[id].Status)
	return err
}

type memorySubscriptionTypes struct {
	byID map[string]models.SubscriptionType
}

func (m *memorySubscriptionTypes) List(context.Context) ([]models.SubscriptionType, error) {
	var out []models.SubscriptionType
	for _, st := range m.byID {
		out = append(out, st)
	}
	return out, nil
}

func (m *memorySubscriptionTypes) GetByID(_ context.Context, id string) (*models.SubscriptionType, error) {
	st, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &st, nil
}

func (m *memorySubscriptionTypes) Create(_ context.Context, st *models.SubscriptionType) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	m.byID[st.ID] = *st
	return nil
}

func (m *memorySubscriptionTypes) Update(_ context.Context, st *models.SubscriptionType) error {
	if _, ok := m.byID[st.ID]; !ok {
		return repositories.ErrNotFound
	}
	m.byID[st.ID] = *st
	return nil
}

func (m *memorySubscriptionTypes) Delete(_ context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

type memoryEvents struct {
	since *time.Time
	items []models.Event
}

func (m *memoryEvents) List(_ context.Context, since *time.Time) ([]models.Event, error) {
	m.since = since
	return m.items, nil
}

func (m *memoryEvents) GetByID(_ context.Context, id string) (*models.Event, error) {
	for _, e := range m.items {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memoryEvents) Create(_ context.Context, e *models.Event) error {
	e.ID = uuid.NewString()
	m.items = append(m.items, *e)
	return nil
}

func (m *memoryEvents) Update(_ context.Context, e *models.Event) error {
	for i := range m.items {
		if m.items[i].ID == e.ID {
			m.items[i] = *e
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memoryEvents) Delete(context.Context, string) error { return nil }

type memoryAdmins struct {
	byID    map[string]models.Admin
	deleted []string
}

func (m *memoryAdmins) List(context.Context) ([]models.Admin, error) {
	return nil, nil
}

func (m *memoryAdmins) GetByID(_ context.Context, id string) (*models.Admin, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (m *memoryAdmins) GetByEmail(_ context.Context, email string) (*models.Admin, error) {
	for _, a := range m.byID {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memoryAdmins) Create(_ context.Context, a *models.Admin) error {
	a.ID = uuid.NewString()
	m.byID[a.ID] = *a
	return nil
}

func (m *memoryAdmins) UpdateFullName(_ context.Context, id, fullName string) (*models.Admin, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	a.FullName = fullName
	m.byID[id] = a
	return &a, nil
}

func (m *memoryAdmins) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.byID, id)
	return nil
}

type fixedStats struct {
	at time.Time
}

func (f *fixedStats) Dashboard(_ context.Context, now time.Time) (models.DashboardStats, error) {
	f.at = now
	return models.DashboardStats{DoctorsTotal: 3, DoctorsActive: 2}, nil
}
