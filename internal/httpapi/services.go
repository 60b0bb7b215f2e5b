package httpapi

import (
	"context"

	"github.com/MrEthical07/medconfirm/internal/models"
	"github.com/MrEthical07/medconfirm/internal/services"
)

// AdminAPI is the admin-account surface used by the handlers.
type AdminAPI interface {
	Resolve(ctx context.Context, email string) (*models.Admin, error)
	List(ctx context.Context) ([]models.Admin, error)
	Create(ctx context.Context, actor models.Admin, req models.CreateAdminRequest) (*models.Admin, error)
	Delete(ctx context.Context, actor models.Admin, id string) error
	UpdateProfile(ctx context.Context, actor models.Admin, req models.UpdateProfileRequest) (*models.Admin, error)
}

type DoctorAPI interface {
	List(ctx context.Context, search, status string, page, limit int) (models.DoctorPage, error)
	Get(ctx context.Context, id string) (*models.Doctor, error)
	Create(ctx context.Context, req models.CreateDoctorRequest) (*models.Doctor, error)
	Update(ctx context.Context, id string, req models.UpdateDoctorRequest) (*models.Doctor, error)
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string) (*models.Doctor, error)
	AssignSubscription(ctx context.Context, id, subscriptionTypeID string) (*models.Doctor, error)
}

type CatalogAPI interface {
	ListSubscriptionTypes(ctx context.Context) ([]models.SubscriptionType, error)
	GetSubscriptionType(ctx context.Context, id string) (*models.SubscriptionType, error)
	CreateSubscriptionType(ctx context.Context, req models.SubscriptionTypeRequest) (*models.SubscriptionType, error)
	UpdateSubscriptionType(ctx context.Context, id string, req models.SubscriptionTypeRequest) (*models.SubscriptionType, error)
	DeleteSubscriptionType(ctx context.Context, id string) error
	ListEvents(ctx context.Context, upcoming bool) ([]models.Event, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	CreateEvent(ctx context.Context, req models.EventRequest) (*models.Event, error)
	UpdateEvent(ctx context.Context, id string, req models.EventRequest) (*models.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

type DashboardAPI interface {
	Stats(ctx context.Context) (models.DashboardStats, error)
}

var (
	_ AdminAPI     = (*services.AdminService)(nil)
	_ DoctorAPI    = (*services.DoctorService)(nil)
	_ CatalogAPI   = (*services.CatalogService)(nil)
	_ DashboardAPI = (*services.DashboardService)(nil)
)
