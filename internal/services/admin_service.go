package services

import (
	"context"
	"strings"

	"github.com/MrEthical07/medconfirm/internal/models"
	"github.com/MrEthical07/medconfirm/internal/repositories"
)

type AdminService struct {
	admins repositories.AdminRepository
}

func NewAdminService(admins repositories.AdminRepository) *AdminService {
	return &AdminService{admins: admins}
}

// Resolve returns the admin registered under email, or
// repositories.ErrNotFound.
func (s *AdminService) Resolve(ctx context.Context, email string) (*models.Admin, error) {
	return s.admins.GetByEmail(ctx, normalizeEmail(email))
}

func (s *AdminService) List(ctx context.Context) ([]models.Admin, error) {
	admins, err := s.admins.List(ctx)
	if err != nil {
		return nil, err
	}
	if admins == nil {
		admins = []models.Admin{}
	}
	return admins, nil
}

func (s *AdminService) Create(ctx context.Context, actor models.Admin, req models.CreateAdminRequest) (*models.Admin, error) {
	if !actor.IsSuperAdmin() {
		return nil, ErrForbidden
	}
	a := &models.Admin{
		Email:    normalizeEmail(req.Email),
		FullName: strings.TrimSpace(req.FullName),
		Role:     req.Role,
	}
	if a.Role == "" {
		a.Role = models.AdminRoleAdmin
	}
	if err := s.admins.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AdminService) Delete(ctx context.Context, actor models.Admin, id string) error {
	if !actor.IsSuperAdmin() {
		return ErrForbidden
	}
	if actor.ID == id {
		return ErrSelfDelete
	}
	return s.admins.Delete(ctx, id)
}

func (s *AdminService) UpdateProfile(ctx context.Context, actor models.Admin, req models.UpdateProfileRequest) (*models.Admin, error) {
	return s.admins.UpdateFullName(ctx, actor.ID, strings.TrimSpace(req.FullName))
}
