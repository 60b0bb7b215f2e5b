package models

import "time"

const (
	AdminRoleAdmin      = "admin"
	AdminRoleSuperAdmin = "super_admin"
)

type Admin struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a Admin) IsSuperAdmin() bool {
	return a.Role == AdminRoleSuperAdmin
}

type CreateAdminRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	FullName string `json:"full_name" binding:"omitempty,max=200"`
	Role     string `json:"role" binding:"omitempty,oneof=admin super_admin"`
}

type UpdateProfileRequest struct {
	FullName string `json:"full_name" binding:"required,min=2,max=200"`
}
