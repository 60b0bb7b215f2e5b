package models

import "time"

const (
	DoctorStatusPending   = "pending"
	DoctorStatusActive    = "active"
	DoctorStatusSuspended = "suspended"
)

// ValidDoctorStatus reports whether s is a known doctor status.
func ValidDoctorStatus(s string) bool {
	switch s {
	case DoctorStatusPending, DoctorStatusActive, DoctorStatusSuspended:
		return true
	}
	return false
}

type Doctor struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FullName              string     `json:"full_name"`
	Specialty             string     `json:"specialty"`
	Phone                 string     `json:"phone"`
	Status                string     `json:"status"`
	EmailConfirmed        bool       `json:"email_confirmed"`
	SubscriptionTypeID    *string    `json:"subscription_type_id,omitempty"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

type CreateDoctorRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	FullName  string `json:"full_name" binding:"required,min=2,max=200"`
	Specialty string `json:"specialty" binding:"omitempty,max=120"`
	Phone     string `json:"phone" binding:"omitempty,max=32"`
	Status    string `json:"status" binding:"omitempty,oneof=pending active suspended"`
}

// UpdateDoctorRequest carries optional fields; nil means unchanged.
type UpdateDoctorRequest struct {
	Email     *string `json:"email" binding:"omitempty,email,max=254"`
	FullName  *string `json:"full_name" binding:"omitempty,min=2,max=200"`
	Specialty *string `json:"specialty" binding:"omitempty,max=120"`
	Phone     *string `json:"phone" binding:"omitempty,max=32"`
}

type UpdateDoctorStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending active suspended"`
}

type AssignSubscriptionRequest struct {
	SubscriptionTypeID string `json:"subscription_type_id" binding:"required,uuid"`
}

// DoctorFilter narrows doctor listings.
type DoctorFilter struct {
	Search string
	Status string
	Limit  int
	Offset int
}

type DoctorPage struct {
	Items []Doctor `json:"items"`
	Total int      `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}
