package models

import "time"

type SubscriptionType struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	PriceCents   int64     `json:"price_cents"`
	Currency     string    `json:"currency"`
	DurationDays int       `json:"duration_days"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type SubscriptionTypeRequest struct {
	Name         string `json:"name" binding:"required,min=2,max=120"`
	Description  string `json:"description" binding:"omitempty,max=2000"`
	PriceCents   int64  `json:"price_cents" binding:"gte=0"`
	Currency     string `json:"currency" binding:"omitempty,len=3"`
	DurationDays int    `json:"duration_days" binding:"required,gt=0,lte=3660"`
	Active       *bool  `json:"active"`
}
