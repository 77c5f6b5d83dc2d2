package model

import (
	"time"

	"numera-billing-sync/internal/domain"

	"github.com/google/uuid"
)

// User is the platform account this engine grants paid features to. Only the
// fields the billing engine owns live here: the gateway customer mapping and
// the denormalized entitlement cache. Profile data belongs to other services.
type User struct {
	ID                string
	Email             string
	GatewayCustomerID *string // unique, nil until a gateway customer is created
	IsPremium         bool
	Plan              Plan
	PremiumExpiry     *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewUser(id, email string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:        id,
		Email:     email,
		Plan:      PlanFree,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// Entitlement reads the cached snapshot off the user row.
func (u *User) Entitlement() Entitlement {
	return Entitlement{IsPremium: u.IsPremium, Plan: u.Plan, PremiumExpiry: u.PremiumExpiry}
}
