package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
	PlanElite   Plan = "elite"
)

// Subscription mirrors the gateway's subscription object for one user.
// The gateway is authoritative: its reported status is written as-is
// (last-write-received-wins), and this mirror never rejects a transition.
type Subscription struct {
	ID                    string  // UUID
	UserID                string  // UUID, one-to-one with user
	GatewaySubscriptionID *string // unique, nil until first sync
	GatewayCustomerID     string
	Plan                  Plan
	Status                SubscriptionStatus
	CurrentPeriodStart    *time.Time
	CurrentPeriodEnd      *time.Time
	CancelAtPeriodEnd     bool
	CanceledAt            *time.Time
	TrialStart            *time.Time
	TrialEnd              *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// expectedTransitions is the lifecycle graph the gateway normally walks.
// canceled and incomplete_expired are terminal.
var expectedTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusIncomplete: {SubscriptionStatusTrialing, SubscriptionStatusActive, SubscriptionStatusIncompleteExpired},
	SubscriptionStatusTrialing:   {SubscriptionStatusActive, SubscriptionStatusCanceled},
	SubscriptionStatusActive:     {SubscriptionStatusPastDue, SubscriptionStatusCanceled},
	SubscriptionStatusPastDue:    {SubscriptionStatusActive, SubscriptionStatusCanceled, SubscriptionStatusUnpaid},
	SubscriptionStatusUnpaid:     {SubscriptionStatusCanceled},
}

// ExpectedTransition reports whether from -> to follows the normal lifecycle
// graph. Off-graph transitions are still applied (the gateway wins); callers
// log them as a correctness signal.
func ExpectedTransition(from, to SubscriptionStatus) bool {
	if from == to {
		return true
	}
	for _, next := range expectedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidPlan reports whether p is one of the billable plan codes or free.
func ValidPlan(p Plan) bool {
	switch p {
	case PlanFree, PlanBasic, PlanPremium, PlanElite:
		return true
	}
	return false
}

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s SubscriptionStatus) bool {
	switch s {
	case SubscriptionStatusIncomplete, SubscriptionStatusIncompleteExpired,
		SubscriptionStatusTrialing, SubscriptionStatusActive,
		SubscriptionStatusPastDue, SubscriptionStatusUnpaid,
		SubscriptionStatusCanceled:
		return true
	}
	return false
}
