package model

import "time"

// Entitlement is the denormalized answer to "what paid features may this user
// access right now". It lives on the user row as a cache with exactly one
// recompute path: ResolveEntitlement, called whenever the owning Subscription
// changes. It is never hand-edited and never recomputed on read.
type Entitlement struct {
	IsPremium     bool
	Plan          Plan
	PremiumExpiry *time.Time
}

// ResolveEntitlement derives the entitlement from a subscription snapshot.
// Pure: depends only on sub.Status, sub.CurrentPeriodEnd and now.
// A nil subscription (user never synced) resolves to free.
func ResolveEntitlement(sub *Subscription, now time.Time) Entitlement {
	if sub == nil {
		return Entitlement{Plan: PlanFree}
	}
	premium := (sub.Status == SubscriptionStatusActive || sub.Status == SubscriptionStatusTrialing) &&
		(sub.CurrentPeriodEnd == nil || sub.CurrentPeriodEnd.After(now))
	if !premium {
		return Entitlement{Plan: PlanFree}
	}
	return Entitlement{
		IsPremium:     true,
		Plan:          sub.Plan,
		PremiumExpiry: sub.CurrentPeriodEnd,
	}
}
