//go:build !integration

package model_test

import (
	"testing"
	"time"

	"numera-billing-sync/internal/domain/model"
)

func TestResolveEntitlement(t *testing.T) {
	now := time.Now()
	future := now.Add(14 * 24 * time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name        string
		sub         *model.Subscription
		wantPremium bool
		wantPlan    model.Plan
	}{
		{
			name:        "nil subscription resolves to free",
			sub:         nil,
			wantPremium: false,
			wantPlan:    model.PlanFree,
		},
		{
			name: "active within period grants the plan",
			sub: &model.Subscription{
				Status:           model.SubscriptionStatusActive,
				Plan:             model.PlanPremium,
				CurrentPeriodEnd: &future,
			},
			wantPremium: true,
			wantPlan:    model.PlanPremium,
		},
		{
			name: "trialing grants the plan",
			sub: &model.Subscription{
				Status:           model.SubscriptionStatusTrialing,
				Plan:             model.PlanBasic,
				CurrentPeriodEnd: &future,
			},
			wantPremium: true,
			wantPlan:    model.PlanBasic,
		},
		{
			name: "active with no period end grants the plan",
			sub: &model.Subscription{
				Status: model.SubscriptionStatusActive,
				Plan:   model.PlanElite,
			},
			wantPremium: true,
			wantPlan:    model.PlanElite,
		},
		{
			name: "active past the period end resolves to free",
			sub: &model.Subscription{
				Status:           model.SubscriptionStatusActive,
				Plan:             model.PlanPremium,
				CurrentPeriodEnd: &past,
			},
			wantPremium: false,
			wantPlan:    model.PlanFree,
		},
		{
			name: "past_due resolves to free",
			sub: &model.Subscription{
				Status:           model.SubscriptionStatusPastDue,
				Plan:             model.PlanPremium,
				CurrentPeriodEnd: &future,
			},
			wantPremium: false,
			wantPlan:    model.PlanFree,
		},
		{
			name: "canceled resolves to free",
			sub: &model.Subscription{
				Status:           model.SubscriptionStatusCanceled,
				Plan:             model.PlanPremium,
				CurrentPeriodEnd: &future,
			},
			wantPremium: false,
			wantPlan:    model.PlanFree,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ent := model.ResolveEntitlement(tc.sub, now)
			if ent.IsPremium != tc.wantPremium {
				t.Errorf("IsPremium = %v, want %v", ent.IsPremium, tc.wantPremium)
			}
			if ent.Plan != tc.wantPlan {
				t.Errorf("Plan = %q, want %q", ent.Plan, tc.wantPlan)
			}
			if !ent.IsPremium && ent.PremiumExpiry != nil {
				t.Error("a free entitlement must not carry an expiry")
			}
		})
	}
}

func TestResolveEntitlement_Deterministic(t *testing.T) {
	now := time.Now()
	end := now.Add(24 * time.Hour)
	sub := &model.Subscription{
		Status:           model.SubscriptionStatusActive,
		Plan:             model.PlanPremium,
		CurrentPeriodEnd: &end,
	}
	first := model.ResolveEntitlement(sub, now)
	for i := 0; i < 5; i++ {
		if got := model.ResolveEntitlement(sub, now); got != first {
			t.Fatalf("resolution is not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestExpectedTransition(t *testing.T) {
	cases := []struct {
		from, to model.SubscriptionStatus
		want     bool
	}{
		{model.SubscriptionStatusActive, model.SubscriptionStatusPastDue, true},
		{model.SubscriptionStatusPastDue, model.SubscriptionStatusActive, true},
		{model.SubscriptionStatusActive, model.SubscriptionStatusActive, true},
		{model.SubscriptionStatusCanceled, model.SubscriptionStatusActive, false},
		{model.SubscriptionStatusIncompleteExpired, model.SubscriptionStatusActive, false},
		{model.SubscriptionStatusUnpaid, model.SubscriptionStatusTrialing, false},
	}
	for _, tc := range cases {
		if got := model.ExpectedTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("ExpectedTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
