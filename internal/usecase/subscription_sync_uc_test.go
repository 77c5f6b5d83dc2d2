//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"numera-billing-sync/internal/domain"
	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/adapter"
	"numera-billing-sync/internal/domain/ports/repository"
	"numera-billing-sync/internal/usecase"
)

type subSyncDeps struct {
	subs  *MockSubscriptionRepo
	users *MockUserRepo
	tm    *MockTxManager
	uc    usecase.SubscriptionSyncUseCase
}

func newSubSyncDeps() *subSyncDeps {
	d := &subSyncDeps{
		subs:  NewMockSubscriptionRepo(),
		users: NewMockUserRepo(),
		tm:    NewMockTxManager(),
	}
	logger := newTestLogger()
	entUC := usecase.NewEntitlementUseCase(d.users, d.subs, d.tm, logger)
	d.uc = usecase.NewSubscriptionSyncUseCase(d.subs, d.users, entUC, logger)
	return d
}

func activeSnapshot(subID, customerID string, periodEnd time.Time) *adapter.SubscriptionSnapshot {
	return &adapter.SubscriptionSnapshot{
		GatewaySubscriptionID: subID,
		GatewayCustomerID:     customerID,
		PlanCode:              "premium",
		Status:                string(model.SubscriptionStatusActive),
		CurrentPeriodEnd:      &periodEnd,
	}
}

func TestSubscriptionSync_ApplySnapshot(t *testing.T) {
	ctx := context.Background()
	custID := "cus_1"
	periodEnd := time.Now().Add(30 * 24 * time.Hour)

	seedUser := func(t *testing.T, d *subSyncDeps) {
		t.Helper()
		u := &model.User{ID: "user-1", Email: "u@example.com", GatewayCustomerID: &custID, Plan: model.PlanFree}
		if err := d.users.Save(ctx, repository.NoTX, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	t.Run("should create the mirror row on first sight and grant premium", func(t *testing.T) {
		// --- Arrange ---
		d := newSubSyncDeps()
		seedUser(t, d)

		// --- Act ---
		sub, err := d.uc.ApplySnapshot(ctx, repository.NoTX, activeSnapshot("sub_1", custID, periodEnd))

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if sub.UserID != "user-1" {
			t.Errorf("expected mirror row owned by user-1, got %q", sub.UserID)
		}
		if sub.Plan != model.PlanPremium {
			t.Errorf("expected plan premium, got %q", sub.Plan)
		}
		user, _ := d.users.FindByID(ctx, repository.NoTX, "user-1")
		if !user.IsPremium {
			t.Error("expected entitlement recomputed to premium")
		}
		if user.PremiumExpiry == nil || !user.PremiumExpiry.Equal(periodEnd) {
			t.Error("expected premium expiry to match the period end")
		}
	})

	t.Run("should overwrite the mirror on cancellation and revoke premium", func(t *testing.T) {
		// --- Arrange ---
		d := newSubSyncDeps()
		seedUser(t, d)
		if _, err := d.uc.ApplySnapshot(ctx, repository.NoTX, activeSnapshot("sub_1", custID, periodEnd)); err != nil {
			t.Fatalf("seed subscription: %v", err)
		}

		now := time.Now()
		snap := activeSnapshot("sub_1", custID, periodEnd)
		snap.Status = string(model.SubscriptionStatusCanceled)
		snap.CanceledAt = &now

		// --- Act ---
		sub, err := d.uc.ApplySnapshot(ctx, repository.NoTX, snap)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if sub.Status != model.SubscriptionStatusCanceled {
			t.Errorf("expected status canceled, got %q", sub.Status)
		}
		user, _ := d.users.FindByID(ctx, repository.NoTX, "user-1")
		if user.IsPremium {
			t.Error("expected premium revoked after cancellation")
		}
		if user.Plan != model.PlanFree {
			t.Errorf("expected plan downgraded to free, got %q", user.Plan)
		}
	})

	t.Run("should apply off-graph transitions as the gateway reports them", func(t *testing.T) {
		// Out-of-order delivery: the cancellation arrived first, then a stale
		// active snapshot. Last write received wins.
		// --- Arrange ---
		d := newSubSyncDeps()
		seedUser(t, d)
		now := time.Now()
		canceled := activeSnapshot("sub_1", custID, periodEnd)
		canceled.Status = string(model.SubscriptionStatusCanceled)
		canceled.CanceledAt = &now
		if _, err := d.uc.ApplySnapshot(ctx, repository.NoTX, canceled); err != nil {
			t.Fatalf("seed canceled subscription: %v", err)
		}

		// --- Act ---
		sub, err := d.uc.ApplySnapshot(ctx, repository.NoTX, activeSnapshot("sub_1", custID, periodEnd))

		// --- Assert ---
		if err != nil {
			t.Fatalf("off-graph transitions must still apply, got: %v", err)
		}
		if sub.Status != model.SubscriptionStatusActive {
			t.Errorf("expected the late snapshot to win, got %q", sub.Status)
		}
		user, _ := d.users.FindByID(ctx, repository.NoTX, "user-1")
		if !user.IsPremium {
			t.Error("expected entitlement to follow the applied snapshot")
		}
	})

	t.Run("should reject an unknown status as malformed", func(t *testing.T) {
		// --- Arrange ---
		d := newSubSyncDeps()
		seedUser(t, d)
		snap := activeSnapshot("sub_1", custID, periodEnd)
		snap.Status = "hibernating"

		// --- Act ---
		_, err := d.uc.ApplySnapshot(ctx, repository.NoTX, snap)

		// --- Assert ---
		if !errors.Is(err, domain.ErrMalformedPayload) {
			t.Fatalf("expected ErrMalformedPayload, got: %v", err)
		}
	})

	t.Run("should fail with unknown customer when no mapping exists", func(t *testing.T) {
		// --- Arrange ---
		d := newSubSyncDeps()

		// --- Act ---
		_, err := d.uc.ApplySnapshot(ctx, repository.NoTX, activeSnapshot("sub_1", "cus_missing", periodEnd))

		// --- Assert ---
		if !errors.Is(err, domain.ErrUnknownCustomer) {
			t.Fatalf("expected ErrUnknownCustomer, got: %v", err)
		}
	})
}
