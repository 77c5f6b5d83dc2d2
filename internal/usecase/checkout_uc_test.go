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

type checkoutDeps struct {
	users   *MockUserRepo
	subs    *MockSubscriptionRepo
	gateway *MockPaymentGateway
	tm      *MockTxManager
	uc      usecase.CheckoutUseCase
}

func newCheckoutDeps() *checkoutDeps {
	d := &checkoutDeps{
		users:   NewMockUserRepo(),
		subs:    NewMockSubscriptionRepo(),
		gateway: &MockPaymentGateway{},
		tm:      NewMockTxManager(),
	}
	logger := newTestLogger()
	entUC := usecase.NewEntitlementUseCase(d.users, d.subs, d.tm, logger)
	subSync := usecase.NewSubscriptionSyncUseCase(d.subs, d.users, entUC, logger)
	d.uc = usecase.NewCheckoutUseCase(d.users, d.subs, d.gateway, subSync, d.tm, logger)
	return d
}

func TestCheckout_Subscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("should create the gateway customer on first subscribe", func(t *testing.T) {
		// --- Arrange ---
		d := newCheckoutDeps()
		d.users.Save(ctx, repository.NoTX, &model.User{ID: "user-1", Email: "u@example.com", Plan: model.PlanFree})

		var createdFor string
		d.gateway.CreateCustomerFunc = func(ctx context.Context, email string) (string, error) {
			createdFor = email
			return "cus_new", nil
		}

		// --- Act ---
		sub, err := d.uc.Subscribe(ctx, "user-1", "premium")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if createdFor != "u@example.com" {
			t.Errorf("expected customer created for the user's email, got %q", createdFor)
		}
		user, _ := d.users.FindByID(ctx, repository.NoTX, "user-1")
		if user.GatewayCustomerID == nil || *user.GatewayCustomerID != "cus_new" {
			t.Error("expected the customer mapping persisted before the subscription call")
		}
		if sub.Status != model.SubscriptionStatusActive {
			t.Errorf("expected the synchronous snapshot applied, got status %q", sub.Status)
		}
		if !user.IsPremium {
			t.Error("expected the snapshot to flow through the same entitlement path")
		}
	})

	t.Run("should reuse an existing gateway customer", func(t *testing.T) {
		// --- Arrange ---
		d := newCheckoutDeps()
		cust := "cus_existing"
		d.users.Save(ctx, repository.NoTX, &model.User{ID: "user-1", Email: "u@example.com", GatewayCustomerID: &cust, Plan: model.PlanFree})

		d.gateway.CreateCustomerFunc = func(ctx context.Context, email string) (string, error) {
			t.Error("must not create a second gateway customer")
			return "", errors.New("unexpected")
		}

		// --- Act ---
		_, err := d.uc.Subscribe(ctx, "user-1", "premium")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
	})

	t.Run("should not touch local state when the gateway call fails", func(t *testing.T) {
		// --- Arrange ---
		d := newCheckoutDeps()
		cust := "cus_1"
		d.users.Save(ctx, repository.NoTX, &model.User{ID: "user-1", Email: "u@example.com", GatewayCustomerID: &cust, Plan: model.PlanFree})
		gwErr := errors.New("gateway timeout")
		d.gateway.CreateSubscriptionFunc = func(ctx context.Context, customerID, planCode string) (*adapter.SubscriptionSnapshot, error) {
			return nil, gwErr
		}

		// --- Act ---
		_, err := d.uc.Subscribe(ctx, "user-1", "premium")

		// --- Assert ---
		if !errors.Is(err, gwErr) {
			t.Fatalf("expected the gateway error to propagate, got: %v", err)
		}
		if _, err := d.subs.FindByUserID(ctx, repository.NoTX, "user-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Error("expected no mirror row after a failed gateway call")
		}
	})
}

func TestCheckout_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("should apply the cancellation snapshot and revoke premium", func(t *testing.T) {
		// --- Arrange ---
		d := newCheckoutDeps()
		cust := "cus_1"
		end := time.Now().Add(24 * time.Hour)
		d.users.Save(ctx, repository.NoTX, &model.User{
			ID: "user-1", Email: "u@example.com", GatewayCustomerID: &cust,
			IsPremium: true, Plan: model.PlanPremium, PremiumExpiry: &end,
		})
		gwID := "sub_1"
		d.subs.Save(ctx, repository.NoTX, &model.Subscription{
			ID: "local-1", UserID: "user-1", GatewaySubscriptionID: &gwID,
			GatewayCustomerID: cust, Plan: model.PlanPremium,
			Status: model.SubscriptionStatusActive, CurrentPeriodEnd: &end,
		})
		d.gateway.CancelSubscriptionFunc = func(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*adapter.SubscriptionSnapshot, error) {
			now := time.Now()
			return &adapter.SubscriptionSnapshot{
				GatewaySubscriptionID: subscriptionID,
				GatewayCustomerID:     cust,
				PlanCode:              "premium",
				Status:                string(model.SubscriptionStatusCanceled),
				CanceledAt:            &now,
			}, nil
		}

		// --- Act ---
		sub, err := d.uc.Cancel(ctx, "user-1", false)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if sub.Status != model.SubscriptionStatusCanceled {
			t.Errorf("expected status canceled, got %q", sub.Status)
		}
		user, _ := d.users.FindByID(ctx, repository.NoTX, "user-1")
		if user.IsPremium {
			t.Error("expected premium revoked immediately")
		}
	})

	t.Run("should fail when the user has no subscription", func(t *testing.T) {
		d := newCheckoutDeps()
		d.users.Save(ctx, repository.NoTX, &model.User{ID: "user-1", Email: "u@example.com"})
		if _, err := d.uc.Cancel(ctx, "user-1", true); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}
	})
}
