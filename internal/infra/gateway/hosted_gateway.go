package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"numera-billing-sync/internal/config"
	"numera-billing-sync/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*HostedGateway)(nil)

// HostedGateway implements adapter.PaymentGateway against the provider's REST
// API. The engine treats every response as a snapshot and feeds it through
// the same apply path the webhook handlers use, so the synchronous and
// asynchronous entry paths cannot drift.
type HostedGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHostedGateway(cfg config.GatewayConfig) (*HostedGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gateway api key empty")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.paygate.example.com/v1"
		if cfg.Sandbox {
			base = "https://sandbox.paygate.example.com/v1"
		}
	}
	return &HostedGateway{
		baseURL: base,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *HostedGateway) Name() string { return "hosted-checkout" }

func (g *HostedGateway) CreateCustomer(ctx context.Context, email string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := g.post(ctx, "/customers", map[string]any{"email": email}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("gateway returned empty customer id")
	}
	return out.ID, nil
}

func (g *HostedGateway) CreateSubscription(ctx context.Context, customerID, planCode string) (*adapter.SubscriptionSnapshot, error) {
	var out subscriptionResponse
	payload := map[string]any{"customer": customerID, "plan": planCode}
	if err := g.post(ctx, "/subscriptions", payload, &out); err != nil {
		return nil, err
	}
	return out.snapshot(), nil
}

func (g *HostedGateway) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*adapter.SubscriptionSnapshot, error) {
	var out subscriptionResponse
	payload := map[string]any{"cancel_at_period_end": atPeriodEnd}
	if err := g.post(ctx, "/subscriptions/"+subscriptionID+"/cancel", payload, &out); err != nil {
		return nil, err
	}
	return out.snapshot(), nil
}

type subscriptionResponse struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Plan               string `json:"plan"`
	Status             string `json:"status"`
	CurrentPeriodStart *int64 `json:"current_period_start"`
	CurrentPeriodEnd   *int64 `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CanceledAt         *int64 `json:"canceled_at"`
	TrialStart         *int64 `json:"trial_start"`
	TrialEnd           *int64 `json:"trial_end"`
}

func (r *subscriptionResponse) snapshot() *adapter.SubscriptionSnapshot {
	return &adapter.SubscriptionSnapshot{
		GatewaySubscriptionID: r.ID,
		GatewayCustomerID:     r.Customer,
		PlanCode:              r.Plan,
		Status:                r.Status,
		CurrentPeriodStart:    unixPtr(r.CurrentPeriodStart),
		CurrentPeriodEnd:      unixPtr(r.CurrentPeriodEnd),
		CancelAtPeriodEnd:     r.CancelAtPeriodEnd,
		CanceledAt:            unixPtr(r.CanceledAt),
		TrialStart:            unixPtr(r.TrialStart),
		TrialEnd:              unixPtr(r.TrialEnd),
	}
}

func unixPtr(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := time.Unix(*v, 0).UTC()
	return &t
}

func (g *HostedGateway) post(ctx context.Context, path string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
