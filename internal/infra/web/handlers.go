package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"numera-billing-sync/internal/domain"
	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/infra/gateway"
	"numera-billing-sync/internal/infra/logging"
	"numera-billing-sync/internal/usecase"
)

const (
	maxWebhookBody = 1 << 20 // 1 MiB

	maxHistoryPageSize = 100
)

// handleWebhook receives gateway event deliveries. The response code is the
// only channel back to the gateway: 2xx acknowledges the delivery, anything
// else asks for a retry. Terminal failures are acknowledged so the gateway
// stops redelivering a payload that will never succeed.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Gateway-Signature")
	if err := gateway.VerifySignature(s.gatewayCfg.WebhookSecret, sigHeader, body, time.Now(), s.gatewayCfg.SignatureTolerance); err != nil {
		s.log.Warn().Err(err).Msg("webhook signature rejected")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	delivery, err := usecase.ParseDelivery(body)
	if err != nil {
		// An unparseable envelope can never be admitted, so there is
		// nothing to retry.
		s.log.Warn().Err(err).Msg("webhook envelope rejected")
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := logging.WithEventID(r.Context(), delivery.GatewayEventID)
	if err := s.reconciler.Process(ctx, delivery); err != nil {
		s.log.Error().Err(err).Str("event_id", delivery.GatewayEventID).Msg("webhook processing failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type entitlementResponse struct {
	UserID        string     `json:"user_id"`
	IsPremium     bool       `json:"is_premium"`
	Plan          string     `json:"plan"`
	PremiumExpiry *time.Time `json:"premium_expiry,omitempty"`
}

func (s *Server) handleGetEntitlement(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ent, err := s.entitlement.Get(logging.WithUserID(r.Context(), userID), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Str("user_id", userID).Msg("entitlement lookup failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entitlementResponse{
		UserID:        userID,
		IsPremium:     ent.IsPremium,
		Plan:          string(ent.Plan),
		PremiumExpiry: ent.PremiumExpiry,
	})
}

type ledgerEntryResponse struct {
	ID          string     `json:"id"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"`
	Description string     `json:"description"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type billingHistoryResponse struct {
	Entries []ledgerEntryResponse `json:"entries"`
	Total   int                   `json:"total"`
	Offset  int                   `json:"offset"`
	Limit   int                   `json:"limit"`
}

func (s *Server) handleBillingHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 20)
	if limit > maxHistoryPageSize {
		limit = maxHistoryPageSize
	}

	entries, total, err := s.history.List(logging.WithUserID(r.Context(), userID), userID, offset, limit)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("billing history lookup failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := billingHistoryResponse{
		Entries: make([]ledgerEntryResponse, 0, len(entries)),
		Total:   total,
		Offset:  offset,
		Limit:   limit,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, ledgerEntryResponse{
			ID:          e.ID,
			Amount:      e.Amount,
			Currency:    e.Currency,
			Description: e.Description,
			PeriodStart: e.PeriodStart,
			PeriodEnd:   e.PeriodEnd,
			CreatedAt:   e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type subscribeRequest struct {
	Plan string `json:"plan"`
}

type subscribeResponse struct {
	SubscriptionID string `json:"subscription_id"`
	Status         string `json:"status"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if !model.ValidPlan(model.Plan(req.Plan)) || model.Plan(req.Plan) == model.PlanFree {
		http.Error(w, "Bad Request: unknown plan", http.StatusBadRequest)
		return
	}

	sub, err := s.checkout.Subscribe(logging.WithUserID(r.Context(), userID), userID, req.Plan)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Str("user_id", userID).Msg("subscribe failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := subscribeResponse{Status: string(sub.Status)}
	if sub.GatewaySubscriptionID != nil {
		resp.SubscriptionID = *sub.GatewaySubscriptionID
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	atPeriodEnd := r.URL.Query().Get("at_period_end") != "false"
	if _, err := s.checkout.Cancel(logging.WithUserID(r.Context(), userID), userID, atPeriodEnd); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Str("user_id", userID).Msg("cancel failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
