package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"numera-billing-sync/internal/config"
	red "numera-billing-sync/internal/infra/redis"
	"numera-billing-sync/internal/usecase"
)

// Server exposes the engine's HTTP surfaces: the gateway webhook endpoint,
// the internal entitlement read, and the user-facing billing history.
type Server struct {
	cfg         config.ServerConfig
	gatewayCfg  config.GatewayConfig
	reconciler  usecase.ReconcileUseCase
	entitlement usecase.EntitlementUseCase
	history     usecase.BillingHistoryUseCase
	checkout    usecase.CheckoutUseCase
	limiter     *red.RateLimiter
	log         *zerolog.Logger
}

func NewServer(
	cfg config.ServerConfig,
	gatewayCfg config.GatewayConfig,
	reconciler usecase.ReconcileUseCase,
	entitlement usecase.EntitlementUseCase,
	history usecase.BillingHistoryUseCase,
	checkout usecase.CheckoutUseCase,
	limiter *red.RateLimiter,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		cfg:         cfg,
		gatewayCfg:  gatewayCfg,
		reconciler:  reconciler,
		entitlement: entitlement,
		history:     history,
		checkout:    checkout,
		limiter:     limiter,
		log:         &l,
	}
}

// Router builds the chi router. The webhook route is unauthenticated beyond
// its signature check; everything under /api/v1 requires the service API key.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/webhook/gateway", s.handleWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/users/{userID}/entitlement", s.handleGetEntitlement)
		r.With(s.historyRateLimit).Get("/users/{userID}/billing-history", s.handleBillingHistory)
		r.Post("/users/{userID}/subscription", s.handleSubscribe)
		r.Delete("/users/{userID}/subscription", s.handleCancel)
	})

	return r
}

// authMiddleware provides simple Bearer token authentication for the
// service-to-service API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			s.log.Error().Msg("service API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "bearer") {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}
		if tokenParts[1] != s.cfg.APIKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// historyRateLimit caps billing-history reads per user per minute.
func (s *Server) historyRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		userID := chi.URLParam(r, "userID")
		ok, err := s.limiter.Allow(r.Context(), red.HistoryKey(userID), s.cfg.HistoryRateLimit, time.Minute)
		if err != nil {
			// Redis being down should not take the read path with it.
			s.log.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
