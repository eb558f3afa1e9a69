// Package api is the HTTP surface of the negotiation service. Every route
// resolves the calling party from its bearer token and hands off to the
// engine; errors come back in the httpx envelope.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dealroom/pkg/authn"
	"dealroom/pkg/domain"
	"dealroom/pkg/httpx"
	"dealroom/pkg/webhooks"
	"dealroom/services/negotiation/internal/engine"
	"dealroom/services/negotiation/internal/idempotency"
	"dealroom/services/negotiation/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Deps struct {
	Engine      *engine.Engine
	Auth        authn.Authenticator
	Idempotency idempotency.Store
	// Callbacks verifies closing completion callbacks. Nil leaves the
	// callback route unmounted.
	Callbacks webhooks.Verifier
	Metrics   *metrics.Metrics
	Log       *slog.Logger
	Now       func() time.Time
}

type Server struct {
	engine    *engine.Engine
	auth      authn.Authenticator
	idem      idempotency.Store
	callbacks webhooks.Verifier
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

func New(d Deps) *Server {
	s := &Server{
		engine:    d.Engine,
		auth:      d.Auth,
		idem:      d.Idempotency,
		callbacks: d.Callbacks,
		metrics:   d.Metrics,
		log:       d.Log,
		now:       d.Now,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.RequestIDMiddleware)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	if s.callbacks != nil {
		r.Post("/closing/callbacks", s.handleClosingCallback)
	}

	r.Group(func(api chi.Router) {
		api.Use(s.authenticate)

		api.Post("/transactions", s.handleCreateTransaction)
		api.Get("/transactions/{transaction_id}", s.handleGetTransaction)
		api.Patch("/transactions/{transaction_id}", s.handleSetFields)
		api.Post("/transactions/{transaction_id}/advance", s.handleAdvance)
		api.Get("/transactions/{transaction_id}/offers", s.handleListOffers)
		api.Post("/transactions/{transaction_id}/offers", s.handleCreateOffer)
		api.Delete("/transactions/{transaction_id}/offers/{offer_id}", s.handleDeleteOffer)
		api.Get("/transactions/{transaction_id}/contracts", s.handleListContracts)
		api.Post("/transactions/{transaction_id}/contracts", s.handleCreateContract)
		api.Get("/transactions/{transaction_id}/events", s.handleListEvents)
		api.Delete("/contracts/{contract_id}", s.handleDeleteContract)
		api.Put("/contracts/{contract_id}/clauses/{clause_id}", s.handleUpdateClause)
		api.Delete("/contracts/{contract_id}/clauses/{clause_id}", s.handleDeleteClause)
		api.Get("/clause-catalog/{property_type}", s.handleCatalog)
	})
	return r
}

type partyKey struct{}

func withParty(ctx context.Context, partyID string) context.Context {
	return context.WithValue(ctx, partyKey{}, partyID)
}

// party is the authenticated caller. Only valid behind authenticate.
func party(r *http.Request) string {
	id, _ := r.Context().Value(partyKey{}).(string)
	return id
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		partyID, err := s.auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			if errors.Is(err, authn.ErrUnauthorized) {
				httpx.WriteError(w, r, 401, "UNAUTHORIZED", "valid bearer token required", nil)
				return
			}
			httpx.WriteError(w, r, 500, "DB_ERROR", err.Error(), nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(withParty(r.Context(), partyID)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = 200
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		elapsed := s.now().Sub(start)
		s.metrics.ObserveHTTP(r.Method+" "+route, status, elapsed)
		s.log.Info("http_request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("duration", elapsed),
			slog.String("request_id", httpx.RequestID(r.Context())),
		)
	})
}

// writeFailure maps an engine error onto the response envelope. Errors
// without a domain kind come from storage or a collaborator.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		httpx.WriteError(w, r, 400, "VALIDATION", err.Error(), nil)
	case domain.KindPermission:
		httpx.WriteError(w, r, 403, "PERMISSION", err.Error(), nil)
	case domain.KindConflict:
		httpx.WriteError(w, r, 409, "CONFLICT", err.Error(), nil)
	case domain.KindNotFound:
		httpx.WriteError(w, r, 404, "NOT_FOUND", err.Error(), nil)
	case domain.KindInternalInvariant:
		httpx.WriteError(w, r, 500, "INTERNAL_INVARIANT", err.Error(), nil)
	default:
		httpx.WriteError(w, r, 500, "DB_ERROR", err.Error(), nil)
	}
}

// idempotent replays the first response stored for the caller's
// Idempotency-Key on endpoint, or runs and stores a new one.
func (s *Server) idempotent(w http.ResponseWriter, r *http.Request, endpoint string, run func() (int, map[string]any, error)) {
	scope := idempotency.Scope{
		PartyID:        party(r),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	}
	status, body, found, err := idempotency.Replay(r.Context(), s.idem, scope, endpoint)
	if err != nil {
		httpx.WriteError(w, r, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	if found {
		httpx.WriteJSON(w, status, body)
		return
	}
	status, body, err = run()
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if err := idempotency.Save(r.Context(), s.idem, scope, endpoint, status, body); err != nil {
		s.log.Warn("idempotency_save_failed", slog.String("endpoint", endpoint), slog.Any("err", err))
	}
	httpx.WriteJSON(w, status, body)
}

func envelope(r *http.Request, kv ...any) map[string]any {
	out := map[string]any{"request_id": httpx.RequestID(r.Context())}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}
