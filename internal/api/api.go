// Package api provides HTTP handlers and the main API server logic for
// Symposic.
//
// It exposes RESTful endpoints for phone OTP authentication, profile CRUD,
// and the onboarding interview. All collaborators are injected at
// construction time.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/symposic/symposic/internal/account"
	"github.com/symposic/symposic/internal/auth"
	"github.com/symposic/symposic/internal/interview"
	"github.com/symposic/symposic/internal/models"
	"github.com/symposic/symposic/internal/store"
)

// DefaultAddr is the address the API server listens on when none is configured.
const DefaultAddr = ":8080"

// Server timeouts.
const (
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 60 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server holds the API's collaborators and HTTP wiring.
type Server struct {
	addr           string
	authService    *auth.Service
	accountService *account.Service
	orchestrator   *interview.Orchestrator
	store          store.Store
}

// NewServer creates an API server with its collaborators injected.
func NewServer(authService *auth.Service, accountService *account.Service, orchestrator *interview.Orchestrator, st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	slog.Debug("Server.NewServer: creating API server",
		"addr", cfg.Addr,
		"hasAuth", authService != nil,
		"hasAccount", accountService != nil,
		"hasOrchestrator", orchestrator != nil,
		"hasStore", st != nil)
	return &Server{
		addr:           cfg.Addr,
		authService:    authService,
		accountService: accountService,
		orchestrator:   orchestrator,
		store:          st,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/send-code", s.sendCodeHandler)
	mux.HandleFunc("/auth/verify-code", s.verifyCodeHandler)
	mux.HandleFunc("/account/profile", s.requireAuth(s.profileHandler))
	mux.HandleFunc("/account/update-profile-data", s.requireAuth(s.updateProfileDataHandler))
	mux.HandleFunc("/account/onboarding-state", s.requireAuth(s.onboardingStateHandler))
	mux.HandleFunc("/interview/start", s.requireAuth(s.interviewStartHandler))
	mux.HandleFunc("/interview/message", s.requireAuth(s.interviewMessageHandler))
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// authedHandler is an HTTP handler that additionally receives the
// authenticated phone number.
type authedHandler func(w http.ResponseWriter, r *http.Request, phone string)

// requireAuth resolves the Bearer session token to a phone number before
// invoking the wrapped handler.
func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			slog.Warn("Server.requireAuth: missing bearer token", "path", r.URL.Path)
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("No token provided"))
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		phone, err := s.authService.VerifySession(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidSession) {
				slog.Warn("Server.requireAuth: invalid session token", "path", r.URL.Path)
				writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid token"))
				return
			}
			slog.Error("Server.requireAuth: session lookup failed", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to verify session"))
			return
		}

		next(w, r, phone)
	}
}
