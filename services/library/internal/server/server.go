package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"libmgmt/internal/ratelimit"
	"libmgmt/internal/security"
	"libmgmt/internal/util"
	"libmgmt/pkg/bulkcsv"
	"libmgmt/pkg/domain"
	"libmgmt/services/library/internal/app"
)

// Limiters throttles the abuse-prone endpoints. Nil limiters fall back to
// per-process limiters with the default quotas.
type Limiters struct {
	Login    ratelimit.Limiter
	Register ratelimit.Limiter
	Password ratelimit.Limiter
	Import   ratelimit.Limiter
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Limiters       Limiters
	Alerter        *security.Alerter
	TrustedProxies *util.TrustedProxies
	CORSOrigins    []string
	MaxUploadBytes int64
}

// Server exposes the library HTTP API.
type Server struct {
	app            *app.App
	router         chi.Router
	validate       *validator.Validate
	alerter        *security.Alerter
	trusted        *util.TrustedProxies
	corsOrigins    []string
	maxUploadBytes int64

	loginLimiter    ratelimit.Limiter
	registerLimiter ratelimit.Limiter
	passwordLimiter ratelimit.Limiter
	importLimiter   ratelimit.Limiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app required")
	}
	s := &Server{
		app:             cfg.App,
		router:          chi.NewRouter(),
		validate:        newValidator(),
		alerter:         cfg.Alerter,
		trusted:         cfg.TrustedProxies,
		corsOrigins:     cfg.CORSOrigins,
		maxUploadBytes:  normalizeMaxBytes(cfg.MaxUploadBytes),
		loginLimiter:    orLocal(cfg.Limiters.Login, 20),
		registerLimiter: orLocal(cfg.Limiters.Register, 10),
		passwordLimiter: orLocal(cfg.Limiters.Password, 10),
		importLimiter:   orLocal(cfg.Limiters.Import, 6),
	}
	s.routes()
	return s, nil
}

func orLocal(l ratelimit.Limiter, perMinute int) ratelimit.Limiter {
	if l != nil {
		return l
	}
	return ratelimit.NewLocalLimiter(perMinute, time.Minute)
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.router
	h = util.WithCORS(s.corsOrigins, h)
	h = util.WithSecurityHeaders(s.trusted, h)
	h = util.WithRequestLog("library", h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	r := s.router
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		// reader
		r.Method(http.MethodGet, "/me", s.authenticated(s.handleProfile))
		r.Method(http.MethodPatch, "/me", s.authenticated(s.handleUpdateProfile))
		r.Method(http.MethodPost, "/me/password", s.authenticated(s.handleChangePassword))
		r.Method(http.MethodGet, "/me/summary", s.authenticated(s.handleSummary))
		r.Method(http.MethodGet, "/me/stats", s.authenticated(s.handleBorrowStats))
		r.Method(http.MethodGet, "/me/borrows", s.authenticated(s.handleActiveBorrows))
		r.Method(http.MethodPost, "/me/borrows/search", s.authenticated(s.handleSearchMyRecords))
		r.Method(http.MethodPost, "/books/search", s.authenticated(s.handleSearchBooks))
		r.Method(http.MethodGet, "/books/{id}/copies", s.authenticated(s.handleListCopies))
		r.Method(http.MethodPost, "/borrow", s.authenticated(s.handleBorrow))
		r.Method(http.MethodPost, "/return", s.authenticated(s.handleReturn))
		r.Method(http.MethodGet, "/stats/top-books", s.authenticated(s.handleTopBooks))

		r.Route("/admin", func(r chi.Router) {
			r.Method(http.MethodPost, "/readers/search", s.adminOnly(s.handleSearchReaders))
			r.Method(http.MethodPost, "/readers", s.adminOnly(s.handleAddReader))
			r.Method(http.MethodPost, "/readers/import", s.adminOnly(s.handleImport(bulkcsv.Readers)))
			r.Method(http.MethodGet, "/readers/{id}", s.adminOnly(s.handleGetReader))
			r.Method(http.MethodPatch, "/readers/{id}", s.adminOnly(s.handleEditReader))
			r.Method(http.MethodPost, "/readers/{id}/disable", s.adminOnly(s.handleDisableReader))
			r.Method(http.MethodPost, "/readers/{id}/enable", s.adminOnly(s.handleEnableReader))

			r.Method(http.MethodPost, "/books/search", s.adminOnly(s.handleAdminSearchBooks))
			r.Method(http.MethodPost, "/books", s.adminOnly(s.handleCreateBook))
			r.Method(http.MethodPost, "/books/import", s.adminOnly(s.handleImport(bulkcsv.Books)))
			r.Method(http.MethodGet, "/books/{id}", s.adminOnly(s.handleGetBook))
			r.Method(http.MethodPatch, "/books/{id}", s.adminOnly(s.handleUpdateBook))
			r.Method(http.MethodDelete, "/books/{id}", s.adminOnly(s.handleDeleteBook))

			r.Method(http.MethodGet, "/categories", s.adminOnly(s.handleListCategories))
			r.Method(http.MethodPost, "/categories/search", s.adminOnly(s.handleSearchCategories))
			r.Method(http.MethodPost, "/categories", s.adminOnly(s.handleCreateCategory))
			r.Method(http.MethodPost, "/categories/import", s.adminOnly(s.handleImport(bulkcsv.Categories)))
			r.Method(http.MethodGet, "/categories/{id}", s.adminOnly(s.handleGetCategory))
			r.Method(http.MethodPatch, "/categories/{id}", s.adminOnly(s.handleUpdateCategory))
			r.Method(http.MethodDelete, "/categories/{id}", s.adminOnly(s.handleDeleteCategory))

			r.Method(http.MethodPost, "/inventory/search", s.adminOnly(s.handleSearchInventories))
			r.Method(http.MethodPost, "/inventory", s.adminOnly(s.handleCreateInventory))
			r.Method(http.MethodPost, "/inventory/import", s.adminOnly(s.handleImport(bulkcsv.Inventory)))
			r.Method(http.MethodGet, "/inventory/{id}", s.adminOnly(s.handleGetInventory))
			r.Method(http.MethodPatch, "/inventory/{id}", s.adminOnly(s.handleUpdateInventory))
			r.Method(http.MethodDelete, "/inventory/{id}", s.adminOnly(s.handleDeleteInventory))

			r.Method(http.MethodPost, "/records/search", s.adminOnly(s.handleSearchRecords))
			r.Method(http.MethodPost, "/logs/search", s.adminOnly(s.handleSearchLogs))
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, security.EventAuthorize, security.OutcomeFail)
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, security.EventAdminAuthorize, security.OutcomeFail, "reason", "invalid_token")
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !user.IsAdmin() {
			s.audit(r, security.EventAdminAuthorize, security.OutcomeFail, "user_id", user.ID, "reason", "forbidden")
			writeError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		if r.Method != http.MethodGet {
			s.audit(r, security.EventAdminMutation, security.OutcomeSuccess, "user_id", user.ID)
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	user, ok := s.app.UserFromToken(r.Context(), token)
	if !ok {
		return domain.User{}, false
	}
	util.LoggerFromContext(r.Context()).Debug("authorized", "user_id", user.ID)
	return user, true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

// audit writes a security event and feeds the burst alerter.
func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.trusted)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == security.OutcomeSuccess {
		logger.Info("security_event", logAttrs...)
	} else {
		logger.Warn("security_event", logAttrs...)
	}

	result, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security alert evaluation failed", "event", event, "err", err)
		return
	}
	if result.Triggered {
		logger.Error("security_alert",
			slog.String("event", event),
			slog.String("outcome", outcome),
			slog.String("ip", ip),
			slog.Int64("count", result.Count),
			slog.Int64("threshold", result.Threshold),
			slog.Duration("window", result.Window),
		)
	}
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	if limiter.Allow(r.Context(), key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, r, http.StatusTooManyRequests, msg)
	return false
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 5 << 20
	}
	return value
}
