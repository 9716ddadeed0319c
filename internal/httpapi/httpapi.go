package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"riceshop/backend/internal/domain"
	"riceshop/backend/internal/service"
	"riceshop/backend/internal/store"
)

const (
	msgNoToken   = "No token, authorization denied"
	msgForbidden = "Forbidden: You do not have the required role to access this resource."
	welcomeText  = "Welcome to the Rice Shop Backend API!"
)

var (
	anyRole      = []domain.Role{domain.RoleAdmin, domain.RoleSales, domain.RoleManager}
	adminOnly    = []domain.Role{domain.RoleAdmin}
	adminManager = []domain.Role{domain.RoleAdmin, domain.RoleManager}
	adminSales   = []domain.Role{domain.RoleAdmin, domain.RoleSales}
)

type API struct {
	service           *service.Service
	auth              *AuthManager
	allowedOrigin     string
	allowRegistration bool
	loginLimiter      *attemptLimiter
}

type Options struct {
	AllowedOrigin     string
	AllowRegistration bool
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	return &API{
		service:           svc,
		auth:              auth,
		allowedOrigin:     opts.AllowedOrigin,
		allowRegistration: opts.AllowRegistration,
		loginLimiter:      newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

type route struct {
	pattern string
	roles   []domain.Role
	handler http.HandlerFunc
}

// routes is the single place where each endpoint declares who may call it. A nil role set is public.
func (a *API) routes() []route {
	registerRoles := adminOnly
	if a.allowRegistration {
		registerRoles = nil
	}

	return []route{
		{"GET /api", nil, a.handleWelcome},
		{"GET /healthz", nil, a.handleHealth},

		{"POST /users/login", nil, a.handleLogin},
		{"POST /users/register", registerRoles, a.handleRegister},
		{"GET /users", adminManager, a.handleListUsers},
		{"POST /users/update/{id}", adminOnly, a.handleUpdateUser},
		{"DELETE /users/{id}", adminOnly, a.handleDeleteUser},

		{"GET /products", anyRole, a.handleListProducts},
		{"GET /products/{id}", anyRole, a.handleGetProduct},
		{"POST /products/add", adminOnly, a.handleAddProduct},
		{"POST /products/update/{id}", adminOnly, a.handleUpdateProduct},
		{"DELETE /products/clear-all", adminOnly, a.handleClearProducts},
		{"DELETE /products/{id}", adminOnly, a.handleDeleteProduct},

		{"POST /sales/record", adminSales, a.handleRecordSale},
		{"GET /sales", adminManager, a.handleListSales},
		{"GET /sales/{id}", adminManager, a.handleGetSale},
		{"GET /sales/report/daily-monthly", adminManager, a.handleSalesSummary},
		{"GET /sales/report/max-profit-product", adminManager, a.handleMaxProfitProduct},
		{"GET /sales/report/trends", adminManager, a.handleSalesTrends},
		{"GET /sales/report/by-product-type", adminManager, a.handlePerformanceByType},
		{"DELETE /sales/clear-all", adminOnly, a.handleClearSales},

		{"POST /returns/process", adminSales, a.handleProcessReturn},
		{"GET /returns", adminManager, a.handleListReturns},
		{"DELETE /returns/clear-all", adminOnly, a.handleClearReturns},
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, rt := range a.routes() {
		handler := rt.handler
		if rt.roles != nil {
			handler = a.authorize(handler, rt.roles)
		}
		mux.HandleFunc(rt.pattern, handler)
	}
	return a.withMiddleware(mux)
}

// authorize checks the caller's token and role before the handler runs.
func (a *API) authorize(next http.HandlerFunc, roles []domain.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, errors.New(msgNoToken))
			return
		}

		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if !isRoleAllowed(actor.Role, roles) {
			log.Warn().Str("username", actor.Username).Str("role", string(actor.Role)).Str("path", r.URL.Path).Msg("role not allowed")
			writeError(w, http.StatusForbidden, errors.New(msgForbidden))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func tokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get("x-auth-token")); token != "" {
		return token
	}
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authorization) > len("Bearer ") && strings.EqualFold(authorization[:len("Bearer ")], "bearer ") {
		return strings.TrimSpace(authorization[len("Bearer "):])
	}
	return ""
}

func isRoleAllowed(role domain.Role, allowed []domain.Role) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-auth-token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		startedAt := time.Now()
		defer func() {
			if p := recover(); p != nil {
				log.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Str("path", r.URL.Path).Msg("recovered from panic")
				if !rec.wroteHeader {
					writeError(rec, http.StatusInternalServerError, fmt.Errorf("panic: %v", p))
				}
			}
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("latency", time.Since(startedAt)).
				Msg("request")
		}()

		next.ServeHTTP(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wroteHeader {
		s.status = status
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (a *API) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(welcomeText))
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// decodeJSON rejects unknown fields.
func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decodeBody(decoder, dest)
}

// decodeLenientJSON ignores fields the client adds for its own display.
func decodeLenientJSON(r *http.Request, dest any) error {
	return decodeBody(json.NewDecoder(r.Body), dest)
}

func decodeBody(decoder *json.Decoder, dest any) error {
	if err := decoder.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeServiceError maps the store sentinels to a status and strips the sentinel text
// from the message shown to the client.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, publicError(err, store.ErrNotFound))
	case errors.Is(err, store.ErrInsufficientStock):
		writeError(w, http.StatusBadRequest, publicError(err, store.ErrInsufficientStock))
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusBadRequest, publicError(err, store.ErrConflict))
	case errors.Is(err, store.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, publicError(err, store.ErrInvalidArgument))
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func publicError(err error, sentinel error) error {
	return errors.New(strings.TrimPrefix(err.Error(), sentinel.Error()+": "))
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("internal error")
		msg = "Server Error"
	}
	writeJSON(w, status, map[string]any{
		"msg": msg,
	})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"msg": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
