package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riceshop/backend/internal/domain"
	"riceshop/backend/internal/store"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	ta := newTestAPI(t, Options{AllowedOrigin: "http://localhost:3000"})
	rec := ta.do(t, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "x-auth-token")
}

func TestPreflightShortCircuits(t *testing.T) {
	ta := newTestAPI(t, Options{})
	req := httptest.NewRequest(http.MethodOptions, "/sales/record", nil)
	rec := httptest.NewRecorder()

	ta.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	ta := newTestAPI(t, Options{})
	rec := ta.do(t, http.MethodGet, "/products", "", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, msgNoToken, decodeResponse[map[string]string](t, rec)["msg"])
}

func TestInvalidTokenIsUnauthorized(t *testing.T) {
	ta := newTestAPI(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set("x-auth-token", ta.tokens[domain.RoleAdmin]+"x")
	rec := httptest.NewRecorder()

	ta.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token is not valid", decodeResponse[map[string]string](t, rec)["msg"])
}

func TestBearerHeaderIsAccepted(t *testing.T) {
	ta := newTestAPI(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set("Authorization", "Bearer "+ta.tokens[domain.RoleSales])
	rec := httptest.NewRecorder()

	ta.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoleChecks(t *testing.T) {
	ta := newTestAPI(t, Options{})

	cases := []struct {
		method string
		path   string
		role   domain.Role
		want   int
	}{
		{http.MethodGet, "/products", domain.RoleManager, http.StatusOK},
		{http.MethodPost, "/products/add", domain.RoleSales, http.StatusForbidden},
		{http.MethodPost, "/products/add", domain.RoleManager, http.StatusForbidden},
		{http.MethodPost, "/sales/record", domain.RoleManager, http.StatusForbidden},
		{http.MethodGet, "/sales", domain.RoleSales, http.StatusForbidden},
		{http.MethodGet, "/sales/report/trends", domain.RoleSales, http.StatusForbidden},
		{http.MethodDelete, "/sales/clear-all", domain.RoleManager, http.StatusForbidden},
		{http.MethodPost, "/returns/process", domain.RoleManager, http.StatusForbidden},
		{http.MethodGet, "/returns", domain.RoleSales, http.StatusForbidden},
		{http.MethodGet, "/users", domain.RoleSales, http.StatusForbidden},
		{http.MethodDelete, "/users/someone", domain.RoleManager, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s %s as %s", tc.method, tc.path, tc.role), func(t *testing.T) {
			rec := ta.do(t, tc.method, tc.path, tc.role, nil)
			require.Equal(t, tc.want, rec.Code, rec.Body.String())
			if tc.want == http.StatusForbidden {
				assert.Equal(t, msgForbidden, decodeResponse[map[string]string](t, rec)["msg"])
			}
		})
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	ta := newTestAPI(t, Options{})
	body, _ := json.Marshal(domain.LoginRequest{Username: "admin-user", Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		rec := httptest.NewRecorder()

		ta.handler.ServeHTTP(rec, req)

		if i < 5 {
			require.Equal(t, http.StatusBadRequest, rec.Code, "attempt %d", i+1)
		} else {
			require.Equal(t, http.StatusTooManyRequests, rec.Code, "attempt %d", i+1)
		}
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	ta := newTestAPI(t, Options{})
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.9:4000"
	rec := httptest.NewRecorder()

	ta.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body too large", decodeResponse[map[string]string](t, rec)["msg"])
}

func TestPanicIsRecoveredAsServerError(t *testing.T) {
	ta := newTestAPI(t, Options{})
	handler := ta.api.withMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server Error", decodeResponse[map[string]string](t, rec)["msg"])
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{fmt.Errorf("%w: Cart is empty.", store.ErrInvalidArgument), http.StatusBadRequest, "Cart is empty."},
		{fmt.Errorf("%w: Sale not found.", store.ErrNotFound), http.StatusNotFound, "Sale not found."},
		{fmt.Errorf("%w: Insufficient stock for X.", store.ErrInsufficientStock), http.StatusBadRequest, "Insufficient stock for X."},
		{fmt.Errorf("%w: Username already exists!", store.ErrConflict), http.StatusBadRequest, "Username already exists!"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "Server Error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeServiceError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code)
		assert.Equal(t, tc.message, decodeResponse[map[string]string](t, rec)["msg"])
	}
}
