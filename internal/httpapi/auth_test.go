package httpapi

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"riceshop/backend/internal/domain"
	"riceshop/backend/internal/store/memory"
)

const testSecret = "test-secret-key-0123456789abcdef"

func newTestAuth(t *testing.T) (*AuthManager, *memory.Store) {
	t.Helper()
	repo := memory.New()
	auth := NewAuthManager(testSecret, time.Hour, repo)
	return auth, repo
}

func mustCreateUser(t *testing.T, repo *memory.Store, username string, password string, role domain.Role) domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := repo.CreateUser(context.Background(), domain.User{Username: username, PasswordHash: string(hash), Role: role})
	require.NoError(t, err)
	return *user
}

func TestLoginIssuesTokenCarryingTheUser(t *testing.T) {
	auth, repo := newTestAuth(t)
	user := mustCreateUser(t, repo, "manager", "manager123", domain.RoleManager)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Username: "manager", Password: "manager123"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, resp.Role)
	assert.Equal(t, "manager", resp.Username)

	actor, err := auth.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{ID: user.ID, Username: "manager", Role: domain.RoleManager}, actor)
}

func TestLoginRejectsWrongPasswordAndUnknownUserAlike(t *testing.T) {
	auth, repo := newTestAuth(t)
	mustCreateUser(t, repo, "sales", "sales123", domain.RoleSales)

	_, err := auth.Login(context.Background(), domain.LoginRequest{Username: "sales", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(context.Background(), domain.LoginRequest{Username: "ghost", Password: "sales123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(context.Background(), domain.LoginRequest{Username: "sales"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsPlainTextStoredPassword(t *testing.T) {
	auth, repo := newTestAuth(t)
	_, err := repo.CreateUser(context.Background(), domain.User{Username: "legacy", PasswordHash: "plain-secret", Role: domain.RoleSales})
	require.NoError(t, err)

	_, err = auth.Login(context.Background(), domain.LoginRequest{Username: "legacy", Password: "plain-secret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseTokenRejectsExpiredToken(t *testing.T) {
	auth, repo := newTestAuth(t)
	mustCreateUser(t, repo, "admin", "admin123", domain.RoleAdmin)

	issuedAt := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return issuedAt }
	resp, err := auth.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	auth.now = func() time.Time { return issuedAt.Add(59 * time.Minute) }
	_, err = auth.ParseToken(resp.Token)
	require.NoError(t, err)

	auth.now = func() time.Time { return issuedAt.Add(61 * time.Minute) }
	_, err = auth.ParseToken(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsForeignSignatureAndAlgorithm(t *testing.T) {
	auth, _ := newTestAuth(t)
	other := NewAuthManager("another-secret-0123456789abcdefgh", time.Hour, nil)

	foreign, err := other.sign(domain.Actor{ID: "usr-1", Username: "admin", Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = auth.ParseToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, riceShopClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour))},
		User:             tokenUser{ID: "usr-1", Username: "admin", Role: domain.RoleAdmin},
	})
	raw, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.ParseToken(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = auth.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsUnknownRole(t *testing.T) {
	auth, _ := newTestAuth(t)
	token, err := auth.sign(domain.Actor{ID: "usr-1", Username: "owner", Role: "owner"})
	require.NoError(t, err)

	_, err = auth.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
