package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/services"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registered(t *testing.T, h *AuthHandler) (models.Account, models.User) {
	t.Helper()
	account, user, err := h.accounts.Register(context.Background(), services.RegisterInput{
		Email:    "mia@example.com",
		Password: "correct horse",
		Name:     "Mia",
		Role:     models.RoleMaster,
	})
	require.NoError(t, err)
	return account, user
}

// serve runs the middleware and reports the viewer the next handler saw.
func serve(h *AuthHandler, token string) (*httptest.ResponseRecorder, access.Viewer) {
	var seen access.Viewer
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = access.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	}
	rr := httptest.NewRecorder()
	h.AuthMiddleware(next).ServeHTTP(rr, req)
	return rr, seen
}

func renewedCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	return nil
}

func TestAuthMiddlewareResolvesViewer(t *testing.T) {
	h := setupHandler(t)
	account, user := registered(t, h)

	token, err := h.GenerateToken(account.ID)
	require.NoError(t, err)
	rr, viewer := serve(h, token)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.True(t, viewer.SignedIn())
	assert.Equal(t, user.ID, viewer.ID())
	assert.Nil(t, renewedCookie(rr))
}

func TestAuthMiddlewareAnonymous(t *testing.T) {
	h := setupHandler(t)

	t.Run("NoCookie", func(t *testing.T) {
		rr, viewer := serve(h, "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, viewer.SignedIn())
	})

	t.Run("BadToken", func(t *testing.T) {
		rr, viewer := serve(h, "junk")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, viewer.SignedIn())
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		token, err := h.GenerateToken("missing")
		require.NoError(t, err)
		rr, viewer := serve(h, token)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, viewer.SignedIn())
	})
}

func TestAuthMiddlewareSlidingSession(t *testing.T) {
	h := setupHandler(t)
	account, _ := registered(t, h)

	t.Run("TokenRenewed", func(t *testing.T) {
		old := signedToken(t, "test-secret", jwt.MapClaims{
			"account_id": account.ID,
			"exp":        time.Now().Add(11 * time.Hour).Unix(),
		})
		rr, viewer := serve(h, old)
		assert.True(t, viewer.SignedIn())

		c := renewedCookie(rr)
		require.NotNil(t, c, "expected a renewed auth_token cookie")
		assert.NotEqual(t, old, c.Value)
	})

	t.Run("TokenNotRenewed", func(t *testing.T) {
		fresh := signedToken(t, "test-secret", jwt.MapClaims{
			"account_id": account.ID,
			"exp":        time.Now().Add(13 * time.Hour).Unix(),
		})
		rr, viewer := serve(h, fresh)
		assert.True(t, viewer.SignedIn())
		assert.Nil(t, renewedCookie(rr))
	})
}
