package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gdg-garage/garage-workshops/internal/config"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/services"
	"github.com/gdg-garage/garage-workshops/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupHandler(t *testing.T) *AuthHandler {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.UserRecord{}, &models.Account{}))

	log := zaptest.NewLogger(t)
	accounts := services.NewAccountService(
		store.NewCollection[models.Account](db),
		store.NewCollection[models.UserRecord](db),
		log,
	)
	cfg := &config.Config{
		JWTSecret:           "test-secret",
		DiscordClientID:     "client",
		DiscordClientSecret: "secret",
		DiscordRedirectURL:  "http://127.0.0.1:8080/auth/discord/callback",
	}
	return NewAuthHandler(cfg, accounts, log)
}

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestTokenRoundTrip(t *testing.T) {
	h := setupHandler(t)

	token, err := h.GenerateToken("acc-1")
	require.NoError(t, err)
	accountID, exp, err := h.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", accountID)
	assert.WithinDuration(t, time.Now().Add(TokenDuration), exp, time.Minute)
}

func TestParseTokenRejects(t *testing.T) {
	h := setupHandler(t)

	cases := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": signedToken(t, "other", jwt.MapClaims{"account_id": "a", "exp": time.Now().Add(time.Hour).Unix()}),
		"expired":      signedToken(t, "test-secret", jwt.MapClaims{"account_id": "a", "exp": time.Now().Add(-time.Hour).Unix()}),
		"no account":   signedToken(t, "test-secret", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}),
		"no expiry":    signedToken(t, "test-secret", jwt.MapClaims{"account_id": "a"}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := h.ParseToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestSessionCookies(t *testing.T) {
	h := setupHandler(t)

	c, err := h.SessionCookie("acc-1")
	require.NoError(t, err)
	assert.Equal(t, CookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)

	gone := ExpiredCookie()
	assert.Equal(t, CookieName, gone.Name)
	assert.Empty(t, gone.Value)
	assert.Negative(t, gone.MaxAge)
}

func TestHandleDiscordLogin(t *testing.T) {
	h := setupHandler(t)

	rr := httptest.NewRecorder()
	h.HandleDiscordLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/discord/login", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "discord.com", loc.Host)

	var state string
	for _, c := range rr.Result().Cookies() {
		if c.Name == stateCookieName {
			state = c.Value
		}
	}
	require.NotEmpty(t, state)
	assert.Equal(t, state, loc.Query().Get("state"))
}

// fakeDiscord serves the token exchange and the user endpoint.
func fakeDiscord(t *testing.T, user map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "discord-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer discord-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(user)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func callback(h *AuthHandler, state, cookieState string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/discord/callback?code=abc&state="+state, nil)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: stateCookieName, Value: cookieState})
	}
	rr := httptest.NewRecorder()
	h.HandleDiscordCallback(rr, req)
	return rr
}

func TestHandleDiscordCallback(t *testing.T) {
	h := setupHandler(t)
	srv := fakeDiscord(t, map[string]any{
		"id":       "d-42",
		"username": "potter",
		"email":    "Potter@Example.com",
		"verified": true,
		"avatar":   "abc",
	})
	h.oauthConfig.Endpoint.TokenURL = srv.URL + "/token"
	h.userAPI = srv.URL + "/users/@me"

	t.Run("StateMismatch", func(t *testing.T) {
		rr := callback(h, "one", "two")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("SignsInNewStudent", func(t *testing.T) {
		rr := callback(h, "s1", "s1")
		require.Equal(t, http.StatusSeeOther, rr.Code)

		var token string
		for _, c := range rr.Result().Cookies() {
			if c.Name == CookieName {
				token = c.Value
			}
		}
		require.NotEmpty(t, token)
		accountID, _, err := h.ParseToken(token)
		require.NoError(t, err)

		user, err := h.accounts.CurrentUser(context.Background(), accountID)
		require.NoError(t, err)
		assert.Equal(t, "potter@example.com", user.Email)
		assert.Equal(t, models.RoleStudent, user.Role)
		assert.Equal(t, "https://cdn.discordapp.com/avatars/d-42/abc.png", user.Profile.Avatar)
	})
}

func TestHandleDiscordCallbackUnverifiedEmail(t *testing.T) {
	h := setupHandler(t)
	srv := fakeDiscord(t, map[string]any{
		"id":       "d-7",
		"username": "ghost",
		"email":    "ghost@example.com",
		"verified": false,
	})
	h.oauthConfig.Endpoint.TokenURL = srv.URL + "/token"
	h.userAPI = srv.URL + "/users/@me"

	rr := callback(h, "s", "s")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	for _, c := range rr.Result().Cookies() {
		assert.NotEqual(t, CookieName, c.Name)
	}
}
