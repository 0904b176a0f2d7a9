package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/auth"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/services"
	"go.uber.org/zap"
)

type AccountHandler struct {
	accounts *services.AccountService
	sessions *auth.AuthHandler
	log      *zap.Logger
}

func NewAccountHandler(accounts *services.AccountService, sessions *auth.AuthHandler, log *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, sessions: sessions, log: log.Named("accounts")}
}

type RegisterRequest struct {
	Body services.RegisterInput
}

type LoginRequest struct {
	Body struct {
		Email    string `json:"email" doc:"Account e-mail"`
		Password string `json:"password" doc:"Account password"`
	}
}

type ProfileRequest struct {
	Body services.ProfileInput
}

// SessionResponse sets the session cookie alongside the signed-in user.
type SessionResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      models.User
}

type LogoutResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
}

type UserResponse struct {
	Body models.User
}

func (h *AccountHandler) session(ctx context.Context, account models.Account) (*SessionResponse, error) {
	user, err := h.accounts.CurrentUser(ctx, account.ID)
	if err != nil {
		return nil, apiError(err)
	}
	cookie, err := h.sessions.SessionCookie(account.ID)
	if err != nil {
		h.log.Error("failed to sign session token", zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to generate token")
	}
	return &SessionResponse{SetCookie: cookie, Body: *user}, nil
}

func (h *AccountHandler) HandleRegister(ctx context.Context, input *RegisterRequest) (*SessionResponse, error) {
	account, _, err := h.accounts.Register(ctx, input.Body)
	if err != nil {
		return nil, apiError(err)
	}
	return h.session(ctx, account)
}

func (h *AccountHandler) HandleLogin(ctx context.Context, input *LoginRequest) (*SessionResponse, error) {
	account, err := h.accounts.Login(ctx, input.Body.Email, input.Body.Password)
	if err != nil {
		return nil, apiError(err)
	}
	return h.session(ctx, account)
}

func (h *AccountHandler) HandleLogout(ctx context.Context, input *struct{}) (*LogoutResponse, error) {
	return &LogoutResponse{SetCookie: auth.ExpiredCookie()}, nil
}

func (h *AccountHandler) HandleMe(ctx context.Context, input *struct{}) (*UserResponse, error) {
	user, err := access.RequireUser(access.FromContext(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return &UserResponse{Body: *user}, nil
}

func (h *AccountHandler) HandleUpdateProfile(ctx context.Context, input *ProfileRequest) (*UserResponse, error) {
	user, err := h.accounts.UpdateProfile(ctx, access.FromContext(ctx), input.Body)
	if err != nil {
		return nil, apiError(err)
	}
	return &UserResponse{Body: user}, nil
}
