package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/apperr"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/store"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const columnDiscordID = "discord_id"

type RegisterInput struct {
	Email    string      `json:"email" validate:"required,email" format:"email"`
	Password string      `json:"password" validate:"required,min=8,max=72" minLength:"8" maxLength:"72"`
	Name     string      `json:"name" validate:"required,max=100"`
	Role     models.Role `json:"role" validate:"required,oneof=master student" enum:"master,student"`
}

type ProfileInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Avatar   string `json:"avatar,omitempty" validate:"omitempty,url"`
	Bio      string `json:"bio,omitempty" validate:"max=2000"`
	Location string `json:"location,omitempty" validate:"max=200"`
}

// DiscordIdentity is what the Discord login learns about a person.
type DiscordIdentity struct {
	ID       string
	Username string
	Email    string
	Avatar   string
}

// AccountService manages login identities and the user document that goes
// with each of them. The two are linked by e-mail address.
type AccountService struct {
	accounts store.Collection[models.Account]
	users    store.Collection[models.UserRecord]
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
	cost     int
}

func NewAccountService(accounts store.Collection[models.Account], users store.Collection[models.UserRecord], log *zap.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		users:    users,
		log:      log.Named("accounts"),
		validate: newValidator(),
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AccountService) findAccount(ctx context.Context, column, value string) (*models.Account, error) {
	list, err := s.accounts.List(ctx, store.Equal(column, value), store.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(list.Documents) == 0 {
		return nil, store.ErrNotFound
	}
	return &list.Documents[0], nil
}

func (s *AccountService) userByEmail(ctx context.Context, email string) (*models.User, error) {
	list, err := s.users.List(ctx, store.Equal(models.ColumnEmail, email), store.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(list.Documents) == 0 {
		return nil, store.ErrNotFound
	}
	u := models.UserFromRecord(list.Documents[0])
	return &u, nil
}

// Register creates the account and its user document. If the user document
// cannot be written the account is removed again.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (models.Account, models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return models.Account{}, models.User{}, invalid(err)
	}
	email := in.Email

	_, err := s.findAccount(ctx, models.ColumnEmail, email)
	if err == nil {
		return models.Account{}, models.User{}, apperr.Conflict("An account with this email already exists", nil)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.Account{}, models.User{}, storeFailure(s.log, "Failed to create account", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return models.Account{}, models.User{}, apperr.Validation("Please choose a different password", map[string]string{"password": "is invalid"})
	}

	now := s.now().UTC()
	account := models.Account{
		ID:           store.NewID(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	if err := s.accounts.Create(ctx, &account); err != nil {
		return models.Account{}, models.User{}, storeFailure(s.log, "Failed to create account", err)
	}

	user, err := s.createUser(ctx, account, in.Role, models.Profile{})
	if err != nil {
		if derr := s.accounts.Delete(ctx, account.ID); derr != nil {
			s.log.Warn("account left without user document", zap.String("account_id", account.ID), zap.Error(derr))
		}
		return models.Account{}, models.User{}, err
	}
	s.log.Info("account registered", zap.String("account_id", account.ID), zap.String("role", string(user.Role)))
	return account, user, nil
}

func (s *AccountService) createUser(ctx context.Context, account models.Account, role models.Role, profile models.Profile) (models.User, error) {
	user := models.User{
		ID:        store.NewID(),
		Email:     account.Email,
		Name:      account.Name,
		Role:      role,
		Profile:   profile,
		CreatedAt: account.CreatedAt,
	}
	rec := user.Record()
	if err := s.users.Create(ctx, &rec); err != nil {
		return models.User{}, storeFailure(s.log, "Failed to create account", err, zap.String("account_id", account.ID))
	}
	return user, nil
}

// Login checks an e-mail and password pair. Every mismatch gets the same
// answer.
func (s *AccountService) Login(ctx context.Context, email, password string) (models.Account, error) {
	denied := apperr.Unauthorized("Invalid email or password")
	account, err := s.findAccount(ctx, models.ColumnEmail, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return models.Account{}, denied
	}
	if err != nil {
		return models.Account{}, storeFailure(s.log, "Failed to sign in", err)
	}
	if account.PasswordHash == "" {
		return models.Account{}, denied
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return models.Account{}, denied
	}
	return *account, nil
}

// LoginDiscord finds the account linked to a Discord identity, links an
// existing account with the same e-mail, or signs a new student up.
func (s *AccountService) LoginDiscord(ctx context.Context, id DiscordIdentity) (models.Account, error) {
	if id.ID == "" {
		return models.Account{}, apperr.Unauthorized("Discord did not identify you")
	}
	account, err := s.findAccount(ctx, columnDiscordID, id.ID)
	if err == nil {
		return *account, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.Account{}, storeFailure(s.log, "Failed to sign in", err)
	}

	email := normalizeEmail(id.Email)
	if email == "" {
		return models.Account{}, apperr.Unauthorized("Your Discord account has no verified email")
	}
	account, err = s.findAccount(ctx, models.ColumnEmail, email)
	switch {
	case err == nil:
		linked, err := s.accounts.Update(ctx, account.ID, map[string]any{columnDiscordID: id.ID})
		if err != nil {
			return models.Account{}, storeFailure(s.log, "Failed to sign in", err, zap.String("account_id", account.ID))
		}
		return *linked, nil
	case !errors.Is(err, store.ErrNotFound):
		return models.Account{}, storeFailure(s.log, "Failed to sign in", err)
	}

	created := models.Account{
		ID:        store.NewID(),
		Email:     email,
		Name:      id.Username,
		DiscordID: id.ID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.accounts.Create(ctx, &created); err != nil {
		return models.Account{}, storeFailure(s.log, "Failed to sign in", err)
	}
	if _, err := s.userByEmail(ctx, email); errors.Is(err, store.ErrNotFound) {
		if _, err := s.createUser(ctx, created, models.RoleStudent, models.Profile{Avatar: id.Avatar}); err != nil {
			return models.Account{}, err
		}
	}
	s.log.Info("account registered via discord", zap.String("account_id", created.ID))
	return created, nil
}

// CurrentUser resolves a session's account to its user document.
func (s *AccountService) CurrentUser(ctx context.Context, accountID string) (*models.User, error) {
	expired := apperr.Unauthorized("Your session has expired. Please sign in again.")
	account, err := s.accounts.Get(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, expired
	}
	if err != nil {
		return nil, storeFailure(s.log, "Failed to load your account", err)
	}
	u, err := s.userByEmail(ctx, account.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, expired
	}
	if err != nil {
		return nil, storeFailure(s.log, "Failed to load your account", err)
	}
	return u, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, v access.Viewer, in ProfileInput) (models.User, error) {
	u, err := access.RequireUser(v)
	if err != nil {
		return models.User{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return models.User{}, invalid(err)
	}
	rec, err := s.users.Update(ctx, u.ID, map[string]any{
		"name": strings.TrimSpace(in.Name),
		"profile": models.EncodeProfile(models.Profile{
			Avatar:   in.Avatar,
			Bio:      in.Bio,
			Location: in.Location,
		}),
	})
	if err != nil {
		return models.User{}, storeFailure(s.log, "Failed to update profile", err, zap.String("user_id", u.ID))
	}
	return models.UserFromRecord(*rec), nil
}
