package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/auth"
	"github.com/gdg-garage/garage-workshops/internal/config"
	"github.com/gdg-garage/garage-workshops/internal/forms"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/services"
	"github.com/gdg-garage/garage-workshops/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testEndpoint = "https://files.example.com/v1"
	testProject  = "garage"
	testBucket   = "workshop-images"
)

type testServer struct {
	router       *chi.Mux
	sessions     *auth.AuthHandler
	accountRecs  *store.GormCollection[models.Account]
	userRecs     *store.GormCollection[models.UserRecord]
	workshops    *services.WorkshopService
	applications *services.ApplicationService
	handlers     Handlers

	master  *models.User
	other   *models.User
	student *models.User
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.UserRecord{},
		&models.Account{},
		&models.WorkshopRecord{},
		&models.ApplicationRecord{},
	))

	log := zaptest.NewLogger(t)
	s := &testServer{
		router:      chi.NewRouter(),
		accountRecs: store.NewCollection[models.Account](db),
		userRecs:    store.NewCollection[models.UserRecord](db),
	}
	blobs := store.NewAferoBlobs(afero.NewMemMapFs(), "/storage")
	s.workshops = services.NewWorkshopService(
		store.NewCollection[models.WorkshopRecord](db),
		s.userRecs,
		services.ImageStorage{Blobs: blobs, Endpoint: testEndpoint, Project: testProject, Bucket: testBucket},
		nil, log,
	)
	s.applications = services.NewApplicationService(store.NewCollection[models.ApplicationRecord](db), s.workshops, s.userRecs, nil, log)
	accounts := services.NewAccountService(s.accountRecs, s.userRecs, log)
	s.sessions = auth.NewAuthHandler(&config.Config{JWTSecret: "test-secret"}, accounts, log)

	submitter := NewSubmitter(s.applications, log)
	s.handlers = Handlers{
		Accounts:     NewAccountHandler(accounts, s.sessions, log),
		Workshops:    NewWorkshopHandler(s.workshops, log),
		Forms:        NewFormHandler(s.workshops),
		Applications: NewApplicationHandler(s.applications, submitter),
		Pages:        NewPageHandler(s.workshops, s.applications, accounts, s.sessions, submitter, false, log),
		Files:        NewFileHandler(blobs, testProject, log),
	}
	RegisterRoutes(s.router, s.sessions, s.handlers, Options{})

	s.master = s.seedUser(t, "m1", "Mia", models.RoleMaster)
	s.other = s.seedUser(t, "m2", "Otto", models.RoleMaster)
	s.student = s.seedUser(t, "s1", "Sam", models.RoleStudent)
	return s
}

// seedUser stores a user with a password-less account of the same e-mail.
func (s *testServer) seedUser(t *testing.T, id, name string, role models.Role) *models.User {
	t.Helper()
	ctx := context.Background()
	u := models.User{ID: id, Email: id + "@example.com", Name: name, Role: role, CreatedAt: time.Now().UTC()}
	rec := u.Record()
	require.NoError(t, s.userRecs.Create(ctx, &rec))
	require.NoError(t, s.accountRecs.Create(ctx, &models.Account{ID: "acc-" + id, Email: u.Email, Name: name, CreatedAt: u.CreatedAt}))
	return &u
}

func (s *testServer) cookieFor(t *testing.T, u *models.User) *http.Cookie {
	t.Helper()
	c, err := s.sessions.SessionCookie("acc-" + u.ID)
	require.NoError(t, err)
	return &c
}

// do sends a request through the full router. A nil user sends it
// anonymously.
func (s *testServer) do(t *testing.T, u *models.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if u != nil {
		req.AddCookie(s.cookieFor(t, u))
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func workshopBody(title string) services.WorkshopInput {
	return services.WorkshopInput{
		Title:       title,
		Description: "Hands-on session for complete beginners.",
		Category:    "Ceramics",
		Location:    "Prague",
		ApplicationForm: forms.Form{
			{ID: "f1", Label: "Name", Required: true, Kind: forms.TextInput{}},
			{ID: "f2", Label: "Level", Required: true, Kind: forms.MultipleChoice{Options: []string{"Beginner", "Advanced"}}},
		},
	}
}

// published creates and publishes a workshop owned by s.master.
func (s *testServer) published(t *testing.T, title string) models.Workshop {
	t.Helper()
	ctx := context.Background()
	w, err := s.workshops.Create(ctx, access.As(s.master), workshopBody(title))
	require.NoError(t, err)
	w, err = s.workshops.Publish(ctx, access.As(s.master), w.ID)
	require.NoError(t, err)
	return w
}
