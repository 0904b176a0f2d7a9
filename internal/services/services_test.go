package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/forms"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/notifier"
	"github.com/gdg-garage/garage-workshops/internal/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (r *recordingNotifier) Notify(_ context.Context, e notifier.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingNotifier) kinds() []notifier.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notifier.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type testEnv struct {
	db           *gorm.DB
	workshopRecs *store.GormCollection[models.WorkshopRecord]
	appRecs      *store.GormCollection[models.ApplicationRecord]
	userRecs     *store.GormCollection[models.UserRecord]
	blobs        *store.AferoBlobs
	fs           afero.Fs
	notes        *recordingNotifier

	workshops    *WorkshopService
	applications *ApplicationService
	accounts     *AccountService

	master  *models.User
	other   *models.User
	student *models.User
	admin   *models.User
}

func setupEnv(t *testing.T) *testEnv {
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
		&models.WorkshopRecord{},
		&models.ApplicationRecord{},
		&models.Account{},
	))

	log := zaptest.NewLogger(t)
	env := &testEnv{
		db:           db,
		workshopRecs: store.NewCollection[models.WorkshopRecord](db),
		appRecs:      store.NewCollection[models.ApplicationRecord](db),
		userRecs:     store.NewCollection[models.UserRecord](db),
		fs:           afero.NewMemMapFs(),
		notes:        &recordingNotifier{},
	}
	env.blobs = store.NewAferoBlobs(env.fs, "/storage")
	env.workshops = NewWorkshopService(env.workshopRecs, env.userRecs, ImageStorage{
		Blobs:    env.blobs,
		Endpoint: "https://files.example.com/v1",
		Project:  "garage",
		Bucket:   "workshop-images",
	}, env.notes, log)
	env.applications = NewApplicationService(env.appRecs, env.workshops, env.userRecs, env.notes, log)
	env.accounts = NewAccountService(store.NewCollection[models.Account](db), env.userRecs, log)
	env.accounts.cost = bcrypt.MinCost

	env.master = env.seedUser(t, "m1", "Mia", models.RoleMaster)
	env.other = env.seedUser(t, "m2", "Otto", models.RoleMaster)
	env.student = env.seedUser(t, "s1", "Sam", models.RoleStudent)
	env.admin = env.seedUser(t, "a1", "Ada", models.RoleAdmin)
	return env
}

func (env *testEnv) seedUser(t *testing.T, id, name string, role models.Role) *models.User {
	t.Helper()
	u := models.User{ID: id, Email: id + "@example.com", Name: name, Role: role, CreatedAt: time.Now().UTC()}
	rec := u.Record()
	require.NoError(t, env.userRecs.Create(context.Background(), &rec))
	return &u
}

func validInput(title string) WorkshopInput {
	return WorkshopInput{
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

// publishedWorkshop creates and publishes a workshop owned by env.master.
func (env *testEnv) publishedWorkshop(t *testing.T, title string, autoApprove bool) models.Workshop {
	t.Helper()
	ctx := context.Background()
	in := validInput(title)
	in.AutoApprove = autoApprove
	w, err := env.workshops.Create(ctx, access.As(env.master), in)
	require.NoError(t, err)
	w, err = env.workshops.Publish(ctx, access.As(env.master), w.ID)
	require.NoError(t, err)
	return w
}

func validResponses() forms.Responses {
	return forms.Responses{"f1": "Sam", "f2": "Beginner"}
}
