package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/apperr"
	"github.com/gdg-garage/garage-workshops/internal/forms"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/notifier"
	"github.com/gdg-garage/garage-workshops/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyInitialStatus(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	manual := env.publishedWorkshop(t, "Manual", false)
	auto := env.publishedWorkshop(t, "Auto", true)

	a, err := env.applications.Create(ctx, access.As(env.student), manual.ID, validResponses())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, a.Status)
	assert.Equal(t, "s1", a.StudentID)

	b, err := env.applications.Create(ctx, access.As(env.student), auto.ID, validResponses())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, b.Status)

	kinds := env.notes.kinds()
	assert.Equal(t, []notifier.EventKind{
		notifier.WorkshopPublished,
		notifier.WorkshopPublished,
		notifier.ApplicationSubmitted,
		notifier.ApplicationSubmitted,
		notifier.ApplicationApproved,
	}, kinds)
}

func TestToggleAutoApproveDoesNotRewriteHistory(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.publishedWorkshop(t, "Toggle", false)

	a, err := env.applications.Create(ctx, access.As(env.student), w.ID, validResponses())
	require.NoError(t, err)

	in := validInput("Toggle")
	in.AutoApprove = true
	_, err = env.workshops.Update(ctx, access.As(env.master), w.ID, in)
	require.NoError(t, err)

	apps, err := env.applications.ListByWorkshop(ctx, access.As(env.master), w.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, a.ID, apps[0].ID)
	assert.Equal(t, workflow.StatusPending, apps[0].Status)
}

func TestApplyValidation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.publishedWorkshop(t, "Strict", false)

	_, err := env.applications.Create(ctx, access.Anonymous(), w.ID, validResponses())
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = env.applications.Create(ctx, access.As(env.student), w.ID, forms.Responses{"f1": "Sam"})
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, "Level is required", appErr.Fields["f2"])

	_, err = env.applications.Create(ctx, access.As(env.student), w.ID, forms.Responses{"f1": "Sam", "f2": "Expert"})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Level: invalid option", appErr.Fields["f2"])

	var count int64
	require.NoError(t, env.db.Model(&models.ApplicationRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestApplyToUnpublishedWorkshop(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	draft, err := env.workshops.Create(ctx, access.As(env.master), validInput("Draft"))
	require.NoError(t, err)

	_, err = env.applications.Create(ctx, access.As(env.student), draft.ID, validResponses())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = env.applications.Create(ctx, access.As(env.master), draft.ID, validResponses())
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = env.applications.Create(ctx, access.As(env.student), "missing", validResponses())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDuplicateApplicationsAreKept(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.publishedWorkshop(t, "Twice", false)

	for i := 0; i < 2; i++ {
		_, err := env.applications.Create(ctx, access.As(env.student), w.ID, validResponses())
		require.NoError(t, err)
	}
	apps, err := env.applications.ListByStudent(ctx, access.As(env.student))
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestApproveAndReject(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.publishedWorkshop(t, "Review", false)

	a, err := env.applications.Create(ctx, access.As(env.student), w.ID, validResponses())
	require.NoError(t, err)
	b, err := env.applications.Create(ctx, access.As(env.student), w.ID, validResponses())
	require.NoError(t, err)

	_, err = env.applications.Approve(ctx, access.As(env.student), a.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = env.applications.Approve(ctx, access.As(env.other), a.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	approved, err := env.applications.Approve(ctx, access.As(env.master), a.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, approved.Status)
	require.NotNil(t, approved.Student)
	assert.Equal(t, "Sam", approved.Student.Name)

	rejected, err := env.applications.Reject(ctx, access.As(env.admin), b.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejected, rejected.Status)

	// terminal states stay put
	_, err = env.applications.Reject(ctx, access.As(env.master), a.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	_, err = env.applications.Approve(ctx, access.As(env.master), b.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestConcurrentDecisionsHaveOneWinner(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.publishedWorkshop(t, "Race", false)
	a, err := env.applications.Create(ctx, access.As(env.student), w.ID, validResponses())
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	decide := []func(context.Context, access.Viewer, string) (models.Application, error){
		env.applications.Approve, env.applications.Reject, env.applications.Approve, env.applications.Reject,
	}
	for _, fn := range decide {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fn(ctx, access.As(env.master), a.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if apperr.Is(err, apperr.KindConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 3, conflicts)
}

func TestListByStudentJoinsWorkshops(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.publishedWorkshop(t, "Joined", false)
	gone := env.publishedWorkshop(t, "Gone", false)

	_, err := env.applications.Create(ctx, access.As(env.student), w.ID, validResponses())
	require.NoError(t, err)
	_, err = env.applications.Create(ctx, access.As(env.student), gone.ID, validResponses())
	require.NoError(t, err)
	require.NoError(t, env.workshops.Delete(ctx, access.As(env.master), gone.ID))

	apps, err := env.applications.ListByStudent(ctx, access.As(env.student))
	require.NoError(t, err)
	require.Len(t, apps, 2)

	titles := map[string]bool{}
	missing := 0
	for _, a := range apps {
		if a.Workshop == nil {
			missing++
			continue
		}
		titles[a.Workshop.Title] = true
	}
	assert.Equal(t, 1, missing)
	assert.True(t, titles["Joined"])
}

func TestListByWorkshopIsOwnerOnly(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.publishedWorkshop(t, "Private", false)
	_, err := env.applications.Create(ctx, access.As(env.student), w.ID, validResponses())
	require.NoError(t, err)

	_, err = env.applications.ListByWorkshop(ctx, access.As(env.student), w.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	apps, err := env.applications.ListByWorkshop(ctx, access.As(env.master), w.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.NotNil(t, apps[0].Student)
	assert.Equal(t, "s1@example.com", apps[0].Student.Email)
	assert.Equal(t, forms.Responses{"f1": "Sam", "f2": "Beginner"}, apps[0].Responses)
}

func TestDeleteApplication(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.publishedWorkshop(t, "Withdraw", false)

	a, err := env.applications.Create(ctx, access.As(env.student), w.ID, validResponses())
	require.NoError(t, err)
	b, err := env.applications.Create(ctx, access.As(env.student), w.ID, validResponses())
	require.NoError(t, err)

	assert.True(t, apperr.Is(env.applications.Delete(ctx, access.As(env.other), a.ID), apperr.KindForbidden))
	require.NoError(t, env.applications.Delete(ctx, access.As(env.student), a.ID))
	require.NoError(t, env.applications.Delete(ctx, access.As(env.master), b.ID))
	assert.True(t, apperr.Is(env.applications.Delete(ctx, access.As(env.master), b.ID), apperr.KindNotFound))
}

func TestStudentDashboard(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	manual := env.publishedWorkshop(t, "Manual", false)
	auto := env.publishedWorkshop(t, "Auto", true)

	_, err := env.applications.Create(ctx, access.As(env.student), manual.ID, validResponses())
	require.NoError(t, err)
	_, err = env.applications.Create(ctx, access.As(env.student), auto.ID, validResponses())
	require.NoError(t, err)

	d, err := env.applications.StudentDashboard(ctx, access.As(env.student))
	require.NoError(t, err)
	assert.Equal(t, StudentStats{Total: 2, Approved: 1, Pending: 1}, d.Stats)
}
