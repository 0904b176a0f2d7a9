package handlers

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/forms"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/services"
	"github.com/gdg-garage/garage-workshops/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func applyBody(responses forms.Responses) map[string]any {
	return map[string]any{"responses": responses}
}

func TestApplyAndReviewAPI(t *testing.T) {
	s := setupServer(t)
	w := s.published(t, "Wheel throwing")
	path := "/api/workshops/" + w.ID + "/applications"

	assert.Equal(t, http.StatusUnauthorized, s.do(t, nil, http.MethodPost, path, applyBody(forms.Responses{})).Code)

	rr := s.do(t, s.student, http.MethodPost, path, applyBody(forms.Responses{"f2": "Expert"}))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Name is required")
	assert.Contains(t, rr.Body.String(), "Level: invalid option")

	rr = s.do(t, s.student, http.MethodPost, path, applyBody(forms.Responses{"f1": "Sam", "f2": "Beginner"}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	app := decode[models.Application](t, rr)
	assert.Equal(t, workflow.StatusPending, app.Status)
	assert.Equal(t, s.student.ID, app.StudentID)

	assert.Equal(t, http.StatusForbidden, s.do(t, s.student, http.MethodGet, path, nil).Code)
	rr = s.do(t, s.master, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]models.Application](t, rr)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Student)
	assert.Equal(t, "Sam", list[0].Student.Name)

	assert.Equal(t, http.StatusForbidden, s.do(t, s.other, http.MethodPost, "/api/applications/"+app.ID+"/approve", nil).Code)

	rr = s.do(t, s.master, http.MethodPost, "/api/applications/"+app.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, workflow.StatusApproved, decode[models.Application](t, rr).Status)

	assert.Equal(t, http.StatusConflict, s.do(t, s.master, http.MethodPost, "/api/applications/"+app.ID+"/reject", nil).Code)

	rr = s.do(t, s.student, http.MethodGet, "/api/student/dashboard", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	d := decode[services.StudentDashboard](t, rr)
	assert.Equal(t, 1, d.Stats.Approved)

	assert.Equal(t, http.StatusNoContent, s.do(t, s.student, http.MethodDelete, "/api/applications/"+app.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, s.student, http.MethodDelete, "/api/applications/"+app.ID, nil).Code)
}

func TestApplyToDraftAPI(t *testing.T) {
	s := setupServer(t)
	w, err := s.workshops.Create(context.Background(), access.As(s.master), workshopBody("Draft"))
	require.NoError(t, err)

	rr := s.do(t, s.student, http.MethodPost, "/api/workshops/"+w.ID+"/applications", applyBody(forms.Responses{"f1": "Sam", "f2": "Beginner"}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSubmitterConcurrentDuplicates(t *testing.T) {
	s := setupServer(t)
	w := s.published(t, "Busy workshop")
	submitter := NewSubmitter(s.applications, zaptest.NewLogger(t))
	v := access.As(s.student)

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = submitter.Submit(context.Background(), v, w.ID, forms.Responses{"f1": "Sam", "f2": "Beginner"})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}

	apps, err := s.applications.ListByWorkshop(context.Background(), access.As(s.master), w.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(apps), 1)
	assert.LessOrEqual(t, len(apps), n)
}
