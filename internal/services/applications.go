package services

import (
	"context"
	"errors"
	"time"

	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/apperr"
	"github.com/gdg-garage/garage-workshops/internal/forms"
	"github.com/gdg-garage/garage-workshops/internal/metrics"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/notifier"
	"github.com/gdg-garage/garage-workshops/internal/store"
	"github.com/gdg-garage/garage-workshops/internal/workflow"
	"go.uber.org/zap"
)

type StudentStats struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
}

type StudentDashboard struct {
	Stats        StudentStats         `json:"stats"`
	Applications []models.Application `json:"applications"`
}

type ApplicationService struct {
	applications store.Collection[models.ApplicationRecord]
	workshops    *WorkshopService
	users        store.Collection[models.UserRecord]
	notify       notifier.Notifier
	log          *zap.Logger
	now          func() time.Time
}

func NewApplicationService(
	applications store.Collection[models.ApplicationRecord],
	workshops *WorkshopService,
	users store.Collection[models.UserRecord],
	notify notifier.Notifier,
	log *zap.Logger,
) *ApplicationService {
	if notify == nil {
		notify = notifier.Nop{}
	}
	return &ApplicationService{
		applications: applications,
		workshops:    workshops,
		users:        users,
		notify:       notify,
		log:          log.Named("applications"),
		now:          time.Now,
	}
}

func (s *ApplicationService) load(ctx context.Context, id string) (models.Application, error) {
	rec, err := s.applications.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Application{}, apperr.NotFound("Application not found")
	}
	if err != nil {
		return models.Application{}, storeFailure(s.log, "Failed to fetch application", err, zap.String("application_id", id))
	}
	return models.ApplicationFromRecord(*rec), nil
}

// Create stores a submission against a published workshop. The status is
// decided here from the workshop's auto-approve flag as it is right now;
// whatever status the client proposed is ignored.
func (s *ApplicationService) Create(ctx context.Context, v access.Viewer, workshopID string, responses forms.Responses) (models.Application, error) {
	u, err := access.RequireUser(v)
	if err != nil {
		return models.Application{}, err
	}
	w, err := s.workshops.load(ctx, workshopID)
	if err != nil {
		return models.Application{}, err
	}
	if err := access.ViewWorkshop(v, w); err != nil {
		return models.Application{}, err
	}
	if !w.Published() {
		return models.Application{}, apperr.Conflict("This workshop is not accepting applications", nil)
	}
	if responses == nil {
		responses = forms.Responses{}
	}
	if errs := forms.ValidateResponses(w.ApplicationForm, responses); len(errs) > 0 {
		return models.Application{}, apperr.Validation("Please correct the highlighted fields", errs)
	}

	app := models.Application{
		ID:         store.NewID(),
		WorkshopID: w.ID,
		StudentID:  u.ID,
		Responses:  responses,
		Status:     workflow.InitialStatus(w.AutoApprove),
		CreatedAt:  s.now().UTC(),
	}
	rec, err := app.Record()
	if err != nil {
		return models.Application{}, apperr.Validation("Your answers could not be saved", nil)
	}
	if err := s.applications.Create(ctx, &rec); err != nil {
		return models.Application{}, storeFailure(s.log, forms.SubmitFailedMessage, err,
			zap.String("workshop_id", w.ID), zap.String("student_id", u.ID))
	}

	metrics.ApplicationSubmittedAmount.WithLabelValues(string(app.Status)).Inc()
	s.log.Info("application submitted",
		zap.String("application_id", app.ID),
		zap.String("workshop_id", w.ID),
		zap.String("status", string(app.Status)),
	)

	master := lookupUser(ctx, s.users, w.MasterID)
	s.emit(ctx, notifier.Event{Kind: notifier.ApplicationSubmitted, Workshop: w, Master: master, Application: &app, Student: u})
	if app.Status == workflow.StatusApproved {
		s.emit(ctx, notifier.Event{Kind: notifier.ApplicationApproved, Workshop: w, Master: master, Application: &app, Student: u})
	}

	app.Workshop = &w
	return app, nil
}

// ListByStudent returns the viewer's applications, newest first, each
// joined with its workshop when that still exists.
func (s *ApplicationService) ListByStudent(ctx context.Context, v access.Viewer) ([]models.Application, error) {
	u, err := access.RequireUser(v)
	if err != nil {
		return nil, err
	}
	list, err := s.applications.List(ctx,
		store.Equal(models.ColumnStudentID, u.ID),
		store.OrderDesc(models.ColumnCreatedAt),
	)
	if err != nil {
		return nil, storeFailure(s.log, "Failed to fetch applications", err, zap.String("student_id", u.ID))
	}

	workshops := map[string]*models.Workshop{}
	apps := make([]models.Application, 0, len(list.Documents))
	for _, r := range list.Documents {
		a := models.ApplicationFromRecord(r)
		w, seen := workshops[a.WorkshopID]
		if !seen {
			if rec, err := s.workshops.workshops.Get(ctx, a.WorkshopID); err == nil {
				ws := models.WorkshopFromRecord(*rec)
				w = &ws
			}
			workshops[a.WorkshopID] = w
		}
		a.Workshop = w
		apps = append(apps, a)
	}
	return apps, nil
}

// ListByWorkshop returns the applications to a workshop the viewer
// manages, each joined with its student.
func (s *ApplicationService) ListByWorkshop(ctx context.Context, v access.Viewer, workshopID string) ([]models.Application, error) {
	w, err := s.workshops.load(ctx, workshopID)
	if err != nil {
		return nil, err
	}
	if err := access.ManageWorkshop(v, w); err != nil {
		return nil, err
	}
	list, err := s.applications.List(ctx,
		store.Equal(models.ColumnWorkshopID, w.ID),
		store.OrderDesc(models.ColumnCreatedAt),
	)
	if err != nil {
		return nil, storeFailure(s.log, "Failed to fetch applications", err, zap.String("workshop_id", w.ID))
	}

	students := map[string]*models.User{}
	apps := make([]models.Application, 0, len(list.Documents))
	for _, r := range list.Documents {
		a := models.ApplicationFromRecord(r)
		u, seen := students[a.StudentID]
		if !seen {
			u = lookupUser(ctx, s.users, a.StudentID)
			students[a.StudentID] = u
		}
		a.Student = u
		apps = append(apps, a)
	}
	return apps, nil
}

func (s *ApplicationService) Approve(ctx context.Context, v access.Viewer, id string) (models.Application, error) {
	return s.decide(ctx, v, id, workflow.EventApprove)
}

func (s *ApplicationService) Reject(ctx context.Context, v access.Viewer, id string) (models.Application, error) {
	return s.decide(ctx, v, id, workflow.EventReject)
}

// decide moves a pending application on. The write only lands while the
// stored status is still pending, so two reviewers cannot both win.
func (s *ApplicationService) decide(ctx context.Context, v access.Viewer, id string, ev workflow.Event) (models.Application, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return models.Application{}, err
	}
	w, err := s.workshops.load(ctx, app.WorkshopID)
	if err != nil {
		return models.Application{}, err
	}
	if err := access.ManageWorkshop(v, w); err != nil {
		return models.Application{}, err
	}

	to, err := workflow.Transition(app.Status, ev)
	if err != nil {
		return models.Application{}, apperr.Conflict("This application has already been "+string(app.Status), err)
	}

	rec, err := s.applications.UpdateIf(ctx, id,
		map[string]any{models.ColumnStatus: string(workflow.StatusPending)},
		map[string]any{models.ColumnStatus: string(to)},
	)
	switch {
	case errors.Is(err, store.ErrConflict):
		return models.Application{}, apperr.Conflict("This application was already reviewed. Reload to see its status.", err)
	case errors.Is(err, store.ErrNotFound):
		return models.Application{}, apperr.NotFound("Application not found")
	case err != nil:
		return models.Application{}, storeFailure(s.log, "Failed to update application", err, zap.String("application_id", id))
	}

	updated := models.ApplicationFromRecord(*rec)
	updated.Workshop = &w
	updated.Student = lookupUser(ctx, s.users, updated.StudentID)

	metrics.ApplicationDecidedAmount.WithLabelValues(string(to)).Inc()
	s.log.Info("application reviewed",
		zap.String("application_id", id),
		zap.String("status", string(to)),
		zap.String("reviewer_id", v.ID()),
	)

	kind := notifier.ApplicationApproved
	if to == workflow.StatusRejected {
		kind = notifier.ApplicationRejected
	}
	s.emit(ctx, notifier.Event{Kind: kind, Workshop: w, Master: v.User, Application: &updated, Student: updated.Student})
	return updated, nil
}

// Delete lets the applicant withdraw, or the workshop's manager remove, an
// application.
func (s *ApplicationService) Delete(ctx context.Context, v access.Viewer, id string) error {
	u, err := access.RequireUser(v)
	if err != nil {
		return err
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if app.StudentID != u.ID {
		w, err := s.workshops.load(ctx, app.WorkshopID)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
		if err != nil || !access.CanViewApplication(v, app, w) {
			return apperr.Forbidden("You cannot delete this application")
		}
	}

	if err := s.applications.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Application not found")
		}
		return storeFailure(s.log, "Failed to delete application", err, zap.String("application_id", id))
	}
	return nil
}

func (s *ApplicationService) StudentDashboard(ctx context.Context, v access.Viewer) (StudentDashboard, error) {
	apps, err := s.ListByStudent(ctx, v)
	if err != nil {
		return StudentDashboard{}, err
	}
	d := StudentDashboard{Applications: apps}
	for _, a := range apps {
		d.Stats.Total++
		switch a.Status {
		case workflow.StatusApproved:
			d.Stats.Approved++
		case workflow.StatusPending:
			d.Stats.Pending++
		case workflow.StatusRejected:
			d.Stats.Rejected++
		}
	}
	return d, nil
}

func (s *ApplicationService) emit(ctx context.Context, e notifier.Event) {
	if err := s.notify.Notify(ctx, e); err != nil {
		s.log.Debug("notification not delivered", zap.String("event", string(e.Kind)), zap.Error(err))
	}
}
