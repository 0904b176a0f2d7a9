package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/apperr"
	"github.com/gdg-garage/garage-workshops/internal/forms"
	"github.com/gdg-garage/garage-workshops/internal/metrics"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/notifier"
	"github.com/gdg-garage/garage-workshops/internal/store"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// WorkshopInput is the editable part of a workshop.
type WorkshopInput struct {
	Title           string              `json:"title" validate:"required,max=200" maxLength:"200"`
	Description     string              `json:"description" validate:"required,min=10" minLength:"10"`
	Category        string              `json:"category" validate:"required"`
	Location        string              `json:"location" validate:"required"`
	Price           *float64            `json:"price,omitempty" validate:"omitempty,gte=0" doc:"Absent means free"`
	Capacity        *int                `json:"capacity,omitempty" validate:"omitempty,gte=1" doc:"Absent means unlimited"`
	ScheduleType    models.ScheduleType `json:"scheduleType,omitempty" validate:"omitempty,oneof=fixed flexible" enum:"fixed,flexible"`
	StartDate       *time.Time          `json:"startDate,omitempty"`
	EndDate         *time.Time          `json:"endDate,omitempty"`
	ApplicationForm forms.Form          `json:"applicationForm,omitempty"`
	FormColor       string              `json:"formColor,omitempty" validate:"omitempty,hexcolor" doc:"Accent color, defaults to #3B82F6"`
	AutoApprove     bool                `json:"autoApprove,omitempty" doc:"Approve applications as they arrive"`
}

func (in WorkshopInput) apply(w *models.Workshop) {
	w.Title = strings.TrimSpace(in.Title)
	w.Description = in.Description
	w.Category = strings.TrimSpace(in.Category)
	w.Location = strings.TrimSpace(in.Location)
	w.Price = in.Price
	w.Capacity = in.Capacity
	w.ScheduleType = in.ScheduleType
	w.StartDate = in.StartDate
	w.EndDate = in.EndDate
	w.FormColor = in.FormColor
	w.AutoApprove = in.AutoApprove
	if in.ApplicationForm != nil {
		w.ApplicationForm = in.ApplicationForm
	}
	if w.ApplicationForm == nil {
		w.ApplicationForm = forms.Form{}
	}
}

type WorkshopPage struct {
	Workshops []models.Workshop `json:"workshops"`
	Total     int64             `json:"total"`
}

type MasterStats struct {
	Total     int `json:"total"`
	Published int `json:"published"`
	Draft     int `json:"draft"`
	Cancelled int `json:"cancelled"`
}

type MasterDashboard struct {
	Stats     MasterStats       `json:"stats"`
	Workshops []models.Workshop `json:"workshops"`
}

// ImageStorage is where workshop cover images go.
type ImageStorage struct {
	Blobs    store.Blobs
	Endpoint string
	Project  string
	Bucket   string
}

type WorkshopService struct {
	workshops store.Collection[models.WorkshopRecord]
	users     store.Collection[models.UserRecord]
	images    ImageStorage
	notify    notifier.Notifier
	log       *zap.Logger
	validate  *validator.Validate
	now       func() time.Time
}

func NewWorkshopService(
	workshops store.Collection[models.WorkshopRecord],
	users store.Collection[models.UserRecord],
	images ImageStorage,
	notify notifier.Notifier,
	log *zap.Logger,
) *WorkshopService {
	if notify == nil {
		notify = notifier.Nop{}
	}
	return &WorkshopService{
		workshops: workshops,
		users:     users,
		images:    images,
		notify:    notify,
		log:       log.Named("workshops"),
		validate:  newValidator(),
		now:       time.Now,
	}
}

func (s *WorkshopService) check(in WorkshopInput) error {
	if err := s.validate.Struct(in); err != nil {
		return invalid(err)
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return apperr.Validation("Please correct the highlighted fields", map[string]string{
			"endDate": "must not be before the start date",
		})
	}
	return nil
}

func (s *WorkshopService) load(ctx context.Context, id string) (models.Workshop, error) {
	rec, err := s.workshops.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Workshop{}, apperr.NotFound("Workshop not found")
	}
	if err != nil {
		return models.Workshop{}, storeFailure(s.log, "Failed to fetch workshop", err, zap.String("workshop_id", id))
	}
	return models.WorkshopFromRecord(*rec), nil
}

// manageable loads a workshop the viewer may still change.
func (s *WorkshopService) manageable(ctx context.Context, v access.Viewer, id string) (models.Workshop, error) {
	w, err := s.load(ctx, id)
	if err != nil {
		return models.Workshop{}, err
	}
	if err := access.ManageWorkshop(v, w); err != nil {
		return models.Workshop{}, err
	}
	if w.Status == models.WorkshopCancelled {
		return models.Workshop{}, apperr.Conflict("Cancelled workshops cannot be changed", nil)
	}
	return w, nil
}

func toWorkshops(recs []models.WorkshopRecord) []models.Workshop {
	out := make([]models.Workshop, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.WorkshopFromRecord(r))
	}
	return out
}

func (s *WorkshopService) Create(ctx context.Context, v access.Viewer, in WorkshopInput) (models.Workshop, error) {
	u, err := access.RequireRole(v, models.RoleMaster, models.RoleAdmin)
	if err != nil {
		return models.Workshop{}, err
	}
	if err := s.check(in); err != nil {
		return models.Workshop{}, err
	}

	w := models.Workshop{
		ID:        store.NewID(),
		MasterID:  u.ID,
		Status:    models.WorkshopDraft,
		CreatedAt: s.now().UTC(),
	}
	in.apply(&w)

	rec, err := w.Record()
	if err != nil {
		return models.Workshop{}, apperr.Validation("The application form could not be saved", nil)
	}
	if err := s.workshops.Create(ctx, &rec); err != nil {
		return models.Workshop{}, storeFailure(s.log, "Failed to create workshop", err, zap.String("master_id", u.ID))
	}

	metrics.WorkshopCreatedAmount.Inc()
	s.log.Info("workshop created", zap.String("workshop_id", w.ID), zap.String("master_id", u.ID))
	return w, nil
}

// Get returns a workshop the viewer may see, with its master attached.
func (s *WorkshopService) Get(ctx context.Context, v access.Viewer, id string) (models.Workshop, error) {
	w, err := s.load(ctx, id)
	if err != nil {
		return models.Workshop{}, err
	}
	if err := access.ViewWorkshop(v, w); err != nil {
		return models.Workshop{}, err
	}
	w.Master = lookupUser(ctx, s.users, w.MasterID)
	return w, nil
}

// ListPublished never returns drafts or cancelled workshops.
func (s *WorkshopService) ListPublished(ctx context.Context, limit, offset int) (WorkshopPage, error) {
	limit, offset = pageBounds(limit, offset)
	list, err := s.workshops.List(ctx,
		store.Equal(models.ColumnStatus, string(models.WorkshopPublished)),
		store.OrderDesc(models.ColumnCreatedAt),
		store.Limit(limit),
		store.Offset(offset),
	)
	if err != nil {
		return WorkshopPage{}, storeFailure(s.log, "Failed to fetch workshops", err)
	}
	return WorkshopPage{Workshops: toWorkshops(list.Documents), Total: list.Total}, nil
}

// Search matches published workshops by title and, optionally, category.
func (s *WorkshopService) Search(ctx context.Context, query, category string, limit int) (WorkshopPage, error) {
	limit, _ = pageBounds(limit, 0)
	queries := []store.Query{
		store.Equal(models.ColumnStatus, string(models.WorkshopPublished)),
		store.OrderDesc(models.ColumnCreatedAt),
		store.Limit(limit),
	}
	if q := strings.TrimSpace(query); q != "" {
		queries = append(queries, store.Search(models.ColumnTitle, q))
	}
	if c := strings.TrimSpace(category); c != "" {
		queries = append(queries, store.Equal(models.ColumnCategory, c))
	}
	list, err := s.workshops.List(ctx, queries...)
	if err != nil {
		return WorkshopPage{}, storeFailure(s.log, "Failed to search workshops", err, zap.String("query", query))
	}
	return WorkshopPage{Workshops: toWorkshops(list.Documents), Total: list.Total}, nil
}

func (s *WorkshopService) ListByMaster(ctx context.Context, v access.Viewer) ([]models.Workshop, error) {
	u, err := access.RequireRole(v, models.RoleMaster, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	list, err := s.workshops.List(ctx,
		store.Equal(models.ColumnMasterID, u.ID),
		store.OrderDesc(models.ColumnCreatedAt),
	)
	if err != nil {
		return nil, storeFailure(s.log, "Failed to fetch your workshops", err, zap.String("master_id", u.ID))
	}
	return toWorkshops(list.Documents), nil
}

func (s *WorkshopService) MasterDashboard(ctx context.Context, v access.Viewer) (MasterDashboard, error) {
	workshops, err := s.ListByMaster(ctx, v)
	if err != nil {
		return MasterDashboard{}, err
	}
	d := MasterDashboard{Workshops: workshops}
	for _, w := range workshops {
		d.Stats.Total++
		switch w.Status {
		case models.WorkshopPublished:
			d.Stats.Published++
		case models.WorkshopDraft:
			d.Stats.Draft++
		case models.WorkshopCancelled:
			d.Stats.Cancelled++
		}
	}
	return d, nil
}

func (s *WorkshopService) Update(ctx context.Context, v access.Viewer, id string, in WorkshopInput) (models.Workshop, error) {
	w, err := s.manageable(ctx, v, id)
	if err != nil {
		return models.Workshop{}, err
	}
	if err := s.check(in); err != nil {
		return models.Workshop{}, err
	}
	in.apply(&w)
	return s.save(ctx, w)
}

// UpdateForm runs a builder edit against the stored form and persists the
// result. Labels are not checked here; that happens on publish.
func (s *WorkshopService) UpdateForm(ctx context.Context, v access.Viewer, id string, edit func(*forms.Builder) error) (models.Workshop, error) {
	w, err := s.manageable(ctx, v, id)
	if err != nil {
		return models.Workshop{}, err
	}

	b := forms.NewBuilder(w.ApplicationForm)
	if err := edit(b); err != nil {
		switch {
		case errors.Is(err, forms.ErrIndexOutOfRange):
			return models.Workshop{}, apperr.Validation("That field or option does not exist", nil)
		case errors.Is(err, forms.ErrUnknownType):
			return models.Workshop{}, apperr.Validation("Unsupported field type", nil)
		}
		return models.Workshop{}, apperr.Validation("The form could not be changed", nil)
	}

	encoded, err := forms.Encode(b.Form())
	if err != nil {
		return models.Workshop{}, apperr.Validation("The application form could not be saved", nil)
	}
	rec, err := s.workshops.Update(ctx, id, map[string]any{"application_form": encoded})
	if err != nil {
		return models.Workshop{}, s.updateFailure(err, id)
	}
	return models.WorkshopFromRecord(*rec), nil
}

func (s *WorkshopService) save(ctx context.Context, w models.Workshop) (models.Workshop, error) {
	rec, err := w.Record()
	if err != nil {
		return models.Workshop{}, apperr.Validation("The application form could not be saved", nil)
	}
	updated, err := s.workshops.Update(ctx, w.ID, map[string]any{
		"title":            rec.Title,
		"description":      rec.Description,
		"category":         rec.Category,
		"location":         rec.Location,
		"price":            rec.Price,
		"capacity":         rec.Capacity,
		"schedule_type":    rec.ScheduleType,
		"start_date":       rec.StartDate,
		"end_date":         rec.EndDate,
		"application_form": rec.ApplicationForm,
		"form_color":       rec.FormColor,
		"auto_approve":     rec.AutoApprove,
	})
	if err != nil {
		return models.Workshop{}, s.updateFailure(err, w.ID)
	}
	return models.WorkshopFromRecord(*updated), nil
}

func (s *WorkshopService) updateFailure(err error, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Workshop not found")
	}
	return storeFailure(s.log, "Failed to update workshop", err, zap.String("workshop_id", id))
}

var workshopTransitions = map[models.WorkshopStatus][]models.WorkshopStatus{
	models.WorkshopDraft:     {models.WorkshopPublished, models.WorkshopCancelled},
	models.WorkshopPublished: {models.WorkshopDraft, models.WorkshopCancelled},
}

func (s *WorkshopService) Publish(ctx context.Context, v access.Viewer, id string) (models.Workshop, error) {
	return s.setStatus(ctx, v, id, models.WorkshopPublished)
}

func (s *WorkshopService) Unpublish(ctx context.Context, v access.Viewer, id string) (models.Workshop, error) {
	return s.setStatus(ctx, v, id, models.WorkshopDraft)
}

// Cancel is final: a cancelled workshop cannot be edited or republished.
func (s *WorkshopService) Cancel(ctx context.Context, v access.Viewer, id string) (models.Workshop, error) {
	return s.setStatus(ctx, v, id, models.WorkshopCancelled)
}

func (s *WorkshopService) setStatus(ctx context.Context, v access.Viewer, id string, to models.WorkshopStatus) (models.Workshop, error) {
	w, err := s.manageable(ctx, v, id)
	if err != nil {
		return models.Workshop{}, err
	}
	if !slices.Contains(workshopTransitions[w.Status], to) {
		return models.Workshop{}, apperr.Conflict(fmt.Sprintf("A %s workshop cannot become %s", w.Status, to), nil)
	}
	if to == models.WorkshopPublished {
		if err := forms.ValidateForPublish(w.ApplicationForm); err != nil {
			return models.Workshop{}, publishError(err)
		}
	}

	rec, err := s.workshops.UpdateIf(ctx, id,
		map[string]any{models.ColumnStatus: string(w.Status)},
		map[string]any{models.ColumnStatus: string(to)},
	)
	if errors.Is(err, store.ErrConflict) {
		return models.Workshop{}, apperr.Conflict("The workshop was changed in the meantime. Reload and try again.", err)
	}
	if err != nil {
		return models.Workshop{}, s.updateFailure(err, id)
	}

	updated := models.WorkshopFromRecord(*rec)
	metrics.WorkshopStatusChangedAmount.WithLabelValues(string(to)).Inc()
	s.log.Info("workshop status changed",
		zap.String("workshop_id", id),
		zap.String("from", string(w.Status)),
		zap.String("to", string(to)),
	)

	switch to {
	case models.WorkshopPublished:
		s.emit(ctx, notifier.Event{Kind: notifier.WorkshopPublished, Workshop: updated, Master: v.User})
	case models.WorkshopCancelled:
		s.emit(ctx, notifier.Event{Kind: notifier.WorkshopCancelled, Workshop: updated, Master: v.User})
	}
	return updated, nil
}

func publishError(err error) error {
	fields := map[string]string{}
	var problems forms.Problems
	if errors.As(err, &problems) {
		for _, p := range problems {
			fields[fmt.Sprintf("applicationForm[%d]", p.Index)] = p.Message
		}
	}
	return apperr.Validation("The application form is not ready to publish", fields)
}

// Delete removes the workshop for good. Cancelled workshops may be deleted.
func (s *WorkshopService) Delete(ctx context.Context, v access.Viewer, id string) error {
	w, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := access.ManageWorkshop(v, w); err != nil {
		return err
	}
	if err := s.workshops.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Workshop not found")
		}
		return storeFailure(s.log, "Failed to delete workshop", err, zap.String("workshop_id", id))
	}
	s.log.Info("workshop deleted", zap.String("workshop_id", id))
	return nil
}

// coverTypes are the raster formats accepted as cover images. SVG is left
// out since it can carry script and is served from this origin.
var coverTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// SetImage uploads a cover image and points the workshop at it. When the
// workshop cannot be updated the upload is removed again.
func (s *WorkshopService) SetImage(ctx context.Context, v access.Viewer, id, name string, r io.Reader) (models.Workshop, error) {
	if _, err := s.manageable(ctx, v, id); err != nil {
		return models.Workshop{}, err
	}

	file, err := s.images.Blobs.Upload(ctx, s.images.Bucket, "", name, r, store.ReadAny)
	if err != nil {
		return models.Workshop{}, storeFailure(s.log, "Failed to upload image", err, zap.String("workshop_id", id))
	}
	if !coverTypes[file.MimeType] {
		s.discard(ctx, file.ID)
		return models.Workshop{}, apperr.Validation("Please upload an image file", map[string]string{"image": "must be an image"})
	}

	url := store.ViewURL(s.images.Endpoint, s.images.Bucket, file.ID, s.images.Project)
	rec, err := s.workshops.Update(ctx, id, map[string]any{"image_url": url})
	if err != nil {
		s.discard(ctx, file.ID)
		return models.Workshop{}, s.updateFailure(err, id)
	}
	return models.WorkshopFromRecord(*rec), nil
}

func (s *WorkshopService) discard(ctx context.Context, fileID string) {
	if err := s.images.Blobs.Delete(ctx, s.images.Bucket, fileID); err != nil {
		s.log.Warn("orphaned upload", zap.String("bucket", s.images.Bucket), zap.String("file_id", fileID), zap.Error(err))
	}
}

func (s *WorkshopService) emit(ctx context.Context, e notifier.Event) {
	if err := s.notify.Notify(ctx, e); err != nil {
		s.log.Debug("notification not delivered", zap.String("event", string(e.Kind)), zap.Error(err))
	}
}
