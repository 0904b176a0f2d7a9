package handlers

import (
	"context"

	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/forms"
	"github.com/gdg-garage/garage-workshops/internal/metrics"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/services"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Submitter collapses concurrent submissions of the same student to the
// same workshop into one stored application.
type Submitter struct {
	applications *services.ApplicationService
	group        singleflight.Group
	log          *zap.Logger
}

func NewSubmitter(applications *services.ApplicationService, log *zap.Logger) *Submitter {
	return &Submitter{applications: applications, log: log.Named("submit")}
}

func (s *Submitter) Submit(ctx context.Context, v access.Viewer, workshopID string, responses forms.Responses) (models.Application, error) {
	if !v.SignedIn() {
		return s.applications.Create(ctx, v, workshopID, responses)
	}
	key := v.ID() + "/" + workshopID
	res, err, shared := s.group.Do(key, func() (any, error) {
		return s.applications.Create(ctx, v, workshopID, responses)
	})
	if shared {
		metrics.DuplicateSubmitAmount.Inc()
		s.log.Debug("collapsed duplicate submission",
			zap.String("student_id", v.ID()),
			zap.String("workshop_id", workshopID),
		)
	}
	if err != nil {
		return models.Application{}, err
	}
	return res.(models.Application), nil
}

type ApplicationHandler struct {
	applications *services.ApplicationService
	submitter    *Submitter
}

func NewApplicationHandler(applications *services.ApplicationService, submitter *Submitter) *ApplicationHandler {
	return &ApplicationHandler{applications: applications, submitter: submitter}
}

type ApplyRequest struct {
	ID   string `path:"id" doc:"Workshop id"`
	Body struct {
		Responses forms.Responses `json:"responses" doc:"Answers keyed by field id"`
	}
}

type ApplicationIDInput struct {
	ID string `path:"id" doc:"Application id"`
}

type ApplicationResponse struct {
	Body models.Application
}

type ApplicationListResponse struct {
	Body []models.Application
}

type StudentDashboardResponse struct {
	Body services.StudentDashboard
}

func (h *ApplicationHandler) HandleApply(ctx context.Context, input *ApplyRequest) (*ApplicationResponse, error) {
	responses := input.Body.Responses
	if responses == nil {
		responses = forms.Responses{}
	}
	a, err := h.submitter.Submit(ctx, access.FromContext(ctx), input.ID, responses)
	if err != nil {
		return nil, apiError(err)
	}
	return &ApplicationResponse{Body: a}, nil
}

func (h *ApplicationHandler) HandleListByWorkshop(ctx context.Context, input *WorkshopIDInput) (*ApplicationListResponse, error) {
	list, err := h.applications.ListByWorkshop(ctx, access.FromContext(ctx), input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &ApplicationListResponse{Body: list}, nil
}

func (h *ApplicationHandler) HandleMine(ctx context.Context, input *struct{}) (*ApplicationListResponse, error) {
	list, err := h.applications.ListByStudent(ctx, access.FromContext(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return &ApplicationListResponse{Body: list}, nil
}

func (h *ApplicationHandler) HandleApprove(ctx context.Context, input *ApplicationIDInput) (*ApplicationResponse, error) {
	a, err := h.applications.Approve(ctx, access.FromContext(ctx), input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &ApplicationResponse{Body: a}, nil
}

func (h *ApplicationHandler) HandleReject(ctx context.Context, input *ApplicationIDInput) (*ApplicationResponse, error) {
	a, err := h.applications.Reject(ctx, access.FromContext(ctx), input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &ApplicationResponse{Body: a}, nil
}

func (h *ApplicationHandler) HandleDelete(ctx context.Context, input *ApplicationIDInput) (*struct{}, error) {
	if err := h.applications.Delete(ctx, access.FromContext(ctx), input.ID); err != nil {
		return nil, apiError(err)
	}
	return nil, nil
}

func (h *ApplicationHandler) HandleDashboard(ctx context.Context, input *struct{}) (*StudentDashboardResponse, error) {
	d, err := h.applications.StudentDashboard(ctx, access.FromContext(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return &StudentDashboardResponse{Body: d}, nil
}
