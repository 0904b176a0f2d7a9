// Package access holds the per-request viewer and the ownership and role
// gates applied before a page or operation touches protected data.
package access

import (
	"context"

	"github.com/gdg-garage/garage-workshops/internal/apperr"
	"github.com/gdg-garage/garage-workshops/internal/models"
)

// Viewer is whoever is making the current request. User is nil for
// anonymous visitors.
type Viewer struct {
	User *models.User
}

func Anonymous() Viewer {
	return Viewer{}
}

func As(u *models.User) Viewer {
	return Viewer{User: u}
}

func (v Viewer) SignedIn() bool {
	return v.User != nil
}

// ID is the viewer's user id, or "" when anonymous.
func (v Viewer) ID() string {
	if v.User == nil {
		return ""
	}
	return v.User.ID
}

type contextKey struct{}

func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, contextKey{}, v)
}

// FromContext returns the viewer stored by WithViewer, or Anonymous.
func FromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(contextKey{}).(Viewer)
	return v
}

func RequireUser(v Viewer) (*models.User, error) {
	if v.User == nil {
		return nil, apperr.Unauthorized("Please sign in to continue")
	}
	return v.User, nil
}

func RequireRole(v Viewer, roles ...models.Role) (*models.User, error) {
	u, err := RequireUser(v)
	if err != nil {
		return nil, err
	}
	if !u.HasRole(roles...) {
		return nil, apperr.Forbidden("You do not have access to this page")
	}
	return u, nil
}

// CanManageWorkshop is true for the workshop's master and for admins.
func CanManageWorkshop(v Viewer, w models.Workshop) bool {
	if v.User == nil {
		return false
	}
	return v.User.ID == w.MasterID || v.User.Role == models.RoleAdmin
}

// CanViewWorkshop hides drafts and cancelled workshops from everyone but
// their managers.
func CanViewWorkshop(v Viewer, w models.Workshop) bool {
	return w.Published() || CanManageWorkshop(v, w)
}

// CanViewApplication is true for the applicant and for whoever manages the
// workshop applied to.
func CanViewApplication(v Viewer, a models.Application, w models.Workshop) bool {
	if v.User == nil {
		return false
	}
	return v.User.ID == a.StudentID || CanManageWorkshop(v, w)
}

func ManageWorkshop(v Viewer, w models.Workshop) error {
	if _, err := RequireUser(v); err != nil {
		return err
	}
	if !CanManageWorkshop(v, w) {
		return apperr.Forbidden("Only the workshop owner can do that")
	}
	return nil
}

// ViewWorkshop reports an invisible workshop as not found so drafts do
// not leak their existence.
func ViewWorkshop(v Viewer, w models.Workshop) error {
	if !CanViewWorkshop(v, w) {
		return apperr.NotFound("Workshop not found")
	}
	return nil
}

// RedirectFor picks the safe page a browser is sent to when a gate fails.
func RedirectFor(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindUnauthorized:
		return "/login"
	default:
		return "/workshops"
	}
}
