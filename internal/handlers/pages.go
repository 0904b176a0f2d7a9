package handlers

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/apperr"
	"github.com/gdg-garage/garage-workshops/internal/auth"
	"github.com/gdg-garage/garage-workshops/internal/forms"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var pageFS embed.FS

const maxFormMemory = 32 << 20

var pageFuncs = template.FuncMap{
	"formatDate": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2 Jan 2006")
	},
	"price": func(p *float64) string {
		if p == nil || *p == 0 {
			return "Free"
		}
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", *p), "0"), ".")
	},
	"answer": answer,
}

// PageHandler serves the server-rendered pages: the public workshop
// detail with its form preview, the application form and the master's
// management view.
type PageHandler struct {
	workshops    *services.WorkshopService
	applications *services.ApplicationService
	accounts     *services.AccountService
	sessions     *auth.AuthHandler
	submitter    *Submitter
	discordLogin bool
	pages        map[string]*template.Template
	log          *zap.Logger
}

func NewPageHandler(
	workshops *services.WorkshopService,
	applications *services.ApplicationService,
	accounts *services.AccountService,
	sessions *auth.AuthHandler,
	submitter *Submitter,
	discordLogin bool,
	log *zap.Logger,
) *PageHandler {
	pages := map[string]*template.Template{}
	for _, name := range []string{"workshops.html", "workshop.html", "apply.html", "manage.html", "login.html"} {
		pages[name] = template.Must(template.New("").Funcs(pageFuncs).ParseFS(pageFS, "templates/base.html", "templates/"+name))
	}
	return &PageHandler{
		workshops:    workshops,
		applications: applications,
		accounts:     accounts,
		sessions:     sessions,
		submitter:    submitter,
		discordLogin: discordLogin,
		pages:        pages,
		log:          log.Named("pages"),
	}
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["User"] = access.FromContext(r.Context()).User

	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "base", data); err != nil {
		h.log.Error("template execute error", zap.String("page", page), zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirect sends the browser wherever the access gates say it should go
// for err. A sign-in redirect carries the page to come back to.
func (h *PageHandler) redirect(w http.ResponseWriter, r *http.Request, err error) {
	target := access.RedirectFor(err)
	if apperr.Is(err, apperr.KindUnauthorized) {
		target += "?next=" + url.QueryEscape(r.URL.Path)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *PageHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/workshops", http.StatusFound)
}

func (h *PageHandler) HandleWorkshops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		page services.WorkshopPage
		err  error
	)
	if q.Get("q") != "" || q.Get("category") != "" {
		page, err = h.workshops.Search(r.Context(), q.Get("q"), q.Get("category"), 0)
	} else {
		page, err = h.workshops.ListPublished(r.Context(), 0, 0)
	}
	if err != nil {
		http.Error(w, apperr.PublicMessage(err), httpStatus(err))
		return
	}
	h.render(w, r, http.StatusOK, "workshops.html", map[string]any{
		"Workshops": page.Workshops,
		"Total":     page.Total,
		"Query":     q.Get("q"),
		"Category":  q.Get("category"),
	})
}

func (h *PageHandler) HandleWorkshop(w http.ResponseWriter, r *http.Request) {
	v := access.FromContext(r.Context())
	ws, err := h.workshops.Get(r.Context(), v, chi.URLParam(r, "id"))
	if err != nil {
		h.redirect(w, r, err)
		return
	}

	var preview bytes.Buffer
	if err := forms.RenderPreview(&preview, ws.ApplicationForm, ws.FormColor); err != nil {
		h.log.Error("form preview failed", zap.String("workshop_id", ws.ID), zap.Error(err))
	}
	h.render(w, r, http.StatusOK, "workshop.html", map[string]any{
		"Workshop":  ws,
		"Preview":   template.HTML(preview.String()),
		"CanApply":  ws.Published() && v.ID() != ws.MasterID,
		"CanManage": access.CanManageWorkshop(v, ws),
		"Applied":   r.URL.Query().Get("applied") == "1",
	})
}

// applyTarget loads a workshop the viewer may apply to right now.
func (h *PageHandler) applyTarget(r *http.Request) (models.Workshop, error) {
	v := access.FromContext(r.Context())
	if _, err := access.RequireUser(v); err != nil {
		return models.Workshop{}, err
	}
	ws, err := h.workshops.Get(r.Context(), v, chi.URLParam(r, "id"))
	if err != nil {
		return models.Workshop{}, err
	}
	if !ws.Published() {
		return models.Workshop{}, apperr.NotFound("This workshop is not accepting applications")
	}
	return ws, nil
}

func (h *PageHandler) renderApply(w http.ResponseWriter, r *http.Request, status int, ws models.Workshop, sub *forms.Submission) {
	var form bytes.Buffer
	if err := sub.Render(&form, "/workshops/"+ws.ID+"/apply", ws.FormColor); err != nil {
		h.log.Error("form render failed", zap.String("workshop_id", ws.ID), zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, status, "apply.html", map[string]any{
		"Workshop": ws,
		"Form":     template.HTML(form.String()),
	})
}

func (h *PageHandler) HandleApplyForm(w http.ResponseWriter, r *http.Request) {
	ws, err := h.applyTarget(r)
	if err != nil {
		h.redirect(w, r, err)
		return
	}
	h.renderApply(w, r, http.StatusOK, ws, forms.NewSubmission(ws.ApplicationForm))
}

func (h *PageHandler) HandleApplySubmit(w http.ResponseWriter, r *http.Request) {
	ws, err := h.applyTarget(r)
	if err != nil {
		h.redirect(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
	}
	var files map[string][]*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File
	}

	v := access.FromContext(r.Context())
	sub := forms.NewSubmission(ws.ApplicationForm)
	sub.Bind(r.PostForm, files)
	err = sub.Submit(r.Context(), func(ctx context.Context, responses forms.Responses) error {
		_, err := h.submitter.Submit(ctx, v, ws.ID, responses)
		return err
	})
	switch {
	case err == nil:
		http.Redirect(w, r, "/workshops/"+ws.ID+"?applied=1", http.StatusSeeOther)
	case errors.Is(err, forms.ErrInvalidSubmission):
		h.renderApply(w, r, http.StatusUnprocessableEntity, ws, sub)
	case apperr.Is(err, apperr.KindNotFound), apperr.Is(err, apperr.KindForbidden), apperr.Is(err, apperr.KindUnauthorized):
		h.redirect(w, r, err)
	default:
		h.renderApply(w, r, httpStatus(err), ws, sub)
	}
}

type reviewedApplication struct {
	models.Application
	Answers []forms.Answer
}

func (h *PageHandler) HandleManage(w http.ResponseWriter, r *http.Request) {
	v := access.FromContext(r.Context())
	ws, err := h.workshops.Get(r.Context(), v, chi.URLParam(r, "id"))
	if err == nil {
		err = access.ManageWorkshop(v, ws)
	}
	if err != nil {
		h.redirect(w, r, err)
		return
	}
	apps, err := h.applications.ListByWorkshop(r.Context(), v, ws.ID)
	if err != nil {
		h.redirect(w, r, err)
		return
	}

	reviewed := make([]reviewedApplication, 0, len(apps))
	for _, a := range apps {
		reviewed = append(reviewed, reviewedApplication{
			Application: a,
			Answers:     forms.Answers(ws.ApplicationForm, a.Responses),
		})
	}

	var preview bytes.Buffer
	if err := forms.RenderPreview(&preview, ws.ApplicationForm, ws.FormColor); err != nil {
		h.log.Error("form preview failed", zap.String("workshop_id", ws.ID), zap.Error(err))
	}
	h.render(w, r, http.StatusOK, "manage.html", map[string]any{
		"Workshop":     ws,
		"Preview":      template.HTML(preview.String()),
		"Applications": reviewed,
	})
}

// HandleDecision approves or rejects from the management page.
func (h *PageHandler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	v := access.FromContext(r.Context())
	id := chi.URLParam(r, "id")

	var (
		app models.Application
		err error
	)
	switch chi.URLParam(r, "decision") {
	case "approve":
		app, err = h.applications.Approve(r.Context(), v, id)
	case "reject":
		app, err = h.applications.Reject(r.Context(), v, id)
	default:
		http.NotFound(w, r)
		return
	}
	switch {
	case err == nil:
		http.Redirect(w, r, "/master/workshops/"+app.WorkshopID, http.StatusSeeOther)
	case apperr.Is(err, apperr.KindConflict), apperr.Is(err, apperr.KindStore):
		http.Error(w, apperr.PublicMessage(err), httpStatus(err))
	default:
		h.redirect(w, r, err)
	}
}

func (h *PageHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login.html", map[string]any{
		"Next":    safeNext(r.URL.Query().Get("next")),
		"Discord": h.discordLogin,
		"Email":   "",
		"Error":   "",
	})
}

func (h *PageHandler) HandleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	next := safeNext(r.PostForm.Get("next"))
	account, err := h.accounts.Login(r.Context(), r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		h.render(w, r, httpStatus(err), "login.html", map[string]any{
			"Next":    next,
			"Discord": h.discordLogin,
			"Email":   r.PostForm.Get("email"),
			"Error":   apperr.PublicMessage(err),
		})
		return
	}
	cookie, err := h.sessions.SessionCookie(account.ID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &cookie)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *PageHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	gone := auth.ExpiredCookie()
	http.SetCookie(w, &gone)
	http.Redirect(w, r, "/workshops", http.StatusSeeOther)
}

// answer formats one stored response for the review page.
func answer(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, answer(p))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}

// safeNext keeps post-login redirects on this site. Browsers read a
// backslash like a slash, so "/\host" is as foreign as "//host".
func safeNext(next string) string {
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" ||
		!strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") ||
		strings.ContainsRune(next, '\\') {
		return "/workshops"
	}
	return next
}
