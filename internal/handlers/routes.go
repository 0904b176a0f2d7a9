package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/gdg-garage/garage-workshops/internal/auth"
	"github.com/gdg-garage/garage-workshops/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Accounts     *AccountHandler
	Workshops    *WorkshopHandler
	Forms        *FormHandler
	Applications *ApplicationHandler
	Pages        *PageHandler
	Files        *FileHandler
}

type Options struct {
	// AllowedOrigin enables CORS for that origin when set.
	AllowedOrigin string
	DiscordLogin  bool
}

func secured(o *huma.Operation) {
	o.Security = []map[string][]string{{"cookieAuth": {}}}
}

func RegisterRoutes(r *chi.Mux, authHandler *auth.AuthHandler, h Handlers, opts Options) huma.API {
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Instrument)
	if opts.AllowedOrigin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{opts.AllowedOrigin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(authHandler.AuthMiddleware)

	// Initialize Huma API
	config := huma.DefaultConfig("Garage Workshops API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.CookieName,
		},
	}
	api := humachi.New(r, config)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/storage/buckets/{bucket}/files/{id}/view", h.Files.HandleView)

	// Auth routes
	if opts.DiscordLogin {
		r.Get("/auth/discord/login", authHandler.HandleDiscordLogin)
		r.Get("/auth/discord/callback", authHandler.HandleDiscordCallback)
	}
	huma.Post(api, "/api/auth/register", h.Accounts.HandleRegister)
	huma.Post(api, "/api/auth/login", h.Accounts.HandleLogin)
	huma.Post(api, "/api/auth/logout", h.Accounts.HandleLogout)
	huma.Get(api, "/api/auth/me", h.Accounts.HandleMe, secured)
	huma.Put(api, "/api/auth/profile", h.Accounts.HandleUpdateProfile, secured)

	// Workshops
	huma.Get(api, "/api/workshops", h.Workshops.HandleList)
	huma.Get(api, "/api/workshops/search", h.Workshops.HandleSearch)
	huma.Get(api, "/api/workshops/{id}", h.Workshops.HandleGet)
	huma.Post(api, "/api/workshops", h.Workshops.HandleCreate, secured)
	huma.Put(api, "/api/workshops/{id}", h.Workshops.HandleUpdate, secured)
	huma.Post(api, "/api/workshops/{id}/publish", h.Workshops.HandlePublish, secured)
	huma.Post(api, "/api/workshops/{id}/unpublish", h.Workshops.HandleUnpublish, secured)
	huma.Post(api, "/api/workshops/{id}/cancel", h.Workshops.HandleCancel, secured)
	huma.Delete(api, "/api/workshops/{id}", h.Workshops.HandleDelete, secured)
	huma.Post(api, "/api/workshops/{id}/image", h.Workshops.HandleImage, secured)

	// Form builder
	huma.Post(api, "/api/workshops/{id}/form/fields", h.Forms.HandleAddField, secured)
	huma.Patch(api, "/api/workshops/{id}/form/fields/{index}", h.Forms.HandleUpdateField, secured)
	huma.Delete(api, "/api/workshops/{id}/form/fields/{index}", h.Forms.HandleRemoveField, secured)
	huma.Post(api, "/api/workshops/{id}/form/reorder", h.Forms.HandleReorder, secured)
	huma.Post(api, "/api/workshops/{id}/form/fields/{index}/options", h.Forms.HandleAddOption, secured)
	huma.Put(api, "/api/workshops/{id}/form/fields/{index}/options/{opt}", h.Forms.HandleUpdateOption, secured)
	huma.Delete(api, "/api/workshops/{id}/form/fields/{index}/options/{opt}", h.Forms.HandleRemoveOption, secured)

	// Applications
	huma.Post(api, "/api/workshops/{id}/applications", h.Applications.HandleApply, secured)
	huma.Get(api, "/api/workshops/{id}/applications", h.Applications.HandleListByWorkshop, secured)
	huma.Post(api, "/api/applications/{id}/approve", h.Applications.HandleApprove, secured)
	huma.Post(api, "/api/applications/{id}/reject", h.Applications.HandleReject, secured)
	huma.Delete(api, "/api/applications/{id}", h.Applications.HandleDelete, secured)

	// Dashboards
	huma.Get(api, "/api/master/dashboard", h.Workshops.HandleDashboard, secured)
	huma.Get(api, "/api/master/workshops", h.Workshops.HandleMine, secured)
	huma.Get(api, "/api/student/dashboard", h.Applications.HandleDashboard, secured)
	huma.Get(api, "/api/student/applications", h.Applications.HandleMine, secured)

	// Pages
	r.Get("/", h.Pages.HandleIndex)
	r.Get("/login", h.Pages.HandleLoginForm)
	r.Post("/login", h.Pages.HandleLoginSubmit)
	r.Post("/logout", h.Pages.HandleLogout)
	r.Get("/workshops", h.Pages.HandleWorkshops)
	r.Get("/workshops/{id}", h.Pages.HandleWorkshop)
	r.Get("/workshops/{id}/apply", h.Pages.HandleApplyForm)
	r.Post("/workshops/{id}/apply", h.Pages.HandleApplySubmit)
	r.Get("/master/workshops/{id}", h.Pages.HandleManage)
	r.Post("/master/applications/{id}/{decision}", h.Pages.HandleDecision)

	return api
}
