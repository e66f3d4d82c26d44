// Package routes declares every HTTP endpoint of the service.
package routes

import (
	"net/http"
	"strings"

	"github.com/shashiranjanraj/lister/app/controllers"
	"github.com/shashiranjanraj/lister/app/edge"
	"github.com/shashiranjanraj/lister/app/services"
	"github.com/shashiranjanraj/lister/pkg/metrics"
	"github.com/shashiranjanraj/lister/pkg/middleware"
	"github.com/shashiranjanraj/lister/pkg/response"
	"github.com/shashiranjanraj/lister/pkg/router"
)

// Deps are the handlers' collaborators. Edge and Files are optional.
type Deps struct {
	Wizard   *services.Wizard
	Projects *services.ProjectService
	Usage    *services.UsageService
	Edge     *edge.Handler

	// Files serves the local storage disk under /storage/.
	Files http.Handler

	// UserLimit runs after authentication.
	UserLimit router.Middleware
}

func RegisterAPI(r *router.Router, d Deps) {
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/health", "health", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", "metrics", metrics.Handler())
	if d.Files != nil {
		r.Handle("/storage/*", "storage", http.StripPrefix("/storage/", d.Files))
	}

	api := r.Group("/api")
	if d.Edge != nil {
		d.Edge.Register(api)
	}

	authed := []router.Middleware{middleware.Identity}
	if d.UserLimit != nil {
		authed = append(authed, d.UserLimit)
	}
	protected := api.Group("", authed...)

	wizard := controllers.NewWizardController(d.Wizard)
	wg := protected.Group("/wizard")
	wg.Get("/", "wizard.show", wizard.Show)
	wg.Post("/enter", "wizard.enter", wizard.Enter)
	wg.Post("/advance", "wizard.advance", wizard.Advance)
	wg.Post("/back", "wizard.back", wizard.Back)
	wg.Post("/skip", "wizard.skip", wizard.Skip)
	wg.Post("/complete", "wizard.complete", wizard.Complete)
	wg.Post("/extract", "wizard.extract", wizard.Extract)
	wg.Post("/seo", "wizard.seo", wizard.SEO)
	wg.Post("/images", "wizard.images", wizard.UploadImage)
	wg.Get("/preview", "wizard.preview", wizard.Preview)

	projects := controllers.NewProjectController(d.Projects)
	pg := protected.Group("/projects")
	pg.Get("/", "projects.index", projects.Index)
	pg.Get("/{id}", "projects.show", projects.Show)
	pg.Delete("/{id}", "projects.destroy", projects.Destroy)
	pg.Get("/{id}/export", "projects.export", projects.Export)

	usage := controllers.NewUsageController(d.Usage)
	protected.Get("/usage", "usage.show", usage.Show)
	protected.Post("/subscription", "subscription.update", usage.Subscribe)
}

// notFound keeps the proxy's JSON contract for anything under /api.
func notFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api" {
		edge.NotFound(w, r)
		return
	}
	response.NotFound(w)
}
