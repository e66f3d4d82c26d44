package controllers

import (
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/lister/app/services"
	"github.com/shashiranjanraj/lister/pkg/response"
)

type ProjectController struct {
	projects *services.ProjectService
}

func NewProjectController(projects *services.ProjectService) *ProjectController {
	return &ProjectController{projects: projects}
}

// Index GET /api/projects
func (c *ProjectController) Index(w http.ResponseWriter, r *http.Request) {
	list, err := c.projects.List(r.Context(), userID(r))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Success(w, list)
}

// Show GET /api/projects/{id}
func (c *ProjectController) Show(w http.ResponseWriter, r *http.Request) {
	p, err := c.projects.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Success(w, p)
}

// Destroy DELETE /api/projects/{id}
func (c *ProjectController) Destroy(w http.ResponseWriter, r *http.Request) {
	if err := c.projects.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		response.Fail(w, r, err)
		return
	}
	response.NoContent(w)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Export GET /api/projects/{id}/export
func (c *ProjectController) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	html, err := c.projects.Export(r.Context(), userID(r), id)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Attachment(w, "listing-"+unsafeName.ReplaceAllString(id, "_")+".html", "text/html; charset=utf-8", []byte(html))
}
