package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/shashiranjanraj/lister/app/models"
	"github.com/shashiranjanraj/lister/app/remote"
	"github.com/shashiranjanraj/lister/app/services"
	"github.com/shashiranjanraj/lister/pkg/response"
)

type WizardController struct {
	wizard *services.Wizard
}

func NewWizardController(wizard *services.Wizard) *WizardController {
	return &WizardController{wizard: wizard}
}

type stepInput struct {
	Step *int `json:"step" validate:"required,min=0,max=5"`
}

type advanceInput struct {
	Step  *int                `json:"step" validate:"required,min=0,max=5"`
	Patch models.ProjectPatch `json:"patch"`
}

type extractInput struct {
	URL string `json:"url" validate:"required,http_url"`
}

type seoInput struct {
	UseWebContext bool `json:"useWebContext"`
}

// Enter POST /api/wizard/enter
func (c *WizardController) Enter(w http.ResponseWriter, r *http.Request) {
	sess, err := c.wizard.Enter(r.Context(), userID(r))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Success(w, sess)
}

// Show GET /api/wizard
func (c *WizardController) Show(w http.ResponseWriter, r *http.Request) {
	sess, err := c.wizard.State(r.Context(), userID(r))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Success(w, sess)
}

// Advance POST /api/wizard/advance
func (c *WizardController) Advance(w http.ResponseWriter, r *http.Request) {
	var in advanceInput
	if !decode(w, r, &in) {
		return
	}
	sess, err := c.wizard.Advance(r.Context(), userID(r), models.Step(*in.Step), in.Patch)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Success(w, sess)
}

// Back POST /api/wizard/back
func (c *WizardController) Back(w http.ResponseWriter, r *http.Request) {
	var in stepInput
	if !decode(w, r, &in) {
		return
	}
	sess, err := c.wizard.GoBack(r.Context(), userID(r), models.Step(*in.Step))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Success(w, sess)
}

// Skip POST /api/wizard/skip
func (c *WizardController) Skip(w http.ResponseWriter, r *http.Request) {
	sess, err := c.wizard.Skip(r.Context(), userID(r))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Success(w, sess)
}

// Complete POST /api/wizard/complete
func (c *WizardController) Complete(w http.ResponseWriter, r *http.Request) {
	sess, err := c.wizard.Complete(r.Context(), userID(r))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Success(w, sess)
}

// Extract POST /api/wizard/extract
func (c *WizardController) Extract(w http.ResponseWriter, r *http.Request) {
	var in extractInput
	if !decode(w, r, &in) {
		return
	}
	sess, data, err := c.wizard.ExtractProduct(r.Context(), userID(r), in.URL)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Success(w, map[string]any{"session": sess, "extracted": data})
}

// SEO POST /api/wizard/seo
func (c *WizardController) SEO(w http.ResponseWriter, r *http.Request) {
	var in seoInput
	if !decode(w, r, &in) {
		return
	}
	sess, explanation, err := c.wizard.OptimizeSEO(r.Context(), userID(r), in.UseWebContext)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Success(w, map[string]any{"session": sess, "explanation": explanation})
}

// UploadImage POST /api/wizard/images (multipart, field "file")
func (c *WizardController) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, remote.MaxImageBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(w, http.StatusRequestEntityTooLarge, "image is too large")
			return
		}
		response.Error(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		response.ValidationError(w, map[string]string{"file": "this field is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, remote.MaxImageBytes+1))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "could not read upload")
		return
	}

	sess, err := c.wizard.UploadImage(r.Context(), userID(r), header.Filename, data)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Success(w, sess)
}

// Preview GET /api/wizard/preview
func (c *WizardController) Preview(w http.ResponseWriter, r *http.Request) {
	html, err := c.wizard.Preview(r.Context(), userID(r))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.HTML(w, http.StatusOK, html)
}
