// Package response writes the JSON envelopes of the wizard API.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shashiranjanraj/lister/pkg/errs"
	"github.com/shashiranjanraj/lister/pkg/logger"
)

type envelope struct {
	Status          int            `json:"status"`
	Message         string         `json:"message,omitempty"`
	Code            errs.Code      `json:"code,omitempty"`
	Data            any            `json:"data,omitempty"`
	Errors          any            `json:"errors,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
	UpgradeRequired bool           `json:"upgradeRequired,omitempty"`
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

// JSON writes v as-is, without the envelope.
func JSON(w http.ResponseWriter, status int, v any) {
	write(w, status, v)
}

// Success sends a 200 JSON response with data.
func Success(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, envelope{Status: http.StatusOK, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, envelope{Status: http.StatusCreated, Data: data})
}

// NoContent sends a bare 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error sends a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, envelope{Status: status, Message: message})
}

// Fail maps err to its status through its errs code. Only limit_reached
// sets upgradeRequired; internal errors are logged and never echoed.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	status := errs.HTTPStatus(code)
	body := envelope{Status: status, Code: code}

	var ae *errs.AppError
	if code != errs.CodeInternal && errors.As(err, &ae) {
		body.Message = ae.Message
		body.Meta = ae.Meta
	} else {
		logger.WithCtx(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		body.Message = "Internal server error"
	}

	switch code {
	case errs.CodeValidation:
		if field, ok := body.Meta["field"].(string); ok {
			body.Errors = map[string]string{field: body.Message}
		}
	case errs.CodeLimitReached:
		body.UpgradeRequired = true
	}

	write(w, status, body)
}

// ValidationError sends a 422 with a field-level error map.
func ValidationError(w http.ResponseWriter, fields map[string]string) {
	write(w, http.StatusUnprocessableEntity, envelope{
		Status:  http.StatusUnprocessableEntity,
		Code:    errs.CodeValidation,
		Message: "Validation failed",
		Errors:  fields,
	})
}

// HTML writes a complete HTML document.
func HTML(w http.ResponseWriter, status int, doc string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(doc))
}

// Attachment sends body as a download named filename.
func Attachment(w http.ResponseWriter, filename, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", strconv.Quote(filename)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Unauthorized sends a 401.
func Unauthorized(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, "Unauthorized")
}

// NotFound sends a 404.
func NotFound(w http.ResponseWriter) {
	Error(w, http.StatusNotFound, "Not found")
}

// TooManyRequests sends a 429.
func TooManyRequests(w http.ResponseWriter) {
	Error(w, http.StatusTooManyRequests, "Too many requests")
}
