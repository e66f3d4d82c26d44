package edge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/shashiranjanraj/lister/app/remote"
	"github.com/shashiranjanraj/lister/pkg/cache"
	"github.com/shashiranjanraj/lister/pkg/logger"
	"github.com/shashiranjanraj/lister/pkg/response"
	"github.com/shashiranjanraj/lister/pkg/router"
	"github.com/shashiranjanraj/lister/pkg/workerpool"
)

const (
	maxRequestBytes = 16 << 20
	maxFileBytes    = 10 << 20
)

// Handler serves the proxy endpoints. Browser work runs on pool; page
// content and link lists are cached per URL.
type Handler struct {
	backend Backend
	pool    *workerpool.Pool
	cache   cache.Store
	ttl     time.Duration
}

func NewHandler(backend Backend, pool *workerpool.Pool, store cache.Store, ttl time.Duration) *Handler {
	return &Handler{backend: backend, pool: pool, cache: store, ttl: ttl}
}

// Register mounts the endpoints on g, which is expected to be "/api".
func (h *Handler) Register(g *router.Group) {
	g.Post("/llm", "edge.llm", h.wrap(h.llm))
	g.Post("/generate-image", "edge.generate-image", h.wrap(h.generateImage))
	g.Post("/screenshot", "edge.screenshot", h.wrap(h.screenshot))
	g.Post("/scrape", "edge.scrape", h.wrap(h.scrape))
	g.Post("/extract-links", "edge.extract-links", h.wrap(h.extractLinks))
	g.Post("/extract-content", "edge.extract-content", h.wrap(h.extractContent))
	g.Post("/extract-file-data", "edge.extract-file-data", h.wrap(h.extractFileData))
}

// NotFound answers unknown /api paths.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusNotFound, map[string]string{"error": "API endpoint not found"})
}

// badRequest marks caller mistakes, answered with 400.
type badRequest string

func (e badRequest) Error() string { return string(e) }

type endpoint func(w http.ResponseWriter, r *http.Request) error

func (h *Handler) wrap(fn endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := callEndpoint(fn, w, r)
		if err == nil {
			return
		}

		status := http.StatusInternalServerError
		var bad badRequest
		switch {
		case errors.As(err, &bad):
			status = http.StatusBadRequest
		case errors.Is(err, workerpool.ErrPoolFull), errors.Is(err, workerpool.ErrPoolClosed):
			status = http.StatusServiceUnavailable
		}
		if status != http.StatusBadRequest {
			logger.WithCtx(r.Context()).Error("edge: request failed", "path", r.URL.Path, "status", status, "error", err)
		}
		response.JSON(w, status, map[string]any{"success": false, "error": err.Error()})
	}
}

// callEndpoint runs fn and turns a panic into an error, so clients always get the
// proxy's own error body.
func callEndpoint(fn endpoint, w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			logger.WithCtx(r.Context()).Error("edge: panic recovered",
				"path", r.URL.Path, "error", fmt.Sprintf("%v", v), "stack", string(debug.Stack()))
			err = fmt.Errorf("internal error: %v", v)
		}
	}()
	return fn(w, r)
}

func ok(w http.ResponseWriter, fields map[string]any) error {
	fields["success"] = true
	response.JSON(w, http.StatusOK, fields)
	return nil
}

func decode(r *http.Request, dest any) error {
	body := io.LimitReader(r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		return badRequest("invalid JSON body")
	}
	return nil
}

func pageURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", badRequest("URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", badRequest("URL must be an absolute http(s) URL")
	}
	return raw, nil
}

// browse runs fn on the browser pool.
func (h *Handler) browse(ctx context.Context, fn func(context.Context) error) error {
	return h.pool.Run(ctx, fn)
}

func unique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// ─── AI ─────────────────────────────────────────────────────────────────────

func (h *Handler) llm(w http.ResponseWriter, r *http.Request) error {
	var in struct {
		Prompt    string `json:"prompt"`
		System    string `json:"system"`
		Model     string `json:"model"`
		MaxTokens int    `json:"maxTokens"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return badRequest("Prompt is required")
	}

	out, err := h.backend.Text(r.Context(), TextRequest{
		System: in.System, Prompt: in.Prompt, Model: in.Model, MaxTokens: in.MaxTokens,
	})
	if err != nil {
		return err
	}
	return ok(w, map[string]any{"response": out})
}

func (h *Handler) generateImage(w http.ResponseWriter, r *http.Request) error {
	var in struct {
		Prompt string `json:"prompt"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return badRequest("Prompt is required")
	}

	img, err := h.backend.GenerateImage(r.Context(), in.Prompt)
	if err != nil {
		return err
	}
	return ok(w, map[string]any{"image": base64.StdEncoding.EncodeToString(img)})
}

// ─── Browser ────────────────────────────────────────────────────────────────

func (h *Handler) screenshot(w http.ResponseWriter, r *http.Request) error {
	var in struct {
		URL      string `json:"url"`
		FullPage *bool  `json:"fullPage"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	target, err := pageURL(in.URL)
	if err != nil {
		return err
	}
	fullPage := in.FullPage == nil || *in.FullPage

	var png []byte
	err = h.browse(r.Context(), func(ctx context.Context) (err error) {
		png, err = h.backend.Screenshot(ctx, target, fullPage)
		return err
	})
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", fmt.Sprint(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
	return nil
}

func (h *Handler) scrape(w http.ResponseWriter, r *http.Request) error {
	var in struct {
		URL      string `json:"url"`
		Selector string `json:"selector"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	target, err := pageURL(in.URL)
	if err != nil {
		return err
	}
	if strings.TrimSpace(in.Selector) == "" {
		return badRequest("URL and selector are required")
	}

	var texts []string
	err = h.browse(r.Context(), func(ctx context.Context) (err error) {
		texts, err = h.backend.Scrape(ctx, target, in.Selector)
		return err
	})
	if err != nil {
		return err
	}
	return ok(w, map[string]any{"content": strings.Join(texts, "\n")})
}

func (h *Handler) extractLinks(w http.ResponseWriter, r *http.Request) error {
	var in struct {
		URL string `json:"url"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	target, err := pageURL(in.URL)
	if err != nil {
		return err
	}

	links, err := cache.Remember(r.Context(), h.cache, "edge:links:"+target, h.ttl, func() ([]string, error) {
		var links []string
		err := h.browse(r.Context(), func(ctx context.Context) (err error) {
			links, err = h.backend.Links(ctx, target)
			return err
		})
		return unique(remote.Clean(links)), err
	})
	if err != nil {
		return err
	}
	return ok(w, map[string]any{"links": links})
}

func (h *Handler) extractContent(w http.ResponseWriter, r *http.Request) error {
	var in struct {
		URL string `json:"url"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	target, err := pageURL(in.URL)
	if err != nil {
		return err
	}

	content, err := h.pageText(r.Context(), target)
	if err != nil {
		return err
	}
	return ok(w, map[string]any{"content": content})
}

func (h *Handler) pageText(ctx context.Context, target string) (string, error) {
	return cache.Remember(ctx, h.cache, "edge:content:"+target, h.ttl, func() (string, error) {
		var doc string
		err := h.browse(ctx, func(ctx context.Context) (err error) {
			doc, err = h.backend.Content(ctx, target)
			return err
		})
		if err != nil {
			return "", err
		}
		return PageText(doc), nil
	})
}

// ─── Files ──────────────────────────────────────────────────────────────────

const describePrompt = "Describe the product in this image for a marketplace listing: " +
	"what it is, brand and model if visible, material, colour and notable features."

func (h *Handler) extractFileData(w http.ResponseWriter, r *http.Request) error {
	var in struct {
		FileName string `json:"fileName"`
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	if in.Data == "" || in.MimeType == "" {
		return badRequest("fileName, mimeType and data are required")
	}
	raw, err := base64.StdEncoding.DecodeString(in.Data)
	if err != nil {
		return badRequest("data must be base64 encoded")
	}
	if len(raw) > maxFileBytes {
		return badRequest(fmt.Sprintf("file exceeds %d bytes", maxFileBytes))
	}

	var text string
	switch mime := strings.ToLower(in.MimeType); {
	case strings.HasPrefix(mime, "image/"):
		text, err = h.backend.DescribeImage(r.Context(), raw, describePrompt)
		if err != nil {
			return err
		}
	case mime == "text/html":
		text = PageText(string(raw))
	case strings.HasPrefix(mime, "text/"), mime == "application/json", mime == "application/xml":
		text = string(raw)
	default:
		return badRequest("unsupported file type " + in.MimeType)
	}
	if strings.TrimSpace(text) == "" {
		return badRequest("file has no readable content")
	}

	answer, err := h.backend.Text(r.Context(), TextRequest{
		System:    remote.ExtractSystemPrompt,
		Prompt:    remote.ExtractPrompt(in.FileName, text),
		MaxTokens: 1024,
	})
	if err != nil {
		return err
	}

	var data remote.ProductData
	if err := remote.DecodeModelJSON(answer, &data); err != nil {
		return fmt.Errorf("could not read model answer: %w", err)
	}
	data.Features = remote.Clean(data.Features)
	return ok(w, map[string]any{"data": data})
}
