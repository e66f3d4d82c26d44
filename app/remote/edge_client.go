package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	lhttp "github.com/shashiranjanraj/lister/pkg/http"
	"github.com/shashiranjanraj/lister/pkg/logger"
	"github.com/shashiranjanraj/lister/pkg/metrics"
	"github.com/shashiranjanraj/lister/pkg/storage"
)

// MaxImageBytes is the largest upload UploadImage accepts.
const MaxImageBytes = 10 << 20

// EdgeClient talks to the edge proxy (/api/llm, /api/extract-content, ...)
// and stores uploaded images on a storage disk.
type EdgeClient struct {
	base    string
	timeout time.Duration
	retries int
	disk    storage.Disk
	newID   func() string
}

// NewEdgeClient targets the proxy at base. Every call is bounded by timeout.
func NewEdgeClient(base string, timeout time.Duration, disk storage.Disk) *EdgeClient {
	return &EdgeClient{
		base:    strings.TrimRight(base, "/"),
		timeout: timeout,
		retries: 2,
		disk:    disk,
		newID:   uuid.NewString,
	}
}

// WithRetries sets the total attempts per call (1 = no retry).
func (c *EdgeClient) WithRetries(n int) *EdgeClient {
	c.retries = n
	return c
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// call POSTs body to /api/{endpoint} and decodes the JSON answer into out.
func (c *EdgeClient) call(ctx context.Context, endpoint string, body, out any) (err error) {
	defer metrics.ObserveRemote(endpoint, time.Now(), &err)

	resp, err := lhttp.Post(ctx, c.base+"/api/"+endpoint).
		Body(body).
		Timeout(c.timeout).
		Retry(c.retries, 250*time.Millisecond).
		Send()
	if err != nil {
		return fail(endpoint, "request failed", err)
	}

	var env envelope
	_ = resp.JSON(&env)
	if err := resp.Throw(); err != nil {
		if env.Error != "" {
			return fail(endpoint, env.Error, err)
		}
		return fail(endpoint, "unexpected status", err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "service reported failure"
		}
		return fail(endpoint, msg, nil)
	}
	if out != nil {
		if err := resp.JSON(out); err != nil {
			return fail(endpoint, "malformed response", err)
		}
	}
	return nil
}

func (c *EdgeClient) llm(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	var out struct {
		Response string `json:"response"`
	}
	err := c.call(ctx, "llm", map[string]any{
		"system":    system,
		"prompt":    prompt,
		"maxTokens": maxTokens,
	}, &out)
	return out.Response, err
}

func (c *EdgeClient) ExtractPageContent(ctx context.Context, url string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	if err := c.call(ctx, "extract-content", map[string]string{"url": url}, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

func (c *EdgeClient) ExtractLinks(ctx context.Context, url string) ([]string, error) {
	var out struct {
		Links []string `json:"links"`
	}
	if err := c.call(ctx, "extract-links", map[string]string{"url": url}, &out); err != nil {
		return nil, err
	}
	return out.Links, nil
}

func (c *EdgeClient) ScrapeContent(ctx context.Context, url, selector string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	err := c.call(ctx, "scrape", map[string]string{"url": url, "selector": selector}, &out)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// ExtractProductData reads the page text and asks the language model to
// structure it.
func (c *EdgeClient) ExtractProductData(ctx context.Context, url string) (ProductData, error) {
	content, err := c.ExtractPageContent(ctx, url)
	if err != nil {
		return ProductData{}, err
	}
	if strings.TrimSpace(content) == "" {
		return ProductData{}, fail("extract", "page has no readable content", nil)
	}

	answer, err := c.llm(ctx, ExtractSystemPrompt, ExtractPrompt(url, content), 1024)
	if err != nil {
		return ProductData{}, err
	}

	var data ProductData
	if err := DecodeModelJSON(answer, &data); err != nil {
		return ProductData{}, fail("extract", "could not read model answer", err)
	}
	data.Title = strings.TrimSpace(data.Title)
	data.Description = strings.TrimSpace(data.Description)
	data.Features = Clean(data.Features)
	return data, nil
}

// OptimizeSEO asks the language model for keywords and highlights. With
// UseWebContext the source page's text is added to the prompt; when that
// page cannot be read the suggestion is made without it.
func (c *EdgeClient) OptimizeSEO(ctx context.Context, title, plainDescription string, opts SEOOptions) (SEOResult, error) {
	var pageContext string
	if opts.UseWebContext && opts.SourceURL != "" {
		content, err := c.ExtractPageContent(ctx, opts.SourceURL)
		if err != nil {
			logger.WithCtx(ctx).Warn("seo: page context unavailable", "url", opts.SourceURL, "error", err)
		} else {
			pageContext = content
		}
	}

	answer, err := c.llm(ctx, seoSystemPrompt, SEOPrompt(title, plainDescription, pageContext), 768)
	if err != nil {
		return SEOResult{}, err
	}

	var res SEOResult
	if err := DecodeModelJSON(answer, &res); err != nil {
		return SEOResult{}, fail("seo", "could not read model answer", err)
	}
	res.Keywords = Clean(res.Keywords)
	res.Highlights = Clean(res.Highlights)
	if len(res.Keywords) == 0 {
		return SEOResult{}, fail("seo", "model returned no keywords", nil)
	}
	return res, nil
}

// TakeScreenshot returns the PNG of a full-page capture.
func (c *EdgeClient) TakeScreenshot(ctx context.Context, url string) (png []byte, err error) {
	defer metrics.ObserveRemote("screenshot", time.Now(), &err)

	resp, err := lhttp.Post(ctx, c.base+"/api/screenshot").
		Header("Accept", "image/png").
		Body(map[string]any{"url": url, "fullPage": true}).
		Timeout(c.timeout).
		Retry(c.retries, 250*time.Millisecond).
		Send()
	if err != nil {
		return nil, fail("screenshot", "request failed", err)
	}
	if err := resp.Throw(); err != nil {
		return nil, fail("screenshot", "unexpected status", err)
	}
	if ct := resp.Header("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fail("screenshot", "unexpected content type "+ct, nil)
	}
	return resp.Raw, nil
}

// UploadImage stores an image on the disk under uploads/ and returns its
// public URL.
func (c *EdgeClient) UploadImage(ctx context.Context, name string, data []byte) (res UploadResult, err error) {
	defer metrics.ObserveRemote("upload", time.Now(), &err)

	if len(data) == 0 {
		return UploadResult{}, fail("upload", "empty file", nil)
	}
	if len(data) > MaxImageBytes {
		return UploadResult{}, fail("upload", fmt.Sprintf("file exceeds %d bytes", MaxImageBytes), nil)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return UploadResult{}, fail("upload", "not an image: "+contentType, nil)
	}

	key := "uploads/" + c.newID() + imageExt(name, contentType)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.disk.Put(ctx, key, data); err != nil {
		return UploadResult{}, fail("upload", "storage write failed", err)
	}
	return UploadResult{URL: c.disk.URL(key)}, nil
}

// ExtractFileData asks the proxy to read product facts out of an uploaded
// document.
func (c *EdgeClient) ExtractFileData(ctx context.Context, fileName, mimeType string, data []byte) (ProductData, error) {
	var out struct {
		Data ProductData `json:"data"`
	}
	err := c.call(ctx, "extract-file-data", map[string]string{
		"fileName": fileName,
		"mimeType": mimeType,
		"data":     base64.StdEncoding.EncodeToString(data),
	}, &out)
	return out.Data, err
}

func imageExt(name, contentType string) string {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return ext
	}
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}
