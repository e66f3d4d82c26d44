package edge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/lister/pkg/cache"
	"github.com/shashiranjanraj/lister/pkg/router"
	"github.com/shashiranjanraj/lister/pkg/workerpool"
)

type fakeBackend struct {
	text        func(TextRequest) (string, error)
	contentHits atomic.Int32
	screenshot  func(ctx context.Context) ([]byte, error)
}

func (f *fakeBackend) Text(_ context.Context, req TextRequest) (string, error) {
	if f.text == nil {
		return "ok: " + req.Prompt, nil
	}
	return f.text(req)
}

func (f *fakeBackend) GenerateImage(context.Context, string) ([]byte, error) {
	return []byte("\x89PNG"), nil
}

func (f *fakeBackend) DescribeImage(context.Context, []byte, string) (string, error) {
	return "A red enamel kettle", nil
}

func (f *fakeBackend) Screenshot(ctx context.Context, _ string, _ bool) ([]byte, error) {
	if f.screenshot != nil {
		return f.screenshot(ctx)
	}
	return []byte("\x89PNG-shot"), nil
}

func (f *fakeBackend) Scrape(context.Context, string, string) ([]string, error) {
	return []string{"Kettle", "$20"}, nil
}

func (f *fakeBackend) Links(context.Context, string) ([]string, error) {
	return []string{"https://a.test", "https://a.test", " "}, nil
}

func (f *fakeBackend) Content(context.Context, string) (string, error) {
	f.contentHits.Add(1)
	return "<html><head><title>Kettle</title><script>x()</script></head><body><p>Enamel  kettle</p><p>1.5L</p></body></html>", nil
}

func setup(t *testing.T, b Backend, pool *workerpool.Pool) http.Handler {
	t.Helper()
	if pool == nil {
		pool = workerpool.New(2)
		t.Cleanup(pool.Shutdown)
	}
	r := router.New()
	r.NotFound(NotFound)
	NewHandler(b, pool, cache.NewMemory(), time.Minute).Register(r.Group("/api"))
	return r.Handler()
}

func post(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestLLM(t *testing.T) {
	h := setup(t, &fakeBackend{}, nil)

	rec, out := post(t, h, "/api/llm", `{"prompt":"hello"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "response": "ok: hello"}, out)

	rec, out = post(t, h, "/api/llm", `{"prompt":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Prompt is required", out["error"])
}

func TestBackendFailureIs500(t *testing.T) {
	h := setup(t, &fakeBackend{text: func(TextRequest) (string, error) {
		return "", errors.New("model overloaded")
	}}, nil)

	rec, out := post(t, h, "/api/llm", `{"prompt":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "error": "model overloaded"}, out)
}

func TestBackendPanicIs500(t *testing.T) {
	h := setup(t, &fakeBackend{
		text: func(TextRequest) (string, error) { panic("nil model") },
		screenshot: func(context.Context) ([]byte, error) {
			panic("browser crashed")
		},
	}, nil)

	rec, out := post(t, h, "/api/llm", `{"prompt":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "nil model")
	assert.Len(t, out, 2)

	rec, out = post(t, h, "/api/screenshot", `{"url":"https://shop.test/item"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "browser crashed")
}

func TestUnknownEndpoint(t *testing.T) {
	h := setup(t, &fakeBackend{}, nil)

	rec, out := post(t, h, "/api/teleport", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]any{"error": "API endpoint not found"}, out)
}

func TestScreenshotReturnsPNG(t *testing.T) {
	h := setup(t, &fakeBackend{}, nil)

	rec, _ := post(t, h, "/api/screenshot", `{"url":"https://shop.test"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG-shot", rec.Body.String())

	rec, _ = post(t, h, "/api/screenshot", `{"url":"javascript:alert(1)"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaturatedPoolIs503(t *testing.T) {
	pool := workerpool.New(1)
	release := make(chan struct{})
	started := make(chan struct{})
	t.Cleanup(func() {
		close(release)
		pool.Shutdown()
	})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, pool.Submit(func() { <-release }))

	h := setup(t, &fakeBackend{}, pool)
	rec, out := post(t, h, "/api/screenshot", `{"url":"https://shop.test"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, out["success"])
}

func TestExtractContentIsCached(t *testing.T) {
	b := &fakeBackend{}
	h := setup(t, b, nil)

	for range 2 {
		rec, out := post(t, h, "/api/extract-content", `{"url":"https://shop.test/kettle"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Kettle\nEnamel kettle\n1.5L", out["content"])
	}
	assert.Equal(t, int32(1), b.contentHits.Load())
}

func TestExtractLinksAndScrape(t *testing.T) {
	h := setup(t, &fakeBackend{}, nil)

	_, out := post(t, h, "/api/extract-links", `{"url":"https://shop.test"}`)
	assert.Equal(t, []any{"https://a.test"}, out["links"])

	rec, out := post(t, h, "/api/scrape", `{"url":"https://shop.test","selector":"h1, .price"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Kettle\n$20", out["content"])

	rec, _ = post(t, h, "/api/scrape", `{"url":"https://shop.test"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractFileData(t *testing.T) {
	var prompt string
	h := setup(t, &fakeBackend{text: func(req TextRequest) (string, error) {
		prompt = req.Prompt
		return "```json\n{\"title\":\"Red Kettle\",\"features\":[\"Enamel\",\"\"]}\n```", nil
	}}, nil)

	body := `{"fileName":"kettle.jpg","mimeType":"image/jpeg","data":"` +
		base64.StdEncoding.EncodeToString([]byte("jpeg")) + `"}`
	rec, out := post(t, h, "/api/extract-file-data", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"title": "Red Kettle", "features": []any{"Enamel"}}, out["data"])
	assert.Contains(t, prompt, "A red enamel kettle")

	rec, _ = post(t, h, "/api/extract-file-data", `{"fileName":"x.bin","mimeType":"application/zip","data":"AAAA"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = post(t, h, "/api/extract-file-data", `{"fileName":"x.txt","mimeType":"text/plain","data":"%%%"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateImage(t *testing.T) {
	h := setup(t, &fakeBackend{}, nil)
	_, out := post(t, h, "/api/generate-image", `{"prompt":"kettle on a table"}`)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("\x89PNG")), out["image"])
}
