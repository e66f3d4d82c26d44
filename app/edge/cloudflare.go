package edge

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	lhttp "github.com/shashiranjanraj/lister/pkg/http"
	"github.com/shashiranjanraj/lister/pkg/metrics"
)

// CloudflareOptions configures the Workers AI and Browser Rendering client.
type CloudflareOptions struct {
	APIBase     string
	AccountID   string
	APIToken    string
	TextModel   string
	ImageModel  string
	VisionModel string
	Timeout     time.Duration

	// RequestsPerSecond throttles outgoing API calls for the whole account.
	// Zero disables throttling.
	RequestsPerSecond float64
}

// Cloudflare implements Backend over the Cloudflare REST API.
type Cloudflare struct {
	opts     CloudflareOptions
	throttle *rate.Limiter
}

func NewCloudflare(opts CloudflareOptions) *Cloudflare {
	opts.APIBase = strings.TrimRight(opts.APIBase, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	c := &Cloudflare{opts: opts}
	if opts.RequestsPerSecond > 0 {
		burst := max(1, int(opts.RequestsPerSecond*2))
		c.throttle = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

type cfMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cfEnvelope[T any] struct {
	Success bool        `json:"success"`
	Errors  []cfMessage `json:"errors"`
	Result  T           `json:"result"`
}

func (e cfEnvelope[T]) err() error {
	if e.Success {
		return nil
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, m := range e.Errors {
		msgs = append(msgs, m.Message)
	}
	if len(msgs) == 0 {
		return fmt.Errorf("cloudflare: request unsuccessful")
	}
	return fmt.Errorf("cloudflare: %s", strings.Join(msgs, "; "))
}

func (c *Cloudflare) post(ctx context.Context, op, path string, body any) (resp *lhttp.Response, err error) {
	defer metrics.ObserveRemote("cloudflare."+op, time.Now(), &err)

	if c.opts.AccountID == "" || c.opts.APIToken == "" {
		return nil, ErrNotConfigured
	}
	if c.throttle != nil {
		if err = c.throttle.Wait(ctx); err != nil {
			return nil, fmt.Errorf("cloudflare %s: throttled: %w", op, err)
		}
	}
	url := c.opts.APIBase + "/accounts/" + c.opts.AccountID + path
	resp, err = lhttp.Post(ctx, url).
		Bearer(c.opts.APIToken).
		Body(body).
		Timeout(c.opts.Timeout).
		Retry(2, 500*time.Millisecond).
		Send()
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// call POSTs and decodes a JSON envelope, surfacing Cloudflare's messages.
func call[T any](ctx context.Context, c *Cloudflare, op, path string, body any) (T, error) {
	var env cfEnvelope[T]
	resp, err := c.post(ctx, op, path, body)
	if err != nil {
		return env.Result, err
	}
	if jerr := resp.JSON(&env); jerr != nil {
		if terr := resp.Throw(); terr != nil {
			return env.Result, terr
		}
		return env.Result, fmt.Errorf("cloudflare %s: %w", op, jerr)
	}
	if err := env.err(); err != nil {
		return env.Result, err
	}
	return env.Result, resp.Throw()
}

func (c *Cloudflare) Text(ctx context.Context, req TextRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.opts.TextModel
	}
	messages := []map[string]string{}
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	body := map[string]any{"messages": messages}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	out, err := call[struct {
		Response string `json:"response"`
	}](ctx, c, "text", "/ai/run/"+model, body)
	return out.Response, err
}

// GenerateImage accepts both model styles: raw PNG bodies and JSON with a
// base64 image.
func (c *Cloudflare) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := c.post(ctx, "image", "/ai/run/"+c.opts.ImageModel, map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}
	if err := resp.Throw(); err != nil {
		return nil, err
	}
	if strings.HasPrefix(resp.Header("Content-Type"), "image/") {
		return resp.Raw, nil
	}

	var env cfEnvelope[struct {
		Image string `json:"image"`
	}]
	if err := resp.JSON(&env); err != nil {
		return nil, err
	}
	if err := env.err(); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(env.Result.Image)
}

func (c *Cloudflare) DescribeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	// The vision models take the image as an array of byte values.
	pixels := make([]int, len(image))
	for i, b := range image {
		pixels[i] = int(b)
	}
	out, err := call[struct {
		Description string `json:"description"`
	}](ctx, c, "vision", "/ai/run/"+c.opts.VisionModel, map[string]any{
		"image":      pixels,
		"prompt":     prompt,
		"max_tokens": 512,
	})
	return out.Description, err
}

func (c *Cloudflare) Screenshot(ctx context.Context, url string, fullPage bool) ([]byte, error) {
	resp, err := c.post(ctx, "screenshot", "/browser-rendering/screenshot", map[string]any{
		"url":               url,
		"screenshotOptions": map[string]any{"fullPage": fullPage},
	})
	if err != nil {
		return nil, err
	}
	if err := resp.Throw(); err != nil {
		return nil, err
	}
	if ct := resp.Header("Content-Type"); !strings.HasPrefix(ct, "image/") {
		var env cfEnvelope[any]
		if resp.JSON(&env) == nil && env.err() != nil {
			return nil, env.err()
		}
		return nil, fmt.Errorf("cloudflare screenshot: unexpected content type %q", ct)
	}
	return resp.Raw, nil
}

func (c *Cloudflare) Scrape(ctx context.Context, url, selector string) ([]string, error) {
	type element struct {
		Text string `json:"text"`
	}
	type match struct {
		Selector string    `json:"selector"`
		Results  []element `json:"results"`
	}
	out, err := call[[]match](ctx, c, "scrape", "/browser-rendering/scrape", map[string]any{
		"url":      url,
		"elements": []map[string]string{{"selector": selector}},
	})
	if err != nil {
		return nil, err
	}

	var texts []string
	for _, m := range out {
		for _, el := range m.Results {
			if t := strings.TrimSpace(el.Text); t != "" {
				texts = append(texts, t)
			}
		}
	}
	return texts, nil
}

func (c *Cloudflare) Links(ctx context.Context, url string) ([]string, error) {
	return call[[]string](ctx, c, "links", "/browser-rendering/links", map[string]string{"url": url})
}

func (c *Cloudflare) Content(ctx context.Context, url string) (string, error) {
	return call[string](ctx, c, "content", "/browser-rendering/content", map[string]string{"url": url})
}
