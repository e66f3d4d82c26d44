// Package edge is the HTTP proxy in front of the hosted AI and headless
// browser services. It serves the /api/{llm,generate-image,screenshot,
// scrape,extract-links,extract-content,extract-file-data} contract the
// wizard's remote client speaks.
package edge

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by a backend without credentials.
var ErrNotConfigured = errors.New("edge: backend credentials are not configured")

// TextRequest is one language-model completion.
type TextRequest struct {
	System    string
	Prompt    string
	Model     string
	MaxTokens int
}

// Backend is the set of hosted capabilities the proxy fronts.
type Backend interface {
	Text(ctx context.Context, req TextRequest) (string, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
	DescribeImage(ctx context.Context, image []byte, prompt string) (string, error)

	Screenshot(ctx context.Context, url string, fullPage bool) ([]byte, error)
	// Scrape returns the text of every element matching selector.
	Scrape(ctx context.Context, url, selector string) ([]string, error)
	Links(ctx context.Context, url string) ([]string, error)
	// Content returns the rendered HTML of the page.
	Content(ctx context.Context, url string) (string, error)
}
