// Package remote is the wizard's view of the AI and browser-rendering
// services. Client is the contract; EdgeClient implements it over the edge
// proxy's HTTP API plus a storage disk for image uploads.
package remote

import (
	"context"
	"fmt"
)

// ProductData is what extraction pulls out of a product page or file.
type ProductData struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Features    []string `json:"features,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	Price       string   `json:"price,omitempty"`
}

// SEOOptions tunes OptimizeSEO. SourceURL is only read when UseWebContext
// is set.
type SEOOptions struct {
	UseWebContext bool
	SourceURL     string
}

// SEOResult is the keyword and highlight suggestion for a listing.
type SEOResult struct {
	Keywords    []string `json:"keywords"`
	Highlights  []string `json:"highlights"`
	Explanation string   `json:"explanation"`
}

// UploadResult is where an uploaded image can be fetched from.
type UploadResult struct {
	URL string `json:"url"`
}

// Client is every remote capability the wizard depends on. All failures
// are returned as *Error.
type Client interface {
	ExtractProductData(ctx context.Context, url string) (ProductData, error)
	OptimizeSEO(ctx context.Context, title, plainDescription string, opts SEOOptions) (SEOResult, error)
	UploadImage(ctx context.Context, name string, data []byte) (UploadResult, error)
	TakeScreenshot(ctx context.Context, url string) ([]byte, error)
	ScrapeContent(ctx context.Context, url, selector string) (string, error)
	ExtractLinks(ctx context.Context, url string) ([]string, error)
	ExtractPageContent(ctx context.Context, url string) (string, error)
}

// Error is a failed remote call. Callers only test for its presence.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("remote %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func fail(op, message string, err error) *Error {
	return &Error{Op: op, Message: message, Err: err}
}
