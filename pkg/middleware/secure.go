package middleware

import (
	"net/http"

	"github.com/unrolled/secure"
)

// SecureOptions sets the security headers for API and preview responses.
// The listing preview carries inline styles and remote product images, so
// the policy allows both.
func SecureOptions(isDevelopment bool) secure.Options {
	return secure.Options{
		IsDevelopment:         isDevelopment,
		ContentTypeNosniff:    true,
		FrameDeny:             true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: "default-src 'self'; img-src * data:; style-src 'self' 'unsafe-inline'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}
}

// Secure returns a middleware that adds the headers of opts.
func Secure(opts secure.Options) func(http.Handler) http.Handler {
	return secure.New(opts).Handler
}
