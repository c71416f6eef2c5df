// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, a conservative set of response headers
// for a JSON API behind a reverse proxy: baseline hardening, optional
// no-store caching, optional browser feature policies and opt-in HSTS.
// No CSP is sent; the API serves no HTML except the Swagger UI.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	EnableHSTS   bool          // only honoured for HTTPS requests
	HSTSMaxAge   time.Duration // defaults to 180 days
	NoStore      bool          // Cache-Control: no-store (+ Pragma/Expires)
	EnablePolicy bool          // Permissions-Policy, X-Permitted-Cross-Domain-Policies

	// ExposeHeaders are appended to Access-Control-Expose-Headers so browser
	// clients can read them. Defaults to X-Request-ID.
	ExposeHeaders []string
}

// SecurityHeaders returns a middleware that sets:
//
//	X-Content-Type-Options: nosniff
//	X-Frame-Options: DENY
//	Referrer-Policy: no-referrer
//
// plus the optional headers selected in opt. Existing
// Access-Control-Expose-Headers entries are kept and never duplicated.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	expose := opt.ExposeHeaders
	if len(expose) == 0 {
		expose = []string{requestIDHeader}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		h.Set("Access-Control-Expose-Headers", appendTokens(h.Get("Access-Control-Expose-Headers"), expose))

		c.Next()
	}
}

// appendTokens adds each of add to the comma-separated list cur unless it is
// already present (case-insensitive).
func appendTokens(cur string, add []string) string {
	seen := map[string]struct{}{}
	var out []string
	for _, tok := range strings.Split(cur, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			seen[strings.ToLower(tok)] = struct{}{}
			out = append(out, tok)
		}
	}
	for _, tok := range add {
		if _, ok := seen[strings.ToLower(tok)]; ok {
			continue
		}
		seen[strings.ToLower(tok)] = struct{}{}
		out = append(out, tok)
	}
	return strings.Join(out, ", ")
}

// isHTTPS reports whether the request arrived over TLS directly or through a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
