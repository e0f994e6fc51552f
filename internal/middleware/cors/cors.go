// Package cors lets browser frontends served from other origins call the API.
package cors

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
	defaultHeaders = "Content-Type, Authorization, X-Request-ID"
	maxAgeSeconds  = 600
)

type Policy struct {
	anyOrigin bool
	origins   map[string]struct{}
}

// NewPolicy builds a policy from an origin list. "*" admits any origin; an
// empty list disables CORS entirely.
func NewPolicy(origins []string) *Policy {
	p := &Policy{origins: make(map[string]struct{})}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			p.anyOrigin = true
		default:
			p.origins[strings.ToLower(o)] = struct{}{}
		}
	}
	return p
}

func (p *Policy) Allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.anyOrigin {
		return true
	}
	_, ok := p.origins[strings.ToLower(origin)]
	return ok
}

// Middleware answers preflight requests itself and decorates actual
// responses for allowed origins.
func (p *Policy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		headers := w.Header()
		headers.Add("Vary", "Origin")

		if !p.Allows(origin) {
			next.ServeHTTP(w, r)
			return
		}

		if p.anyOrigin {
			headers.Set("Access-Control-Allow-Origin", "*")
		} else {
			headers.Set("Access-Control-Allow-Origin", origin)
		}
		headers.Set("Access-Control-Expose-Headers", "Location, X-Request-ID")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			headers.Add("Vary", "Access-Control-Request-Method")
			headers.Add("Vary", "Access-Control-Request-Headers")
			headers.Set("Access-Control-Allow-Methods", allowedMethods)
			if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
				headers.Set("Access-Control-Allow-Headers", requested)
			} else {
				headers.Set("Access-Control-Allow-Headers", defaultHeaders)
			}
			headers.Set("Access-Control-Max-Age", strconv.Itoa(maxAgeSeconds))
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
