// Package web defines the narrow contract between the panel core and a
// concrete web framework. The core never imports a framework; adapters
// wrap their request type in a Context and register routes through an
// Integrator.
package web

import "context"

// Context is the per-request view the panel core works against.
type Context interface {
	// Context returns the request's cancellation context.
	Context() context.Context
	// Method returns the HTTP method of the request.
	Method() string
	// Path returns the request path.
	Path() string
	// Param returns a path parameter by name, or "".
	Param(name string) string
	// Query returns a query-string parameter by name, or "".
	Query(name string) string
	// FormValue returns a single form field by name, or "".
	FormValue(name string) string
	// Form returns all form fields. Repeated keys keep the first value.
	Form() map[string]string
	// Get reads a request-scoped value stashed by middleware.
	Get(key string) any
	// Set stashes a request-scoped value (auth identity, request id).
	Set(key string, v any)
}

// HandlerFunc is a framework-agnostic handler. It returns the HTTP status
// code and the response body; the adapter writes both out.
type HandlerFunc func(c Context) (int, string)

// Integrator registers panel routes and static assets on a web framework.
// Path parameters use the ":name" form; adapters translate as needed.
type Integrator interface {
	Handle(method, path string, h HandlerFunc)
	ServeAssets(prefix string, assets map[string][]byte)
}

// Keys used for request-scoped values shared between adapter middleware
// and the panel core.
const (
	CtxUserID    = "panel_user_id"
	CtxUserRepr  = "panel_user_repr"
	CtxRequestID = "request_id"
)
