// Package httpmiddleware provides the net/http middleware chain shared by the
// bookshop HTTP servers.
package httpmiddleware

import "net/http"

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain converts middlewares to the func form accepted by chi's Router.Use.
func Chain(middlewares ...Middleware) []func(http.Handler) http.Handler {
	out := make([]func(http.Handler) http.Handler, len(middlewares))
	for i, m := range middlewares {
		out[i] = m
	}
	return out
}
