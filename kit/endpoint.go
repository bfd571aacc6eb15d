// Package kit holds the transport-agnostic plumbing shared by launchdash
// components: the Endpoint function type, middleware chaining, context keys
// and the MCP tool adapter.
package kit

import "context"

// Endpoint is a transport-agnostic handler. Dashboard callbacks and MCP tools
// are both Endpoints.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so that the first one is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
