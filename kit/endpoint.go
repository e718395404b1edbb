// Package kit holds the transport-neutral plumbing shared by the CLI and the
// MCP server: endpoints, middleware and request-scoped context values.
package kit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hazyhaar/docforge/idgen"
)

// Endpoint is one operation, independent of the transport that invokes it.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint without changing its signature.
type Middleware func(next Endpoint) Endpoint

// Chain composes middlewares left-to-right: the first one is the outermost
// wrapper and runs first on the request path.
//
//	chain := Chain(RequestID(gen), Recovery(logger), Logging(logger, "convert"))
//	wrapped := chain(base)
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// RequestID assigns an ID from gen to requests that do not carry one yet.
func RequestID(gen idgen.Generator) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			if GetRequestID(ctx) == "" {
				ctx = WithRequestID(ctx, gen())
			}
			return next(ctx, req)
		}
	}
}

// Logging logs every call with its duration, request ID and transport.
func Logging(logger *slog.Logger, op string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			dur := time.Since(start)

			attrs := []any{
				"op", op,
				"request_id", GetRequestID(ctx),
				"transport", GetTransport(ctx),
				"duration_ms", dur.Milliseconds(),
			}
			if err != nil {
				logger.ErrorContext(ctx, "call failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "call ok", attrs...)
			}
			return resp, err
		}
	}
}

// Recovery turns a panic in a downstream endpoint into an *ErrPanic.
func Recovery(logger *slog.Logger) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (resp any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "endpoint panic recovered",
						"panic", r,
						"stack", string(debug.Stack()))
					err = &ErrPanic{Value: r}
				}
			}()
			return next(ctx, req)
		}
	}
}

// ErrPanic wraps a recovered panic value as an error.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("kit: endpoint panicked: %v", e.Value)
}
