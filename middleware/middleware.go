// Package middleware provides composable middleware around callback sends.
// Middleware wraps the send call synchronously and can modify execution
// (recover from panics, enforce deadlines, log, record metrics).
package middleware

import (
	"context"

	"github.com/hookrelay/hookrelay/sender"
)

// SendFunc is the terminal function that performs the delivery.
type SendFunc func(ctx context.Context) error

// Middleware wraps a SendFunc with cross-cutting logic. It receives the
// current context, the delivery being sent, and the next function to call.
// Middleware MUST call next to continue the chain (unless
// short-circuiting on error).
type Middleware func(ctx context.Context, d *sender.Delivery, next SendFunc) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the list
// is the outermost wrapper.
//
// Example: Chain(logging, recovery, timeout) executes as:
//
//	logging → recovery → timeout → send
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, d *sender.Delivery, next SendFunc) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, d, prev)
			}
		}
		return h(ctx)
	}
}

// Wrap applies the middleware chain around a Sender, returning a Sender.
func Wrap(s sender.Sender, mws ...Middleware) sender.Sender {
	if len(mws) == 0 {
		return s
	}
	chain := Chain(mws...)
	return sender.Func(func(ctx context.Context, d *sender.Delivery) error {
		return chain(ctx, d, func(ctx context.Context) error {
			return s.Send(ctx, d)
		})
	})
}
