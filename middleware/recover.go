package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/hookrelay/hookrelay/sender"
)

// Recover returns middleware that recovers from panics in the send chain.
// Panics are converted to errors and logged with a stack trace, so one
// misbehaving sender implementation cannot take down a dispatch cycle.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, d *sender.Delivery, next SendFunc) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("sender panicked",
					slog.String("item_id", d.ID.String()),
					slog.String("target", d.Target),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic sending %s: %v", d.ID, r)
			}
		}()
		return next(ctx)
	}
}
