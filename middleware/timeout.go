package middleware

import (
	"context"
	"time"

	"github.com/hookrelay/hookrelay/sender"
)

// Timeout returns middleware that bounds each send with a deadline. When
// the deadline is exceeded the context is cancelled and the send counts as
// a failure, following the retry path.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *sender.Delivery, next SendFunc) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
