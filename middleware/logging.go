package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/hookrelay/hookrelay/sender"
)

// Logging returns middleware that logs delivery attempts and outcomes.
// Failures log at warning level: they feed the retry path and only become
// terminal after the retry limit is exhausted.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, d *sender.Delivery, next SendFunc) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("callback send failed",
				slog.String("item_id", d.ID.String()),
				slog.String("target", d.Target),
				slog.Int("attempt", d.Attempt),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("callback sent",
				slog.String("item_id", d.ID.String()),
				slog.String("target", d.Target),
				slog.Int("attempt", d.Attempt),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
