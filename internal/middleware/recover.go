package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// ErrorReporter forwards unexpected failures to the team.
type ErrorReporter interface {
	LogError(ctx context.Context, err error, where string)
}

// ErrorReporterFunc adapts a function to ErrorReporter.
type ErrorReporterFunc func(ctx context.Context, err error, where string)

func (f ErrorReporterFunc) LogError(ctx context.Context, err error, where string) {
	f(ctx, err, where)
}

// Recover returns middleware that recovers from panics. The reporter may be nil.
func Recover(reporter ErrorReporter) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			defer func() {
				if r := recover(); r != nil {
					_, chatID, _ := updateInfo(update)
					slog.Error("panic recovered in handler",
						"panic", r,
						"chat_id", chatID,
						"stack", string(debug.Stack()),
					)
					if reporter != nil {
						reporter.LogError(ctx, fmt.Errorf("panic: %v", r), fmt.Sprintf("update handler, chat %d", chatID))
					}
				}
			}()
			next(ctx, b, update)
		}
	}
}
