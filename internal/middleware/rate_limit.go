package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

const rateLimitedMessage = "⏳ Muitas mensagens em pouco tempo. Aguarde um instante e tente novamente."

type chatLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps a token bucket per chat.
type RateLimiter struct {
	mu       sync.Mutex
	chats    map[int64]*chatLimiter
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	notified map[int64]time.Time
	onDrop   func(ctx context.Context, chatID int64, text string)
}

// NewRateLimiter allows perMinute messages per chat with a burst of the
// same size. perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{
		chats:    make(map[int64]*chatLimiter),
		notified: make(map[int64]time.Time),
		limit:    rate.Inf,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
	if perMinute > 0 {
		rl.limit = rate.Every(time.Minute / time.Duration(perMinute))
		rl.burst = perMinute
	}
	return rl
}

// OnDrop registers a callback for every message the limiter discards.
func (rl *RateLimiter) OnDrop(fn func(ctx context.Context, chatID int64, text string)) *RateLimiter {
	rl.onDrop = fn
	return rl
}

// Allow reports whether the chat may send another message now.
func (rl *RateLimiter) Allow(chatID int64) bool {
	if rl.limit == rate.Inf {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.chats[chatID]
	if !ok {
		c = &chatLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.chats[chatID] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// shouldNotify limits the slow-down notice to once per minute per chat.
func (rl *RateLimiter) shouldNotify(chatID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if last, ok := rl.notified[chatID]; ok && now.Sub(last) < time.Minute {
		return false
	}
	rl.notified[chatID] = now
	return true
}

// Purge drops limiters of chats idle for longer than the idle window.
func (rl *RateLimiter) Purge() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for id, c := range rl.chats {
		if now.Sub(c.lastSeen) > rl.idle {
			delete(rl.chats, id)
			delete(rl.notified, id)
			removed++
		}
	}
	return removed
}

// Middleware returns the bot middleware enforcing the limit on messages.
func (rl *RateLimiter) Middleware() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			// Only rate limit messages (not callbacks or other updates)
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			chatID := update.Message.Chat.ID
			if rl.Allow(chatID) {
				next(ctx, b, update)
				return
			}

			slog.Info("message dropped by rate limit", "chat_id", chatID, "text", update.Message.Text)
			if rl.onDrop != nil && update.Message.Text != "" {
				rl.onDrop(ctx, chatID, update.Message.Text)
			}
			if b != nil && rl.shouldNotify(chatID) {
				b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: chatID,
					Text:   rateLimitedMessage,
				})
			}
		}
	}
}
