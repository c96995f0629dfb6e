package telegram

import (
	"github.com/themaden/copperx-telegram-bot/core/telegram/middleware"
)

// DefaultMiddlewares builds the shared middleware chain for the bot.
// Rate limiting is not part of this chain: the abuse guard runs inside the
// conversation machine so rejected events never reach flow handling at all.
func DefaultMiddlewares() []Middleware {
	return []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
		{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	}
}
