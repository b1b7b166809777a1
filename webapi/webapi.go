// Package webapi exposes the bank over HTTP. Handlers are grouped by concern:
//   - account: accounts, deposits, withdrawals and transfers
//   - ledger: interest, reports and health
package webapi

import (
	"log/slog"
	"strings"

	"github.com/amirasaad/bankcore/pkg/bank"
	"github.com/amirasaad/bankcore/pkg/config"
	accountweb "github.com/amirasaad/bankcore/webapi/account"
	"github.com/amirasaad/bankcore/webapi/common"
	ledgerweb "github.com/amirasaad/bankcore/webapi/ledger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// SetupApp builds the fiber application. A nil rate limit disables limiting.
func SetupApp(b *bank.Bank, rl *config.RateLimit, log *slog.Logger) *fiber.App {
	if log == nil {
		log = slog.Default()
	}
	app := fiber.New(fiber.Config{
		AppName: "bankcore",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return common.ErrorResponseJSON(c, fe.Code, fe.Message, nil)
			}
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	if rl != nil && rl.MaxRequests > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:          rl.MaxRequests,
			Expiration:   rl.Window,
			KeyGenerator: clientIP,
			LimitReached: func(c *fiber.Ctx) error {
				return common.ErrorResponseJSON(c, fiber.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded")
			},
		}))
	}
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("bankcore is running")
	})
	accountweb.Routes(app, b, log)
	ledgerweb.Routes(app, b, log)
	return app
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func clientIP(c *fiber.Ctx) string {
	if fwd := c.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return c.IP()
}
