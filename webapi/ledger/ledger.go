// Package ledger serves bank-wide endpoints: interest, reports and health.
package ledger

import (
	"log/slog"

	"github.com/amirasaad/bankcore/pkg/bank"
	"github.com/amirasaad/bankcore/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers:
//   - POST /interest : apply one period of interest
//   - POST /reports  : run an analytics report (?format=text for a table)
//   - GET  /health   : persistence health
func Routes(app *fiber.App, b *bank.Bank, logger *slog.Logger) {
	logger = logger.With("component", "ledger_api")

	app.Post("/interest", func(c *fiber.Ctx) error {
		n, err := b.AddInterestToAllSavingsAccounts(c.UserContext())
		if err != nil {
			logger.Error("Interest batch failed", "error", err)
			return common.ProblemDetailsJSON(c, "Failed to apply interest", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Interest applied", fiber.Map{"accounts": n})
	})

	app.Post("/reports", func(c *fiber.Ctx) error {
		res, err := b.GenerateReport(c.UserContext()).Wait(c.UserContext())
		if err != nil {
			return common.ErrorResponseJSON(c, fiber.StatusGatewayTimeout, "Report still pending", err.Error())
		}
		if !res.Success {
			return common.ProblemDetailsJSON(c, "Report failed", res.Err)
		}
		if c.Query("format") == "text" {
			return c.Status(fiber.StatusOK).SendString(res.Report.Format())
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, res.Message, res.Report)
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		st := b.PersistenceStatus()
		body := fiber.Map{
			"provider":  st.Provider,
			"available": st.Available,
			"message":   st.Message,
			"accounts":  b.Count(),
		}
		if !st.Available {
			return c.Status(fiber.StatusServiceUnavailable).JSON(body)
		}
		return c.Status(fiber.StatusOK).JSON(body)
	})
}
