// Package account serves the account and money-movement endpoints.
package account

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/amirasaad/bankcore/pkg/bank"
	"github.com/amirasaad/bankcore/pkg/operation"
	"github.com/amirasaad/bankcore/webapi/common"
	"github.com/gofiber/fiber/v2"
)

var errInvalidID = errors.New("account id must be a positive integer")

// Routes registers:
//   - POST   /accounts               : open an account
//   - GET    /accounts?q=            : list or search accounts
//   - GET    /accounts/:id           : fetch one account
//   - PATCH  /accounts/:id           : rename the holder
//   - DELETE /accounts/:id           : close an account
//   - POST   /accounts/:id/deposit   : deposit funds
//   - POST   /accounts/:id/withdraw  : withdraw funds
//   - POST   /transfers              : move funds between accounts
func Routes(app *fiber.App, b *bank.Bank, logger *slog.Logger) {
	h := &handler{bank: b, logger: logger.With("component", "account_api")}
	app.Post("/accounts", h.create)
	app.Get("/accounts", h.list)
	app.Get("/accounts/:id", h.get)
	app.Patch("/accounts/:id", h.update)
	app.Delete("/accounts/:id", h.close)
	app.Post("/accounts/:id/deposit", h.deposit)
	app.Post("/accounts/:id/withdraw", h.withdraw)
	app.Post("/transfers", h.transfer)
}

type handler struct {
	bank   *bank.Bank
	logger *slog.Logger
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

func (h *handler) create(c *fiber.Ctx) error {
	input, err := common.BindAndValidate[CreateAccountRequest](c)
	if input == nil {
		return err
	}
	typ, err := input.accountType(time.Now().UTC())
	if err != nil {
		return common.ProblemDetailsJSON(c, "Invalid account type", err)
	}
	acc, err := h.bank.CreateAccount(c.UserContext(), input.Holder, typ, input.InitialDeposit)
	if err != nil {
		h.logger.Error("Failed to create account", "error", err)
		return common.ProblemDetailsJSON(c, "Failed to create account", err)
	}
	dto, err := ToAccountDTO(acc)
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to render account", err)
	}
	return common.SuccessResponseJSON(c, fiber.StatusCreated, "Account created", dto)
}

func (h *handler) list(c *fiber.Ctx) error {
	accs := h.bank.SearchAccounts(c.UserContext(), c.Query("q"))
	dtos, err := ToAccountDTOs(accs)
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to render accounts", err)
	}
	return common.SuccessResponseJSON(c, fiber.StatusOK, "Accounts fetched", dtos)
}

func (h *handler) get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return common.ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid account ID", err.Error())
	}
	acc, err := h.bank.GetAccount(c.UserContext(), id)
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to fetch account", err)
	}
	dto, err := ToAccountDTO(acc)
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to render account", err)
	}
	return common.SuccessResponseJSON(c, fiber.StatusOK, "Account fetched", dto)
}

func (h *handler) update(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return common.ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid account ID", err.Error())
	}
	input, err := common.BindAndValidate[UpdateAccountRequest](c)
	if input == nil {
		return err
	}
	acc, err := h.bank.UpdateHolder(c.UserContext(), id, input.Holder)
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to update account", err)
	}
	dto, err := ToAccountDTO(acc)
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to render account", err)
	}
	return common.SuccessResponseJSON(c, fiber.StatusOK, "Account updated", dto)
}

func (h *handler) close(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return common.ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid account ID", err.Error())
	}
	closed, err := h.bank.CloseAccount(c.UserContext(), id)
	if err != nil {
		h.logger.Error("Failed to close account", "id", id, "error", err)
		return common.ProblemDetailsJSON(c, "Failed to close account", err)
	}
	if !closed {
		return common.ErrorResponseJSON(c, fiber.StatusNotFound, "Account not found", "no account with id "+c.Params("id"))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handler) deposit(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return common.ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid account ID", err.Error())
	}
	input, err := common.BindAndValidate[AmountRequest](c)
	if input == nil {
		return err
	}
	return h.await(c, "Deposit", h.bank.Deposit(c.UserContext(), id, input.Amount))
}

func (h *handler) withdraw(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return common.ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid account ID", err.Error())
	}
	input, err := common.BindAndValidate[AmountRequest](c)
	if input == nil {
		return err
	}
	return h.await(c, "Withdrawal", h.bank.Withdraw(c.UserContext(), id, input.Amount))
}

func (h *handler) transfer(c *fiber.Ctx) error {
	input, err := common.BindAndValidate[TransferRequest](c)
	if input == nil {
		return err
	}
	return h.await(c, "Transfer", h.bank.Transfer(c.UserContext(), input.From, input.To, input.Amount))
}

// await blocks on f for as long as the request lives. Giving up does not
// cancel the queued operation.
func (h *handler) await(c *fiber.Ctx, name string, f *operation.Future) error {
	res, err := f.Wait(c.UserContext())
	if err != nil {
		return common.ErrorResponseJSON(c, fiber.StatusGatewayTimeout, name+" still pending", err.Error())
	}
	if !res.Success {
		return common.ProblemDetailsJSON(c, name+" failed", res.Err)
	}
	body, err := toOperationResponse(res)
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to render accounts", err)
	}
	return common.SuccessResponseJSON(c, fiber.StatusOK, res.Message, body)
}
