package account

import (
	"fmt"
	"time"

	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/amirasaad/bankcore/pkg/operation"
	"github.com/amirasaad/bankcore/pkg/snapshot"
	"github.com/shopspring/decimal"
)

// CreateAccountRequest is the body of POST /accounts. Type-specific fields
// are ignored for other types.
type CreateAccountRequest struct {
	Holder         string          `json:"holder" validate:"required,min=1,max=128"`
	Type           string          `json:"type" validate:"required,oneof=savings current fixed_deposit"`
	InitialDeposit decimal.Decimal `json:"initial_deposit"`
	MinimumBalance decimal.Decimal `json:"minimum_balance"`
	OverdraftLimit decimal.Decimal `json:"overdraft_limit"`
	TermMonths     int             `json:"term_months" validate:"omitempty,min=1,max=360"`
}

// UpdateAccountRequest is the body of PATCH /accounts/:id.
type UpdateAccountRequest struct {
	Holder string `json:"holder" validate:"required,min=1,max=128"`
}

// AmountRequest is the body of deposit and withdraw.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TransferRequest is the body of POST /transfers.
type TransferRequest struct {
	From   int64           `json:"from" validate:"required"`
	To     int64           `json:"to" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// OperationResponse reports the outcome of a queued operation.
type OperationResponse struct {
	Message  string                     `json:"message"`
	Accounts []snapshot.AccountSnapshot `json:"accounts"`
}

func (r CreateAccountRequest) accountType(now time.Time) (account.Type, error) {
	switch r.Type {
	case "savings":
		t := account.NewSavings()
		t.MinimumBalance = r.MinimumBalance
		return t, nil
	case "current":
		return account.Current{OverdraftLimit: r.OverdraftLimit}, nil
	case "fixed_deposit":
		term := r.TermMonths
		if term == 0 {
			term = 12
		}
		return account.NewFixedDeposit(term, now), nil
	default:
		return nil, fmt.Errorf("%w: %q", account.ErrInvalidType, r.Type)
	}
}

// ToAccountDTO renders acc in its snapshot form.
func ToAccountDTO(acc *account.Account) (snapshot.AccountSnapshot, error) {
	return snapshot.FromAccount(acc)
}

// ToAccountDTOs renders accs in order.
func ToAccountDTOs(accs []*account.Account) ([]snapshot.AccountSnapshot, error) {
	out := make([]snapshot.AccountSnapshot, 0, len(accs))
	for _, acc := range accs {
		dto, err := ToAccountDTO(acc)
		if err != nil {
			return nil, err
		}
		out = append(out, dto)
	}
	return out, nil
}

func toOperationResponse(res operation.Result) (OperationResponse, error) {
	accs, err := ToAccountDTOs(res.Accounts)
	if err != nil {
		return OperationResponse{}, err
	}
	return OperationResponse{Message: res.Message, Accounts: accs}, nil
}
