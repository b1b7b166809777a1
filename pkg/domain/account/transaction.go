package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind is the closed set of transaction kinds.
type TransactionKind int

// Transaction kinds.
const (
	TransactionDeposit TransactionKind = iota + 1
	TransactionWithdrawal
	TransactionInterest
	TransactionTransferOut
	TransactionTransferIn
)

func (k TransactionKind) String() string {
	switch k {
	case TransactionDeposit:
		return "Deposit"
	case TransactionWithdrawal:
		return "Withdrawal"
	case TransactionInterest:
		return "Interest"
	case TransactionTransferOut:
		return "TransferOut"
	case TransactionTransferIn:
		return "TransferIn"
	default:
		return "Unknown"
	}
}

// Transaction is an immutable record of a balance change.
// Counterparty is zero unless Kind is a transfer.
type Transaction struct {
	ID           string
	Amount       decimal.Decimal
	Timestamp    time.Time
	Kind         TransactionKind
	Counterparty int64
}

// NewTransactionID returns a fresh identifier shared by both legs of a transfer.
func NewTransactionID() string {
	return uuid.NewString()
}

func newTransaction(amount decimal.Decimal, now time.Time, kind TransactionKind, counterparty int64) Transaction {
	return Transaction{
		ID:           NewTransactionID(),
		Amount:       amount,
		Timestamp:    now,
		Kind:         kind,
		Counterparty: counterparty,
	}
}
