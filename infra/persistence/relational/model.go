package relational

import (
	"time"

	"github.com/amirasaad/bankcore/pkg/snapshot"
	"github.com/shopspring/decimal"
)

// accountModel maps the accounts table. The id is assigned by the bank, never
// by the database.
type accountModel struct {
	ID             int64           `gorm:"primaryKey;autoIncrement:false"`
	Holder         string          `gorm:"size:255;not null"`
	Balance        decimal.Decimal `gorm:"type:numeric;not null"`
	Kind           string          `gorm:"size:32;not null"`
	MinimumBalance decimal.Decimal `gorm:"type:numeric"`
	OverdraftLimit decimal.Decimal `gorm:"type:numeric"`
	InterestRate   decimal.Decimal `gorm:"type:numeric"`
	TermMonths     int
	MaturityDate   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (accountModel) TableName() string { return "accounts" }

// transactionModel maps account_transactions. Both legs of a transfer share
// TxID, so rows are keyed by account and position instead.
type transactionModel struct {
	AccountID    int64           `gorm:"primaryKey;autoIncrement:false"`
	Seq          int             `gorm:"primaryKey;autoIncrement:false"`
	TxID         string          `gorm:"column:tx_id;size:36;not null;index"`
	Amount       decimal.Decimal `gorm:"type:numeric;not null"`
	Kind         string          `gorm:"size:32;not null"`
	Counterparty int64
	OccurredAt   time.Time `gorm:"not null"`
}

func (transactionModel) TableName() string { return "account_transactions" }

func toModels(s snapshot.AccountSnapshot) (accountModel, []transactionModel) {
	row := accountModel{
		ID:             s.ID,
		Holder:         s.Holder,
		Balance:        dec(s.Balance),
		Kind:           s.Kind,
		MinimumBalance: dec(s.MinimumBalance),
		OverdraftLimit: dec(s.OverdraftLimit),
		InterestRate:   dec(s.InterestRate),
		TermMonths:     s.TermMonths,
		CreatedAt:      s.CreatedAt,
	}
	if !s.MaturityDate.IsZero() {
		m := s.MaturityDate
		row.MaturityDate = &m
	}
	txs := make([]transactionModel, 0, len(s.Transactions))
	for i, t := range s.Transactions {
		txs = append(txs, transactionModel{
			AccountID:    s.ID,
			Seq:          i,
			TxID:         t.ID,
			Amount:       dec(t.Amount),
			Kind:         t.Kind,
			Counterparty: t.Counterparty,
			OccurredAt:   t.Timestamp,
		})
	}
	return row, txs
}

func fromModels(row accountModel, txs []transactionModel) snapshot.AccountSnapshot {
	s := snapshot.AccountSnapshot{
		ID:             row.ID,
		Holder:         row.Holder,
		Balance:        row.Balance.String(),
		CreatedAt:      row.CreatedAt.UTC(),
		Kind:           row.Kind,
		MinimumBalance: row.MinimumBalance.String(),
		OverdraftLimit: row.OverdraftLimit.String(),
		InterestRate:   row.InterestRate.String(),
		TermMonths:     row.TermMonths,
		Transactions:   make([]snapshot.TransactionSnapshot, 0, len(txs)),
	}
	if row.MaturityDate != nil {
		s.MaturityDate = row.MaturityDate.UTC()
	}
	for _, t := range txs {
		s.Transactions = append(s.Transactions, snapshot.TransactionSnapshot{
			ID:           t.TxID,
			Amount:       t.Amount.String(),
			Timestamp:    t.OccurredAt.UTC(),
			Kind:         t.Kind,
			Counterparty: t.Counterparty,
		})
	}
	return s
}

// dec parses values produced by snapshot.FromAccount, which are always valid
// decimals or empty.
func dec(v string) decimal.Decimal {
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}
