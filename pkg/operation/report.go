package operation

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
)

// largestLimit caps Report.Largest.
const largestLimit = 5

// KindSummary aggregates the accounts of one kind.
type KindSummary struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// AccountSummary is a single line in Report.Largest.
type AccountSummary struct {
	ID      int64           `json:"id"`
	Holder  string          `json:"holder"`
	Kind    account.Kind    `json:"kind"`
	Balance decimal.Decimal `json:"balance"`
}

// Report is the output of an AnalyticsReport operation.
type Report struct {
	GeneratedAt  time.Time                    `json:"generated_at"`
	AccountCount int                          `json:"account_count"`
	TotalBalance decimal.Decimal              `json:"total_balance"`
	ByKind       map[account.Kind]KindSummary `json:"by_kind"`
	Largest      []AccountSummary             `json:"largest"`
}

// AnalyticsReport is a read-only operation summarising a set of accounts.
type AnalyticsReport struct {
	AccountIDs []int64
	Clock      Clock
}

// NewAnalyticsReport returns a report over ids.
func NewAnalyticsReport(ids []int64, clock Clock) *AnalyticsReport {
	return &AnalyticsReport{AccountIDs: ids, Clock: clock}
}

func (r *AnalyticsReport) Kind() Kind { return KindAnalyticsReport }

func (r *AnalyticsReport) Description() string {
	return fmt.Sprintf("Analytics report over %d accounts", len(r.AccountIDs))
}

func (r *AnalyticsReport) InvolvedAccounts() []int64 {
	out := make([]int64, len(r.AccountIDs))
	copy(out, r.AccountIDs)
	return out
}

// Execute never mutates accounts, so the result carries no accounts to merge.
func (r *AnalyticsReport) Execute(ctx context.Context, accounts Accounts) Result {
	rep := &Report{
		GeneratedAt:  r.Clock.now(),
		TotalBalance: decimal.Zero,
		ByKind:       make(map[account.Kind]KindSummary),
	}
	all := make([]AccountSummary, 0, len(accounts))
	for _, id := range r.AccountIDs {
		if err := ctx.Err(); err != nil {
			return fail(r, err)
		}
		acc, ok := accounts[id]
		if !ok {
			continue
		}
		rep.AccountCount++
		rep.TotalBalance = rep.TotalBalance.Add(acc.Balance)
		ks := rep.ByKind[acc.Kind()]
		ks.Count++
		ks.Total = ks.Total.Add(acc.Balance)
		rep.ByKind[acc.Kind()] = ks
		all = append(all, AccountSummary{ID: acc.ID, Holder: acc.Holder, Kind: acc.Kind(), Balance: acc.Balance})
	}
	sort.Slice(all, func(i, j int) bool {
		if c := all[i].Balance.Cmp(all[j].Balance); c != 0 {
			return c > 0
		}
		return all[i].ID < all[j].ID
	})
	if len(all) > largestLimit {
		all = all[:largestLimit]
	}
	rep.Largest = all
	return Result{
		Success: true,
		Message: fmt.Sprintf("%s completed, total balance %s", r.Description(), rep.TotalBalance),
		Report:  rep,
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// Format renders the report as text tables.
func (r *Report) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report generated %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Accounts: %d  Total balance: %s\n\n", r.AccountCount, r.TotalBalance.StringFixed(2))

	kinds := make([]account.Kind, 0, len(r.ByKind))
	for k := range r.ByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	byKind := newTable("Kind", "Accounts", "Total")
	for _, k := range kinds {
		s := r.ByKind[k]
		byKind.Row(k.String(), strconv.Itoa(s.Count), s.Total.StringFixed(2))
	}
	b.WriteString(byKind.String())
	b.WriteString("\n\n")

	largest := newTable("Account", "Holder", "Kind", "Balance")
	for _, s := range r.Largest {
		largest.Row(strconv.FormatInt(s.ID, 10), s.Holder, s.Kind.String(), s.Balance.StringFixed(2))
	}
	b.WriteString(largest.String())
	b.WriteString("\n")
	return b.String()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}
