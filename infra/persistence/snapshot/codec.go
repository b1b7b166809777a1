package snapshot

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	snap "github.com/amirasaad/bankcore/pkg/snapshot"
	"github.com/magiconair/properties"
)

// Keys of the flat encoding. Account and transaction fields are written under
// account.<i>.<field> and account.<i>.tx.<j>.<field>.
const (
	keyVersion  = "snapshot.version"
	keyProvider = "snapshot.provider"
	keyCreated  = "snapshot.created"
	keyCount    = "account.count"
)

const timeLayout = time.RFC3339Nano

// Encode renders b in Java properties syntax.
func Encode(b snap.BankSnapshot) ([]byte, error) {
	p := properties.NewProperties()
	p.DisableExpansion = true
	w := &writer{p: p}
	w.set(keyVersion, strconv.Itoa(b.Version))
	w.set(keyProvider, b.Provider)
	w.set(keyCreated, b.CreatedAt.Format(timeLayout))
	w.set(keyCount, strconv.Itoa(len(b.Accounts)))
	for i, a := range b.Accounts {
		pre := fmt.Sprintf("account.%d.", i)
		w.set(pre+"id", strconv.FormatInt(a.ID, 10))
		w.set(pre+"holder", a.Holder)
		w.set(pre+"balance", a.Balance)
		w.set(pre+"created", a.CreatedAt.Format(timeLayout))
		w.set(pre+"kind", a.Kind)
		w.set(pre+"minimum_balance", a.MinimumBalance)
		w.set(pre+"overdraft_limit", a.OverdraftLimit)
		w.set(pre+"interest_rate", a.InterestRate)
		w.set(pre+"term_months", strconv.Itoa(a.TermMonths))
		if !a.MaturityDate.IsZero() {
			w.set(pre+"maturity_date", a.MaturityDate.Format(timeLayout))
		}
		w.set(pre+"tx.count", strconv.Itoa(len(a.Transactions)))
		for j, tx := range a.Transactions {
			tp := fmt.Sprintf("%stx.%d.", pre, j)
			w.set(tp+"id", tx.ID)
			w.set(tp+"amount", tx.Amount)
			w.set(tp+"timestamp", tx.Timestamp.Format(timeLayout))
			w.set(tp+"kind", tx.Kind)
			w.set(tp+"counterparty", strconv.FormatInt(tx.Counterparty, 10))
		}
	}
	if w.err != nil {
		return nil, w.err
	}
	var buf bytes.Buffer
	if _, err := p.Write(&buf, properties.UTF8); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type writer struct {
	p   *properties.Properties
	err error
}

func (w *writer) set(key, value string) {
	if w.err != nil {
		return
	}
	_, _, w.err = w.p.Set(key, value)
}

// Decode parses data written by Encode.
func Decode(data []byte) (snap.BankSnapshot, error) {
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadBytes(data)
	if err != nil {
		return snap.BankSnapshot{}, err
	}
	r := &reader{p: p}
	b := snap.BankSnapshot{
		Version:   r.num(keyVersion),
		Provider:  r.optional(keyProvider),
		CreatedAt: r.timestamp(keyCreated),
	}
	// Every entry needs at least one key, so no count can exceed the key total.
	limit := p.Len()
	count := r.count(keyCount, limit)
	for i := 0; i < count && r.err == nil; i++ {
		pre := fmt.Sprintf("account.%d.", i)
		a := snap.AccountSnapshot{
			ID:             r.id(pre + "id"),
			Holder:         r.str(pre + "holder"),
			Balance:        r.str(pre + "balance"),
			CreatedAt:      r.timestamp(pre + "created"),
			Kind:           r.str(pre + "kind"),
			MinimumBalance: r.optional(pre + "minimum_balance"),
			OverdraftLimit: r.optional(pre + "overdraft_limit"),
			InterestRate:   r.optional(pre + "interest_rate"),
			TermMonths:     r.num(pre + "term_months"),
		}
		if v := r.optional(pre + "maturity_date"); v != "" {
			a.MaturityDate = r.parseTime(pre+"maturity_date", v)
		}
		txCount := r.count(pre+"tx.count", limit)
		a.Transactions = make([]snap.TransactionSnapshot, 0, txCount)
		for j := 0; j < txCount && r.err == nil; j++ {
			tp := fmt.Sprintf("%stx.%d.", pre, j)
			a.Transactions = append(a.Transactions, snap.TransactionSnapshot{
				ID:           r.str(tp + "id"),
				Amount:       r.str(tp + "amount"),
				Timestamp:    r.timestamp(tp + "timestamp"),
				Kind:         r.str(tp + "kind"),
				Counterparty: r.id(tp + "counterparty"),
			})
		}
		b.Accounts = append(b.Accounts, a)
	}
	if r.err != nil {
		return snap.BankSnapshot{}, r.err
	}
	return b, nil
}

type reader struct {
	p   *properties.Properties
	err error
}

func (r *reader) str(key string) string {
	if r.err != nil {
		return ""
	}
	v, ok := r.p.Get(key)
	if !ok {
		r.err = fmt.Errorf("missing key %s", key)
	}
	return v
}

func (r *reader) optional(key string) string {
	v, _ := r.p.Get(key)
	return v
}

func (r *reader) num(key string) int {
	v := r.str(key)
	if r.err != nil {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.err = fmt.Errorf("key %s: %w", key, err)
	}
	return n
}

// count reads a collection size and rejects values outside [0, limit].
func (r *reader) count(key string, limit int) int {
	n := r.num(key)
	if r.err != nil {
		return 0
	}
	if n < 0 || n > limit {
		r.err = fmt.Errorf("key %s: count %d out of range [0, %d]", key, n, limit)
		return 0
	}
	return n
}

func (r *reader) id(key string) int64 {
	v := r.str(key)
	if r.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.err = fmt.Errorf("key %s: %w", key, err)
	}
	return n
}

func (r *reader) timestamp(key string) time.Time {
	v := r.str(key)
	if r.err != nil {
		return time.Time{}
	}
	return r.parseTime(key, v)
}

func (r *reader) parseTime(key, v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("key %s: %w", key, err)
	}
	return t
}
