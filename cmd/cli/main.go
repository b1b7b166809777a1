package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/amirasaad/bankcore/infra/initializer"
	"github.com/amirasaad/bankcore/pkg/bank"
	"github.com/amirasaad/bankcore/pkg/config"
	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/amirasaad/bankcore/pkg/operation"
	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
)

const usage = `Usage: cli <command> [arguments]
Commands:
  create <holder> <savings|current|fixed_deposit> [initial_deposit]
  deposit <account_id> <amount>
  withdraw <account_id> <amount>
  transfer <from_id> <to_id> <amount>
  show <account_id>
  list [query]
  close <account_id>
  interest
  report
  status`

var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		return
	}
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	cfg.Log.Level = int(log.WarnLevel)
	ctx := context.Background()
	deps, err := initializer.Build(ctx, cfg, initializer.NewLogger(os.Stderr, cfg.Log))
	if err != nil {
		return err
	}
	cmdErr := execute(ctx, deps.Bank, args, os.Stdout)
	return errors.Join(cmdErr, deps.Shutdown(ctx))
}

func execute(ctx context.Context, b *bank.Bank, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create":
		if len(rest) < 2 {
			return fmt.Errorf("%w: create <holder> <type> [initial_deposit]", errUsage)
		}
		typ, err := parseType(rest[1])
		if err != nil {
			return err
		}
		initial := decimal.Zero
		if len(rest) > 2 {
			if initial, err = decimal.NewFromString(rest[2]); err != nil {
				return fmt.Errorf("invalid amount %q: %w", rest[2], err)
			}
		}
		acc, err := b.CreateAccount(ctx, rest[0], typ, initial)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Account created: ID=%d, Holder=%s, Balance=%s\n", acc.ID, acc.Holder, acc.Balance.StringFixed(2))
	case "deposit", "withdraw":
		if len(rest) < 2 {
			return fmt.Errorf("%w: %s <account_id> <amount>", errUsage, cmd)
		}
		id, amount, err := parseIDAmount(rest[0], rest[1])
		if err != nil {
			return err
		}
		if cmd == "withdraw" {
			return printResult(ctx, b.Withdraw(ctx, id, amount), out)
		}
		return printResult(ctx, b.Deposit(ctx, id, amount), out)
	case "transfer":
		if len(rest) < 3 {
			return fmt.Errorf("%w: transfer <from_id> <to_id> <amount>", errUsage)
		}
		from, amount, err := parseIDAmount(rest[0], rest[2])
		if err != nil {
			return err
		}
		to, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid account id %q: %w", rest[1], err)
		}
		return printResult(ctx, b.Transfer(ctx, from, to, amount), out)
	case "show":
		if len(rest) < 1 {
			return fmt.Errorf("%w: show <account_id>", errUsage)
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid account id %q: %w", rest[0], err)
		}
		acc, err := b.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		printAccount(out, acc)
		for _, tx := range acc.Transactions {
			fmt.Fprintf(out, "  %s %-11s %12s  %s\n", tx.Timestamp.Format(time.RFC3339), tx.Kind, tx.Amount.StringFixed(2), tx.ID)
		}
	case "list":
		query := ""
		if len(rest) > 0 {
			query = rest[0]
		}
		for _, acc := range b.SearchAccounts(ctx, query) {
			printAccount(out, acc)
		}
	case "close":
		if len(rest) < 1 {
			return fmt.Errorf("%w: close <account_id>", errUsage)
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid account id %q: %w", rest[0], err)
		}
		closed, err := b.CloseAccount(ctx, id)
		if err != nil {
			return err
		}
		if !closed {
			return fmt.Errorf("account %d: %w", id, account.ErrAccountNotFound)
		}
		fmt.Fprintf(out, "Account %d closed\n", id)
	case "interest":
		n, err := b.AddInterestToAllSavingsAccounts(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Interest applied to %d accounts\n", n)
	case "report":
		res, err := b.GenerateReport(ctx).Wait(ctx)
		if err != nil {
			return err
		}
		if !res.Success {
			return res.Err
		}
		fmt.Fprint(out, res.Report.Format())
	case "status":
		st := b.PersistenceStatus()
		fmt.Fprintf(out, "provider=%s available=%t accounts=%d %s\n", st.Provider, st.Available, b.Count(), st.Message)
	default:
		return fmt.Errorf("%w: unknown command %q\n%s", errUsage, cmd, usage)
	}
	return nil
}

func parseType(s string) (account.Type, error) {
	switch s {
	case "savings":
		return account.NewSavings(), nil
	case "current":
		return account.Current{}, nil
	case "fixed_deposit":
		return account.NewFixedDeposit(12, time.Now().UTC()), nil
	default:
		return nil, fmt.Errorf("%w: %q", account.ErrInvalidType, s)
	}
}

func parseIDAmount(rawID, rawAmount string) (int64, decimal.Decimal, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("invalid account id %q: %w", rawID, err)
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("invalid amount %q: %w", rawAmount, err)
	}
	return id, amount, nil
}

func printResult(ctx context.Context, f *operation.Future, out io.Writer) error {
	res, err := f.Wait(ctx)
	if err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Message)
	}
	fmt.Fprintln(out, res.Message)
	for _, acc := range res.Accounts {
		printAccount(out, acc)
	}
	return nil
}

func printAccount(out io.Writer, acc *account.Account) {
	fmt.Fprintf(out, "%d  %-24s %-13s %12s\n", acc.ID, acc.Holder, acc.Kind(), acc.Balance.StringFixed(2))
}
