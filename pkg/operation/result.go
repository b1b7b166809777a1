package operation

import (
	"github.com/amirasaad/bankcore/pkg/domain/account"
)

// Result is the immutable outcome of an operation. Accounts holds the updated
// working copies on success; Err is set when the operation failed.
type Result struct {
	Success  bool
	Message  string
	Accounts []*account.Account
	Report   *Report
	Err      error
}

// Succeeded builds a successful result carrying the updated accounts.
func Succeeded(message string, accounts ...*account.Account) Result {
	return Result{Success: true, Message: message, Accounts: accounts}
}

// Failed builds a failed result. The message is derived from err when empty.
func Failed(message string, err error) Result {
	if message == "" && err != nil {
		message = err.Error()
	}
	return Result{Message: message, Err: err}
}
