// internal/ledger/gateway.go
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// ErrTransactionNotFound is returned when the chain has no record of the
// requested signature.
var ErrTransactionNotFound = errors.New("transaction not found")

// Gateway is the read-only view of the external chain.
type Gateway interface {
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)
}

// Anchor writes small immutable payloads to the chain and returns the
// signature of the anchoring transaction.
type Anchor interface {
	WriteMemo(ctx context.Context, data []byte) (string, error)
}

// Transaction is the parsed record of one confirmed transaction.
// Balances are index-aligned with Accounts and expressed in smallest units.
type Transaction struct {
	Signature         string
	Err               string // empty when the transaction executed successfully
	Accounts          []string
	PreBalances       []int64
	PostBalances      []int64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	Memos             []string
}

// TokenBalance is one token-account balance snapshot inside a transaction.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       int64
}

// UnknownOutcomeError reports a write that was submitted but whose fate
// could not be confirmed. Callers must reconcile by re-querying before
// retrying, since a blind retry risks a duplicate on-chain write.
type UnknownOutcomeError struct {
	Signature string
	Err       error
}

func (e *UnknownOutcomeError) Error() string {
	return fmt.Sprintf("unknown outcome for transaction %s: %v", e.Signature, e.Err)
}

func (e *UnknownOutcomeError) Unwrap() error { return e.Err }

// IsUnknownOutcome reports whether err wraps an UnknownOutcomeError.
func IsUnknownOutcome(err error) bool {
	var uoe *UnknownOutcomeError
	return errors.As(err, &uoe)
}
