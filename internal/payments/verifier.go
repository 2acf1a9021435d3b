// internal/payments/verifier.go
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/quarrylabs/quarry-backend/internal/ledger"
)

type RejectReason string

const (
	ReasonChallengeNotFound             RejectReason = "challenge_not_found"
	ReasonExpired                       RejectReason = "expired"
	ReasonTransactionNotFound           RejectReason = "transaction_not_found"
	ReasonTransactionFailed             RejectReason = "transaction_failed"
	ReasonRecipientNotInTransaction     RejectReason = "recipient_not_in_transaction"
	ReasonRecipientTokenAccountNotFound RejectReason = "recipient_token_account_not_found"
	ReasonAmountInsufficient            RejectReason = "amount_insufficient"
	ReasonAlreadyConsumed               RejectReason = "already_consumed"
)

// A transfer within 5% of the requested amount is accepted, absorbing fee
// bookkeeping quirks on the recipient's balance delta.
var amountTolerance = decimal.RequireFromString("0.95")

// VerificationResult is produced once per verification attempt and never
// persisted.
type VerificationResult struct {
	Accepted      bool              `json:"accepted"`
	Reason        RejectReason      `json:"reason,omitempty"`
	ObservedDelta int64             `json:"observed_delta"`
	AccountIndex  int               `json:"account_index"`
	Challenge     *PaymentChallenge `json:"-"`
}

func reject(reason RejectReason) *VerificationResult {
	return &VerificationResult{Accepted: false, Reason: reason, AccountIndex: -1}
}

// Verifier decides whether a claimed transaction satisfies a pending
// challenge. Gateway errors other than not-found are returned to the caller
// as transient and never consume the challenge.
type Verifier struct {
	registry *Registry
	gateway  ledger.Gateway
}

func NewVerifier(registry *Registry, gateway ledger.Gateway) *Verifier {
	return &Verifier{registry: registry, gateway: gateway}
}

func (v *Verifier) Verify(ctx context.Context, challengeID, txSignature string) (*VerificationResult, error) {
	log := logrus.WithFields(logrus.Fields{
		"challenge_id": challengeID,
		"signature":    txSignature,
	})

	challenge, err := v.registry.GetPending(challengeID)
	if err != nil {
		log.Warn("Verification against unknown challenge")
		return reject(ReasonChallengeNotFound), nil
	}

	if v.registry.now().After(challenge.ExpiresAt) {
		v.registry.Consume(challengeID)
		log.Warn("Verification against expired challenge")
		return reject(ReasonExpired), nil
	}

	// The gateway call happens outside the registry lock; the challenge
	// stays pending until the accept decision below.
	tx, err := v.gateway.GetTransaction(ctx, txSignature)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return reject(ReasonTransactionNotFound), nil
		}
		return nil, fmt.Errorf("ledger lookup failed: %w", err)
	}

	if tx.Err != "" {
		log.WithField("tx_err", tx.Err).Warn("Claimed transaction failed on-chain")
		return reject(ReasonTransactionFailed), nil
	}

	result := v.matchTransfer(challenge, tx)
	if !result.Accepted {
		log.WithFields(logrus.Fields{
			"reason":   result.Reason,
			"observed": result.ObservedDelta,
			"expected": challenge.SmallestUnits,
		}).Info("Payment verification rejected")
		return result, nil
	}

	consumed, err := v.registry.Consume(challengeID)
	if err != nil {
		// A concurrent verification won the consume race.
		return reject(ReasonAlreadyConsumed), nil
	}
	result.Challenge = consumed

	log.WithFields(logrus.Fields{
		"observed": result.ObservedDelta,
		"expected": challenge.SmallestUnits,
	}).Info("Payment verified")
	return result, nil
}

func (v *Verifier) matchTransfer(challenge *PaymentChallenge, tx *ledger.Transaction) *VerificationResult {
	switch challenge.Asset.Kind {
	case AssetKindNative:
		return matchNativeTransfer(challenge, tx)
	case AssetKindToken:
		return matchTokenTransfer(challenge, tx)
	default:
		// Unreachable for challenges built through CreateChallenge,
		// which validates the asset.
		return reject(ReasonRecipientNotInTransaction)
	}
}

func matchNativeTransfer(challenge *PaymentChallenge, tx *ledger.Transaction) *VerificationResult {
	index := -1
	for i, account := range tx.Accounts {
		if account == challenge.Recipient {
			index = i
			break
		}
	}
	if index < 0 || index >= len(tx.PreBalances) || index >= len(tx.PostBalances) {
		return reject(ReasonRecipientNotInTransaction)
	}

	delta := tx.PostBalances[index] - tx.PreBalances[index]
	return scoreDelta(challenge, delta, index)
}

func matchTokenTransfer(challenge *PaymentChallenge, tx *ledger.Transaction) *VerificationResult {
	for _, post := range tx.PostTokenBalances {
		if post.Owner != challenge.Recipient || post.Mint != challenge.Asset.Mint {
			continue
		}

		var pre int64
		for _, p := range tx.PreTokenBalances {
			if p.AccountIndex == post.AccountIndex && p.Mint == post.Mint {
				pre = p.Amount
				break
			}
		}

		return scoreDelta(challenge, post.Amount-pre, post.AccountIndex)
	}

	return reject(ReasonRecipientTokenAccountNotFound)
}

func scoreDelta(challenge *PaymentChallenge, delta int64, index int) *VerificationResult {
	required := decimal.NewFromInt(challenge.SmallestUnits).Mul(amountTolerance)
	if decimal.NewFromInt(delta).GreaterThanOrEqual(required) {
		return &VerificationResult{
			Accepted:      true,
			ObservedDelta: delta,
			AccountIndex:  index,
		}
	}

	return &VerificationResult{
		Accepted:      false,
		Reason:        ReasonAmountInsufficient,
		ObservedDelta: delta,
		AccountIndex:  index,
	}
}
