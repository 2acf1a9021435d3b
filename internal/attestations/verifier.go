// internal/attestations/verifier.go
package attestations

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quarrylabs/quarry-backend/internal/ledger"
)

type InvalidReason string

const (
	InvalidNotFound      InvalidReason = "attestation_not_found"
	InvalidTxFailed      InvalidReason = "anchor_transaction_failed"
	InvalidNoEnvelope    InvalidReason = "no_attestation_in_transaction"
	InvalidBadEnvelope   InvalidReason = "malformed_envelope"
	InvalidWrongIssuer   InvalidReason = "issuer_mismatch"
	InvalidUnknownSchema InvalidReason = "unknown_schema"
	InvalidExpired       InvalidReason = "expired"
)

// Verification is the outcome of re-checking an anchored attestation.
// Valid means active, issuer-verified, and schema-registered, all at once.
type Verification struct {
	Valid          bool          `json:"valid"`
	Expired        bool          `json:"expired"`
	IssuerVerified bool          `json:"issuer_verified"`
	SchemaValid    bool          `json:"schema_valid"`
	Reason         InvalidReason `json:"reason,omitempty"`
	Attestation    *Attestation  `json:"attestation,omitempty"`
	CheckedAt      time.Time     `json:"checked_at"`
}

// Verifier re-derives attestation validity from the chain rather than
// trusting local state.
type Verifier struct {
	gateway   ledger.Gateway
	authority string
	now       func() time.Time
}

func NewVerifier(gateway ledger.Gateway, authority string) *Verifier {
	return &Verifier{gateway: gateway, authority: authority, now: time.Now}
}

const envelopePrefix = `{"type":"quarry_attestation"`

// Verify fetches the anchoring transaction and validates the embedded
// envelope. Gateway failures other than not-found surface as errors so
// callers can distinguish "invalid" from "could not check".
func (v *Verifier) Verify(ctx context.Context, attestationID string) (*Verification, error) {
	checkedAt := v.now().UTC()
	invalid := func(reason InvalidReason) *Verification {
		return &Verification{Reason: reason, CheckedAt: checkedAt}
	}

	tx, err := v.gateway.GetTransaction(ctx, attestationID)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return invalid(InvalidNotFound), nil
		}
		return nil, err
	}

	if tx.Err != "" {
		return invalid(InvalidTxFailed), nil
	}

	env, ok := findEnvelope(tx.Memos)
	if !ok {
		return invalid(InvalidNoEnvelope), nil
	}

	att, err := decodeEnvelope(attestationID, env)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"attestation_id": attestationID,
			"error":          err,
		}).Warn("Malformed attestation envelope on-chain")
		return invalid(InvalidBadEnvelope), nil
	}

	result := &Verification{
		Attestation:    att,
		IssuerVerified: att.Issuer == v.authority,
		SchemaValid:    IsRegisteredSchema(att.Schema),
		CheckedAt:      checkedAt,
	}
	if att.ExpiresAt != nil && checkedAt.After(*att.ExpiresAt) {
		result.Expired = true
	}

	switch {
	case !result.IssuerVerified:
		result.Reason = InvalidWrongIssuer
	case !result.SchemaValid:
		result.Reason = InvalidUnknownSchema
	case result.Expired:
		result.Reason = InvalidExpired
	default:
		result.Valid = true
	}
	return result, nil
}

// findEnvelope picks the first memo carrying an attestation envelope.
// Anchoring transactions carry exactly one, but foreign transactions may
// hold unrelated memos.
func findEnvelope(memos []string) (string, bool) {
	for _, memo := range memos {
		if strings.HasPrefix(memo, envelopePrefix) {
			return memo, true
		}
	}
	return "", false
}

func decodeEnvelope(id, raw string) (*Attestation, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, err
	}

	issuedAt, err := time.Parse(time.RFC3339, env.IssuedAt)
	if err != nil {
		return nil, err
	}

	att := &Attestation{
		ID:       id,
		Schema:   env.Schema,
		Subject:  env.Subject,
		Issuer:   env.Issuer,
		Data:     env.Data,
		IssuedAt: issuedAt,
	}
	if env.ExpiresAt != nil {
		expiresAt, err := time.Parse(time.RFC3339, *env.ExpiresAt)
		if err != nil {
			return nil, err
		}
		att.ExpiresAt = &expiresAt
	}
	return att, nil
}
