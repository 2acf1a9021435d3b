// internal/attestations/attestation_test.go
package attestations

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry-backend/internal/ledger"
	"github.com/quarrylabs/quarry-backend/internal/models"
)

func newFixture(t *testing.T) (*ledger.MemoryLedger, *Issuer, *Verifier) {
	t.Helper()
	mem := ledger.NewMemoryLedger()
	authority := mem.AuthorityAddress()
	return mem, NewIssuer(mem, authority), NewVerifier(mem, authority)
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	_, issuer, verifier := newFixture(t)

	att, err := issuer.Issue(context.Background(), SchemaPublisherVerified, "SomePublisherWallet", map[string]interface{}{
		"publisher_pubkey":   "SomePublisherWallet",
		"verification_level": 2,
		"jurisdiction":       "CH",
	}, PublisherExpiry)
	require.NoError(t, err)
	require.NotEmpty(t, att.ID)
	require.NotNil(t, att.ExpiresAt)

	result, err := verifier.Verify(context.Background(), att.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.True(t, result.IssuerVerified)
	assert.True(t, result.SchemaValid)
	assert.False(t, result.Expired)

	require.NotNil(t, result.Attestation)
	assert.Equal(t, SchemaPublisherVerified, result.Attestation.Schema)
	assert.Equal(t, "SomePublisherWallet", result.Attestation.Subject)
	assert.Equal(t, float64(2), result.Attestation.Data["verification_level"])
}

func TestIssueUnknownSchema(t *testing.T) {
	_, issuer, _ := newFixture(t)

	_, err := issuer.Issue(context.Background(), "dataset_quality_v9", "subject", nil, 0)
	assert.ErrorIs(t, err, ErrUnknownSchema)
}

func TestIssuePermanentAttestation(t *testing.T) {
	_, issuer, verifier := newFixture(t)

	att, err := issuer.IssueUsageReceipt(context.Background(), "ReviewerWallet", "ds-1", "v1", "sig-1", 1000, 250_000)
	require.NoError(t, err)
	assert.Nil(t, att.ExpiresAt)

	result, err := verifier.Verify(context.Background(), att.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.False(t, result.Expired)
}

func TestVerifyExpiredAttestation(t *testing.T) {
	mem, issuer, _ := newFixture(t)

	att, err := issuer.IssueDatasetFreshness(context.Background(), "ds-1", "v1", models.FreshnessCheck{
		Status:        models.FreshnessFresh,
		MaxAgeSeconds: 86400,
	})
	require.NoError(t, err)

	verifier := NewVerifier(mem, mem.AuthorityAddress())
	verifier.now = func() time.Time { return time.Now().Add(FreshnessExpiry + time.Hour) }

	result, err := verifier.Verify(context.Background(), att.ID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, result.Expired)
	assert.True(t, result.IssuerVerified)
	assert.Equal(t, InvalidExpired, result.Reason)
}

func TestVerifyForeignIssuer(t *testing.T) {
	mem, issuer, _ := newFixture(t)

	att, err := issuer.IssuePublisherVerified(context.Background(), "Wallet", models.PublisherLevelBasic, "US", "")
	require.NoError(t, err)

	other := NewVerifier(mem, "SomeOtherAuthority")
	result, err := other.Verify(context.Background(), att.ID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.False(t, result.IssuerVerified)
	assert.Equal(t, InvalidWrongIssuer, result.Reason)
}

func TestVerifyMissingAttestation(t *testing.T) {
	_, _, verifier := newFixture(t)

	result, err := verifier.Verify(context.Background(), "no-such-signature")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, InvalidNotFound, result.Reason)
}

func TestVerifyTransactionWithoutEnvelope(t *testing.T) {
	mem, _, verifier := newFixture(t)
	require.NoError(t, mem.Put(&ledger.Transaction{
		Signature: "plain-transfer",
		Memos:     []string{"gm"},
	}))

	result, err := verifier.Verify(context.Background(), "plain-transfer")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, InvalidNoEnvelope, result.Reason)
}

func TestTruncationKeepsEnvelopeDecodable(t *testing.T) {
	mem, issuer, verifier := newFixture(t)

	data := map[string]interface{}{
		"publisher_pubkey":   "Wallet",
		"verification_level": 1,
		"jurisdiction":       "DE",
		"evidence_uri":       strings.Repeat("x", 2000),
	}
	att, err := issuer.Issue(context.Background(), SchemaPublisherVerified, "Wallet", data, PublisherExpiry)
	require.NoError(t, err)

	tx, err := mem.GetTransaction(context.Background(), att.ID)
	require.NoError(t, err)
	require.Len(t, tx.Memos, 1)
	assert.LessOrEqual(t, len(tx.Memos[0]), 500)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(tx.Memos[0]), &decoded))
	assert.Equal(t, "quarry_attestation", decoded["type"])

	result, err := verifier.Verify(context.Background(), att.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Contains(t, result.Attestation.Data, "truncated")
}

func TestDeriveDatasetSubjectIsStable(t *testing.T) {
	a := DeriveDatasetSubject("ds-1", "v1")
	b := DeriveDatasetSubject("ds-1", "v1")
	c := DeriveDatasetSubject("ds-1", "v2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEmpty(t, a)
}

func TestSchemaRegistry(t *testing.T) {
	names := ListSchemas()
	assert.Equal(t, []string{
		SchemaPublisherVerified,
		SchemaDatasetQuality,
		SchemaDatasetFreshness,
		SchemaUsageReceipt,
		SchemaDatasetReview,
	}, names)

	for _, name := range names {
		schema, ok := GetSchema(name)
		assert.True(t, ok)
		assert.Equal(t, 1, schema.Version)
		assert.NotEmpty(t, schema.Fields)
	}

	assert.False(t, IsRegisteredSchema("dataset_quality_v2"))
}
