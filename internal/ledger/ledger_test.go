// internal/ledger/ledger_test.go
package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerWriteMemoRoundTrip(t *testing.T) {
	mem := NewMemoryLedger()

	sig, err := mem.WriteMemo(context.Background(), []byte(`{"hello":"world"}`))
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	tx, err := mem.GetTransaction(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, sig, tx.Signature)
	assert.Equal(t, []string{`{"hello":"world"}`}, tx.Memos)
	assert.Empty(t, tx.Err)
}

func TestMemoryLedgerDistinctSignatures(t *testing.T) {
	mem := NewMemoryLedger()

	a, err := mem.WriteMemo(context.Background(), []byte("same payload"))
	require.NoError(t, err)
	b, err := mem.WriteMemo(context.Background(), []byte("same payload"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestMemoryLedgerNotFound(t *testing.T) {
	mem := NewMemoryLedger()

	_, err := mem.GetTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestMemoryLedgerPutRejectsDuplicates(t *testing.T) {
	mem := NewMemoryLedger()

	require.NoError(t, mem.Put(&Transaction{Signature: "sig-1"}))
	assert.Error(t, mem.Put(&Transaction{Signature: "sig-1"}))
}

func TestUnknownOutcomeError(t *testing.T) {
	inner := errors.New("timeout")
	err := error(&UnknownOutcomeError{Signature: "sig", Err: inner})

	assert.True(t, IsUnknownOutcome(err))
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "sig")

	assert.False(t, IsUnknownOutcome(errors.New("other")))
	assert.False(t, IsUnknownOutcome(nil))
}

func TestLoadAuthorityKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	fromSeed, err := loadAuthorityKey(base58.Encode(priv.Seed()))
	require.NoError(t, err)
	assert.Equal(t, pub, fromSeed.Public())

	fromFull, err := loadAuthorityKey(base58.Encode(priv))
	require.NoError(t, err)
	assert.Equal(t, pub, fromFull.Public())

	_, err = loadAuthorityKey(base58.Encode([]byte("short")))
	assert.Error(t, err)

	_, err = loadAuthorityKey("not-base58-0OIl")
	assert.Error(t, err)
}

func TestAppendCompactU16(t *testing.T) {
	tests := []struct {
		value    int
		expected []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{500, []byte{0xf4, 0x03}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, appendCompactU16(nil, tt.value), "value %d", tt.value)
	}
}
