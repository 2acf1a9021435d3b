// internal/ledger/memory.go
package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"
)

// MemoryLedger is the in-memory stand-in for the chain, wired in by
// configuration for development and tests. Its observable behaviour matches
// the RPC client: memo writes produce transactions that GetTransaction can
// fetch and decode.
type MemoryLedger struct {
	mu         sync.Mutex
	txs        map[string]*Transaction
	counter    uint64
	authPubkey string
}

func NewMemoryLedger() *MemoryLedger {
	pub, _, _ := ed25519.GenerateKey(rand.Reader)
	return &MemoryLedger{
		txs:        make(map[string]*Transaction),
		authPubkey: base58.Encode(pub),
	}
}

// AuthorityAddress returns the pseudo-authority this ledger signs as.
func (m *MemoryLedger) AuthorityAddress() string { return m.authPubkey }

func (m *MemoryLedger) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[signature]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

func (m *MemoryLedger) WriteMemo(ctx context.Context, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	digest := sha256.Sum256(append(data, byte(m.counter), byte(m.counter>>8)))
	signature := base58.Encode(digest[:])

	m.txs[signature] = &Transaction{
		Signature: signature,
		Accounts:  []string{m.authPubkey},
		Memos:     []string{string(data)},
	}
	return signature, nil
}

// Put seeds a transaction, letting tests stage payment transfers without a
// chain. The signature must be unique.
func (m *MemoryLedger) Put(tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.txs[tx.Signature]; exists {
		return fmt.Errorf("transaction %s already recorded", tx.Signature)
	}
	m.txs[tx.Signature] = tx
	return nil
}
