// internal/payments/challenge.go
package payments

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/quarrylabs/quarry-backend/internal/config"
)

var (
	ErrNoRecipient       = errors.New("no payment recipient configured")
	ErrChallengeNotFound = errors.New("payment challenge not found")
	ErrInvalidAmount     = errors.New("payment amount must be positive")
)

// PaymentChallenge is a short-lived, single-use record describing a
// required payment. Immutable once created.
type PaymentChallenge struct {
	ID            string          `json:"challenge_id"`
	Recipient     string          `json:"recipient"`
	Asset         Asset           `json:"asset"`
	Amount        decimal.Decimal `json:"amount"`
	SmallestUnits int64           `json:"smallest_units"`
	ResourceID    string          `json:"resource_id"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// Registry owns the pending-challenge state. Challenges are process-local;
// a restart forgets them and the payer re-requests one.
type Registry struct {
	mu             sync.Mutex
	pending        map[string]*PaymentChallenge
	window         time.Duration
	platformWallet string
	now            func() time.Time
}

func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		pending:        make(map[string]*PaymentChallenge),
		window:         time.Duration(cfg.Payments.ChallengeWindow) * time.Second,
		platformWallet: cfg.Payments.PlatformWallet,
		now:            time.Now,
	}
}

// CreateChallenge registers a new pending challenge. The recipient falls
// back to the platform wallet when the publisher has none configured.
func (r *Registry) CreateChallenge(recipient string, asset Asset, amount decimal.Decimal, resourceID, description string) (*PaymentChallenge, error) {
	if recipient == "" {
		recipient = r.platformWallet
	}
	if recipient == "" {
		return nil, ErrNoRecipient
	}
	if err := asset.Validate(); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	createdAt := r.now()
	challenge := &PaymentChallenge{
		ID:            uuid.NewString(),
		Recipient:     recipient,
		Asset:         asset,
		Amount:        amount,
		SmallestUnits: amount.Shift(int32(asset.Decimals)).IntPart(),
		ResourceID:    resourceID,
		Description:   description,
		CreatedAt:     createdAt,
		ExpiresAt:     createdAt.Add(r.window),
	}

	r.mu.Lock()
	r.pending[challenge.ID] = challenge
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"challenge_id": challenge.ID,
		"recipient":    challenge.Recipient,
		"asset":        challenge.Asset.Symbol,
		"amount":       challenge.Amount.String(),
		"resource_id":  resourceID,
	}).Info("Payment challenge created")

	return challenge, nil
}

// GetPending returns a challenge without consuming it.
func (r *Registry) GetPending(challengeID string) (*PaymentChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenge, ok := r.pending[challengeID]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	return challenge, nil
}

// Consume atomically removes and returns a challenge. Of any number of
// concurrent callers, exactly one gets the challenge; the rest get
// ErrChallengeNotFound.
func (r *Registry) Consume(challengeID string) (*PaymentChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenge, ok := r.pending[challengeID]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	delete(r.pending, challengeID)
	return challenge, nil
}

// Sweep drops expired challenges. Best-effort: the verifier re-checks
// expiry synchronously, so sweeping cadence is not a correctness concern.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, challenge := range r.pending {
		if now.After(challenge.ExpiresAt) {
			delete(r.pending, id)
			removed++
		}
	}

	if removed > 0 {
		logrus.WithField("count", removed).Debug("Swept expired payment challenges")
	}
	return removed
}

// StartSweeper runs Sweep on an interval until stop is closed.
func (r *Registry) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-stop:
				return
			}
		}
	}()
}
