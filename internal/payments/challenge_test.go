// internal/payments/challenge_test.go
package payments

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry-backend/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Payments: config.PaymentsConfig{
			PlatformWallet:  "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
			ChallengeWindow: 300,
		},
	}
}

func TestCreateChallenge(t *testing.T) {
	registry := NewRegistry(testConfig())

	challenge, err := registry.CreateChallenge(
		"", NativeAsset(), decimal.RequireFromString("0.5"), "dataset-1", "access to dataset-1")
	require.NoError(t, err)

	assert.NotEmpty(t, challenge.ID)
	assert.Equal(t, "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", challenge.Recipient)
	assert.Equal(t, int64(500_000_000), challenge.SmallestUnits)
	assert.Equal(t, 300*time.Second, challenge.ExpiresAt.Sub(challenge.CreatedAt))

	pending, err := registry.GetPending(challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.ID, pending.ID)
}

func TestCreateChallengeExplicitRecipient(t *testing.T) {
	registry := NewRegistry(testConfig())

	challenge, err := registry.CreateChallenge(
		"9aE476sH92Vz7DMPyq5WLPkrKWivxeuTKEFKd2sZZcde",
		TokenAsset("USDC", "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU", 6),
		decimal.RequireFromString("12.5"), "dataset-2", "")
	require.NoError(t, err)

	assert.Equal(t, "9aE476sH92Vz7DMPyq5WLPkrKWivxeuTKEFKd2sZZcde", challenge.Recipient)
	assert.Equal(t, int64(12_500_000), challenge.SmallestUnits)
}

func TestCreateChallengeNoRecipient(t *testing.T) {
	cfg := testConfig()
	cfg.Payments.PlatformWallet = ""
	registry := NewRegistry(cfg)

	_, err := registry.CreateChallenge("", NativeAsset(), decimal.NewFromInt(1), "r", "")
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestCreateChallengeRejectsBadInput(t *testing.T) {
	registry := NewRegistry(testConfig())

	_, err := registry.CreateChallenge("", NativeAsset(), decimal.Zero, "r", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = registry.CreateChallenge("", NativeAsset(), decimal.NewFromInt(-1), "r", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = registry.CreateChallenge("", TokenAsset("USDC", "", 6), decimal.NewFromInt(1), "r", "")
	assert.Error(t, err)
}

func TestConsumeIsOneShot(t *testing.T) {
	registry := NewRegistry(testConfig())
	challenge, err := registry.CreateChallenge("", NativeAsset(), decimal.NewFromInt(1), "r", "")
	require.NoError(t, err)

	consumed, err := registry.Consume(challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.ID, consumed.ID)

	_, err = registry.Consume(challenge.ID)
	assert.ErrorIs(t, err, ErrChallengeNotFound)

	_, err = registry.GetPending(challenge.ID)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestConcurrentConsumeExactlyOneWins(t *testing.T) {
	registry := NewRegistry(testConfig())
	challenge, err := registry.CreateChallenge("", NativeAsset(), decimal.NewFromInt(1), "r", "")
	require.NoError(t, err)

	const callers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := registry.Consume(challenge.ID); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1)
}

func TestSweepRemovesExpired(t *testing.T) {
	registry := NewRegistry(testConfig())

	expired, err := registry.CreateChallenge("", NativeAsset(), decimal.NewFromInt(1), "old", "")
	require.NoError(t, err)

	registry.now = func() time.Time { return time.Now().Add(301 * time.Second) }
	fresh, err := registry.CreateChallenge("", NativeAsset(), decimal.NewFromInt(1), "new", "")
	require.NoError(t, err)

	removed := registry.Sweep()
	assert.Equal(t, 1, removed)

	_, err = registry.GetPending(expired.ID)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
	_, err = registry.GetPending(fresh.ID)
	assert.NoError(t, err)
}
