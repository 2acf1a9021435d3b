// internal/services/review_service_test.go
package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/quarrylabs/quarry-backend/internal/attestations"
	"github.com/quarrylabs/quarry-backend/internal/ledger"
	"github.com/quarrylabs/quarry-backend/internal/models"
	"github.com/quarrylabs/quarry-backend/internal/storage"
)

const (
	reviewerWallet  = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	issuerAuthority = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
)

type fakeReviewStore struct {
	receipts  map[string]*models.UsageReceipt
	reviews   map[string]*models.Review
	insertErr error
}

func newFakeReviewStore() *fakeReviewStore {
	return &fakeReviewStore{
		receipts: make(map[string]*models.UsageReceipt),
		reviews:  make(map[string]*models.Review),
	}
}

func storeKey(wallet, datasetID, version string) string {
	return strings.Join([]string{wallet, datasetID, version}, "\x00")
}

func (f *fakeReviewStore) addReceipt(wallet, datasetID, version, attestationID string) {
	f.receipts[storeKey(wallet, datasetID, version)] = &models.UsageReceipt{
		AttestationID:  attestationID,
		ReviewerWallet: wallet,
		DatasetID:      datasetID,
		DatasetVersion: version,
	}
}

func (f *fakeReviewStore) ReceiptFor(wallet, datasetID, version string) (*models.UsageReceipt, error) {
	receipt, ok := f.receipts[storeKey(wallet, datasetID, version)]
	if !ok {
		return nil, ErrNoUsageReceipt
	}
	return receipt, nil
}

func (f *fakeReviewStore) HasReview(wallet, datasetID, version string) (bool, error) {
	_, ok := f.reviews[storeKey(wallet, datasetID, version)]
	return ok, nil
}

func (f *fakeReviewStore) InsertReview(review *models.Review) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	key := storeKey(review.ReviewerWallet, review.DatasetID, review.DatasetVersion)
	if _, ok := f.reviews[key]; ok {
		return gorm.ErrDuplicatedKey
	}
	f.reviews[key] = review
	return nil
}

type fakeRecomputer struct {
	calls int
	err   error
}

func (f *fakeRecomputer) RecomputeWithReviews(datasetID, version string) (*models.ReputationRecord, error) {
	f.calls++
	return &models.ReputationRecord{}, f.err
}

func newReviewFixture(t *testing.T) (*ReviewService, *fakeReviewStore, *fakeRecomputer) {
	t.Helper()
	store := newFakeReviewStore()
	recomputer := &fakeRecomputer{}
	service := &ReviewService{
		store:           store,
		issuer:          attestations.NewIssuer(ledger.NewMemoryLedger(), issuerAuthority),
		contentStore:    storage.NewMemoryStore(),
		reputation:      recomputer,
		maxReviewLength: 5000,
	}
	return service, store, recomputer
}

func reviewRequest() *CreateReviewRequest {
	return &CreateReviewRequest{
		DatasetID:      "ds-weather",
		DatasetVersion: "v3",
		ReviewerWallet: reviewerWallet,
		Rating:         4,
		ReviewText:     "Solid coverage, a few gaps in 2019.",
	}
}

func TestCreateReviewRequiresReceipt(t *testing.T) {
	service, _, recomputer := newReviewFixture(t)

	review, err := service.CreateReview(context.Background(), reviewRequest())
	assert.ErrorIs(t, err, ErrNoUsageReceipt)
	assert.Nil(t, review)
	assert.Zero(t, recomputer.calls)
}

func TestCreateReviewWithReceipt(t *testing.T) {
	service, store, recomputer := newReviewFixture(t)
	store.addReceipt(reviewerWallet, "ds-weather", "v3", "att-receipt-1")

	review, err := service.CreateReview(context.Background(), reviewRequest())
	require.NoError(t, err)

	assert.Equal(t, reviewerWallet, review.ReviewerWallet)
	assert.Equal(t, 4, review.Rating)
	assert.Equal(t, "att-receipt-1", review.UsageReceiptAttestation)
	assert.NotEmpty(t, review.ReviewAttestationID)
	assert.NotEmpty(t, review.ReviewTextRef)
	assert.Equal(t, 1, recomputer.calls)
}

func TestCreateReviewRejectsSecondReview(t *testing.T) {
	service, store, _ := newReviewFixture(t)
	store.addReceipt(reviewerWallet, "ds-weather", "v3", "att-receipt-1")

	_, err := service.CreateReview(context.Background(), reviewRequest())
	require.NoError(t, err)

	review, err := service.CreateReview(context.Background(), reviewRequest())
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.Nil(t, review)
}

// A concurrent writer can slip past the advisory duplicate check and
// lose to the unique index at insert time; the loser must still see
// ErrAlreadyReviewed rather than a generic failure.
func TestCreateReviewDuplicateKeyOnInsert(t *testing.T) {
	service, store, recomputer := newReviewFixture(t)
	store.addReceipt(reviewerWallet, "ds-weather", "v3", "att-receipt-1")
	store.insertErr = gorm.ErrDuplicatedKey

	review, err := service.CreateReview(context.Background(), reviewRequest())
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.Nil(t, review)
	assert.Zero(t, recomputer.calls)
}

func TestCreateReviewTooLong(t *testing.T) {
	service, store, _ := newReviewFixture(t)
	store.addReceipt(reviewerWallet, "ds-weather", "v3", "att-receipt-1")

	req := reviewRequest()
	req.ReviewText = strings.Repeat("a", 5001)

	_, err := service.CreateReview(context.Background(), req)
	assert.ErrorIs(t, err, ErrReviewTooLong)
}

func TestCreateReviewRejectsBadRating(t *testing.T) {
	service, store, _ := newReviewFixture(t)
	store.addReceipt(reviewerWallet, "ds-weather", "v3", "att-receipt-1")

	for _, rating := range []int{-1, 6} {
		req := reviewRequest()
		req.Rating = rating
		_, err := service.CreateReview(context.Background(), req)
		assert.Error(t, err)
	}
}

func TestCreateReviewTolerantOfRecomputeFailure(t *testing.T) {
	service, store, recomputer := newReviewFixture(t)
	store.addReceipt(reviewerWallet, "ds-weather", "v3", "att-receipt-1")
	recomputer.err = ErrReputationNotFound

	review, err := service.CreateReview(context.Background(), reviewRequest())
	require.NoError(t, err)
	assert.NotNil(t, review)
}
