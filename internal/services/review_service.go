// internal/services/review_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/quarrylabs/quarry-backend/internal/attestations"
	"github.com/quarrylabs/quarry-backend/internal/config"
	"github.com/quarrylabs/quarry-backend/internal/models"
	"github.com/quarrylabs/quarry-backend/internal/storage"
	"github.com/quarrylabs/quarry-backend/internal/utils"
)

var (
	ErrNoUsageReceipt  = errors.New("no usage receipt for this dataset version")
	ErrAlreadyReviewed = errors.New("wallet already reviewed this dataset version")
	ErrAlreadyVoted    = errors.New("wallet already voted on this review")
	ErrReviewNotFound  = errors.New("review not found")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrReviewTooLong   = errors.New("review text exceeds maximum length")
)

// reviewStore is the persistence surface the admission rules run against.
type reviewStore interface {
	ReceiptFor(wallet, datasetID, version string) (*models.UsageReceipt, error)
	HasReview(wallet, datasetID, version string) (bool, error)
	InsertReview(review *models.Review) error
}

// reviewRecomputer folds the review set back into the reputation record.
type reviewRecomputer interface {
	RecomputeWithReviews(datasetID, version string) (*models.ReputationRecord, error)
}

// ReviewService owns receipt-gated reviews and their helpful votes.
type ReviewService struct {
	db              *gorm.DB
	store           reviewStore
	issuer          *attestations.Issuer
	contentStore    storage.ContentStore
	reputation      reviewRecomputer
	maxReviewLength int
}

type CreateReviewRequest struct {
	DatasetID      string `json:"dataset_id" validate:"required,max=128"`
	DatasetVersion string `json:"dataset_version" validate:"required,max=64"`
	ReviewerWallet string `json:"reviewer_wallet" validate:"required,wallet"`
	Rating         int    `json:"rating" validate:"required,min=1,max=5"`
	ReviewText     string `json:"review_text,omitempty"`
}

func NewReviewService(db *gorm.DB, cfg *config.Config, issuer *attestations.Issuer, contentStore storage.ContentStore, reputation *ReputationService) *ReviewService {
	return &ReviewService{
		db:              db,
		store:           gormReviewStore{db: db},
		issuer:          issuer,
		contentStore:    contentStore,
		reputation:      reputation,
		maxReviewLength: cfg.Payments.MaxReviewLength,
	}
}

// CreateReview admits a review only for wallets holding a usage receipt
// for the same dataset version, one review per wallet. All local checks
// run before any external call. The duplicate check is advisory; the
// unique index is the authority, so a concurrent loser still surfaces
// ErrAlreadyReviewed.
func (s *ReviewService) CreateReview(ctx context.Context, req *CreateReviewRequest) (*models.Review, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidRating
	}
	if len(req.ReviewText) > s.maxReviewLength {
		return nil, ErrReviewTooLong
	}

	receipt, err := s.store.ReceiptFor(req.ReviewerWallet, req.DatasetID, req.DatasetVersion)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.HasReview(req.ReviewerWallet, req.DatasetID, req.DatasetVersion)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyReviewed
	}

	var reviewTextRef string
	if req.ReviewText != "" {
		reviewTextRef, err = s.contentStore.Put([]byte(req.ReviewText))
		if err != nil {
			return nil, fmt.Errorf("failed to store review text: %w", err)
		}
	}

	att, err := s.issuer.IssueReview(ctx, req.ReviewerWallet, req.DatasetID, req.DatasetVersion, req.Rating, reviewTextRef, receipt.AttestationID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue review attestation: %w", err)
	}

	review := &models.Review{
		DatasetID:               req.DatasetID,
		DatasetVersion:          req.DatasetVersion,
		ReviewerWallet:          req.ReviewerWallet,
		Rating:                  req.Rating,
		ReviewText:              req.ReviewText,
		ReviewTextRef:           reviewTextRef,
		UsageReceiptAttestation: receipt.AttestationID,
		ReviewAttestationID:     att.ID,
	}
	if err := s.store.InsertReview(review); err != nil {
		// The (reviewer, dataset, version) unique index caught a
		// concurrent duplicate the advisory check missed.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyReviewed
		}
		return nil, fmt.Errorf("failed to store review: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"review_id":  review.ID,
		"dataset_id": req.DatasetID,
		"wallet":     req.ReviewerWallet,
		"rating":     req.Rating,
	}).Info("Review created")

	if _, err := s.reputation.RecomputeWithReviews(req.DatasetID, req.DatasetVersion); err != nil && !errors.Is(err, ErrReputationNotFound) {
		logrus.WithError(err).Warn("Reputation recomputation failed after review")
	}
	return review, nil
}

// gormReviewStore is the postgres-backed reviewStore.
type gormReviewStore struct {
	db *gorm.DB
}

func (g gormReviewStore) ReceiptFor(wallet, datasetID, version string) (*models.UsageReceipt, error) {
	var receipt models.UsageReceipt
	err := g.db.Where(
		"reviewer_wallet = ? AND dataset_id = ? AND dataset_version = ?",
		wallet, datasetID, version,
	).First(&receipt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoUsageReceipt
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &receipt, nil
}

func (g gormReviewStore) HasReview(wallet, datasetID, version string) (bool, error) {
	var count int64
	err := g.db.Model(&models.Review{}).Where(
		"reviewer_wallet = ? AND dataset_id = ? AND dataset_version = ?",
		wallet, datasetID, version,
	).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return count > 0, nil
}

func (g gormReviewStore) InsertReview(review *models.Review) error {
	return g.db.Create(review).Error
}

// DatasetReviews is the paginated view of a dataset's reviews plus the
// summary statistics derived from the full set.
type DatasetReviews struct {
	Reviews       []models.Review `json:"reviews"`
	Total         int64           `json:"total"`
	AverageRating float64         `json:"average_rating"`
	Histogram     map[string]int  `json:"histogram"`
}

func (s *ReviewService) GetDatasetReviews(datasetID, version string, params utils.PaginationParams) (*DatasetReviews, error) {
	scope := func() *gorm.DB {
		q := s.db.Model(&models.Review{}).Where("dataset_id = ?", datasetID)
		if version != "" {
			q = q.Where("dataset_version = ?", version)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Average and histogram cover the full set, not just the page.
	var all []models.Review
	if err := scope().Find(&all).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	histogram := map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0}
	sum := 0
	for _, review := range all {
		histogram[fmt.Sprintf("%d", review.Rating)]++
		sum += review.Rating
	}
	average := 0.0
	if len(all) > 0 {
		average = float64(sum) / float64(len(all))
	}

	var page []models.Review
	paged := utils.ApplyPagination(scope(), params)
	paged = utils.ApplySort(paged, params, []string{"created_at", "rating", "helpful_count"})
	if err := paged.Find(&page).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &DatasetReviews{
		Reviews:       page,
		Total:         total,
		AverageRating: average,
		Histogram:     histogram,
	}, nil
}

// MarkReviewHelpful counts one vote per (review, voter).
func (s *ReviewService) MarkReviewHelpful(reviewID, voterWallet string) (*models.Review, error) {
	var review models.Review
	if err := s.db.First(&review, "id = ?", reviewID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		vote := &models.HelpfulVote{ReviewID: reviewID, VoterWallet: voterWallet}
		if err := tx.Create(vote).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyVoted
			}
			return fmt.Errorf("failed to record vote: %w", err)
		}

		return tx.Model(&review).
			UpdateColumn("helpful_count", gorm.Expr("helpful_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.First(&review, "id = ?", reviewID).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &review, nil
}
