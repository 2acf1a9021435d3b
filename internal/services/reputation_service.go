// internal/services/reputation_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/quarrylabs/quarry-backend/internal/attestations"
	"github.com/quarrylabs/quarry-backend/internal/models"
	"github.com/quarrylabs/quarry-backend/internal/storage"
)

var ErrReputationNotFound = errors.New("reputation record not found")

// ReputationService aggregates one automated QA report with verified user
// reviews into a single per-dataset-version record.
type ReputationService struct {
	db           *gorm.DB
	issuer       *attestations.Issuer
	contentStore storage.ContentStore

	// Recomputation is a read-modify-write on one record; writers for the
	// same dataset+version serialize here, different datasets do not.
	// Entries are one bare mutex per dataset version and are never
	// evicted; the map grows with the catalog, not with traffic.
	locks sync.Map
}

func NewReputationService(db *gorm.DB, issuer *attestations.Issuer, contentStore storage.ContentStore) *ReputationService {
	return &ReputationService{
		db:           db,
		issuer:       issuer,
		contentStore: contentStore,
	}
}

func (s *ReputationService) lockFor(datasetID, version string) *sync.Mutex {
	key := datasetID + "\x00" + version
	mu, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ProcessDatasetReputation ingests a completed QA pass: stores the report,
// anchors quality and freshness attestations, derives badges, and replaces
// any prior record for the dataset version.
func (s *ReputationService) ProcessDatasetReputation(ctx context.Context, datasetID, datasetName, version string, report *models.QAReport) (*models.ReputationRecord, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QA report: %w", err)
	}
	reportRef, err := s.contentStore.Put(reportJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to store QA report: %w", err)
	}

	quality, err := s.issuer.IssueDatasetQuality(ctx, datasetID, version, report, reportRef)
	if err != nil {
		return nil, fmt.Errorf("failed to issue quality attestation: %w", err)
	}
	freshness, err := s.issuer.IssueDatasetFreshness(ctx, datasetID, version, report.Freshness)
	if err != nil {
		return nil, fmt.Errorf("failed to issue freshness attestation: %w", err)
	}

	badges := calculateBadges(report.QualityScore, report.PIIRisk.RiskLevel, report.Freshness.Status, true)
	badgesJSON, err := badgesToJSONB(badges)
	if err != nil {
		return nil, err
	}

	mu := s.lockFor(datasetID, version)
	mu.Lock()
	defer mu.Unlock()

	record := &models.ReputationRecord{
		DatasetID:      datasetID,
		DatasetName:    datasetName,
		DatasetVersion: version,
		SubjectAddress: attestations.DeriveDatasetSubject(datasetID, version),
		QualityScore:   report.QualityScore,
		CombinedScore:  report.QualityScore,
		Badges:         badgesJSON,
		QAReportRef:    reportRef,

		QualityAttestationID:   quality.ID,
		QualityIssuedAt:        &quality.IssuedAt,
		QualityExpiresAt:       quality.ExpiresAt,
		FreshnessAttestationID: freshness.ID,
		FreshnessIssuedAt:      &freshness.IssuedAt,
		FreshnessExpiresAt:     freshness.ExpiresAt,
	}

	var existing models.ReputationRecord
	err = s.db.Where("dataset_id = ? AND dataset_version = ?", datasetID, version).First(&existing).Error
	switch {
	case err == nil:
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		if err := s.db.Save(record).Error; err != nil {
			return nil, fmt.Errorf("failed to update reputation record: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(record).Error; err != nil {
			return nil, fmt.Errorf("failed to create reputation record: %w", err)
		}
	default:
		return nil, fmt.Errorf("database error: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"dataset_id":    datasetID,
		"version":       version,
		"quality_score": report.QualityScore,
	}).Info("Dataset reputation processed")

	// Prior reviews survive a new QA pass; fold them back in.
	return s.recomputeLocked(datasetID, version)
}

// RecomputeWithReviews folds the current review set into the record's
// combined score. Safe to call after every review mutation.
func (s *ReputationService) RecomputeWithReviews(datasetID, version string) (*models.ReputationRecord, error) {
	mu := s.lockFor(datasetID, version)
	mu.Lock()
	defer mu.Unlock()
	return s.recomputeLocked(datasetID, version)
}

func (s *ReputationService) recomputeLocked(datasetID, version string) (*models.ReputationRecord, error) {
	var record models.ReputationRecord
	if err := s.db.Where("dataset_id = ? AND dataset_version = ?", datasetID, version).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReputationNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	var reviews []models.Review
	if err := s.db.Where("dataset_id = ? AND dataset_version = ?", datasetID, version).Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	histogram := map[string]interface{}{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0}
	total := 0
	for _, review := range reviews {
		if review.Rating < 1 || review.Rating > 5 {
			continue
		}
		key := fmt.Sprintf("%d", review.Rating)
		histogram[key] = histogram[key].(int) + 1
		total += review.Rating
	}

	record.TotalReviews = len(reviews)
	record.VerifiedReviews = len(reviews)
	record.RatingHistogram = models.JSONB(histogram)

	if len(reviews) > 0 {
		record.UserRating = float64(total) / float64(len(reviews))
	} else {
		record.UserRating = 0
	}
	record.CombinedScore = combineScores(record.QualityScore, record.UserRating, len(reviews))

	if err := s.db.Save(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to update reputation record: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"dataset_id":     datasetID,
		"version":        version,
		"combined_score": record.CombinedScore,
		"total_reviews":  record.TotalReviews,
	}).Debug("Reputation recomputed")
	return &record, nil
}

// GetReputation returns the record for one dataset version.
func (s *ReputationService) GetReputation(datasetID, version string) (*models.ReputationRecord, error) {
	var record models.ReputationRecord
	if err := s.db.Where("dataset_id = ? AND dataset_version = ?", datasetID, version).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReputationNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &record, nil
}

// CreateUsageReceipt anchors a usage-receipt attestation and records it
// durably; the attestation id later gates the wallet's right to review.
func (s *ReputationService) CreateUsageReceipt(ctx context.Context, wallet, datasetID, version, txSignature string, rowsAccessed int64, costPaid float64) (*models.UsageReceipt, error) {
	costUnits := int64(math.Round(costPaid * 1e9))
	att, err := s.issuer.IssueUsageReceipt(ctx, wallet, datasetID, version, txSignature, rowsAccessed, costUnits)
	if err != nil {
		return nil, fmt.Errorf("failed to issue usage receipt: %w", err)
	}

	receipt := &models.UsageReceipt{
		AttestationID:  att.ID,
		ReviewerWallet: wallet,
		DatasetID:      datasetID,
		DatasetVersion: version,
		TxSignature:    txSignature,
		RowsAccessed:   rowsAccessed,
		CostPaid:       costPaid,
	}
	if err := s.db.Create(receipt).Error; err != nil {
		return nil, fmt.Errorf("failed to store usage receipt: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"attestation_id": att.ID,
		"wallet":         wallet,
		"dataset_id":     datasetID,
	}).Info("Usage receipt created")
	return receipt, nil
}

// VerifyPublisher anchors a publisher-verification attestation.
func (s *ReputationService) VerifyPublisher(ctx context.Context, wallet string, level models.PublisherVerificationLevel, jurisdiction, evidenceRef string) (*attestations.Attestation, error) {
	att, err := s.issuer.IssuePublisherVerified(ctx, wallet, level, jurisdiction, evidenceRef)
	if err != nil {
		return nil, fmt.Errorf("failed to issue publisher verification: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"attestation_id": att.ID,
		"wallet":         wallet,
		"level":          int(level),
	}).Info("Publisher verified")
	return att, nil
}

// combineScores blends the automated score with user sentiment. Reviews
// earn influence gradually and are capped at 40% so a handful of ratings
// cannot override structural QA findings.
func combineScores(qualityScore int, userRating float64, reviewCount int) int {
	if reviewCount == 0 {
		return clampScore(qualityScore)
	}

	userScore := userRating / 5.0 * 100.0
	weight := math.Min(0.4, 0.1+0.03*float64(reviewCount))
	combined := float64(qualityScore)*(1-weight) + userScore*weight
	return clampScore(int(math.Round(combined)))
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// calculateBadges derives the badge set from scratch. Order is part of the
// API surface and fixed.
func calculateBadges(qualityScore int, piiRisk models.PIIRiskLevel, freshness models.FreshnessStatus, anchored bool) []models.Badge {
	var badges []models.Badge

	switch {
	case qualityScore >= 90:
		badges = append(badges, models.Badge{Type: "excellent", Level: "gold", Label: "Excellent Quality", Icon: "star"})
	case qualityScore >= 75:
		badges = append(badges, models.Badge{Type: "good", Level: "silver", Label: "Good Quality", Icon: "thumbs-up"})
	}

	if piiRisk == models.PIIRiskLow {
		badges = append(badges, models.Badge{Type: "pii-safe", Level: "standard", Label: "PII Safe", Icon: "shield"})
	}
	if freshness == models.FreshnessFresh {
		badges = append(badges, models.Badge{Type: "recently-checked", Level: "standard", Label: "Recently Checked", Icon: "clock"})
	}
	if anchored {
		badges = append(badges, models.Badge{Type: "on-chain-verified", Level: "standard", Label: "On-Chain Verified", Icon: "link"})
	}
	return badges
}

func badgesToJSONB(badges []models.Badge) (models.JSONB, error) {
	encoded, err := json.Marshal(badges)
	if err != nil {
		return nil, fmt.Errorf("failed to encode badges: %w", err)
	}
	var out []interface{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("failed to encode badges: %w", err)
	}
	return models.JSONB{"badges": out}, nil
}
