// internal/models/reputation.go
package models

import (
	"time"
)

// ReputationRecord holds the aggregated score for one dataset version.
// One row per (dataset_id, dataset_version); replaced on every QA pass.
type ReputationRecord struct {
	BaseModel
	DatasetID       string  `json:"dataset_id" gorm:"size:128;not null;uniqueIndex:idx_reputation_dataset_version"`
	DatasetName     string  `json:"dataset_name" gorm:"size:255"`
	DatasetVersion  string  `json:"dataset_version" gorm:"size:64;not null;uniqueIndex:idx_reputation_dataset_version"`
	SubjectAddress  string  `json:"subject_address" gorm:"size:64;index"`
	QualityScore    int     `json:"quality_score" gorm:"not null"`
	UserRating      float64 `json:"user_rating" gorm:"type:decimal(3,2);default:0"`
	CombinedScore   int     `json:"combined_score" gorm:"not null"`
	TotalReviews    int     `json:"total_reviews" gorm:"default:0"`
	VerifiedReviews int     `json:"verified_reviews" gorm:"default:0"`
	RatingHistogram JSONB   `json:"rating_histogram" gorm:"type:jsonb"`
	Badges          JSONB   `json:"badges" gorm:"type:jsonb"`
	QAReportRef     string  `json:"qa_report_ref" gorm:"size:128"`

	QualityAttestationID   string     `json:"quality_attestation_id" gorm:"size:128"`
	QualityIssuedAt        *time.Time `json:"quality_issued_at"`
	QualityExpiresAt       *time.Time `json:"quality_expires_at"`
	FreshnessAttestationID string     `json:"freshness_attestation_id" gorm:"size:128"`
	FreshnessIssuedAt      *time.Time `json:"freshness_issued_at"`
	FreshnessExpiresAt     *time.Time `json:"freshness_expires_at"`
}

// Review is one verified user review, gated by a usage receipt.
type Review struct {
	BaseModel
	DatasetID               string `json:"dataset_id" gorm:"size:128;not null;uniqueIndex:idx_reviews_reviewer_dataset;index:idx_reviews_dataset"`
	DatasetVersion          string `json:"dataset_version" gorm:"size:64;not null;uniqueIndex:idx_reviews_reviewer_dataset;index:idx_reviews_dataset"`
	ReviewerWallet          string `json:"reviewer_wallet" gorm:"size:64;not null;uniqueIndex:idx_reviews_reviewer_dataset;index"`
	Rating                  int    `json:"rating" gorm:"not null"`
	ReviewText              string `json:"review_text" gorm:"type:text"`
	ReviewTextRef           string `json:"review_text_ref" gorm:"size:128"`
	UsageReceiptAttestation string `json:"usage_receipt_attestation" gorm:"size:128;not null"`
	ReviewAttestationID     string `json:"review_attestation_id" gorm:"size:128"`
	HelpfulCount            int    `json:"helpful_count" gorm:"default:0"`
}

// UsageReceipt records a paid data access; its attestation id is the proof
// a wallet may review the dataset version.
type UsageReceipt struct {
	BaseModel
	AttestationID  string  `json:"attestation_id" gorm:"size:128;not null;uniqueIndex"`
	ReviewerWallet string  `json:"reviewer_wallet" gorm:"size:64;not null;index:idx_receipts_wallet_dataset"`
	DatasetID      string  `json:"dataset_id" gorm:"size:128;not null;index:idx_receipts_wallet_dataset"`
	DatasetVersion string  `json:"dataset_version" gorm:"size:64;not null;index:idx_receipts_wallet_dataset"`
	TxSignature    string  `json:"tx_signature" gorm:"size:128;not null"`
	RowsAccessed   int64   `json:"rows_accessed"`
	CostPaid       float64 `json:"cost_paid" gorm:"type:decimal(20,9)"`
}

// HelpfulVote prevents double-counting helpful votes on a review.
type HelpfulVote struct {
	BaseModel
	ReviewID    string `json:"review_id" gorm:"type:uuid;not null;uniqueIndex:idx_votes_review_voter"`
	VoterWallet string `json:"voter_wallet" gorm:"size:64;not null;uniqueIndex:idx_votes_review_voter"`
}

// Badge is a derived reputation marker; stored only inside the record
// that produced it.
type Badge struct {
	Type  string `json:"type"`
	Level string `json:"level"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}
