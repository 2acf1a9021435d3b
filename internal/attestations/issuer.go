// internal/attestations/issuer.go
package attestations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/quarrylabs/quarry-backend/internal/ledger"
	"github.com/quarrylabs/quarry-backend/internal/models"
)

var ErrUnknownSchema = errors.New("unknown attestation schema")

const (
	envelopeType    = "quarry_attestation"
	envelopeVersion = "1.0"

	// The memo program caps instruction data; envelopes above this are
	// truncated rather than rejected, since a partial on-chain proof
	// beats no proof.
	memoCapacity = 500
)

// Default expiry windows per schema.
const (
	QualityExpiry   = 30 * 24 * time.Hour
	FreshnessExpiry = 7 * 24 * time.Hour
	PublisherExpiry = 365 * 24 * time.Hour
)

// Attestation is the decoded form of an anchored record. The anchoring
// transaction signature is its identity.
type Attestation struct {
	ID        string                   `json:"attestation_id"`
	Schema    string                   `json:"schema"`
	Subject   string                   `json:"subject"`
	Issuer    string                   `json:"issuer"`
	Data      map[string]interface{}   `json:"data"`
	IssuedAt  time.Time                `json:"issued_at"`
	ExpiresAt *time.Time               `json:"expires_at,omitempty"`
	Status    models.AttestationStatus `json:"status"`
}

type envelope struct {
	Type      string                 `json:"type"`
	Version   string                 `json:"version"`
	Schema    string                 `json:"schema"`
	Subject   string                 `json:"subject"`
	Issuer    string                 `json:"issuer"`
	Data      map[string]interface{} `json:"data"`
	IssuedAt  string                 `json:"issued_at"`
	ExpiresAt *string                `json:"expires_at"`
}

// Issuer anchors schema-typed facts on the ledger.
type Issuer struct {
	anchor    ledger.Anchor
	authority string
	now       func() time.Time
}

func NewIssuer(anchor ledger.Anchor, authority string) *Issuer {
	return &Issuer{anchor: anchor, authority: authority, now: time.Now}
}

// Issue serializes the fact and writes it to the anchoring medium. A zero
// expiry means the attestation never expires. Unknown-outcome anchor
// failures pass through untouched so callers can reconcile before retrying.
func (i *Issuer) Issue(ctx context.Context, schemaName, subject string, data map[string]interface{}, expiry time.Duration) (*Attestation, error) {
	if !IsRegisteredSchema(schemaName) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, schemaName)
	}

	issuedAt := i.now().UTC()
	var expiresAt *time.Time
	if expiry > 0 {
		t := issuedAt.Add(expiry)
		expiresAt = &t
	}

	env := envelope{
		Type:     envelopeType,
		Version:  envelopeVersion,
		Schema:   schemaName,
		Subject:  subject,
		Issuer:   i.authority,
		Data:     data,
		IssuedAt: issuedAt.Format(time.RFC3339),
	}
	if expiresAt != nil {
		formatted := expiresAt.Format(time.RFC3339)
		env.ExpiresAt = &formatted
	}

	encoded, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attestation: %w", err)
	}

	if len(encoded) > memoCapacity {
		encoded, err = truncateEnvelope(env, data)
		if err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{
			"schema": schemaName,
			"bytes":  len(encoded),
		}).Warn("Attestation payload truncated to fit memo capacity")
	}

	id, err := i.anchor.WriteMemo(ctx, encoded)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"attestation_id": id,
		"schema":         schemaName,
		"subject":        subject,
	}).Info("Attestation anchored")

	return &Attestation{
		ID:        id,
		Schema:    schemaName,
		Subject:   subject,
		Issuer:    i.authority,
		Data:      data,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Status:    models.AttestationStatusActive,
	}, nil
}

// truncateEnvelope replaces the payload with a deterministic prefix of its
// compact encoding. Lossy but decodable; the envelope fields survive intact.
func truncateEnvelope(env envelope, data map[string]interface{}) ([]byte, error) {
	compact, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attestation payload: %w", err)
	}

	preview := string(compact)
	if len(preview) > 200 {
		preview = preview[:200]
	}
	env.Data = map[string]interface{}{"truncated": preview}

	encoded, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode truncated attestation: %w", err)
	}
	return encoded, nil
}

// DeriveDatasetSubject computes the deterministic pseudo-address standing
// in for a dataset version on-chain.
func DeriveDatasetSubject(datasetID, version string) string {
	digest := sha256.Sum256([]byte("dataset" + datasetID + version))
	return base58.Encode(digest[:])
}

var piiRiskCodes = map[models.PIIRiskLevel]int{
	models.PIIRiskLow:    0,
	models.PIIRiskMedium: 1,
	models.PIIRiskHigh:   2,
}

var freshnessCodes = map[models.FreshnessStatus]int{
	models.FreshnessFresh:   0,
	models.FreshnessAging:   1,
	models.FreshnessStale:   2,
	models.FreshnessUnknown: 3,
}

// IssueDatasetQuality anchors a QA pass for a dataset version.
func (i *Issuer) IssueDatasetQuality(ctx context.Context, datasetID, version string, report *models.QAReport, reportRef string) (*Attestation, error) {
	subject := DeriveDatasetSubject(datasetID, version)
	contentHash := sha256.Sum256([]byte(version))

	data := map[string]interface{}{
		"dataset_version_pda":  subject,
		"dataset_content_hash": hex.EncodeToString(contentHash[:]),
		"quality_score":        report.QualityScore,
		"missing_rate_bps":     report.Completeness.MissingRateBps,
		"duplicate_rate_bps":   report.Duplicates.DuplicateRateBps,
		"pii_risk":             piiRiskCodes[report.PIIRisk.RiskLevel],
		"report_cid":           reportRef,
		"audited_at":           i.now().Unix(),
	}
	return i.Issue(ctx, SchemaDatasetQuality, subject, data, QualityExpiry)
}

// IssueDatasetFreshness anchors a freshness check for a dataset version.
func (i *Issuer) IssueDatasetFreshness(ctx context.Context, datasetID, version string, freshness models.FreshnessCheck) (*Attestation, error) {
	subject := DeriveDatasetSubject(datasetID, version)

	status, ok := freshnessCodes[freshness.Status]
	if !ok {
		status = freshnessCodes[models.FreshnessUnknown]
	}

	maxAge := freshness.MaxAgeSeconds
	if maxAge == 0 {
		maxAge = int64((30 * 24 * time.Hour).Seconds())
	}

	data := map[string]interface{}{
		"dataset_version_pda": subject,
		"last_checked_at":     i.now().Unix(),
		"max_age_seconds":     maxAge,
		"status":              status,
	}
	return i.Issue(ctx, SchemaDatasetFreshness, subject, data, FreshnessExpiry)
}

// IssuePublisherVerified anchors a publisher identity verification.
func (i *Issuer) IssuePublisherVerified(ctx context.Context, publisherWallet string, level models.PublisherVerificationLevel, jurisdiction, evidenceRef string) (*Attestation, error) {
	data := map[string]interface{}{
		"publisher_pubkey":   publisherWallet,
		"verification_level": int(level),
		"jurisdiction":       jurisdiction,
		"issued_at":          i.now().Unix(),
		"evidence_uri":       evidenceRef,
	}
	return i.Issue(ctx, SchemaPublisherVerified, publisherWallet, data, PublisherExpiry)
}

// IssueUsageReceipt anchors a permanent proof of paid access.
func (i *Issuer) IssueUsageReceipt(ctx context.Context, reviewerWallet, datasetID, version, txSignature string, rowsAccessed int64, costPaid int64) (*Attestation, error) {
	data := map[string]interface{}{
		"reviewer_wallet":     reviewerWallet,
		"dataset_version_pda": DeriveDatasetSubject(datasetID, version),
		"timestamp":           i.now().Unix(),
		"tx_signature":        txSignature,
		"rows_accessed":       rowsAccessed,
		"cost_paid":           costPaid,
	}
	return i.Issue(ctx, SchemaUsageReceipt, reviewerWallet, data, 0)
}

// IssueReview anchors a permanent review record backed by a usage receipt.
func (i *Issuer) IssueReview(ctx context.Context, reviewerWallet, datasetID, version string, rating int, reviewTextRef, usageReceiptID string) (*Attestation, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5, got %d", rating)
	}

	data := map[string]interface{}{
		"reviewer_wallet":           reviewerWallet,
		"dataset_version_pda":       DeriveDatasetSubject(datasetID, version),
		"rating":                    rating,
		"usage_receipt_attestation": usageReceiptID,
		"review_text_cid":           reviewTextRef,
		"helpful_count":             0,
		"timestamp":                 i.now().Unix(),
	}
	return i.Issue(ctx, SchemaDatasetReview, reviewerWallet, data, 0)
}
