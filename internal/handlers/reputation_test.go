// internal/handlers/reputation_test.go
package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry-backend/internal/models"
)

func TestReputationViewNestsAttestations(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	qualityExpiry := issued.Add(30 * 24 * time.Hour)
	freshnessExpiry := issued.Add(7 * 24 * time.Hour)

	record := &models.ReputationRecord{
		DatasetID:      "ds-weather",
		DatasetVersion: "v3",
		QualityScore:   82,
		CombinedScore:  82,

		QualityAttestationID:   "att-quality-1",
		QualityIssuedAt:        &issued,
		QualityExpiresAt:       &qualityExpiry,
		FreshnessAttestationID: "att-freshness-1",
		FreshnessIssuedAt:      &issued,
		FreshnessExpiresAt:     &freshnessExpiry,
	}

	encoded, err := json.Marshal(reputationView(record))
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &body))

	attestations, ok := body["attestations"].(map[string]interface{})
	require.True(t, ok, "attestations must be an object")

	quality, ok := attestations["quality"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "att-quality-1", quality["id"])
	assert.NotEmpty(t, quality["issued_at"])
	assert.NotEmpty(t, quality["expires_at"])

	freshness, ok := attestations["freshness"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "att-freshness-1", freshness["id"])

	// The flat columns must not leak alongside the nested shape.
	for _, key := range []string{
		"quality_attestation_id", "quality_issued_at", "quality_expires_at",
		"freshness_attestation_id", "freshness_issued_at", "freshness_expires_at",
	} {
		assert.NotContains(t, body, key)
	}

	assert.Equal(t, "ds-weather", body["dataset_id"])
	assert.Equal(t, float64(82), body["combined_score"])
}

func TestReputationViewWithoutAttestations(t *testing.T) {
	record := &models.ReputationRecord{DatasetID: "ds-bare", DatasetVersion: "v1"}

	encoded, err := json.Marshal(reputationView(record))
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &body))

	attestations, ok := body["attestations"].(map[string]interface{})
	require.True(t, ok)
	assert.Empty(t, attestations)
}
