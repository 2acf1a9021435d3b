// internal/services/reputation_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quarrylabs/quarry-backend/internal/models"
)

func TestCombineScoresNoReviews(t *testing.T) {
	assert.Equal(t, 82, combineScores(82, 0, 0))
	assert.Equal(t, 0, combineScores(0, 0, 0))
	assert.Equal(t, 100, combineScores(100, 0, 0))
}

func TestCombineScoresWeighting(t *testing.T) {
	// One review: weight 0.13. 80*(1-0.13) + (5/5*100)*0.13 = 82.6 → 83.
	assert.Equal(t, 83, combineScores(80, 5.0, 1))

	// Ten reviews of 5 stars hit the 0.4 cap: 80*0.6 + 100*0.4 = 88.
	assert.Equal(t, 88, combineScores(80, 5.0, 10))

	// More reviews never push weight past the cap.
	assert.Equal(t, combineScores(80, 5.0, 10), combineScores(80, 5.0, 100))
}

func TestCombineScoresBounded(t *testing.T) {
	for _, reviews := range []int{0, 1, 5, 20, 500} {
		for _, rating := range []float64{0, 1, 2.5, 5} {
			for _, quality := range []int{0, 50, 100} {
				score := combineScores(quality, rating, reviews)
				assert.GreaterOrEqual(t, score, 0)
				assert.LessOrEqual(t, score, 100)
			}
		}
	}
}

func TestCombineScoresMonotonicInRating(t *testing.T) {
	for _, reviews := range []int{1, 3, 10, 50} {
		previous := -1
		for rating := 0.0; rating <= 5.0; rating += 0.5 {
			score := combineScores(70, rating, reviews)
			assert.GreaterOrEqual(t, score, previous)
			previous = score
		}
	}
}

func TestCalculateBadgesHighQuality(t *testing.T) {
	badges := calculateBadges(92, models.PIIRiskLow, models.FreshnessFresh, true)

	types := make([]string, 0, len(badges))
	for _, b := range badges {
		types = append(types, b.Type)
	}
	assert.Equal(t, []string{"excellent", "pii-safe", "recently-checked", "on-chain-verified"}, types)
	assert.NotContains(t, types, "good")
}

func TestCalculateBadgesGoodQuality(t *testing.T) {
	badges := calculateBadges(80, models.PIIRiskHigh, models.FreshnessStale, true)

	types := make([]string, 0, len(badges))
	for _, b := range badges {
		types = append(types, b.Type)
	}
	assert.Equal(t, []string{"good", "on-chain-verified"}, types)
}

func TestCalculateBadgesLowQuality(t *testing.T) {
	badges := calculateBadges(60, models.PIIRiskMedium, models.FreshnessAging, true)

	assert.Len(t, badges, 1)
	assert.Equal(t, "on-chain-verified", badges[0].Type)
}

func TestCalculateBadgesThresholds(t *testing.T) {
	firstType := func(score int) string {
		badges := calculateBadges(score, models.PIIRiskHigh, models.FreshnessUnknown, false)
		if len(badges) == 0 {
			return ""
		}
		return badges[0].Type
	}

	assert.Equal(t, "excellent", firstType(90))
	assert.Equal(t, "good", firstType(89))
	assert.Equal(t, "good", firstType(75))
	assert.Equal(t, "", firstType(74))
}
