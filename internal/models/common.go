// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type PIIRiskLevel string

const (
	PIIRiskLow    PIIRiskLevel = "low"
	PIIRiskMedium PIIRiskLevel = "medium"
	PIIRiskHigh   PIIRiskLevel = "high"
)

type FreshnessStatus string

const (
	FreshnessFresh   FreshnessStatus = "fresh"
	FreshnessAging   FreshnessStatus = "aging"
	FreshnessStale   FreshnessStatus = "stale"
	FreshnessUnknown FreshnessStatus = "unknown"
)

type AttestationStatus string

const (
	AttestationStatusActive AttestationStatus = "active"
)

type PublisherVerificationLevel int

const (
	PublisherLevelBasic    PublisherVerificationLevel = 1
	PublisherLevelVerified PublisherVerificationLevel = 2
	PublisherLevelKYC      PublisherVerificationLevel = 3
)
