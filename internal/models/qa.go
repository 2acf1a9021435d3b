// internal/models/qa.go
package models

import "time"

// QAReport is produced by the quality-assurance pipeline and consumed
// read-only by the reputation layer.
type QAReport struct {
	DatasetID     string            `json:"dataset_id"`
	DatasetName   string            `json:"dataset_name"`
	RowCount      int64             `json:"row_count"`
	ColumnCount   int               `json:"column_count"`
	Completeness  CompletenessCheck `json:"completeness"`
	Duplicates    DuplicateCheck    `json:"duplicates"`
	SchemaProfile []ColumnProfile   `json:"schema_profile"`
	Issues        []QualityIssue    `json:"issues,omitempty"`
	PIIRisk       PIIRiskCheck      `json:"pii_risk"`
	Freshness     FreshnessCheck    `json:"freshness"`
	QualityScore  int               `json:"quality_score"` // 0-100
	GeneratedAt   time.Time         `json:"generated_at"`
}

type CompletenessCheck struct {
	MissingRateBps int    `json:"missing_rate_bps"`
	Status         string `json:"status"`
}

type DuplicateCheck struct {
	DuplicateRateBps int    `json:"duplicate_rate_bps"`
	Status           string `json:"status"`
}

type ColumnProfile struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Cardinality int64  `json:"cardinality"`
	Nullable    bool   `json:"nullable"`
}

type QualityIssue struct {
	Severity string `json:"severity"`
	Column   string `json:"column,omitempty"`
	Message  string `json:"message"`
}

type PIIRiskCheck struct {
	RiskLevel      PIIRiskLevel `json:"risk_level"`
	FlaggedColumns []string     `json:"flagged_columns,omitempty"`
}

type FreshnessCheck struct {
	Status        FreshnessStatus `json:"status"`
	MostRecent    *time.Time      `json:"most_recent,omitempty"`
	AgeDays       int             `json:"age_days"`
	MaxAgeSeconds int64           `json:"max_age_seconds"`
}
