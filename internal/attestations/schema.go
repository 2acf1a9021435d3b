// internal/attestations/schema.go
package attestations

// Fixed attestation schema registry. Field order is part of the wire
// contract and must not be changed within a schema version; new layouts
// get a new _vN name.

const (
	SchemaPublisherVerified = "publisher_verified_v1"
	SchemaDatasetQuality    = "dataset_quality_v1"
	SchemaDatasetFreshness  = "dataset_freshness_v1"
	SchemaUsageReceipt      = "dataset_usage_receipt_v1"
	SchemaDatasetReview     = "dataset_review_v1"
)

type SchemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Schema struct {
	Version int           `json:"version"`
	Fields  []SchemaField `json:"fields"`
}

var schemaRegistry = map[string]Schema{
	SchemaPublisherVerified: {
		Version: 1,
		Fields: []SchemaField{
			{Name: "publisher_pubkey", Type: "pubkey"},
			{Name: "verification_level", Type: "u8"},
			{Name: "jurisdiction", Type: "string"},
			{Name: "issued_at", Type: "i64"},
			{Name: "evidence_uri", Type: "string"},
		},
	},
	SchemaDatasetQuality: {
		Version: 1,
		Fields: []SchemaField{
			{Name: "dataset_version_pda", Type: "pubkey"},
			{Name: "dataset_content_hash", Type: "hash"},
			{Name: "quality_score", Type: "u8"},
			{Name: "missing_rate_bps", Type: "u16"},
			{Name: "duplicate_rate_bps", Type: "u16"},
			{Name: "pii_risk", Type: "u8"}, // 0=low, 1=medium, 2=high
			{Name: "report_cid", Type: "string"},
			{Name: "audited_at", Type: "i64"},
		},
	},
	SchemaDatasetFreshness: {
		Version: 1,
		Fields: []SchemaField{
			{Name: "dataset_version_pda", Type: "pubkey"},
			{Name: "last_checked_at", Type: "i64"},
			{Name: "max_age_seconds", Type: "i64"},
			{Name: "status", Type: "u8"}, // 0=fresh, 1=aging, 2=stale, 3=unknown
		},
	},
	SchemaUsageReceipt: {
		Version: 1,
		Fields: []SchemaField{
			{Name: "reviewer_wallet", Type: "pubkey"},
			{Name: "dataset_version_pda", Type: "pubkey"},
			{Name: "timestamp", Type: "i64"},
			{Name: "tx_signature", Type: "string"},
			{Name: "rows_accessed", Type: "u64"},
			{Name: "cost_paid", Type: "u64"},
		},
	},
	SchemaDatasetReview: {
		Version: 1,
		Fields: []SchemaField{
			{Name: "reviewer_wallet", Type: "pubkey"},
			{Name: "dataset_version_pda", Type: "pubkey"},
			{Name: "rating", Type: "u8"},
			{Name: "usage_receipt_attestation", Type: "pubkey"},
			{Name: "review_text_cid", Type: "string"},
			{Name: "helpful_count", Type: "u32"},
			{Name: "timestamp", Type: "i64"},
		},
	},
}

func GetSchema(name string) (Schema, bool) {
	schema, ok := schemaRegistry[name]
	return schema, ok
}

func IsRegisteredSchema(name string) bool {
	_, ok := schemaRegistry[name]
	return ok
}

// ListSchemas returns the registered schema names in a stable order.
func ListSchemas() []string {
	return []string{
		SchemaPublisherVerified,
		SchemaDatasetQuality,
		SchemaDatasetFreshness,
		SchemaUsageReceipt,
		SchemaDatasetReview,
	}
}
