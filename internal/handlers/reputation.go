// internal/handlers/reputation.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quarrylabs/quarry-backend/internal/ledger"
	"github.com/quarrylabs/quarry-backend/internal/models"
	"github.com/quarrylabs/quarry-backend/internal/services"
	"github.com/quarrylabs/quarry-backend/internal/utils"
)

type ReputationHandler struct {
	reputationService *services.ReputationService
}

type ProcessReputationRequest struct {
	DatasetID      string          `json:"dataset_id" validate:"required,max=128"`
	DatasetName    string          `json:"dataset_name" validate:"max=255"`
	DatasetVersion string          `json:"dataset_version" validate:"required,max=64"`
	QAReport       models.QAReport `json:"qa_report" validate:"required"`
}

type CreateReceiptRequest struct {
	Wallet         string  `json:"wallet" validate:"required,wallet"`
	DatasetID      string  `json:"dataset_id" validate:"required,max=128"`
	DatasetVersion string  `json:"dataset_version" validate:"required,max=64"`
	TxSignature    string  `json:"tx_signature" validate:"required,tx_signature"`
	RowsAccessed   int64   `json:"rows_accessed" validate:"min=0"`
	CostPaid       float64 `json:"cost_paid" validate:"min=0"`
}

func NewReputationHandler(reputationService *services.ReputationService) *ReputationHandler {
	return &ReputationHandler{reputationService: reputationService}
}

type attestationRef struct {
	ID        string     `json:"id"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// reputationResponse is the wire shape for a reputation record: the flat
// attestation columns stay internal and callers see them nested under
// "attestations" keyed by role.
type reputationResponse struct {
	*models.ReputationRecord
	QualityAttestationID   string     `json:"quality_attestation_id,omitempty"`
	QualityIssuedAt        *time.Time `json:"quality_issued_at,omitempty"`
	QualityExpiresAt       *time.Time `json:"quality_expires_at,omitempty"`
	FreshnessAttestationID string     `json:"freshness_attestation_id,omitempty"`
	FreshnessIssuedAt      *time.Time `json:"freshness_issued_at,omitempty"`
	FreshnessExpiresAt     *time.Time `json:"freshness_expires_at,omitempty"`

	Attestations map[string]attestationRef `json:"attestations"`
}

func reputationView(record *models.ReputationRecord) reputationResponse {
	refs := make(map[string]attestationRef)
	if record.QualityAttestationID != "" {
		refs["quality"] = attestationRef{
			ID:        record.QualityAttestationID,
			IssuedAt:  record.QualityIssuedAt,
			ExpiresAt: record.QualityExpiresAt,
		}
	}
	if record.FreshnessAttestationID != "" {
		refs["freshness"] = attestationRef{
			ID:        record.FreshnessAttestationID,
			IssuedAt:  record.FreshnessIssuedAt,
			ExpiresAt: record.FreshnessExpiresAt,
		}
	}
	// The shadow fields stay zero so the flat columns drop out of the
	// encoded response.
	return reputationResponse{ReputationRecord: record, Attestations: refs}
}

// POST /v1/reputation/process
func (h *ReputationHandler) ProcessReputation(c *gin.Context) {
	var req ProcessReputationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	record, err := h.reputationService.ProcessDatasetReputation(
		c.Request.Context(),
		req.DatasetID,
		req.DatasetName,
		req.DatasetVersion,
		&req.QAReport,
	)
	if err != nil {
		if ledger.IsUnknownOutcome(err) {
			utils.ErrorResponse(c, http.StatusBadGateway, "UNKNOWN_OUTCOME", "Attestation submitted but unconfirmed, reconcile before retrying", nil)
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.CreatedResponse(c, reputationView(record))
}

// GET /v1/reputation/:datasetId/:version
func (h *ReputationHandler) GetReputation(c *gin.Context) {
	record, err := h.reputationService.GetReputation(c.Param("datasetId"), c.Param("version"))
	if err != nil {
		if errors.Is(err, services.ErrReputationNotFound) {
			utils.NotFoundResponse(c, "Reputation record")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, reputationView(record))
}

// POST /v1/reputation/receipts
func (h *ReputationHandler) CreateReceipt(c *gin.Context) {
	var req CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	receipt, err := h.reputationService.CreateUsageReceipt(
		c.Request.Context(),
		req.Wallet,
		req.DatasetID,
		req.DatasetVersion,
		req.TxSignature,
		req.RowsAccessed,
		req.CostPaid,
	)
	if err != nil {
		if ledger.IsUnknownOutcome(err) {
			utils.ErrorResponse(c, http.StatusBadGateway, "UNKNOWN_OUTCOME", "Attestation submitted but unconfirmed, reconcile before retrying", nil)
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.CreatedResponse(c, receipt)
}
