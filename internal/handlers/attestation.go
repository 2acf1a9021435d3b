// internal/handlers/attestation.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quarrylabs/quarry-backend/internal/attestations"
	"github.com/quarrylabs/quarry-backend/internal/models"
	"github.com/quarrylabs/quarry-backend/internal/services"
	"github.com/quarrylabs/quarry-backend/internal/utils"
)

type AttestationHandler struct {
	verifier          *attestations.Verifier
	reputationService *services.ReputationService
}

type VerifyPublisherRequest struct {
	Wallet       string `json:"wallet" validate:"required,wallet"`
	Level        int    `json:"level" validate:"required,min=1,max=3"`
	Jurisdiction string `json:"jurisdiction" validate:"required,max=64"`
	EvidenceRef  string `json:"evidence_ref,omitempty" validate:"max=255"`
}

func NewAttestationHandler(verifier *attestations.Verifier, reputationService *services.ReputationService) *AttestationHandler {
	return &AttestationHandler{
		verifier:          verifier,
		reputationService: reputationService,
	}
}

// GET /v1/attestations/schemas
func (h *AttestationHandler) ListSchemas(c *gin.Context) {
	names := attestations.ListSchemas()
	schemas := make([]gin.H, 0, len(names))
	for _, name := range names {
		schema, _ := attestations.GetSchema(name)
		schemas = append(schemas, gin.H{
			"name":    name,
			"version": schema.Version,
			"fields":  schema.Fields,
		})
	}
	utils.SuccessResponse(c, schemas)
}

// GET /v1/attestations/:id/verify
func (h *AttestationHandler) VerifyAttestation(c *gin.Context) {
	result, err := h.verifier.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadGateway, "LEDGER_UNAVAILABLE", "Could not reach the ledger, retry shortly", nil)
		return
	}
	utils.SuccessResponse(c, result)
}

// POST /v1/attestations/publishers/verify
func (h *AttestationHandler) VerifyPublisher(c *gin.Context) {
	var req VerifyPublisherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	att, err := h.reputationService.VerifyPublisher(
		c.Request.Context(),
		req.Wallet,
		models.PublisherVerificationLevel(req.Level),
		req.Jurisdiction,
		req.EvidenceRef,
	)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.CreatedResponse(c, att)
}
