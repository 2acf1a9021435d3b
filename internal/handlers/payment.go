// internal/handlers/payment.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/quarrylabs/quarry-backend/internal/config"
	"github.com/quarrylabs/quarry-backend/internal/payments"
	"github.com/quarrylabs/quarry-backend/internal/utils"
)

type PaymentHandler struct {
	registry *payments.Registry
	verifier *payments.Verifier
	config   *config.Config
}

type CreateChallengeRequest struct {
	Recipient   string `json:"recipient,omitempty" validate:"omitempty,wallet"`
	AssetKind   string `json:"asset_kind" validate:"required,oneof=native token"`
	Amount      string `json:"amount" validate:"required"`
	ResourceID  string `json:"resource_id" validate:"required,max=255"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

type VerifyPaymentRequest struct {
	ChallengeID          string `json:"challenge_id" validate:"required,uuid"`
	TransactionSignature string `json:"transaction_signature" validate:"required,tx_signature"`
}

func NewPaymentHandler(registry *payments.Registry, verifier *payments.Verifier, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{
		registry: registry,
		verifier: verifier,
		config:   cfg,
	}
}

// POST /v1/payments/challenge
//
// Responds 402 with the challenge in both the body and X-402 headers, so
// header-only clients can drive the payment flow.
func (h *PaymentHandler) CreateChallenge(c *gin.Context) {
	var req CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid amount", err.Error())
		return
	}

	asset := payments.NativeAsset()
	if req.AssetKind == string(payments.AssetKindToken) {
		asset = payments.TokenAsset("USDC", h.config.Payments.USDCMint, h.config.Payments.USDCDecimals)
	}

	challenge, err := h.registry.CreateChallenge(req.Recipient, asset, amount, req.ResourceID, req.Description)
	if err != nil {
		if errors.Is(err, payments.ErrNoRecipient) {
			utils.InternalErrorResponse(c, "No payment recipient configured")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	c.Header("X-402-Version", "1.0")
	c.Header("X-402-Protocol", "solana")
	c.Header("X-402-Challenge", challenge.ID)
	c.Header("X-402-Recipient", challenge.Recipient)
	c.Header("X-402-Amount", challenge.Amount.String())
	c.Header("X-402-Currency", challenge.Asset.Symbol)
	c.Header("X-402-Description", challenge.Description)
	c.Header("X-402-Expires", strconv.FormatInt(challenge.ExpiresAt.Unix(), 10))

	utils.PaymentRequiredResponse(c, challenge)
}

// GET /v1/payments/challenge/:id
func (h *PaymentHandler) GetChallenge(c *gin.Context) {
	challenge, err := h.registry.GetPending(c.Param("id"))
	if err != nil {
		utils.NotFoundResponse(c, "Challenge")
		return
	}
	utils.SuccessResponse(c, challenge)
}

// POST /v1/payments/verify
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.verifier.Verify(c.Request.Context(), req.ChallengeID, req.TransactionSignature)
	if err != nil {
		// Transient gateway failure; the challenge is still pending.
		utils.ErrorResponse(c, http.StatusBadGateway, "LEDGER_UNAVAILABLE", "Could not reach the ledger, retry shortly", nil)
		return
	}

	if !result.Accepted {
		utils.UnprocessableResponse(c, string(result.Reason))
		return
	}
	utils.SuccessResponse(c, result)
}
