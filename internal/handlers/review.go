// internal/handlers/review.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quarrylabs/quarry-backend/internal/services"
	"github.com/quarrylabs/quarry-backend/internal/utils"
)

type ReviewHandler struct {
	reviewService *services.ReviewService
}

type HelpfulVoteRequest struct {
	VoterWallet string `json:"voter_wallet" validate:"required,wallet"`
}

func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// POST /v1/reviews
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	var req services.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	review, err := h.reviewService.CreateReview(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoUsageReceipt):
			utils.ErrorResponse(c, http.StatusForbidden, "NO_USAGE_RECEIPT", "Wallet has no usage receipt for this dataset version", nil)
		case errors.Is(err, services.ErrAlreadyReviewed):
			utils.ConflictResponse(c, "Wallet already reviewed this dataset version, update the existing review instead")
		case errors.Is(err, services.ErrInvalidRating), errors.Is(err, services.ErrReviewTooLong):
			utils.BadRequestResponse(c, err.Error(), nil)
		default:
			if validationErrors := utils.GetValidationErrors(err); len(validationErrors) > 0 {
				utils.ValidationErrorResponse(c, validationErrors)
				return
			}
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}
	utils.CreatedResponse(c, review)
}

// GET /v1/reviews/:id — the id is the dataset id; version narrows via query.
func (h *ReviewHandler) GetDatasetReviews(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	version := c.Query("version")

	result, err := h.reviewService.GetDatasetReviews(c.Param("id"), version, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	paginated := utils.CreatePaginationResult(result.Reviews, result.Total, params)
	utils.SetPaginationHeaders(c, paginated)
	utils.SuccessResponseWithMeta(c, result, gin.H{
		"pagination": gin.H{
			"page":        paginated.Page,
			"limit":       paginated.Limit,
			"total":       paginated.Total,
			"total_pages": paginated.TotalPages,
		},
	})
}

// POST /v1/reviews/:id/helpful
func (h *ReviewHandler) MarkHelpful(c *gin.Context) {
	var req HelpfulVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	review, err := h.reviewService.MarkReviewHelpful(c.Param("id"), req.VoterWallet)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrReviewNotFound):
			utils.NotFoundResponse(c, "Review")
		case errors.Is(err, services.ErrAlreadyVoted):
			utils.ConflictResponse(c, "Wallet already voted on this review")
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}
	utils.SuccessResponse(c, review)
}
