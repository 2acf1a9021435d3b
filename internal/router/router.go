// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/quarrylabs/quarry-backend/internal/attestations"
	"github.com/quarrylabs/quarry-backend/internal/config"
	"github.com/quarrylabs/quarry-backend/internal/handlers"
	"github.com/quarrylabs/quarry-backend/internal/ledger"
	"github.com/quarrylabs/quarry-backend/internal/middleware"
	"github.com/quarrylabs/quarry-backend/internal/payments"
	"github.com/quarrylabs/quarry-backend/internal/services"
	"github.com/quarrylabs/quarry-backend/internal/storage"
)

// Dependencies carries the externally constructed collaborators; main wires
// the concrete ledger and storage implementations by configuration.
type Dependencies struct {
	Gateway      ledger.Gateway
	Anchor       ledger.Anchor
	Authority    string
	ContentStore storage.ContentStore
	Registry     *payments.Registry
}

func Initialize(db *gorm.DB, cfg *config.Config, deps Dependencies) *gin.Engine {
	paymentVerifier := payments.NewVerifier(deps.Registry, deps.Gateway)
	issuer := attestations.NewIssuer(deps.Anchor, deps.Authority)
	attestationVerifier := attestations.NewVerifier(deps.Gateway, deps.Authority)

	reputationService := services.NewReputationService(db, issuer, deps.ContentStore)
	reviewService := services.NewReviewService(db, cfg, issuer, deps.ContentStore, reputationService)

	paymentHandler := handlers.NewPaymentHandler(deps.Registry, paymentVerifier, cfg)
	attestationHandler := handlers.NewAttestationHandler(attestationVerifier, reputationService)
	reputationHandler := handlers.NewReputationHandler(reputationService)
	reviewHandler := handlers.NewReviewHandler(reviewService)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
			"network": cfg.Solana.Network,
		})
	})

	v1 := r.Group("/v1")
	{
		pay := v1.Group("/payments")
		{
			pay.POST("/challenge", paymentHandler.CreateChallenge)
			pay.GET("/challenge/:id", paymentHandler.GetChallenge)
			pay.POST("/verify", middleware.VerifyRateLimit(), paymentHandler.VerifyPayment)
		}

		att := v1.Group("/attestations")
		{
			att.GET("/schemas", attestationHandler.ListSchemas)
			att.GET("/:id/verify", middleware.VerifyRateLimit(), attestationHandler.VerifyAttestation)
			att.POST("/publishers/verify", attestationHandler.VerifyPublisher)
		}

		rep := v1.Group("/reputation")
		{
			rep.POST("/process", reputationHandler.ProcessReputation)
			rep.GET("/:datasetId/:version", reputationHandler.GetReputation)
			rep.POST("/receipts", reputationHandler.CreateReceipt)
		}

		rev := v1.Group("/reviews")
		{
			rev.POST("", reviewHandler.CreateReview)
			rev.GET("/:id", reviewHandler.GetDatasetReviews)
			rev.POST("/:id/helpful", reviewHandler.MarkHelpful)
		}
	}

	return r
}
