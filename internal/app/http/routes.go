package routes

import (
	checkoutapi "gympro-app/internal/api/checkout"
	plansapi "gympro-app/internal/api/plans"
	subapi "gympro-app/internal/api/subscription"
	"gympro-app/internal/api/webhooks"
	"gympro-app/internal/app/http/middleware"
	"gympro-app/internal/billing"
	"gympro-app/internal/gatekeeper"
	"gympro-app/internal/infra/chargily"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Deps carries everything the route handlers need; main wires it up.
type Deps struct {
	Gate         *gatekeeper.Service
	Orchestrator *billing.Orchestrator
	Chargily     *chargily.Client
	PaddleSecret string
	Log          zerolog.Logger
}

func RegisterRoutes(r *gin.Engine, deps Deps) {
	subHandler := subapi.NewHandler(deps.Gate, deps.Orchestrator)
	checkoutHandler := checkoutapi.NewHandler(deps.Orchestrator)
	chargilyWebhook := webhooks.NewChargilyHandler(deps.Chargily, deps.Log)
	paddleWebhook := webhooks.NewPaddleHandler(deps.PaddleSecret, deps.Log)

	// Webhooks carry their own signatures; no auth, no sanitization.
	r.POST("/webhooks/chargily", chargilyWebhook.Handle)
	r.POST("/webhooks/paddle", paddleWebhook.Handle)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())
	public.GET("/plans", plansapi.ListPlans)

	// Authenticated. The subscription guard sits after auth so blocked users
	// still reach the billing and exit routes on its allow-list.
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware())
	auth.Use(middleware.SanitizeAndCleanInputMiddleware())
	auth.Use(middleware.RequireSubscriptionAccess(deps.Gate))

	auth.GET("/app-subscriptions/blocker-config", subHandler.BlockerConfig)
	auth.POST("/app-subscriptions/dismiss", subHandler.Dismiss)
	auth.POST("/app-subscriptions/reactivate", subHandler.Reactivate)
	auth.POST("/app-subscriptions/downgrade", subHandler.Downgrade)
	auth.POST("/app-subscriptions/cancel-downgrade", subHandler.CancelDowngrade)

	auth.POST("/checkout/subscription", checkoutHandler.Subscribe)
	auth.POST("/checkout/renewal", checkoutHandler.Renewal)
	auth.POST("/checkout/upgrade/preview", checkoutHandler.PreviewUpgrade)
	auth.POST("/checkout/upgrade/apply", checkoutHandler.ApplyUpgrade)
	auth.GET("/checkout/status/:id", checkoutHandler.Status)
}
