package main

import (
	"context"
	"os"
	"time"

	"gympro-app/config"
	"gympro-app/database"
	routes "gympro-app/internal/app/http"
	"gympro-app/internal/billing"
	"gympro-app/internal/dismissal"
	"gympro-app/internal/gatekeeper"
	"gympro-app/internal/infra/chargily"
	"gympro-app/internal/infra/paddle"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

func main() {
	// gin.SetMode(gin.ReleaseMode) uncomment only in production
	config.LoadEnv()
	database.InitDB()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	redisOpts, err := redis.ParseURL(config.REDIS_URL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	redisClient := redis.NewClient(redisOpts)

	tracker := dismissal.NewTracker(dismissal.NewRedisStore(redisClient, "gympro"), log)
	gateSvc := gatekeeper.NewService(database.DB, tracker, log)

	chargilyClient := chargily.New(chargily.Config{
		BaseURL:       config.CHARGILY_BASE_URL,
		APIKey:        config.CHARGILY_API_KEY,
		WebhookSecret: config.CHARGILY_WEBHOOK_SECRET,
		AppURL:        config.APP_URL,
	}, log)
	paddleClient := paddle.New(paddle.Config{
		APIKey:   config.PADDLE_API_KEY,
		Sandbox:  config.PADDLE_SANDBOX,
		AppURL:   config.APP_URL,
		PriceIDs: config.PADDLE_PRICE_IDS,
	}, log)
	orch := billing.NewOrchestrator(chargilyClient, paddleClient, log)

	sweeper := gatekeeper.NewSweeper(database.DB, tracker, log)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	r := gin.Default()

	// CORS middleware BEFORE registering routes
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{os.Getenv("CORS_ORIGIN")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		Gate:         gateSvc,
		Orchestrator: orch,
		Chargily:     chargilyClient,
		PaddleSecret: config.PADDLE_WEBHOOK_SECRET,
		Log:          log,
	})

	if err := r.Run(":" + config.PORT); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
