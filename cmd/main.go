package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/yungbote/inkwell-backend/internal/config"
	"github.com/yungbote/inkwell-backend/internal/db"
	"github.com/yungbote/inkwell-backend/internal/handlers"
	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/middleware"
	"github.com/yungbote/inkwell-backend/internal/observability"
	"github.com/yungbote/inkwell-backend/internal/repos"
	"github.com/yungbote/inkwell-backend/internal/server"
	"github.com/yungbote/inkwell-backend/internal/services"
	"github.com/yungbote/inkwell-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
	adminEmails := utils.GetEnvAsList("ADMIN_EMAILS", log)
	allowOrigins := utils.GetEnvAsList("CORS_ALLOW_ORIGINS", log)

	// Tracing
	shutdownTracing := observability.InitTracing(context.Background(), log, observability.TracingConfig{
		ServiceName: "inkwell-backend",
		Environment: logMode,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	// Embedded tables
	quotaLimits, err := config.LoadQuotaLimits()
	if err != nil {
		log.Error("Could not load quota limits", "error", err)
		os.Exit(1)
	}
	pricingTable, err := config.LoadPricingTable()
	if err != nil {
		log.Error("Could not load pricing table", "error", err)
		os.Exit(1)
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	contributionRepo := repos.NewContributionRepo(thePG, log)
	usageRecordRepo := repos.NewUsageRecordRepo(thePG, log)
	usageLogRepo := repos.NewUsageLogRepo(thePG, log)
	topicRepo := repos.NewTopicRepo(thePG, log)
	articleRepo := repos.NewArticleRepo(thePG, log)
	userBadgeRepo := repos.NewUserBadgeRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	geminiClient, err := services.NewGeminiClient(log)
	if err != nil {
		log.Error("Could not init GeminiClient", "error", err)
		os.Exit(1)
	}
	perplexityClient, err := services.NewPerplexityClient(log)
	if err != nil {
		log.Error("Could not init PerplexityClient", "error", err)
		os.Exit(1)
	}
	usageLogService := services.NewUsageLogService(log, usageLogRepo, pricingTable)
	quotaService := services.NewQuotaService(thePG, log, usageRecordRepo, quotaLimits, adminEmails)
	interviewService := services.NewInterviewService(log, geminiClient, usageLogService)
	outlineService := services.NewOutlineService(log, geminiClient, usageLogService)
	sourceService, err := services.NewSourceDiscoveryService(log, perplexityClient, usageLogService)
	if err != nil {
		log.Error("Could not init SourceDiscoveryService", "error", err)
		os.Exit(1)
	}
	assistanceService := services.NewAssistanceService(log, geminiClient, usageLogService)
	badgeService := services.NewBadgeService(thePG, log, userBadgeRepo, contributionRepo)
	contributionService := services.NewContributionService(thePG, log, contributionRepo, articleRepo, badgeService)
	contentService := services.NewContentService(thePG, log, topicRepo, articleRepo)
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second, adminEmails)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	interviewHandler := handlers.NewInterviewHandler(quotaService, interviewService, outlineService, sourceService, assistanceService)
	contributionHandler := handlers.NewContributionHandler(contributionService)
	usageHandler := handlers.NewUsageHandler(quotaService, usageLogService)
	contentHandler := handlers.NewContentHandler(contentService)
	badgeHandler := handlers.NewBadgeHandler(badgeService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:         authHandler,
		AuthMiddleware:      authMiddleware,
		InterviewHandler:    interviewHandler,
		ContributionHandler: contributionHandler,
		UsageHandler:        usageHandler,
		ContentHandler:      contentHandler,
		BadgeHandler:        badgeHandler,
		AllowOrigins:        allowOrigins,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
