package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/inkwell-backend/internal/handlers"
	"github.com/yungbote/inkwell-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler         *handlers.AuthHandler
	AuthMiddleware      *middleware.AuthMiddleware
	InterviewHandler    *handlers.InterviewHandler
	ContributionHandler *handlers.ContributionHandler
	UsageHandler        *handlers.UsageHandler
	ContentHandler      *handlers.ContentHandler
	BadgeHandler        *handlers.BadgeHandler
	AllowOrigins        []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("inkwell-backend"))
	router.Use(middleware.AttachTraceIDs())

	allowOrigins := cfg.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	{
		api.POST("/register", cfg.AuthHandler.Register)
		api.POST("/login", cfg.AuthHandler.Login)
		// Published content is readable without an account.
		api.GET("/topics", cfg.ContentHandler.ListTopics)
		api.GET("/articles", cfg.ContentHandler.ListArticles)
		api.GET("/articles/:slug", cfg.ContentHandler.GetArticle)
	}

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// Contributions
	protected.POST("/contributions", cfg.ContributionHandler.Create)
	protected.GET("/contributions", cfg.ContributionHandler.List)
	protected.GET("/contributions/:id", cfg.ContributionHandler.Get)
	protected.PATCH("/contributions/:id/progress", cfg.ContributionHandler.SaveProgress)
	protected.POST("/contributions/:id/answers", cfg.ContributionHandler.AppendAnswer)
	protected.POST("/contributions/:id/publish", cfg.ContributionHandler.Publish)
	// Interview wizard
	protected.POST("/interview/generate-questions", cfg.InterviewHandler.GenerateQuestions)
	protected.POST("/interview/find-assistance", cfg.InterviewHandler.FindAssistance)
	protected.POST("/interview/generate-answer-suggestions", cfg.InterviewHandler.GenerateAnswerSuggestions)
	protected.POST("/interview/generate-answer-from-sources", cfg.InterviewHandler.GenerateAnswerFromSources)
	protected.POST("/interview/generate-outline", cfg.InterviewHandler.GenerateOutline)
	protected.POST("/interview/discover-sources", cfg.InterviewHandler.DiscoverSources)
	// Account
	protected.GET("/usage", cfg.UsageHandler.GetMyUsage)
	protected.GET("/badges", cfg.BadgeHandler.GetMyBadges)

	return router
}
