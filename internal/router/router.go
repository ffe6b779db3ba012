package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/proctorly/examroom/internal/config"
	"github.com/proctorly/examroom/internal/handler"
	"github.com/proctorly/examroom/internal/middleware"
	"github.com/proctorly/examroom/internal/response"
	"github.com/proctorly/examroom/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam    *handler.ExamHandler
	Proctor *handler.ProctorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens *service.TokenService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for session creation (30 joins per minute per IP).
	joinLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Exam Group ─────────────────────────────────────────────────
	examAPI := router.Group("/api/v1/exams")
	{
		examAPI.POST("/:exam_id/join", joinLimiter.Middleware(), handlers.Exam.Join)
		examAPI.GET("/:exam_id/paper",
			middleware.RequireSessionToken(tokens),
			handlers.Exam.Paper,
		)
		examAPI.POST("/:exam_id/submit",
			middleware.RequireSessionToken(tokens),
			handlers.Exam.Submit,
		)
	}

	// ─── 2. WebSocket Group (Session WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireSessionWSAuth(tokens))
	{
		ws.GET("/exams/:exam_id/proctor", handlers.Proctor.Stream)
	}

	return router
}
