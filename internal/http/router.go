package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/open-builders/sponsor-points-backend/internal/common/middleware"
	"github.com/open-builders/sponsor-points-backend/internal/domain/sponsor"
	"github.com/open-builders/sponsor-points-backend/internal/domain/user"
	"github.com/open-builders/sponsor-points-backend/internal/service/scheduler"
	"github.com/open-builders/sponsor-points-backend/internal/service/sponsors"

	_ "github.com/open-builders/sponsor-points-backend/docs"
)

type SponsorService interface {
	List(ctx context.Context, limit, offset int) ([]sponsor.Channel, error)
	Create(ctx context.Context, in sponsors.CreateInput) (*sponsor.Channel, error)
	Deactivate(ctx context.Context, id int64) error
	Audit(ctx context.Context, id int64) (*sponsor.Channel, error)
	UserMemberships(ctx context.Context, userID int64) ([]sponsors.MembershipView, error)
}

type UserService interface {
	middleware.UserEnsurer
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type MembershipScheduler interface {
	Status() scheduler.Status
	TriggerImmediateCheck(ctx context.Context) (*scheduler.TickReport, error)
}

// HealthChecker is pinged by /ready.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Config struct {
	Debug       bool
	Origin      string
	BotToken    string
	InitDataTTL time.Duration
	AdminIDs    []int64
}

type Deps struct {
	Users    UserService
	Sponsors SponsorService
	// Scheduler is nil when no bot token is configured.
	Scheduler MembershipScheduler
	Health    map[string]HealthChecker
	Logger    zerolog.Logger
}

// NewRouter builds the gin engine with middleware, probes, docs and the /api/v1 routes.
func NewRouter(cfg Config, deps Deps) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.AccessLog(deps.Logger))
	router.Use(middleware.ErrorHandler(deps.Logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", middleware.InitDataHeader, middleware.RequestHeader}
	router.Use(cors.New(corsConfig))

	registerProbes(router, deps.Health)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.InitData(cfg.BotToken, cfg.InitDataTTL))
	v1.Use(middleware.AutoCreateUser(deps.Users))

	NewMembershipHandlers(deps.Users, deps.Sponsors, deps.Scheduler).Register(v1, middleware.RequireAdmin(cfg.AdminIDs))
	NewSponsorHandlers(deps.Sponsors).Register(v1, middleware.RequireAdmin(cfg.AdminIDs))

	return router
}

func registerProbes(router *gin.Engine, checks map[string]HealthChecker) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "sponsor-points-backend",
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		for name, check := range checks {
			if err := check.HealthCheck(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unready",
					"error":   name + " unavailable",
					"details": err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": time.Now().UTC()})
	})
}
