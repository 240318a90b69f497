package app

import (
	"time"

	"skillsnap_backend/internal/config"
	"skillsnap_backend/internal/middleware"
	"skillsnap_backend/pkg/monitoring"
	"skillsnap_backend/pkg/security"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerLearnerRoutes(authGroup, c, cfg)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.GET("/skills", c.skill.ListSkills)
		public.GET("/assessments/:skillId", c.assessment.GetAssessment)
		public.GET("/certificates/:id", c.certificate.GetCertificate)
		public.GET("/certificates/verify/:verifiedId", c.certificate.Verify)
	}
}

func (a *App) registerLearnerRoutes(group *gin.RouterGroup, c *controllers, cfg *config.Config) {
	group.POST("/assessments/:skillId/submit", c.assessment.Submit)
	group.GET("/assessments/:skillId/submissions", c.assessment.ListSubmissions)

	// 代码执行单独限流
	group.POST("/execute", security.RateLimiter(cfg.RateLimit.ExecuteMaxRequests, time.Minute), c.execute.Execute)
}
