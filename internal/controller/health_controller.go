package controller

import (
	"net/http"

	"skillsnap_backend/internal/service"
	"skillsnap_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB       *gorm.DB
	Executor service.ExecutionClient
}

func NewHealthController(db *gorm.DB, executor service.ExecutionClient) *HealthController {
	return &HealthController{DB: db, Executor: executor}
}

// @Summary 健康检查
// @Description 检查服务状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	// 检查数据库连接
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	if err := sqlDB.PingContext(ctx.Request.Context()); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	components := gin.H{"database": "up"}
	if c.Executor != nil {
		components["executor"] = c.Executor.Provider()
	}

	util.Success(ctx, gin.H{
		"status":     "ok",
		"components": components,
	})
}
