package controller

import (
	"errors"
	"net/http"

	"skillsnap_backend/internal/service"
	"skillsnap_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// writeError 把服务层错误映射为统一响应
func writeError(ctx *gin.Context, err error) {
	var transportErr *service.TransportError
	switch {
	case util.IsValidation(err):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrAssessmentNotFound),
		errors.Is(err, util.ErrProblemNotFound),
		errors.Is(err, util.ErrCertificateNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrExecutionTimeout):
		util.Error(ctx, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &transportErr), errors.Is(err, service.ErrNoSubmissionID):
		util.Error(ctx, http.StatusBadGateway, err.Error())
	default:
		// 包括执行后端未配置
		util.LogInternalError(ctx, err)
	}
}
