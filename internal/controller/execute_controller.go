package controller

import (
	"encoding/json"

	"skillsnap_backend/internal/service"
	"skillsnap_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExecuteController struct {
	Service *service.GradingService
}

func NewExecuteController(svc *service.GradingService) *ExecuteController {
	return &ExecuteController{Service: svc}
}

type ExecuteRequest struct {
	LanguageID json.RawMessage `json:"language_id" binding:"required" swaggertype:"integer"`
	SourceCode string          `json:"source_code" binding:"required"`
	QuestionID string          `json:"question_id" binding:"required"`
}

// @Summary 运行代码（不返回标准输出）
// @Tags 代码执行
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ExecuteRequest true "代码"
// @Success 200 {object} util.Response
// @Router /api/execute [post]
func (c *ExecuteController) Execute(ctx *gin.Context) {
	var req ExecuteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	// 与提交接口一致，language_id 可为数字或数字字符串
	languageID, err := service.ParseLanguageID(req.LanguageID)
	if err == nil && languageID == 0 {
		err = util.ErrInvalidLanguage
	}
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	report, err := c.Service.RunQuestion(ctx.Request.Context(), req.QuestionID, req.SourceCode, languageID)
	if err != nil {
		writeError(ctx, err)
		return
	}

	util.Success(ctx, report)
}
