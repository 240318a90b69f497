package controller

import (
	"encoding/json"

	"skillsnap_backend/internal/model"
	"skillsnap_backend/internal/service"
	"skillsnap_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	Service *service.AssessmentService
}

func NewAssessmentController(svc *service.AssessmentService) *AssessmentController {
	return &AssessmentController{Service: svc}
}

// SubmitRequest answers 的值可以是选项下标、源码字符串或 {source, language_id}
type SubmitRequest struct {
	Answers map[string]json.RawMessage `json:"answers" binding:"required"`
}

// @Summary 获取测评（不含答案）
// @Tags 测评
// @Produce json
// @Param skillId path string true "技能ID"
// @Success 200 {object} util.Response
// @Router /api/assessments/{skillId} [get]
func (c *AssessmentController) GetAssessment(ctx *gin.Context) {
	a, err := c.Service.GetPublicAssessment(ctx.Request.Context(), ctx.Param("skillId"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// @Summary 提交测评
// @Tags 测评
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param skillId path string true "技能ID"
// @Param body body SubmitRequest true "答案"
// @Success 200 {object} util.Response
// @Router /api/assessments/{skillId}/submit [post]
func (c *AssessmentController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.Grade(ctx.Request.Context(), service.Principal{
		UserID: user.UserID,
		Name:   user.DisplayName(),
	}, ctx.Param("skillId"), req.Answers)
	if err != nil {
		writeError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 我的提交记录
// @Tags 测评
// @Produce json
// @Security BearerAuth
// @Param skillId path string true "技能ID"
// @Success 200 {object} util.Response
// @Router /api/assessments/{skillId}/submissions [get]
func (c *AssessmentController) ListSubmissions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	subs, err := c.Service.ListSubmissions(ctx.Request.Context(), user.UserID, ctx.Param("skillId"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	util.Success(ctx, subs)
}
