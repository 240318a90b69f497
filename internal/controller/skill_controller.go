package controller

import (
	"skillsnap_backend/internal/model"
	"skillsnap_backend/internal/service"
	"skillsnap_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SkillController struct {
	Service *service.AssessmentService
}

func NewSkillController(svc *service.AssessmentService) *SkillController {
	return &SkillController{Service: svc}
}

// @Summary 技能列表
// @Tags 技能
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/skills [get]
func (c *SkillController) ListSkills(ctx *gin.Context) {
	skills, err := c.Service.ListSkills(ctx.Request.Context())
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if skills == nil {
		skills = []model.Skill{}
	}
	util.Success(ctx, skills)
}
