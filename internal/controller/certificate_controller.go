package controller

import (
	"skillsnap_backend/internal/service"
	"skillsnap_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	Service *service.CertificateService
}

func NewCertificateController(svc *service.CertificateService) *CertificateController {
	return &CertificateController{Service: svc}
}

// @Summary 获取证书
// @Tags 证书
// @Produce json
// @Param id path string true "证书ID"
// @Success 200 {object} util.Response
// @Router /api/certificates/{id} [get]
func (c *CertificateController) GetCertificate(ctx *gin.Context) {
	cert, err := c.Service.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}

// @Summary 验证证书
// @Tags 证书
// @Produce json
// @Param verifiedId path string true "验证ID"
// @Success 200 {object} util.Response
// @Router /api/certificates/verify/{verifiedId} [get]
func (c *CertificateController) Verify(ctx *gin.Context) {
	cert, err := c.Service.Verify(ctx.Request.Context(), ctx.Param("verifiedId"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"valid":       true,
		"certificate": cert,
	})
}
