package controllers

import (
	"github.com/BerniceZTT/pipeline_end/utils"

	"github.com/gin-gonic/gin"
)

// Stats 商机管道统计
func (ctl *OpportunityController) Stats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	utils.LogInfo(map[string]interface{}{"username": user.Username}, "获取商机管道统计")

	stats, err := ctl.svc.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	utils.SuccessResponse(c, stats, "")
}
