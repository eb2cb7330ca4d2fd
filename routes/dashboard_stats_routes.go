package routes

import (
	"github.com/BerniceZTT/pipeline_end/controllers"
	"github.com/BerniceZTT/pipeline_end/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterDashboardStatsRoutes 注册数据看板路由
func RegisterDashboardStatsRoutes(router *gin.Engine, ctl *controllers.OpportunityController) {
	router.GET("/api/dashboard-stats",
		middleware.AuthMiddleware(),
		middleware.PermissionMiddleware("opportunities", "read"),
		ctl.Stats,
	)
}
