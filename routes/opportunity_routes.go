package routes

import (
	"github.com/BerniceZTT/pipeline_end/controllers"
	"github.com/BerniceZTT/pipeline_end/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterOpportunityRoutes 注册商机管道路由
func RegisterOpportunityRoutes(router *gin.Engine, ctl *controllers.OpportunityController) {
	opportunities := router.Group("/api/opportunities")
	opportunities.Use(middleware.AuthMiddleware())

	read := middleware.PermissionMiddleware("opportunities", "read")
	create := middleware.PermissionMiddleware("opportunities", "create")
	update := middleware.PermissionMiddleware("opportunities", "update")

	opportunities.GET("", read, ctl.List)
	opportunities.GET("/board", read, ctl.Board)
	opportunities.GET("/export", read, ctl.Export)
	opportunities.GET("/:id", read, ctl.Get)
	opportunities.GET("/:id/history", read, ctl.History)
	opportunities.GET("/:id/payments", read, ctl.Payments)

	opportunities.POST("", create, ctl.Create)
	opportunities.PUT("/:id", update, ctl.Upsert)
	opportunities.PATCH("/:id/status", update, ctl.MoveStatus)
	opportunities.POST("/:id/advance", update, ctl.Advance)
	opportunities.POST("/:id/archive", update, ctl.Archive)
	opportunities.DELETE("/:id/payments/:paymentId", update, ctl.DeletePayment)
}
