package routes

import (
	"github.com/BerniceZTT/pipeline_end/controllers"
	"github.com/BerniceZTT/pipeline_end/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterClientRoutes 注册客户路由
func RegisterClientRoutes(router *gin.Engine, ctl *controllers.ClientController) {
	clients := router.Group("/api/clients")
	clients.Use(middleware.AuthMiddleware())

	clients.GET("", middleware.PermissionMiddleware("clients", "read"), ctl.List)
	clients.GET("/:id", middleware.PermissionMiddleware("clients", "read"), ctl.Get)
	clients.POST("", middleware.PermissionMiddleware("clients", "create"), ctl.Create)
	clients.PUT("/:id", middleware.PermissionMiddleware("clients", "update"), ctl.Update)
}
