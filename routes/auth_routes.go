package routes

import (
	"github.com/BerniceZTT/pipeline_end/controllers"
	"github.com/BerniceZTT/pipeline_end/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes 注册认证路由
func RegisterAuthRoutes(router *gin.Engine, ctl *controllers.UserController) {
	auth := router.Group("/api/auth")

	auth.POST("/login", ctl.Login)
	auth.GET("/me", middleware.AuthMiddleware(), ctl.Me)
}
