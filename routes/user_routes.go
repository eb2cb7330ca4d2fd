package routes

import (
	"github.com/BerniceZTT/pipeline_end/controllers"
	"github.com/BerniceZTT/pipeline_end/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterUserRoutes 注册用户管理路由
func RegisterUserRoutes(router *gin.Engine, ctl *controllers.UserController) {
	users := router.Group("/api/users")
	users.Use(middleware.AuthMiddleware())

	// 个人资料，所有登录用户可用
	users.PUT("/me", ctl.UpdateProfile)

	users.GET("", middleware.PermissionMiddleware("users", "read"), ctl.ListUsers)
	users.POST("", middleware.PermissionMiddleware("users", "create"), ctl.CreateUser)
}
