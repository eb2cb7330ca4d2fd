package routes

import (
	"net/http"

	"github.com/BerniceZTT/pipeline_end/config"
	"github.com/BerniceZTT/pipeline_end/controllers"
	"github.com/BerniceZTT/pipeline_end/middleware"
	"github.com/BerniceZTT/pipeline_end/repository"
	"github.com/BerniceZTT/pipeline_end/service"
	"github.com/BerniceZTT/pipeline_end/utils"

	"github.com/gin-gonic/gin"
)

// Controllers 路由使用的控制器
type Controllers struct {
	Opportunities *controllers.OpportunityController
	Clients       *controllers.ClientController
	Users         *controllers.UserController
}

// NewRouter 创建Gin实例，装配中间件和全部路由
func NewRouter(cfg *config.Config, store repository.Store) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.Timeout(cfg.RequestTimeout))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.OperationLoggerMiddleware(store))

	RegisterRoutes(router, store, Controllers{
		Opportunities: controllers.NewOpportunityController(service.NewOpportunityService(store)),
		Clients:       controllers.NewClientController(service.NewClientService(store)),
		Users:         controllers.NewUserController(service.NewUserService(store)),
	})
	return router
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, store repository.Store, ctl Controllers) {
	RegisterAuthRoutes(router, ctl.Users)
	RegisterUserRoutes(router, ctl.Users)
	RegisterClientRoutes(router, ctl.Clients)
	RegisterOpportunityRoutes(router, ctl.Opportunities)
	RegisterDashboardStatsRoutes(router, ctl.Opportunities)

	// 健康检查路由
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 数据库状态检查路由
	router.GET("/api/db-status", func(c *gin.Context) {
		status, err := store.Status(c.Request.Context())
		if err != nil {
			utils.ErrorResponse(c, "获取数据库状态失败: "+err.Error(), http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, status)
	})
}
