package controllers

import (
	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/BerniceZTT/pipeline_end/service"
	"github.com/BerniceZTT/pipeline_end/utils"

	"github.com/gin-gonic/gin"
)

const userResource = "用户"

// UserController 登录、用户管理和个人资料接口
type UserController struct {
	svc *service.UserService
}

// NewUserController 创建用户控制器
func NewUserController(svc *service.UserService) *UserController {
	return &UserController{svc: svc}
}

// Login 用户登录
func (ctl *UserController) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	utils.Logger.Info().Str("username", req.Username).Msg("登录尝试")

	resp, err := ctl.svc.Login(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, userResource)
		return
	}

	utils.Logger.Info().Str("username", resp.User.Username).Msg("登录成功")
	utils.SuccessResponse(c, resp, "")
}

// Me 获取当前登录用户
func (ctl *UserController) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	me, err := ctl.svc.Me(c.Request.Context(), user.ID)
	if err != nil {
		handleError(c, err, userResource)
		return
	}
	utils.SuccessResponse(c, me, "")
}
