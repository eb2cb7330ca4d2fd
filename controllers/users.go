package controllers

import (
	"net/http"

	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/BerniceZTT/pipeline_end/utils"

	"github.com/gin-gonic/gin"
)

// ListUsers 获取所有用户
func (ctl *UserController) ListUsers(c *gin.Context) {
	users, err := ctl.svc.List(c.Request.Context())
	if err != nil {
		handleError(c, err, userResource)
		return
	}
	utils.SuccessResponse(c, users, "")
}

// CreateUser 管理员创建用户
func (ctl *UserController) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := ctl.svc.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, userResource)
		return
	}
	utils.SuccessResponse(c, user, "用户创建成功", http.StatusCreated)
}

// UpdateProfile 更新个人资料
func (ctl *UserController) UpdateProfile(c *gin.Context) {
	current, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := ctl.svc.UpdateProfile(c.Request.Context(), current.ID, req)
	if err != nil {
		handleError(c, err, userResource)
		return
	}
	utils.SuccessResponse(c, user, "个人资料更新成功")
}
