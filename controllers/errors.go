package controllers

import (
	"errors"
	"net/http"

	"github.com/BerniceZTT/pipeline_end/service"
	"github.com/BerniceZTT/pipeline_end/utils"

	"github.com/gin-gonic/gin"
)

// handleError 把服务层错误转换为API错误
func handleError(c *gin.Context, err error, resource string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		utils.HandleError(c, utils.CreateNotFoundError(resource))
	case errors.Is(err, service.ErrValidation):
		utils.HandleError(c, utils.CreateBadRequestError(err.Error()))
	case errors.Is(err, service.ErrNotAllowed):
		utils.HandleError(c, utils.CreateConflictError(err.Error()))
	case errors.Is(err, service.ErrInvalidCredentials):
		utils.HandleError(c, utils.NewApiError(err.Error(), http.StatusUnauthorized, "INVALID_CREDENTIALS"))
	case errors.Is(err, service.ErrDuplicate):
		utils.HandleError(c, utils.NewApiError(resource+"已存在", http.StatusConflict, "DUPLICATE"))
	default:
		utils.HandleError(c, err)
	}
}

// bindJSON 绑定请求体，失败时直接返回400
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return false
	}
	return true
}

// currentUser 获取当前登录用户，失败时直接返回401
func currentUser(c *gin.Context) (*utils.LoginUser, bool) {
	user, err := utils.GetUser(c)
	if err != nil {
		utils.HandleError(c, utils.CreateUnauthorizedError())
		return nil, false
	}
	return user, true
}
