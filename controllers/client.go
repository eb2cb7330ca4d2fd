package controllers

import (
	"net/http"

	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/BerniceZTT/pipeline_end/service"
	"github.com/BerniceZTT/pipeline_end/utils"

	"github.com/gin-gonic/gin"
)

const clientResource = "客户"

// ClientController 客户接口
type ClientController struct {
	svc *service.ClientService
}

// NewClientController 创建客户控制器
func NewClientController(svc *service.ClientService) *ClientController {
	return &ClientController{svc: svc}
}

// List 获取客户列表
func (ctl *ClientController) List(c *gin.Context) {
	clients, err := ctl.svc.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		handleError(c, err, clientResource)
		return
	}
	utils.SuccessResponse(c, clients, "")
}

// Get 获取客户详情
func (ctl *ClientController) Get(c *gin.Context) {
	client, err := ctl.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err, clientResource)
		return
	}
	utils.SuccessResponse(c, client, "")
}

// Create 创建客户
func (ctl *ClientController) Create(c *gin.Context) {
	var req models.ClientRequest
	if !bindJSON(c, &req) {
		return
	}
	client, err := ctl.svc.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, clientResource)
		return
	}
	utils.SuccessResponse(c, client, "客户创建成功", http.StatusCreated)
}

// Update 更新客户
func (ctl *ClientController) Update(c *gin.Context) {
	var req models.ClientRequest
	if !bindJSON(c, &req) {
		return
	}
	client, err := ctl.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		handleError(c, err, clientResource)
		return
	}
	utils.SuccessResponse(c, client, "客户更新成功")
}
