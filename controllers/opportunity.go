package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/BerniceZTT/pipeline_end/service"
	"github.com/BerniceZTT/pipeline_end/utils"

	"github.com/gin-gonic/gin"
)

const opportunityResource = "商机"

// OpportunityController 商机管道接口
type OpportunityController struct {
	svc *service.OpportunityService
}

// NewOpportunityController 创建商机控制器
func NewOpportunityController(svc *service.OpportunityService) *OpportunityController {
	return &OpportunityController{svc: svc}
}

// stageAndQuery 读取 stage 和 q 查询参数
func stageAndQuery(c *gin.Context) (models.Stage, string, error) {
	stage, err := service.ParseStage(c.Query("stage"))
	return stage, c.Query("q"), err
}

// List 获取阶段内未归档的商机
func (ctl *OpportunityController) List(c *gin.Context) {
	stage, query, err := stageAndQuery(c)
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	views, err := ctl.svc.ListByStage(c.Request.Context(), stage, query)
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	utils.SuccessResponse(c, views, "")
}

// Board 按状态分列的看板
func (ctl *OpportunityController) Board(c *gin.Context) {
	stage, query, err := stageAndQuery(c)
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	columns, err := ctl.svc.Board(c.Request.Context(), stage, query)
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	utils.SuccessResponse(c, gin.H{"stage": stage, "columns": columns}, "")
}

// Export 导出当前阶段经搜索过滤后的商机
func (ctl *OpportunityController) Export(c *gin.Context) {
	stage, query, err := stageAndQuery(c)
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	views, err := ctl.svc.ListByStage(c.Request.Context(), stage, query)
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="opportunities_%s_%s.csv"`, stage, time.Now().Format("2006-01-02")))
	c.Status(http.StatusOK)
	perContact := c.Query("perContact") == "true"
	if err := service.WriteCSV(c.Writer, views, perContact); err != nil {
		utils.Logger.Error().Err(err).Str("stage", string(stage)).Msg("导出商机失败")
		return
	}
	utils.Logger.Info().Str("stage", string(stage)).Int("count", len(views)).Msg("导出商机")
}

// Get 获取商机详情
func (ctl *OpportunityController) Get(c *gin.Context) {
	view, err := ctl.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	utils.SuccessResponse(c, view, "")
}

// History 获取商机进展历史
func (ctl *OpportunityController) History(c *gin.Context) {
	history, err := ctl.svc.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	utils.SuccessResponse(c, history, "")
}

// Create 创建商机
func (ctl *OpportunityController) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.OpportunityCreateRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := ctl.svc.Create(c.Request.Context(), req, user.Operator())
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	utils.SuccessResponse(c, view, "商机创建成功", http.StatusCreated)
}

// Upsert 编辑商机，销售阶段同时增删回款
func (ctl *OpportunityController) Upsert(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.OpportunityUpsertRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := ctl.svc.Upsert(c.Request.Context(), c.Param("id"), req, user.Operator())
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	message := "商机更新成功"
	if len(result.PaymentErrors) > 0 {
		message = "商机已更新，部分回款保存失败"
	}
	utils.SuccessResponse(c, result, message)
}

// MoveStatus 看板拖拽改变状态
func (ctl *OpportunityController) MoveStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.MoveStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := ctl.svc.MoveStatus(c.Request.Context(), c.Param("id"), req.ToStatus, user.Operator())
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	utils.SuccessResponse(c, view, "")
}

// Advance 进入下一阶段
func (ctl *OpportunityController) Advance(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	view, err := ctl.svc.AdvanceStage(c.Request.Context(), c.Param("id"), user.Operator())
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	utils.SuccessResponse(c, view, "已进入下一阶段")
}

// Archive 归档
func (ctl *OpportunityController) Archive(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.ArchiveRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := ctl.svc.Archive(c.Request.Context(), c.Param("id"), req.Reason, user.Operator())
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	utils.SuccessResponse(c, view, "商机已归档")
}

// Payments 获取回款记录
func (ctl *OpportunityController) Payments(c *gin.Context) {
	payments, err := ctl.svc.Payments(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err, opportunityResource)
		return
	}
	utils.SuccessResponse(c, payments, "")
}

// DeletePayment 删除回款
func (ctl *OpportunityController) DeletePayment(c *gin.Context) {
	view, err := ctl.svc.DeletePayment(c.Request.Context(), c.Param("id"), c.Param("paymentId"))
	if err != nil {
		handleError(c, err, "回款")
		return
	}
	utils.SuccessResponse(c, view, "回款已删除")
}
