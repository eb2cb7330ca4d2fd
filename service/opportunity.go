package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/BerniceZTT/pipeline_end/repository"
	"github.com/BerniceZTT/pipeline_end/utils"
)

// OpportunityService 商机管道的读写操作
type OpportunityService struct {
	opportunities repository.OpportunityStore
	payments      repository.PaymentStore
	clients       repository.ClientStore
	history       repository.HistoryStore
	now           func() time.Time
}

// NewOpportunityService 创建商机服务
func NewOpportunityService(store repository.Store) *OpportunityService {
	return &OpportunityService{
		opportunities: store,
		payments:      store,
		clients:       store,
		history:       store,
		now:           time.Now,
	}
}

// ParseStage 解析阶段参数，为空时默认潜在客户阶段
func ParseStage(raw string) (models.Stage, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return models.StageProspect, nil
	}
	stage := models.Stage(raw)
	if !models.IsValidStage(stage) {
		return "", validationError("无效的阶段: %s", raw)
	}
	return stage, nil
}

// ListByStage 获取阶段内未归档的商机，关联客户和回款，并按关键字过滤
func (s *OpportunityService) ListByStage(ctx context.Context, stage models.Stage, query string) ([]models.OpportunityView, error) {
	if !models.IsValidStage(stage) {
		return nil, validationError("无效的阶段: %s", stage)
	}

	views, err := s.opportunities.FindOpportunities(ctx, repository.OpportunityFilter{
		Stage:           stage,
		ExcludeTerminal: true,
	})
	if err != nil {
		return nil, err
	}
	for i := range views {
		views[i] = withCashIn(views[i])
	}
	return ApplySearch(views, query), nil
}

// Board 按状态分列的看板
func (s *OpportunityService) Board(ctx context.Context, stage models.Stage, query string) ([]models.BoardColumn, error) {
	views, err := s.ListByStage(ctx, stage, query)
	if err != nil {
		return nil, err
	}
	return GroupByStatus(views, models.StatusVocabulary(stage)), nil
}

// Get 获取商机详情
func (s *OpportunityService) Get(ctx context.Context, id string) (*models.OpportunityView, error) {
	view, err := s.opportunities.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}
	v := withCashIn(*view)
	return &v, nil
}

// History 获取商机进展历史
func (s *OpportunityService) History(ctx context.Context, id string) ([]models.ProgressHistory, error) {
	if _, err := s.opportunities.GetOpportunity(ctx, id); err != nil {
		return nil, err
	}
	return s.history.ListHistory(ctx, id)
}

func (s *OpportunityService) checkClient(ctx context.Context, clientID string) error {
	if clientID == "" {
		return nil
	}
	if _, err := s.clients.GetClient(ctx, clientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationError("客户不存在")
		}
		return err
	}
	return nil
}

// Create 创建商机，总是从潜在客户阶段的待处理状态开始
func (s *OpportunityService) Create(ctx context.Context, req models.OpportunityCreateRequest, operator models.Operator) (*models.OpportunityView, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, validationError("标题不能为空")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := s.checkClient(ctx, req.ClientID); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	now := s.now()
	o := models.Opportunity{
		ID:              repository.NewID(),
		Title:           title,
		ClientID:        req.ClientID,
		Stage:           models.StageProspect,
		Status:          models.EntryStatus(models.StageProspect),
		Value:           req.Value,
		Priority:        priority,
		OpportunityType: req.OpportunityType,
		Notes:           strings.TrimSpace(req.Notes),
		OwnerID:         operator.ID,
		OwnerName:       operator.Name,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.opportunities.SaveOpportunity(ctx, &o); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, o, "", "", operator, "创建商机")
	utils.Logger.Info().Str("id", o.ID).Str("title", o.Title).Str("operator", operator.Name).Msg("商机已创建")
	return s.Get(ctx, o.ID)
}

// Upsert 编辑商机字段；销售阶段额外写入回款增删。
// 字段写入失败直接返回错误；回款写入各自独立，失败只记录在结果中，不回滚字段写入。
func (s *OpportunityService) Upsert(ctx context.Context, id string, req models.OpportunityUpsertRequest, operator models.Operator) (*models.UpsertResult, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, validationError("标题不能为空")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	current, err := s.opportunities.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsArchived() {
		return nil, notAllowed("已归档的商机不能编辑")
	}

	stage := req.Stage
	if stage == "" {
		stage = current.Stage
	}
	if !models.IsValidStage(stage) {
		return nil, validationError("无效的阶段: %s", stage)
	}
	// 换阶段时状态一律重置为新阶段的初始状态，请求中的状态被忽略
	status := req.Status
	switch {
	case stage != current.Stage:
		status = models.EntryStatus(stage)
	case status == "":
		status = current.Status
	}
	if !models.IsValidStatusForStage(stage, status) {
		return nil, validationError("状态 %s 不属于阶段 %s", status, stage)
	}

	isSales := stage == models.StageSales
	if isSales {
		for _, p := range req.PaymentsToAdd {
			if p.Amount <= 0 {
				return nil, validationError("回款金额必须大于0")
			}
		}
	}
	if err := s.checkClient(ctx, req.ClientID); err != nil {
		return nil, err
	}

	updated := current.Opportunity
	updated.Title = title
	updated.ClientID = req.ClientID
	updated.Stage = stage
	updated.Status = status
	updated.Value = req.Value
	if req.Priority != "" {
		updated.Priority = req.Priority
	}
	updated.OpportunityType = req.OpportunityType
	updated.Notes = strings.TrimSpace(req.Notes)
	updated.UpdatedAt = s.now()

	if err := s.opportunities.SaveOpportunity(ctx, &updated); err != nil {
		return nil, err
	}
	if updated.Stage != current.Stage || updated.Status != current.Status {
		s.recordHistory(ctx, updated, current.Stage, current.Status, operator, "编辑商机")
	}

	result := &models.UpsertResult{}
	if isSales {
		result.PaymentErrors = s.applyPayments(ctx, id, req.PaymentsToAdd, req.PaymentsToDelete)
	} else if len(req.PaymentsToAdd) > 0 || len(req.PaymentsToDelete) > 0 {
		utils.Logger.Debug().Str("id", id).Str("stage", string(stage)).Msg("非销售阶段，忽略回款变更")
	}

	view, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Opportunity = view
	return result, nil
}

func (s *OpportunityService) applyPayments(ctx context.Context, opportunityID string, toAdd []models.PaymentEntryInput, toDelete []string) []string {
	var failures []string
	for _, input := range toAdd {
		paymentDate := input.PaymentDate
		if paymentDate.IsZero() {
			paymentDate = s.now()
		}
		entry := models.PaymentEntry{
			OpportunityID: opportunityID,
			Amount:        input.Amount,
			PaymentDate:   paymentDate,
			Notes:         strings.TrimSpace(input.Notes),
			CreatedAt:     s.now(),
		}
		if err := s.payments.InsertPayment(ctx, &entry); err != nil {
			utils.Logger.Error().Err(err).Str("opportunityId", opportunityID).Int64("amount", input.Amount).Msg("新增回款失败")
			failures = append(failures, fmt.Sprintf("新增回款 %d 失败", input.Amount))
		}
	}
	for _, paymentID := range toDelete {
		if err := s.payments.DeletePayment(ctx, opportunityID, paymentID); err != nil {
			utils.Logger.Error().Err(err).Str("opportunityId", opportunityID).Str("paymentId", paymentID).Msg("删除回款失败")
			failures = append(failures, fmt.Sprintf("删除回款 %s 失败", paymentID))
		}
	}
	return failures
}

// MoveStatus 同阶段内改变状态（看板拖拽）；目标状态与当前相同时不写入
func (s *OpportunityService) MoveStatus(ctx context.Context, id string, to models.Status, operator models.Operator) (*models.OpportunityView, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsArchived() {
		return nil, notAllowed("已归档的商机不能移动")
	}
	if !models.IsValidStatusForStage(current.Stage, to) {
		return nil, validationError("状态 %s 不属于阶段 %s", to, current.Stage)
	}
	if current.Status == to {
		return current, nil
	}

	updated := current.Opportunity
	updated.Status = to
	updated.UpdatedAt = s.now()
	if err := s.opportunities.SaveOpportunity(ctx, &updated); err != nil {
		return nil, err
	}
	s.recordHistory(ctx, updated, current.Stage, current.Status, operator, "调整状态")
	return s.Get(ctx, id)
}

// AdvanceStage 进入下一阶段，状态重置为该阶段的初始状态
func (s *OpportunityService) AdvanceStage(ctx context.Context, id string, operator models.Operator) (*models.OpportunityView, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAdvance(current.Opportunity) {
		return nil, notAllowed("阶段 %s 状态 %s 不能进入下一阶段", current.Stage, current.Status)
	}
	next, ok := models.NextStage(current.Stage)
	if !ok {
		return nil, notAllowed("阶段 %s 没有下一阶段", current.Stage)
	}

	updated := current.Opportunity
	updated.Stage = next
	updated.Status = models.EntryStatus(next)
	updated.UpdatedAt = s.now()
	if err := s.opportunities.SaveOpportunity(ctx, &updated); err != nil {
		return nil, err
	}
	s.recordHistory(ctx, updated, current.Stage, current.Status, operator, "进入下一阶段")
	return s.Get(ctx, id)
}

// Archive 归档为终态，记录保留不删除
func (s *OpportunityService) Archive(ctx context.Context, id string, reason models.Status, operator models.Operator) (*models.OpportunityView, error) {
	if !models.IsTerminalStatus(reason) {
		return nil, validationError("无效的归档原因: %s", reason)
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanArchive(current.Opportunity, current.CashIn, reason) {
		return nil, notAllowed("阶段 %s 状态 %s 不能归档为 %s", current.Stage, current.Status, reason)
	}

	updated := current.Opportunity
	updated.Status = reason
	updated.UpdatedAt = s.now()
	if err := s.opportunities.SaveOpportunity(ctx, &updated); err != nil {
		return nil, err
	}
	s.recordHistory(ctx, updated, current.Stage, current.Status, operator, "归档")
	return s.Get(ctx, id)
}

// Payments 获取商机的回款记录，按回款日期排序
func (s *OpportunityService) Payments(ctx context.Context, opportunityID string) ([]models.PaymentEntry, error) {
	if _, err := s.opportunities.GetOpportunity(ctx, opportunityID); err != nil {
		return nil, err
	}
	return s.payments.ListPayments(ctx, opportunityID)
}

// DeletePayment 删除单条回款，返回重新计算后的商机
func (s *OpportunityService) DeletePayment(ctx context.Context, opportunityID, paymentID string) (*models.OpportunityView, error) {
	if _, err := s.opportunities.GetOpportunity(ctx, opportunityID); err != nil {
		return nil, err
	}
	if err := s.payments.DeletePayment(ctx, opportunityID, paymentID); err != nil {
		return nil, err
	}
	return s.Get(ctx, opportunityID)
}

// recordHistory 写入进展历史，失败只记日志
func (s *OpportunityService) recordHistory(ctx context.Context, o models.Opportunity, fromStage models.Stage, fromStatus models.Status, operator models.Operator, remark string) {
	h := models.ProgressHistory{
		OpportunityID: o.ID,
		Title:         o.Title,
		FromStage:     fromStage,
		FromStatus:    fromStatus,
		ToStage:       o.Stage,
		ToStatus:      o.Status,
		OperatorID:    operator.ID,
		OperatorName:  operator.Name,
		Remark:        remark,
		CreatedAt:     s.now(),
	}
	if err := s.history.InsertHistory(ctx, &h); err != nil {
		utils.Logger.Error().Err(err).Str("opportunityId", o.ID).Msg("写入进展历史失败")
	}
}
