package models

import (
	"time"
)

// Stage 商机所处的管道阶段
type Stage string

const (
	StageProspect Stage = "prospect"
	StageProposal Stage = "proposal"
	StageLeads    Stage = "leads"
	StageSales    Stage = "sales"
)

// Stages 按管道顺序排列的全部阶段
var Stages = []Stage{StageProspect, StageProposal, StageLeads, StageSales}

// Status 阶段内的子状态，看板按它分列
type Status string

const (
	StatusPending  Status = "pending"
	StatusOnGoing  Status = "on_going"
	StatusSent     Status = "sent"
	StatusFollowUp Status = "follow_up"

	StatusLow      Status = "low"
	StatusModerate Status = "moderate"
	StatusHot      Status = "hot"

	StatusDownPayment       Status = "down_payment"
	StatusAccountReceivable Status = "account_receivable"
	StatusFullPayment       Status = "full_payment"

	// 归档终态
	StatusWon    Status = "won"
	StatusLost   Status = "lost"
	StatusFailed Status = "failed"
)

// 各阶段的状态词表，顺序即看板列顺序
var statusVocabularies = map[Stage][]Status{
	StageProspect: {StatusPending, StatusOnGoing, StatusSent, StatusFollowUp},
	StageProposal: {StatusPending, StatusOnGoing, StatusSent, StatusFollowUp},
	StageLeads:    {StatusPending, StatusLow, StatusModerate, StatusHot},
	StageSales:    {StatusPending, StatusDownPayment, StatusAccountReceivable, StatusFullPayment},
}

// 各阶段允许的归档原因
var archiveReasons = map[Stage]Status{
	StageProspect: StatusFailed,
	StageProposal: StatusFailed,
	StageLeads:    StatusLost,
	StageSales:    StatusWon,
}

// TerminalStatuses 归档终态列表
var TerminalStatuses = []Status{StatusWon, StatusLost, StatusFailed}

// IsValidStage 验证阶段是否有效
func IsValidStage(stage Stage) bool {
	_, ok := statusVocabularies[stage]
	return ok
}

// StatusVocabulary 返回阶段的状态词表副本，未知阶段返回 nil
func StatusVocabulary(stage Stage) []Status {
	vocab, ok := statusVocabularies[stage]
	if !ok {
		return nil
	}
	out := make([]Status, len(vocab))
	copy(out, vocab)
	return out
}

// IsValidStatusForStage 状态是否属于该阶段的词表
func IsValidStatusForStage(stage Stage, status Status) bool {
	for _, s := range statusVocabularies[stage] {
		if s == status {
			return true
		}
	}
	return false
}

// EntryStatus 进入阶段时的初始状态
func EntryStatus(stage Stage) Status {
	if !IsValidStage(stage) {
		return ""
	}
	return StatusPending
}

// NextStage 返回下一阶段，最后一个阶段返回 false
func NextStage(stage Stage) (Stage, bool) {
	for i, s := range Stages {
		if s == stage && i+1 < len(Stages) {
			return Stages[i+1], true
		}
	}
	return "", false
}

// IsTerminalStatus 是否为归档终态
func IsTerminalStatus(status Status) bool {
	for _, s := range TerminalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ArchiveReasonFor 返回阶段允许的归档原因
func ArchiveReasonFor(stage Stage) (Status, bool) {
	reason, ok := archiveReasons[stage]
	return reason, ok
}

// Priority 优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// OpportunityType 商机类型，空字符串表示未设置
type OpportunityType string

const (
	OpportunityTypeCustomerBased OpportunityType = "customer_based"
	OpportunityTypeProductBased  OpportunityType = "product_based"
)

// Opportunity 商机
type Opportunity struct {
	ID              string          `json:"_id,omitempty" bson:"_id,omitempty"`
	Title           string          `json:"title" bson:"title"`
	ClientID        string          `json:"clientId,omitempty" bson:"clientId,omitempty"`
	Stage           Stage           `json:"stage" bson:"stage"`
	Status          Status          `json:"status" bson:"status"`
	Value           int64           `json:"value" bson:"value"`
	Priority        Priority        `json:"priority,omitempty" bson:"priority,omitempty"`
	OpportunityType OpportunityType `json:"opportunityType,omitempty" bson:"opportunityType,omitempty"`
	Notes           string          `json:"notes,omitempty" bson:"notes,omitempty"`
	OwnerID         string          `json:"ownerId,omitempty" bson:"ownerId,omitempty"`
	OwnerName       string          `json:"ownerName,omitempty" bson:"ownerName,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// IsArchived 是否已归档
func (o Opportunity) IsArchived() bool {
	return IsTerminalStatus(o.Status)
}

// PaymentEntry 回款记录，只增删不改
type PaymentEntry struct {
	ID            string    `json:"_id,omitempty" bson:"_id,omitempty"`
	OpportunityID string    `json:"opportunityId" bson:"opportunityId"`
	Amount        int64     `json:"amount" bson:"amount"`
	PaymentDate   time.Time `json:"paymentDate" bson:"paymentDate"`
	Notes         string    `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

// OpportunityView 关联了客户和回款的商机，CashIn 为派生字段
type OpportunityView struct {
	Opportunity `bson:",inline"`
	Client      *Client        `json:"client,omitempty" bson:"client,omitempty"`
	Payments    []PaymentEntry `json:"payments" bson:"payments"`
	CashIn      int64          `json:"cashIn" bson:"-"`
}

// ClientName 关联客户的展示名称
func (v OpportunityView) ClientName() string {
	if v.Client == nil {
		return ""
	}
	return v.Client.CompanyName
}

// ProgressHistory 商机阶段/状态变更记录
type ProgressHistory struct {
	ID            string    `json:"_id,omitempty" bson:"_id,omitempty"`
	OpportunityID string    `json:"opportunityId" bson:"opportunityId"`
	Title         string    `json:"title" bson:"title"`
	FromStage     Stage     `json:"fromStage" bson:"fromStage"`
	FromStatus    Status    `json:"fromStatus" bson:"fromStatus"`
	ToStage       Stage     `json:"toStage" bson:"toStage"`
	ToStatus      Status    `json:"toStatus" bson:"toStatus"`
	OperatorID    string    `json:"operatorId" bson:"operatorId"`
	OperatorName  string    `json:"operatorName" bson:"operatorName"`
	Remark        string    `json:"remark,omitempty" bson:"remark,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

// 商机相关请求
type (
	// OpportunityCreateRequest 创建商机请求
	OpportunityCreateRequest struct {
		Title           string          `json:"title"`
		ClientID        string          `json:"clientId"`
		Value           int64           `json:"value" validate:"gte=0"`
		Priority        Priority        `json:"priority" validate:"omitempty,oneof=low medium high"`
		OpportunityType OpportunityType `json:"opportunityType" validate:"omitempty,oneof=customer_based product_based"`
		Notes           string          `json:"notes"`
	}

	// PaymentEntryInput 新增回款
	PaymentEntryInput struct {
		Amount      int64     `json:"amount"`
		PaymentDate time.Time `json:"paymentDate"`
		Notes       string    `json:"notes"`
	}

	// OpportunityUpsertRequest 编辑商机请求，回款的增删只在销售阶段生效
	OpportunityUpsertRequest struct {
		Title            string              `json:"title"`
		ClientID         string              `json:"clientId"`
		Stage            Stage               `json:"stage"`
		Status           Status              `json:"status"`
		Value            int64               `json:"value" validate:"gte=0"`
		Priority         Priority            `json:"priority" validate:"omitempty,oneof=low medium high"`
		OpportunityType  OpportunityType     `json:"opportunityType" validate:"omitempty,oneof=customer_based product_based"`
		Notes            string              `json:"notes"`
		PaymentsToAdd    []PaymentEntryInput `json:"paymentsToAdd"`
		PaymentsToDelete []string            `json:"paymentsToDelete"`
	}

	// UpsertResult 编辑结果，回款写入失败单独列出
	UpsertResult struct {
		Opportunity   *OpportunityView `json:"opportunity"`
		PaymentErrors []string         `json:"paymentErrors,omitempty"`
	}

	// MoveStatusRequest 拖拽改变状态
	MoveStatusRequest struct {
		FromStatus Status `json:"fromStatus"`
		ToStatus   Status `json:"toStatus" binding:"required"`
	}

	// ArchiveRequest 归档请求
	ArchiveRequest struct {
		Reason Status `json:"reason" binding:"required,oneof=won lost failed"`
	}
)

// BoardColumn 看板的一列
type BoardColumn struct {
	Status Status            `json:"status"`
	Items  []OpportunityView `json:"items"`
}
