package repository

import (
	"context"
	"errors"

	"github.com/BerniceZTT/pipeline_end/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("记录不存在")

// OpportunityFilter 商机查询条件
type OpportunityFilter struct {
	Stage           models.Stage
	ExcludeTerminal bool
}

// OpportunityStore 商机读写，读取时关联客户和回款
type OpportunityStore interface {
	FindOpportunities(ctx context.Context, filter OpportunityFilter) ([]models.OpportunityView, error)
	GetOpportunity(ctx context.Context, id string) (*models.OpportunityView, error)
	SaveOpportunity(ctx context.Context, o *models.Opportunity) error
}

// PaymentStore 回款记录读写
type PaymentStore interface {
	ListPayments(ctx context.Context, opportunityID string) ([]models.PaymentEntry, error)
	InsertPayment(ctx context.Context, p *models.PaymentEntry) error
	DeletePayment(ctx context.Context, opportunityID, paymentID string) error
}

// ClientStore 客户读写
type ClientStore interface {
	FindClients(ctx context.Context) ([]models.Client, error)
	GetClient(ctx context.Context, id string) (*models.Client, error)
	SaveClient(ctx context.Context, c *models.Client) error
}

// HistoryStore 进展历史
type HistoryStore interface {
	InsertHistory(ctx context.Context, h *models.ProgressHistory) error
	ListHistory(ctx context.Context, opportunityID string) ([]models.ProgressHistory, error)
}

// UserStore 用户读写
type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsersByRole(ctx context.Context, role models.UserRole) (int64, error)
}

// OperationLogStore 操作日志
type OperationLogStore interface {
	InsertOperationLog(ctx context.Context, log *models.OperationLog) error
}

// Store 数据服务的全部能力
type Store interface {
	OpportunityStore
	PaymentStore
	ClientStore
	HistoryStore
	UserStore
	OperationLogStore

	Status(ctx context.Context) (map[string]interface{}, error)
	Close(ctx context.Context) error
}

// NewID 生成记录ID
func NewID() string {
	return primitive.NewObjectID().Hex()
}
