package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/BerniceZTT/pipeline_end/models"
)

// MemoryStore 进程内数据服务，用于本地开发和测试
type MemoryStore struct {
	mu            sync.RWMutex
	opportunities map[string]models.Opportunity
	payments      map[string]models.PaymentEntry
	clients       map[string]models.Client
	history       []models.ProgressHistory
	users         map[string]models.User
	operationLogs []models.OperationLog
}

// NewMemoryStore 创建空的内存数据服务
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		opportunities: make(map[string]models.Opportunity),
		payments:      make(map[string]models.PaymentEntry),
		clients:       make(map[string]models.Client),
		users:         make(map[string]models.User),
	}
}

// Close 无需释放资源
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// Status 获取各集合的记录数
func (s *MemoryStore) Status(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		UsersCollection:            map[string]interface{}{"count": len(s.users)},
		ClientsCollection:          map[string]interface{}{"count": len(s.clients)},
		OpportunitiesCollection:    map[string]interface{}{"count": len(s.opportunities)},
		PaymentEntriesCollection:   map[string]interface{}{"count": len(s.payments)},
		ProgressHistoryCollection:  map[string]interface{}{"count": len(s.history)},
		ApiOperationLogsCollection: map[string]interface{}{"count": len(s.operationLogs)},
	}, nil
}

// join 调用方需持有读锁
func (s *MemoryStore) join(o models.Opportunity) models.OpportunityView {
	view := models.OpportunityView{Opportunity: o, Payments: make([]models.PaymentEntry, 0)}
	if o.ClientID != "" {
		if c, ok := s.clients[o.ClientID]; ok {
			client := c
			view.Client = &client
		}
	}
	for _, p := range s.payments {
		if p.OpportunityID == o.ID {
			view.Payments = append(view.Payments, p)
		}
	}
	sortPayments(view.Payments)
	return view
}

func sortPayments(payments []models.PaymentEntry) {
	sort.SliceStable(payments, func(i, j int) bool {
		if payments[i].PaymentDate.Equal(payments[j].PaymentDate) {
			return payments[i].ID < payments[j].ID
		}
		return payments[i].PaymentDate.Before(payments[j].PaymentDate)
	})
}

// FindOpportunities 按条件查询商机，按创建时间倒序
func (s *MemoryStore) FindOpportunities(ctx context.Context, filter OpportunityFilter) ([]models.OpportunityView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]models.OpportunityView, 0)
	for _, o := range s.opportunities {
		if filter.Stage != "" && o.Stage != filter.Stage {
			continue
		}
		if filter.ExcludeTerminal && o.IsArchived() {
			continue
		}
		views = append(views, s.join(o))
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ID > views[j].ID
		}
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views, nil
}

// GetOpportunity 根据ID获取商机
func (s *MemoryStore) GetOpportunity(ctx context.Context, id string) (*models.OpportunityView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.opportunities[id]
	if !ok {
		return nil, ErrNotFound
	}
	view := s.join(o)
	return &view, nil
}

// SaveOpportunity 按ID新增或更新商机
func (s *MemoryStore) SaveOpportunity(ctx context.Context, o *models.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == "" {
		o.ID = NewID()
	}
	s.opportunities[o.ID] = *o
	return nil
}

// ListPayments 获取商机的回款记录
func (s *MemoryStore) ListPayments(ctx context.Context, opportunityID string) ([]models.PaymentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]models.PaymentEntry, 0)
	for _, p := range s.payments {
		if p.OpportunityID == opportunityID {
			payments = append(payments, p)
		}
	}
	sortPayments(payments)
	return payments, nil
}

// InsertPayment 新增回款记录
func (s *MemoryStore) InsertPayment(ctx context.Context, p *models.PaymentEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = NewID()
	}
	s.payments[p.ID] = *p
	return nil
}

// DeletePayment 删除回款记录
func (s *MemoryStore) DeletePayment(ctx context.Context, opportunityID, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok || p.OpportunityID != opportunityID {
		return ErrNotFound
	}
	delete(s.payments, paymentID)
	return nil
}

// FindClients 获取全部客户，按公司名排序
func (s *MemoryStore) FindClients(ctx context.Context) ([]models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]models.Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	sort.SliceStable(clients, func(i, j int) bool {
		return clients[i].CompanyName < clients[j].CompanyName
	})
	return clients, nil
}

// GetClient 根据ID获取客户
func (s *MemoryStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

// SaveClient 按ID新增或更新客户
func (s *MemoryStore) SaveClient(ctx context.Context, c *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = NewID()
	}
	s.clients[c.ID] = *c
	return nil
}

// InsertHistory 新增进展历史
func (s *MemoryStore) InsertHistory(ctx context.Context, h *models.ProgressHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = NewID()
	}
	s.history = append(s.history, *h)
	return nil
}

// ListHistory 按时间倒序获取商机的进展历史
func (s *MemoryStore) ListHistory(ctx context.Context, opportunityID string) ([]models.ProgressHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]models.ProgressHistory, 0)
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].OpportunityID == opportunityID {
			history = append(history, s.history[i])
		}
	}
	return history, nil
}

// FindUserByUsername 根据用户名查找用户
func (s *MemoryStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

// GetUser 根据ID查找用户
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// SaveUser 按ID新增或更新用户
func (s *MemoryStore) SaveUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = NewID()
	}
	s.users[u.ID] = *u
	return nil
}

// ListUsers 获取全部用户，不含密码
func (s *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		u.Password = ""
		users = append(users, u)
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// CountUsersByRole 统计指定角色的用户数
func (s *MemoryStore) CountUsersByRole(ctx context.Context, role models.UserRole) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, u := range s.users {
		if u.Role == role {
			count++
		}
	}
	return count, nil
}

// InsertOperationLog 保存操作日志
func (s *MemoryStore) InsertOperationLog(ctx context.Context, log *models.OperationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if log.ID == "" {
		log.ID = NewID()
	}
	s.operationLogs = append(s.operationLogs, *log)
	return nil
}

// OperationLogs 返回已保存的操作日志副本
func (s *MemoryStore) OperationLogs() []models.OperationLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.OperationLog, len(s.operationLogs))
	copy(out, s.operationLogs)
	return out
}
