package service

import (
	"context"
	"strings"
	"time"

	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/BerniceZTT/pipeline_end/repository"
)

// ClientService 客户登记
type ClientService struct {
	store repository.ClientStore
	now   func() time.Time
}

// NewClientService 创建客户服务
func NewClientService(store repository.ClientStore) *ClientService {
	return &ClientService{store: store, now: time.Now}
}

// List 获取客户列表，按公司名或联系人姓名过滤
func (s *ClientService) List(ctx context.Context, query string) ([]models.Client, error) {
	clients, err := s.store.FindClients(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return clients, nil
	}
	out := make([]models.Client, 0, len(clients))
	for _, c := range clients {
		if matchClient(c, q) {
			out = append(out, c)
		}
	}
	return out, nil
}

func matchClient(c models.Client, q string) bool {
	if strings.Contains(strings.ToLower(c.CompanyName), q) {
		return true
	}
	for _, contact := range c.Contacts {
		if strings.Contains(strings.ToLower(contact.Name), q) {
			return true
		}
	}
	return false
}

// Get 获取客户
func (s *ClientService) Get(ctx context.Context, id string) (*models.Client, error) {
	return s.store.GetClient(ctx, id)
}

// Create 创建客户
func (s *ClientService) Create(ctx context.Context, req models.ClientRequest) (*models.Client, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	now := s.now()
	client := models.Client{
		ID:        repository.NewID(),
		CreatedAt: now,
	}
	applyClientRequest(&client, req, now)
	if err := s.store.SaveClient(ctx, &client); err != nil {
		return nil, err
	}
	return &client, nil
}

// Update 更新客户
func (s *ClientService) Update(ctx context.Context, id string, req models.ClientRequest) (*models.Client, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	client, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	applyClientRequest(client, req, s.now())
	if err := s.store.SaveClient(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *ClientService) validate(req *models.ClientRequest) error {
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	if req.CompanyName == "" {
		return validationError("公司名称不能为空")
	}
	for i := range req.Contacts {
		req.Contacts[i].Name = strings.TrimSpace(req.Contacts[i].Name)
		if req.Contacts[i].Name == "" {
			return validationError("联系人姓名不能为空")
		}
	}
	return validateStruct(req)
}

func applyClientRequest(c *models.Client, req models.ClientRequest, now time.Time) {
	c.CompanyName = req.CompanyName
	c.Industry = strings.TrimSpace(req.Industry)
	c.Address = strings.TrimSpace(req.Address)
	c.Website = strings.TrimSpace(req.Website)
	c.Notes = strings.TrimSpace(req.Notes)
	c.Contacts = req.Contacts
	if c.Contacts == nil {
		c.Contacts = make([]models.Contact, 0)
	}
	c.UpdatedAt = now
}
