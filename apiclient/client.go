package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BerniceZTT/pipeline_end/board"
	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/BerniceZTT/pipeline_end/service"
	"github.com/BerniceZTT/pipeline_end/utils"
)

// Error 服务端返回的错误
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.StatusCode)
}

// Unwrap 映射为服务层的错误，便于 errors.Is 判断
func (e *Error) Unwrap() error {
	switch {
	case e.Code == "NOT_ALLOWED":
		return service.ErrNotAllowed
	case e.StatusCode == http.StatusNotFound:
		return service.ErrNotFound
	case e.StatusCode == http.StatusBadRequest:
		return service.ErrValidation
	}
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

// Client 商机管道HTTP接口的客户端
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var (
	_ board.Source = (*Client)(nil)
	_ board.Editor = (*Client)(nil)
)

// New 创建客户端，baseURL 形如 http://localhost:8080
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Login 登录并保存token
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// ListByStage 获取阶段内未归档的商机
func (c *Client) ListByStage(ctx context.Context, stage models.Stage) ([]models.OpportunityView, error) {
	var views []models.OpportunityView
	path := "/api/opportunities?stage=" + url.QueryEscape(string(stage))
	if err := c.do(ctx, http.MethodGet, path, nil, &views); err != nil {
		return nil, err
	}
	if views == nil {
		views = make([]models.OpportunityView, 0)
	}
	return views, nil
}

// Get 获取商机详情
func (c *Client) Get(ctx context.Context, id string) (*models.OpportunityView, error) {
	var view models.OpportunityView
	if err := c.do(ctx, http.MethodGet, opportunityPath(id, ""), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// History 获取商机进展历史
func (c *Client) History(ctx context.Context, id string) ([]models.ProgressHistory, error) {
	var history []models.ProgressHistory
	if err := c.do(ctx, http.MethodGet, opportunityPath(id, "/history"), nil, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// UpdateStatus 同阶段内改变状态
func (c *Client) UpdateStatus(ctx context.Context, id string, from, to models.Status) error {
	req := models.MoveStatusRequest{FromStatus: from, ToStatus: to}
	return c.do(ctx, http.MethodPatch, opportunityPath(id, "/status"), req, nil)
}

// AdvanceStage 进入下一阶段
func (c *Client) AdvanceStage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, opportunityPath(id, "/advance"), nil, nil)
}

// Archive 归档
func (c *Client) Archive(ctx context.Context, id string, reason models.Status) error {
	return c.do(ctx, http.MethodPost, opportunityPath(id, "/archive"), models.ArchiveRequest{Reason: reason}, nil)
}

// Create 创建商机
func (c *Client) Create(ctx context.Context, req models.OpportunityCreateRequest) (*models.OpportunityView, error) {
	var view models.OpportunityView
	if err := c.do(ctx, http.MethodPost, "/api/opportunities", req, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Upsert 编辑商机，销售阶段同时提交回款增删
func (c *Client) Upsert(ctx context.Context, id string, req models.OpportunityUpsertRequest) (*models.UpsertResult, error) {
	var result models.UpsertResult
	if err := c.do(ctx, http.MethodPut, opportunityPath(id, ""), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Payments 获取商机的回款记录
func (c *Client) Payments(ctx context.Context, id string) ([]models.PaymentEntry, error) {
	var payments []models.PaymentEntry
	if err := c.do(ctx, http.MethodGet, opportunityPath(id, "/payments"), nil, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

// DeletePayment 删除单条回款
func (c *Client) DeletePayment(ctx context.Context, id, paymentID string) error {
	return c.do(ctx, http.MethodDelete, opportunityPath(id, "/payments/"+url.PathEscape(paymentID)), nil, nil)
}

func opportunityPath(id, suffix string) string {
	return "/api/opportunities/" + url.PathEscape(id) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("编码请求失败: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		utils.Logger.Error().Err(err).Str("method", method).Str("path", path).Msg("请求失败")
		return err
	}
	defer resp.Body.Close()
	utils.Logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("请求完成")

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &Error{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{StatusCode: resp.StatusCode, Code: env.Code, Message: msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("解析响应数据失败: %w", err)
		}
	}
	return nil
}
