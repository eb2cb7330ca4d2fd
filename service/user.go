package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BerniceZTT/pipeline_end/models"
	"github.com/BerniceZTT/pipeline_end/repository"
	"github.com/BerniceZTT/pipeline_end/utils"
)

// UserService 登录、用户管理与个人资料
type UserService struct {
	store repository.UserStore
	now   func() time.Time
}

// NewUserService 创建用户服务
func NewUserService(store repository.UserStore) *UserService {
	return &UserService{store: store, now: time.Now}
}

// Login 校验密码并签发token
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.store.FindUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Status != models.UserStatusACTIVE || !utils.VerifyPassword(req.Password, user.Password) {
		utils.Logger.Info().Str("username", req.Username).Msg("登录失败")
		return nil, ErrInvalidCredentials
	}

	token, err := utils.GenerateToken(*user)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{Token: token, User: *user}, nil
}

// Me 获取当前用户
func (s *UserService) Me(ctx context.Context, id string) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

// List 获取全部用户
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

// Create 创建用户
func (s *UserService) Create(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if len(username) < 2 {
		return nil, validationError("用户名至少2个字符")
	}
	if !models.IsValidUserRole(req.Role) {
		return nil, validationError("无效的角色: %s", req.Role)
	}
	if len(req.Password) < 6 {
		return nil, validationError("密码至少6个字符")
	}

	if _, err := s.store.FindUserByUsername(ctx, username); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}

	now := s.now()
	user := models.User{
		ID:          repository.NewID(),
		Username:    username,
		Password:    hash,
		DisplayName: displayName,
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		Role:        req.Role,
		Status:      models.UserStatusACTIVE,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveUser(ctx, &user); err != nil {
		return nil, err
	}
	utils.Logger.Info().Str("username", username).Str("role", string(req.Role)).Msg("已创建用户")
	return &user, nil
}

// UpdateProfile 更新个人资料，空字段保持不变
func (s *UserService) UpdateProfile(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if v := strings.TrimSpace(req.DisplayName); v != "" {
		user.DisplayName = v
	}
	if v := strings.TrimSpace(req.Email); v != "" {
		user.Email = v
	}
	if v := strings.TrimSpace(req.Phone); v != "" {
		user.Phone = v
	}
	if v := strings.TrimSpace(req.Position); v != "" {
		user.Position = v
	}
	if v := strings.TrimSpace(req.AvatarURL); v != "" {
		user.AvatarURL = v
	}
	if req.Password != "" {
		if len(req.Password) < 6 {
			return nil, validationError("密码至少6个字符")
		}
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hash
	}
	user.UpdatedAt = s.now()

	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SeedAdmin 不存在超级管理员时创建默认管理员
func (s *UserService) SeedAdmin(ctx context.Context, password string) error {
	count, err := s.store.CountUsersByRole(ctx, models.UserRoleSUPER_ADMIN)
	if err != nil {
		return err
	}
	if count > 0 {
		utils.Logger.Info().Msg("超级管理员账户已存在，跳过创建")
		return nil
	}

	_, err = s.Create(ctx, models.CreateUserRequest{
		Username:    "admin",
		Password:    password,
		DisplayName: "管理员",
		Role:        models.UserRoleSUPER_ADMIN,
	})
	if err != nil {
		return err
	}
	utils.Logger.Info().Msg("已创建默认超级管理员账户")
	return nil
}
