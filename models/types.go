package models

import (
	"time"
)

// UserRole 用户角色枚举
type UserRole string

const (
	UserRoleSUPER_ADMIN UserRole = "SUPER_ADMIN" // 超级管理员
	UserRoleSALES       UserRole = "SALES"       // 销售
	UserRoleSTAFF       UserRole = "STAFF"       // 普通员工（只读）
)

// IsValidUserRole 验证角色是否有效
func IsValidUserRole(role UserRole) bool {
	switch role {
	case UserRoleSUPER_ADMIN, UserRoleSALES, UserRoleSTAFF:
		return true
	}
	return false
}

// UserStatus 用户状态枚举
type UserStatus string

const (
	UserStatusACTIVE   UserStatus = "active"
	UserStatusDISABLED UserStatus = "disabled"
)

// User 用户类型
type User struct {
	ID          string     `bson:"_id,omitempty" json:"_id,omitempty"`
	Username    string     `bson:"username" json:"username"`
	Password    string     `bson:"password" json:"-"` // 不返回密码
	DisplayName string     `bson:"displayName" json:"displayName"`
	Email       string     `bson:"email" json:"email"`
	Phone       string     `bson:"phone" json:"phone"`
	Position    string     `bson:"position,omitempty" json:"position,omitempty"`
	AvatarURL   string     `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	Role        UserRole   `bson:"role" json:"role"`
	Status      UserStatus `bson:"status" json:"status"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// 各种请求和响应结构
type (
	// LoginRequest 登录请求
	LoginRequest struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	// LoginResponse 登录响应
	LoginResponse struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}

	// CreateUserRequest 创建用户请求
	CreateUserRequest struct {
		Username    string   `json:"username" binding:"required,min=2"`
		Password    string   `json:"password" binding:"required,min=6"`
		DisplayName string   `json:"displayName"`
		Email       string   `json:"email" binding:"omitempty,email"`
		Phone       string   `json:"phone"`
		Role        UserRole `json:"role" binding:"required"`
	}

	// UpdateProfileRequest 更新个人资料请求
	UpdateProfileRequest struct {
		DisplayName string `json:"displayName" binding:"omitempty,min=2"`
		Email       string `json:"email" binding:"omitempty,email"`
		Phone       string `json:"phone"`
		Position    string `json:"position"`
		AvatarURL   string `json:"avatarUrl" binding:"omitempty,url"`
		Password    string `json:"password" binding:"omitempty,min=6"`
	}
)

// Operator 发起操作的用户，用于记录历史
type Operator struct {
	ID   string
	Name string
}
