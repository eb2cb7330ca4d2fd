package utils

import (
	"fmt"

	"github.com/BerniceZTT/pipeline_end/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// LoginUser 当前登录用户
type LoginUser struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Username string `json:"name"`
}

// Operator 转换为操作人
func (u *LoginUser) Operator() models.Operator {
	return models.Operator{ID: u.ID, Name: u.Username}
}

// ClaimsToLoginUser 从JWT负载中提取用户信息
func ClaimsToLoginUser(claims jwt.MapClaims) (*LoginUser, error) {
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("无效的用户ID")
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return nil, fmt.Errorf("无效的用户角色")
	}
	username, ok := claims["username"].(string)
	if !ok {
		return nil, fmt.Errorf("无效的用户名")
	}
	return &LoginUser{ID: id, Role: role, Username: username}, nil
}

// GetUser 获取当前登录用户
func GetUser(c *gin.Context) (*LoginUser, error) {
	currentUser, exists := c.Get("user")
	if !exists {
		return nil, fmt.Errorf("GetUser 未授权访问")
	}

	switch v := currentUser.(type) {
	case *LoginUser:
		return v, nil
	case jwt.MapClaims:
		return ClaimsToLoginUser(v)
	default:
		return nil, fmt.Errorf("无法解析用户信息")
	}
}
