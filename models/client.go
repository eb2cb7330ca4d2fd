package models

import (
	"time"
)

// Contact 客户联系人
type Contact struct {
	Name     string `json:"name" bson:"name"`
	Position string `json:"position,omitempty" bson:"position,omitempty"`
	Email    string `json:"email,omitempty" bson:"email,omitempty"`
	Phone    string `json:"phone,omitempty" bson:"phone,omitempty"`
}

// Client 客户（公司）
type Client struct {
	ID          string    `json:"_id,omitempty" bson:"_id,omitempty"`
	CompanyName string    `json:"companyName" bson:"companyName"`
	Industry    string    `json:"industry,omitempty" bson:"industry,omitempty"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
	Website     string    `json:"website,omitempty" bson:"website,omitempty"`
	Contacts    []Contact `json:"contacts" bson:"contacts"`
	Notes       string    `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ClientRequest 创建/更新客户请求
type ClientRequest struct {
	CompanyName string    `json:"companyName" binding:"required" validate:"required"`
	Industry    string    `json:"industry"`
	Address     string    `json:"address"`
	Website     string    `json:"website" validate:"omitempty,url"`
	Contacts    []Contact `json:"contacts" validate:"dive"`
	Notes       string    `json:"notes"`
}
