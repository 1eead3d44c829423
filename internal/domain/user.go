// Package domain 定义用户领域模型和核心业务规则。
package domain

import (
	"time"
)

// UserRole 定义用户角色类型
type UserRole string

const (
	UserRoleClerk   UserRole = "clerk"   // 门店店员
	UserRoleManager UserRole = "manager" // 门店/库存主管
	UserRoleAdmin   UserRole = "admin"   // 系统管理员
)

// User 表示后台操作员领域模型。
// 本子系统不做授权决策，只把操作人记录到流水条目的 created_by 字段。
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // JSON序列化时忽略密码哈希
	Role         UserRole  `json:"role"`
	ShopID       *int64    `json:"shop_id"` // 店员/主管默认关联的门店
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin 判断用户是否为管理员
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// RegisterRequest 表示用户注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// LoginRequest 表示用户登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 表示登录成功的响应
type LoginResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokenRequest 表示刷新令牌请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdateUserRoleRequest 表示管理员调整用户角色的请求
type UpdateUserRoleRequest struct {
	UserID int64    `json:"user_id" binding:"required"`
	Role   UserRole `json:"role" binding:"required"`
}

// UpdateUserStatusRequest 表示管理员启用/停用用户的请求
type UpdateUserStatusRequest struct {
	UserID   int64 `json:"user_id" binding:"required"`
	IsActive bool  `json:"is_active"`
}

// AssignUserShopRequest 表示管理员设置用户默认门店的请求，shop_id为null时解除关联
type AssignUserShopRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	ShopID *int64 `json:"shop_id"`
}

// UserListResponse 表示用户列表响应
type UserListResponse struct {
	Users []*User `json:"users"`
	Total int64   `json:"total"`
	Page  int     `json:"page"`
	Size  int     `json:"size"`
}
