package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of authorization roles a user can hold.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleCashier  Role = "cashier"
	RoleCustomer Role = "customer"
)

// IsValid reports whether r is a member of the role set.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCashier, RoleCustomer:
		return true
	}
	return false
}

// User is an authenticated account. Authorization decisions derive from
// Role alone; the services never inspect anything else about the caller.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username     string    `gorm:"type:varchar(80);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Role         Role      `gorm:"type:varchar(20);not null;default:'customer'" json:"role"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Customer is the 1:1 shopper profile that carts and orders attach to.
// Staff accounts may exist without one; cart/checkout operations resolve
// the profile from the authenticated user and fail if it is missing.
type Customer struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	FirstName string    `gorm:"type:varchar(80);not null" json:"first_name"`
	LastName  string    `gorm:"type:varchar(80);not null" json:"last_name"`
	Phone     string    `gorm:"type:varchar(32)" json:"phone,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RegisterRequest is the payload for creating a new customer account.
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Username  string `json:"username" binding:"required,min=3,max=80"`
	Password  string `json:"password" binding:"required,min=8,max=128"`
	FirstName string `json:"first_name" binding:"required,max=80"`
	LastName  string `json:"last_name" binding:"required,max=80"`
	Phone     string `json:"phone" binding:"max=32"`
}

// LoginRequest is the payload for password authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest exchanges a refresh token for a fresh pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenPair is returned by register, login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
