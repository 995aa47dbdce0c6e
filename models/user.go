package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleNormal = "normal"
	RoleAdmin  = "admin"
)

// User is a storefront account. GroceryPoints is the loyalty balance and is
// never negative.
type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"_id"`
	FullName      string    `gorm:"type:varchar(255);not null" json:"fullName"`
	Email         string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password      string    `gorm:"not null" json:"-"`
	Role          string    `gorm:"type:varchar(20);not null;default:'normal'" json:"role"`
	GroceryPoints int       `gorm:"not null;default:0;check:grocery_points >= 0" json:"groceryPoints"`
	Location      string    `gorm:"type:varchar(255)" json:"location"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleNormal
	}
	return nil
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest is the payload for exchanging credentials for a token.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
