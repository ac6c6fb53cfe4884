package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups products. Categories form a tree via ParentID; a category
// cannot be deleted while active products or active children reference it.
type Category struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string     `gorm:"type:varchar(120);not null" json:"name"`
	Slug        string     `gorm:"type:varchar(140);uniqueIndex;not null" json:"slug"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	ParentID    *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	SortOrder   int        `gorm:"not null;default:0" json:"sort_order"`
	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Children []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// CreateCategoryRequest is the payload for creating a category.
type CreateCategoryRequest struct {
	Name        string     `json:"name" binding:"required,min=2,max=120"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
	SortOrder   int        `json:"sort_order"`
}

// UpdateCategoryRequest carries partial updates; nil fields are untouched.
type UpdateCategoryRequest struct {
	Name        *string    `json:"name" binding:"omitempty,min=2,max=120"`
	Description *string    `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
	SortOrder   *int       `json:"sort_order"`
	IsActive    *bool      `json:"is_active"`
}

// CategoryOrder pairs a category with its new position.
type CategoryOrder struct {
	ID        uuid.UUID `json:"id" binding:"required"`
	SortOrder int       `json:"sort_order"`
}

// ReorderCategoriesRequest re-sorts a set of categories in one call.
type ReorderCategoriesRequest struct {
	Orders []CategoryOrder `json:"orders" binding:"required,min=1,dive"`
}
