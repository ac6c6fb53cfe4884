package database

import (
	"context"

	"gorm.io/gorm"
)

// Transactor runs a function inside one database transaction. Everything
// the function does through the handed-in tx commits or rolls back as a
// unit; returning an error rolls back with no partial effects.
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GormTransactor implements Transactor over a live connection pool.
type GormTransactor struct {
	db *gorm.DB
}

// NewGormTransactor creates a Transactor backed by db.
func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

// Transaction delegates to gorm's transaction wrapper with the request
// context attached, so row locks taken inside fn release on commit,
// rollback or context cancellation.
func (t *GormTransactor) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}
