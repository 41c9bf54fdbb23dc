package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base provides the shared connection handling for domain repositories.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx, or the raw connection when ctx is nil.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Conn picks tx when the caller is inside a transaction, otherwise the context-bound connection.
func (b Base) Conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		if ctx == nil {
			return tx
		}
		return tx.WithContext(ctx)
	}
	return b.DB(ctx)
}
