// Package repo holds the gorm plumbing shared by the domain repositories.
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is a connection that may be rebound to an open transaction.
type Base struct {
	conn *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{conn: db}
}

// DB scopes the connection to ctx. A nil ctx returns the bare connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.conn
	}
	return b.conn.WithContext(ctx)
}

// WithTx rebinds to tx; nil keeps the current connection.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{conn: tx}
}

// First loads the first T matching the condition. Misses surface as
// gorm.ErrRecordNotFound.
func First[T any](ctx context.Context, b Base, query string, args ...any) (*T, error) {
	var row T
	if err := b.DB(ctx).Where(query, args...).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// TransitionStatus applies updates to row id only while its status column is
// one of from, so concurrent writers cannot both move the same row. It
// reports false when the guard no longer held.
func TransitionStatus[S ~string](ctx context.Context, b Base, model any, id uuid.UUID, from []S, updates map[string]any) (bool, error) {
	res := b.DB(ctx).
		Model(model).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
