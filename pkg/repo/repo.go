// Package repo defines the repository conventions shared by the service's
// stores and opens their SQLite databases.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no entity has the given id.
var ErrNotFound = errors.New("repo: not found")

// Repository is an append-only store of entities.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
}

// ListOpts controls pagination for List operations.
type ListOpts struct {
	Offset int
	Limit  int
}

// DefaultLimit and MaxLimit bound ListOpts.Limit.
const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Normalize clamps the options: a non-positive Limit becomes DefaultLimit,
// Limit is capped at MaxLimit and a negative Offset becomes 0.
func (o ListOpts) Normalize() ListOpts {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
