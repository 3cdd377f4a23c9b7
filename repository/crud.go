package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/campuskit/portal-cache/cache"
)

// Validator is implemented by records that can check themselves before a
// write.
type Validator interface {
	Validate() error
}

// CRUD provides the basic repository operations over one entity table. It is
// deliberately small: the portal's controllers only list, fetch by id, and
// mutate single records.
type CRUD[T any] struct {
	db bun.IDB
}

// NewCRUD returns a repository bound to db, which may be a *bun.DB or an
// open transaction.
func NewCRUD[T any](db bun.IDB) *CRUD[T] {
	return &CRUD[T]{db: db}
}

// List returns every record in the table.
func (r *CRUD[T]) List(ctx context.Context) ([]T, error) {
	var recs []T
	if err := r.db.NewSelect().Model(&recs).Scan(ctx); err != nil {
		return nil, err
	}
	return recs, nil
}

// GetByID returns the record with the given id, or cache.ErrNotFound when no
// row matches.
func (r *CRUD[T]) GetByID(ctx context.Context, id string) (T, error) {
	var rec T
	err := r.db.NewSelect().Model(&rec).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: id %s", cache.ErrNotFound, id)
	}
	if err != nil {
		return rec, err
	}
	return rec, nil
}

// Create validates and inserts a record, returning it as stored.
func (r *CRUD[T]) Create(ctx context.Context, rec T) (T, error) {
	if v, ok := any(rec).(Validator); ok {
		if err := v.Validate(); err != nil {
			return rec, err
		}
	}
	if _, err := r.db.NewInsert().Model(&rec).Exec(ctx); err != nil {
		return rec, err
	}
	return rec, nil
}

// Update validates and saves a record by primary key, returning it as
// stored. Updating an absent record reports cache.ErrNotFound.
func (r *CRUD[T]) Update(ctx context.Context, rec T) (T, error) {
	if v, ok := any(rec).(Validator); ok {
		if err := v.Validate(); err != nil {
			return rec, err
		}
	}
	res, err := r.db.NewUpdate().Model(&rec).WherePK().Exec(ctx)
	if err != nil {
		return rec, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return rec, cache.ErrNotFound
	}
	return rec, nil
}

// Delete removes the record with the given id. Deleting an absent record
// reports cache.ErrNotFound.
func (r *CRUD[T]) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*T)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: id %s", cache.ErrNotFound, id)
	}
	return nil
}
