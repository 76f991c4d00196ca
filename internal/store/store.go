// Package store is the persistence gateway of the ledger. It exposes generic point reads,
// point writes and listings over the gorm models, and a unit-of-work boundary.
package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"gorm.io/gorm"

	"stock-portfolio-ledger/internal/apperr"
)

// Query selects rows by column equality. A slice value matches any of its elements.
type Query struct {
	Where map[string]any
	Order string
	Limit int
}

// Gateway defines the persistence operations the ledger depends on.
type Gateway interface {
	Get(ctx context.Context, dest any, id uint) error
	Find(ctx context.Context, dest any, q Query) error
	Count(ctx context.Context, model any, q Query) (int64, error)
	Insert(ctx context.Context, value any) error
	Update(ctx context.Context, model any, id uint, fields map[string]any) error
	// UpdateVersioned applies fields only if the row still carries version, and bumps it.
	UpdateVersioned(ctx context.Context, model any, id uint, version int64, fields map[string]any) error
	Delete(ctx context.Context, model any, id uint) error
	DeleteWhere(ctx context.Context, model any, q Query) error
	// WithUnitOfWork runs fn against a gateway whose writes commit together when fn returns nil
	// and are rolled back otherwise.
	WithUnitOfWork(ctx context.Context, fn func(tx Gateway) error) error
}

// Store implements Gateway on top of gorm.
type Store struct {
	db *gorm.DB
}

// ensure Store implements the interface
var _ Gateway = (*Store)(nil)

// New wraps an open database handle. The handle stays owned by the caller.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, dest any, id uint) error {
	if err := s.db.WithContext(ctx).First(dest, id).Error; err != nil {
		return translate(err, dest, id)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, dest any, q Query) error {
	if err := s.scoped(ctx, q).Find(dest).Error; err != nil {
		return translate(err, dest, 0)
	}
	return nil
}

func (s *Store) Count(ctx context.Context, model any, q Query) (int64, error) {
	var n int64
	if err := s.scoped(ctx, q).Model(model).Count(&n).Error; err != nil {
		return 0, translate(err, model, 0)
	}
	return n, nil
}

func (s *Store) Insert(ctx context.Context, value any) error {
	if err := s.db.WithContext(ctx).Create(value).Error; err != nil {
		return translate(err, value, 0)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, model any, id uint, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate(res.Error, model, id)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(entityName(model), id)
	}
	return nil
}

func (s *Store) UpdateVersioned(ctx context.Context, model any, id uint, version int64, fields map[string]any) error {
	versioned := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		versioned[k] = v
	}
	versioned["version"] = gorm.Expr("version + 1")

	res := s.db.WithContext(ctx).Model(model).Where("id = ? AND version = ?", id, version).Updates(versioned)
	if res.Error != nil {
		return translate(res.Error, model, id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %d changed since version %d", apperr.ErrConcurrencyConflict, entityName(model), id, version)
	}
	return nil
}

// Delete removes the row permanently so unique keys can be reused.
func (s *Store) Delete(ctx context.Context, model any, id uint) error {
	res := s.db.WithContext(ctx).Unscoped().Delete(model, id)
	if res.Error != nil {
		return translate(res.Error, model, id)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(entityName(model), id)
	}
	return nil
}

func (s *Store) DeleteWhere(ctx context.Context, model any, q Query) error {
	if len(q.Where) == 0 {
		return errors.New("refusing to delete without conditions")
	}
	if err := s.db.WithContext(ctx).Unscoped().Where(q.Where).Delete(model).Error; err != nil {
		return translate(err, model, 0)
	}
	return nil
}

func (s *Store) WithUnitOfWork(ctx context.Context, fn func(tx Gateway) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) scoped(ctx context.Context, q Query) *gorm.DB {
	db := s.db.WithContext(ctx)
	if len(q.Where) > 0 {
		db = db.Where(q.Where)
	}
	if q.Order != "" {
		db = db.Order(q.Order)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	return db
}

// translate maps gorm errors onto the ledger's error kinds.
func translate(err error, model any, id uint) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(entityName(model), id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s: %v", apperr.ErrDuplicate, entityName(model), err)
	}
	return err
}

func entityName(model any) string {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	return t.Name()
}
