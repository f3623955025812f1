package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// versionedModel is a persistence model carrying the optimistic-lock version.
type versionedModel interface {
	TableName() string
	GetID() uuid.UUID
	SetVersion(v int)
}

// saveVersioned writes model for agg under an optimistic lock.
//
// The row is updated only while its stored version still equals the version
// the aggregate was loaded with; on success both the row and the aggregate
// move to the next version. A row that does not exist yet is inserted at the
// aggregate's current version. A row that exists at another version is a
// concurrent write and yields ErrConcurrencyConflict.
func saveVersioned(ctx context.Context, db *gorm.DB, agg shared.AggregateRoot, model versionedModel) error {
	current := agg.GetVersion()
	model.SetVersion(current + 1)

	result := db.WithContext(ctx).
		Unscoped().
		Model(model).
		Where("id = ? AND version = ?", model.GetID(), current).
		Select("*").
		Updates(model)
	if result.Error != nil {
		return translateError(result.Error, model.TableName())
	}
	if result.RowsAffected > 0 {
		agg.IncrementVersion()
		return nil
	}

	var count int64
	if err := db.WithContext(ctx).
		Table(model.TableName()).
		Where("id = ?", model.GetID()).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check %s existence: %w", model.TableName(), err)
	}
	if count > 0 {
		return shared.ErrConcurrencyConflict.WithMessage(
			fmt.Sprintf("%s %s was modified by another process", model.TableName(), model.GetID()))
	}

	model.SetVersion(current)
	if err := db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, model.TableName())
	}
	return nil
}

// forUpdate adds SELECT ... FOR UPDATE. SQLite has no row locks and the
// sqlite dialector drops the clause.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// translateError maps driver errors to domain errors.
func translateError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound.WithMessage(what + " not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.ErrAlreadyExists.WithMessage(what + " already exists")
	default:
		return err
	}
}
