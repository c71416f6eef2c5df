// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Animal model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an animal is not found (or was soft-deleted), functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// An empty typ argument disables the type filter on list/count queries.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-animals/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateAnimal inserts a new Animal row. The ID is assigned by the database
// and CreatedAt is set to UTC.
func CreateAnimal(ctx context.Context, db *gorm.DB, name, typ string) (*domain.Animal, error) {
	now := time.Now().UTC()
	a := &domain.Animal{
		Name:      name,
		Type:      typ,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// ListAnimals returns every visible animal ordered by id ascending. It returns
// an empty slice when the collection is empty.
func ListAnimals(ctx context.Context, db *gorm.DB, typ string) ([]domain.Animal, error) {
	out := []domain.Animal{}
	err := byType(db.WithContext(ctx), typ).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// CountAnimals returns the number of visible animals.
func CountAnimals(ctx context.Context, db *gorm.DB, typ string) (int64, error) {
	var total int64
	err := byType(db.WithContext(ctx).Model(&domain.Animal{}), typ).
		Count(&total).Error
	return total, err
}

// ListAnimalsPage returns a slice of animals ordered by id ascending.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListAnimalsPage(ctx context.Context, db *gorm.DB, typ string, offset, limit int) ([]domain.Animal, error) {
	out := []domain.Animal{}
	err := byType(db.WithContext(ctx), typ).
		Order("id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetAnimal fetches a single animal by id, or ErrNotFound.
func GetAnimal(ctx context.Context, db *gorm.DB, id uint) (*domain.Animal, error) {
	var a domain.Animal
	if err := db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAnimal applies the given column values to the animal identified by id
// and returns the reloaded row. It returns ErrNotFound when no visible row
// matches.
func UpdateAnimal(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) (*domain.Animal, error) {
	res := db.WithContext(ctx).
		Model(&domain.Animal{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return GetAnimal(ctx, db, id)
}

// DeleteAnimal soft-deletes the animal identified by id. It returns
// ErrNotFound when the row is missing or already deleted.
func DeleteAnimal(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.Animal{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func byType(q *gorm.DB, typ string) *gorm.DB {
	if typ == "" {
		return q
	}
	return q.Where("type = ?", typ)
}
