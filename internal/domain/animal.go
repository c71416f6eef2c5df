// Package domain defines the persistence models for animals and the
// bookkeeping records that support them. These types are mapped with GORM and
// form the core data layer of the animals service.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Animal is a single record of the /animals collection.
//
// Fields:
//   - ID: auto-increment primary key, assigned by the database on insert.
//   - Name: display name of the animal (required).
//   - Type: species/kind, stored lower-cased (required, indexed for filtering).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker; deleted rows are hidden from queries.
type Animal struct {
	ID        uint           `json:"id"         gorm:"primaryKey;autoIncrement"`
	Name      string         `json:"name"       gorm:"type:varchar(100);not null"`
	Type      string         `json:"type"       gorm:"type:varchar(100);not null;index:idx_animal_type"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Animal.
func (Animal) TableName() string { return "animals" }
