package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Row carries the identity and timestamp columns shared by every ledger table
type Row struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (r *Row) entity() shared.BaseEntity {
	return shared.BaseEntity{ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func (r *Row) setEntity(e shared.BaseEntity) {
	r.ID, r.CreatedAt, r.UpdatedAt = e.ID, e.CreatedAt, e.UpdatedAt
}

// VersionedRow is a Row whose version column is bumped by every guarded
// update, so batch and count writes can detect a concurrent change.
type VersionedRow struct {
	Row
	Version int `gorm:"not null;default:1"`
}

func (r *VersionedRow) root() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{BaseEntity: r.Row.entity(), Version: r.Version}
}

func (r *VersionedRow) setRoot(a shared.BaseAggregateRoot) {
	r.Row.setEntity(a.BaseEntity)
	r.Version = a.Version
}
