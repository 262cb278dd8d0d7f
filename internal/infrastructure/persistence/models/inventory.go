package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchModel is the persistence model for the Batch aggregate.
type BatchModel struct {
	VersionedRow
	ProductID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_batches_key,priority:1"`
	LotCode         string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_batches_key,priority:2"`
	WarehouseID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_batches_key,priority:3;index"`
	Barcode         string          `gorm:"type:varchar(13);not null;uniqueIndex"`
	ManufactureDate time.Time       `gorm:"type:date;not null"`
	ExpiryDate      *time.Time      `gorm:"type:date;index"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LastReceiptID   *uuid.UUID      `gorm:"type:uuid"`
	LastIssueID     *uuid.UUID      `gorm:"type:uuid"`
	ParentBatchID   *uuid.UUID      `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "batches"
}

// ToDomain converts the persistence model to a domain Batch.
func (m *BatchModel) ToDomain() *inventory.Batch {
	b := &inventory.Batch{
		BaseAggregateRoot: m.VersionedRow.root(),
		ProductID:         m.ProductID,
		WarehouseID:       m.WarehouseID,
		LotCode:           m.LotCode,
		Barcode:           m.Barcode,
		ManufactureDate:   shared.DateOf(m.ManufactureDate),
		Quantity:          m.Quantity,
		LastReceiptID:     m.LastReceiptID,
		LastIssueID:       m.LastIssueID,
		ParentBatchID:     m.ParentBatchID,
	}
	if m.ExpiryDate != nil {
		d := shared.DateOf(*m.ExpiryDate)
		b.ExpiryDate = &d
	}
	return b
}

// FromDomain populates the persistence model from a domain Batch.
func (m *BatchModel) FromDomain(b *inventory.Batch) {
	m.setRoot(b.BaseAggregateRoot)
	m.ProductID = b.ProductID
	m.WarehouseID = b.WarehouseID
	m.LotCode = b.LotCode
	m.Barcode = b.Barcode
	m.ManufactureDate = b.ManufactureDate
	m.ExpiryDate = b.ExpiryDate
	m.Quantity = b.Quantity
	m.LastReceiptID = b.LastReceiptID
	m.LastIssueID = b.LastIssueID
	m.ParentBatchID = b.ParentBatchID
}

// BatchModelFromDomain creates a new persistence model from a domain Batch.
func BatchModelFromDomain(b *inventory.Batch) *BatchModel {
	m := &BatchModel{}
	m.FromDomain(b)
	return m
}

// BatchModelsToDomain converts a slice of models
func BatchModelsToDomain(ms []BatchModel) []inventory.Batch {
	out := make([]inventory.Batch, len(ms))
	for i := range ms {
		out[i] = *ms[i].ToDomain()
	}
	return out
}

// DocumentModel is the persistence model for the Document header.
type DocumentModel struct {
	Row
	Number          string                 `gorm:"type:varchar(20);not null;uniqueIndex"`
	Kind            inventory.DocumentKind `gorm:"type:varchar(20);not null;index"`
	Purpose         string                 `gorm:"type:varchar(255);not null"`
	Reference       string                 `gorm:"type:varchar(255)"`
	ParentID        *uuid.UUID             `gorm:"type:uuid;index"`
	WarehouseID     uuid.UUID              `gorm:"type:uuid;not null;index"`
	DestWarehouseID *uuid.UUID             `gorm:"type:uuid"`
	CreatedByID     uuid.UUID              `gorm:"type:uuid;not null"`
	CreatedByName   string                 `gorm:"type:varchar(100);not null"`
	CreatedByRole   shared.Role            `gorm:"type:varchar(20);not null"`
	Lines           []DocumentLineModel    `gorm:"foreignKey:DocumentID;references:ID"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain Document.
func (m *DocumentModel) ToDomain() *inventory.Document {
	doc := &inventory.Document{
		BaseEntity:      m.Row.entity(),
		Number:          m.Number,
		Kind:            m.Kind,
		Purpose:         m.Purpose,
		Reference:       m.Reference,
		ParentID:        m.ParentID,
		WarehouseID:     m.WarehouseID,
		DestWarehouseID: m.DestWarehouseID,
		CreatedByID:     m.CreatedByID,
		CreatedByName:   m.CreatedByName,
		CreatedByRole:   m.CreatedByRole,
		Lines:           make([]inventory.DocumentLine, len(m.Lines)),
	}
	for i := range m.Lines {
		doc.Lines[i] = m.Lines[i].ToDomain()
	}
	return doc
}

// FromDomain populates the persistence model from a domain Document header.
// Lines are persisted separately.
func (m *DocumentModel) FromDomain(d *inventory.Document) {
	m.setEntity(d.BaseEntity)
	m.Number = d.Number
	m.Kind = d.Kind
	m.Purpose = d.Purpose
	m.Reference = d.Reference
	m.ParentID = d.ParentID
	m.WarehouseID = d.WarehouseID
	m.DestWarehouseID = d.DestWarehouseID
	m.CreatedByID = d.CreatedByID
	m.CreatedByName = d.CreatedByName
	m.CreatedByRole = d.CreatedByRole
}

// DocumentModelFromDomain creates a new persistence model from a domain Document.
func DocumentModelFromDomain(d *inventory.Document) *DocumentModel {
	m := &DocumentModel{}
	m.FromDomain(d)
	return m
}

// DocumentLineModel links a document to a batch it touched.
type DocumentLineModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	DocumentID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_document_lines_no,priority:1"`
	LineNo        int             `gorm:"not null;uniqueIndex:idx_document_lines_no,priority:2"`
	BatchID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null"`
	LotCode       string          `gorm:"type:varchar(64);not null"`
	WarehouseID   uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SourceBatchID *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (DocumentLineModel) TableName() string {
	return "document_lines"
}

// ToDomain converts the persistence model to a domain DocumentLine.
func (m *DocumentLineModel) ToDomain() inventory.DocumentLine {
	return inventory.DocumentLine{
		ID:            m.ID,
		DocumentID:    m.DocumentID,
		LineNo:        m.LineNo,
		BatchID:       m.BatchID,
		ProductID:     m.ProductID,
		LotCode:       m.LotCode,
		WarehouseID:   m.WarehouseID,
		Quantity:      m.Quantity,
		SourceBatchID: m.SourceBatchID,
	}
}

// DocumentLineModelFromDomain creates a new persistence model from a domain DocumentLine.
func DocumentLineModelFromDomain(l *inventory.DocumentLine) *DocumentLineModel {
	return &DocumentLineModel{
		ID:            l.ID,
		DocumentID:    l.DocumentID,
		LineNo:        l.LineNo,
		BatchID:       l.BatchID,
		ProductID:     l.ProductID,
		LotCode:       l.LotCode,
		WarehouseID:   l.WarehouseID,
		Quantity:      l.Quantity,
		SourceBatchID: l.SourceBatchID,
	}
}

// CountModel is the persistence model for the Count aggregate.
// It shares its ID with the COUNT document it extends.
type CountModel struct {
	VersionedRow
	WarehouseID    uuid.UUID                `gorm:"type:uuid;not null;index"`
	Status         inventory.CountStatus    `gorm:"type:varchar(20);not null"`
	OmissionPolicy inventory.OmissionPolicy `gorm:"type:varchar(20);not null"`
	RecordedAt     *time.Time
	ReconciledAt   *time.Time
	Lines          []CountLineModel `gorm:"foreignKey:CountID;references:ID"`
}

// TableName returns the table name for GORM
func (CountModel) TableName() string {
	return "counts"
}

// ToDomain converts the persistence model to a domain Count.
func (m *CountModel) ToDomain() *inventory.Count {
	c := &inventory.Count{
		BaseAggregateRoot: m.VersionedRow.root(),
		WarehouseID:       m.WarehouseID,
		Status:            m.Status,
		OmissionPolicy:    m.OmissionPolicy,
		RecordedAt:        m.RecordedAt,
		ReconciledAt:      m.ReconciledAt,
		Lines:             make([]inventory.CountLine, len(m.Lines)),
	}
	for i := range m.Lines {
		c.Lines[i] = m.Lines[i].ToDomain()
	}
	return c
}

// FromDomain populates the persistence model from a domain Count, lines included.
func (m *CountModel) FromDomain(c *inventory.Count) {
	m.setRoot(c.BaseAggregateRoot)
	m.WarehouseID = c.WarehouseID
	m.Status = c.Status
	m.OmissionPolicy = c.OmissionPolicy
	m.RecordedAt = c.RecordedAt
	m.ReconciledAt = c.ReconciledAt
	m.Lines = make([]CountLineModel, len(c.Lines))
	for i := range c.Lines {
		m.Lines[i] = *CountLineModelFromDomain(&c.Lines[i])
	}
}

// CountModelFromDomain creates a new persistence model from a domain Count.
func CountModelFromDomain(c *inventory.Count) *CountModel {
	m := &CountModel{}
	m.FromDomain(c)
	return m
}

// CountLineModel is one snapshot batch of a count.
// CountedQuantity is NULL until the batch is counted.
type CountLineModel struct {
	ID              uuid.UUID           `gorm:"type:uuid;primary_key"`
	CountID         uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_count_lines_batch,priority:1"`
	BatchID         uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_count_lines_batch,priority:2"`
	ProductID       uuid.UUID           `gorm:"type:uuid;not null"`
	LotCode         string              `gorm:"type:varchar(64);not null"`
	Barcode         string              `gorm:"type:varchar(13);not null"`
	SystemQuantity  decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	CountedQuantity decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	RecordedAt      *time.Time
}

// TableName returns the table name for GORM
func (CountLineModel) TableName() string {
	return "count_lines"
}

// ToDomain converts the persistence model to a domain CountLine.
func (m *CountLineModel) ToDomain() inventory.CountLine {
	l := inventory.CountLine{
		ID:             m.ID,
		CountID:        m.CountID,
		BatchID:        m.BatchID,
		ProductID:      m.ProductID,
		LotCode:        m.LotCode,
		Barcode:        m.Barcode,
		SystemQuantity: m.SystemQuantity,
		RecordedAt:     m.RecordedAt,
	}
	if m.CountedQuantity.Valid {
		l.CountedQuantity = m.CountedQuantity.Decimal
		l.Counted = true
	}
	return l
}

// CountLineModelFromDomain creates a new persistence model from a domain CountLine.
func CountLineModelFromDomain(l *inventory.CountLine) *CountLineModel {
	return &CountLineModel{
		ID:              l.ID,
		CountID:         l.CountID,
		BatchID:         l.BatchID,
		ProductID:       l.ProductID,
		LotCode:         l.LotCode,
		Barcode:         l.Barcode,
		SystemQuantity:  l.SystemQuantity,
		CountedQuantity: decimal.NullDecimal{Decimal: l.CountedQuantity, Valid: l.Counted},
		RecordedAt:      l.RecordedAt,
	}
}

// LotSequenceModel holds the next derived lot suffix of a parent lot.
type LotSequenceModel struct {
	ProductID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	ParentLotCode string    `gorm:"type:varchar(64);primaryKey"`
	NextValue     int       `gorm:"not null;default:1"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LotSequenceModel) TableName() string {
	return "lot_sequences"
}
