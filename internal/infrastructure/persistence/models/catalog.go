package models

import (
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product reference.
// Products are owned by master data; the ledger only reads them.
type ProductModel struct {
	Row
	Code             string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name             string          `gorm:"type:varchar(200);not null"`
	Category         string          `gorm:"type:varchar(100)"`
	Unit             string          `gorm:"type:varchar(20);not null"`
	SalePrice        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReorderThreshold decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product.
func (m *ProductModel) ToDomain() *inventory.Product {
	return &inventory.Product{
		ID:               m.ID,
		Code:             m.Code,
		Name:             m.Name,
		Category:         m.Category,
		Unit:             m.Unit,
		SalePrice:        m.SalePrice,
		ReorderThreshold: m.ReorderThreshold,
	}
}

// FromDomain populates the persistence model from a domain Product.
func (m *ProductModel) FromDomain(p *inventory.Product) {
	m.ID = p.ID
	m.Code = p.Code
	m.Name = p.Name
	m.Category = p.Category
	m.Unit = p.Unit
	m.SalePrice = p.SalePrice
	m.ReorderThreshold = p.ReorderThreshold
}

// ProductModelFromDomain creates a new persistence model from a domain Product.
func ProductModelFromDomain(p *inventory.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// WarehouseModel is the persistence model for the Warehouse reference.
type WarehouseModel struct {
	Row
	Code     string                  `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name     string                  `gorm:"type:varchar(200);not null"`
	Kind     inventory.WarehouseKind `gorm:"type:varchar(20);not null;default:'REGULAR'"`
	Capacity int                     `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (WarehouseModel) TableName() string {
	return "warehouses"
}

// ToDomain converts the persistence model to a domain Warehouse.
func (m *WarehouseModel) ToDomain() *inventory.Warehouse {
	return &inventory.Warehouse{
		ID:       m.ID,
		Code:     m.Code,
		Name:     m.Name,
		Kind:     m.Kind,
		Capacity: m.Capacity,
	}
}

// FromDomain populates the persistence model from a domain Warehouse.
func (m *WarehouseModel) FromDomain(w *inventory.Warehouse) {
	m.ID = w.ID
	m.Code = w.Code
	m.Name = w.Name
	m.Kind = w.Kind
	m.Capacity = w.Capacity
}

// WarehouseModelFromDomain creates a new persistence model from a domain Warehouse.
func WarehouseModelFromDomain(w *inventory.Warehouse) *WarehouseModel {
	m := &WarehouseModel{}
	m.FromDomain(w)
	return m
}
