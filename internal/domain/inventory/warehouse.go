package inventory

import (
	"github.com/google/uuid"
)

// WarehouseKind classifies a storage location
type WarehouseKind string

const (
	// WarehouseKindRegular holds sellable stock
	WarehouseKindRegular WarehouseKind = "REGULAR"
	// WarehouseKindError holds damaged or rejected stock; the only source eligible for discard
	WarehouseKindError WarehouseKind = "ERROR"
)

// IsValid checks if the kind is a known WarehouseKind
func (k WarehouseKind) IsValid() bool {
	return k == WarehouseKindRegular || k == WarehouseKindError
}

// String returns the string representation of WarehouseKind
func (k WarehouseKind) String() string {
	return string(k)
}

// Warehouse is a read-only reference owned by master data.
// The ledger only consults its kind.
type Warehouse struct {
	ID       uuid.UUID
	Code     string
	Name     string
	Kind     WarehouseKind
	Capacity int // 0 means unbounded
}

// IsErrorKind returns true for error warehouses
func (w *Warehouse) IsErrorKind() bool {
	return w.Kind == WarehouseKindError
}

// Label returns the code when set, otherwise the name
func (w *Warehouse) Label() string {
	if w.Code != "" {
		return w.Code
	}
	return w.Name
}
