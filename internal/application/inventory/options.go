package inventory

import (
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// Options tunes ledger behaviour. Zero values fall back to DefaultOptions.
type Options struct {
	// IDRetryAttempts bounds retries when a generated number, barcode or lot code collides
	IDRetryAttempts int
	// DefaultOmissionPolicy applies to counts started without an explicit policy
	DefaultOmissionPolicy inventory.OmissionPolicy
	// ExpiringWindowDays is the horizon of the EXPIRING_SOON status and the default expiry report
	ExpiringWindowDays int
	// CriticalWindowDays marks expiry report entries as CRITICAL
	CriticalWindowDays int
	// DefaultReorderThreshold applies to products without their own threshold
	DefaultReorderThreshold decimal.Decimal
}

// DefaultOptions returns the ledger defaults
func DefaultOptions() Options {
	return Options{
		IDRetryAttempts:         5,
		DefaultOmissionPolicy:   inventory.OmissionUnchanged,
		ExpiringWindowDays:      30,
		CriticalWindowDays:      7,
		DefaultReorderThreshold: inventory.DefaultReorderThreshold,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.IDRetryAttempts <= 0 {
		o.IDRetryAttempts = d.IDRetryAttempts
	}
	if o.DefaultOmissionPolicy == "" {
		o.DefaultOmissionPolicy = d.DefaultOmissionPolicy
	}
	if o.ExpiringWindowDays <= 0 {
		o.ExpiringWindowDays = d.ExpiringWindowDays
	}
	if o.CriticalWindowDays <= 0 {
		o.CriticalWindowDays = d.CriticalWindowDays
	}
	if !o.DefaultReorderThreshold.IsPositive() {
		o.DefaultReorderThreshold = d.DefaultReorderThreshold
	}
	return o
}
