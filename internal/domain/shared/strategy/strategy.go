// Package strategy holds the pluggable policies the ledger consults when it
// plans stock movements. Implementations live in infrastructure/strategy.
package strategy

// Kind names the decision a strategy makes
type Kind string

// KindBatchSelection orders batches for an allocation plan
const KindBatchSelection Kind = "batch_selection"

// Strategy identifies a policy in logs, spans and plan responses
type Strategy interface {
	Name() string
	Kind() Kind
	Description() string
}

// Descriptor is an embeddable Strategy implementation
type Descriptor struct {
	name        string
	kind        Kind
	description string
}

// Describe builds a Descriptor
func Describe(name string, kind Kind, description string) Descriptor {
	return Descriptor{name: name, kind: kind, description: description}
}

func (d Descriptor) Name() string        { return d.name }
func (d Descriptor) Kind() Kind          { return d.kind }
func (d Descriptor) Description() string { return d.description }
