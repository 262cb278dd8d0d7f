// Package models maps ledger tables to GORM structs. Domain types in
// domain/inventory carry no tags; each model here converts to and from its
// domain counterpart with ToDomain and FromDomain.
//
// Products and warehouses are reference rows the ledger only reads and
// seeds. Batches and counts embed VersionedRow; documents and their lines
// are append-only and embed Row.
package models
