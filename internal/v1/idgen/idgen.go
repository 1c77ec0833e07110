// Package idgen mints the per-connection identity ("sid") assigned on
// WebSocket upgrade. Identities are opaque, unique for the connection's
// lifetime, and never reused.
package idgen

import "github.com/google/uuid"

// Generator produces fresh identities.
type Generator interface {
	NewSid() string
}

// UUIDGenerator mints identities as UUIDv4 strings.
type UUIDGenerator struct{}

func (UUIDGenerator) NewSid() string {
	return uuid.NewString()
}

// New returns the production identity generator.
func New() Generator { return UUIDGenerator{} }
