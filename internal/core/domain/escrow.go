package domain

import (
	"context"
	"time"
)

// EscrowKeyPair is the RSA key issued for a single password transaction.
// PublicKey is the JSON encoding of the public half, PrivateKey a PEM block.
type EscrowKeyPair struct {
	Pwtxid     string
	PublicKey  string
	PrivateKey string
	CreatedAt  time.Time
}

type EscrowKeyRepository interface {
	// Add fails with ErrAlreadyExists if a key was already issued for the
	// pwtxid.
	Add(ctx context.Context, keyPair EscrowKeyPair) error
	// Get returns nil if no key was issued for pwtxid.
	Get(ctx context.Context, pwtxid string) (*EscrowKeyPair, error)
	Close()
}
