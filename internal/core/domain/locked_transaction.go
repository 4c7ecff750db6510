package domain

import (
	"context"
	"errors"
	"time"
)

var ErrAlreadyExists = errors.New("already exists")

// LockedPasswordTransaction is an accepted password transaction request,
// keyed by the hash of its original body.
type LockedPasswordTransaction struct {
	Pwtxid    string
	Request   []byte
	Done      bool
	CreatedAt time.Time
}

type LockedTransactionRepository interface {
	// Add fails with ErrAlreadyExists if the pwtxid is already locked.
	Add(ctx context.Context, tx LockedPasswordTransaction) error
	// Get returns nil if no record exists for pwtxid.
	Get(ctx context.Context, pwtxid string) (*LockedPasswordTransaction, error)
	MarkDone(ctx context.Context, pwtxid string) error
	GetAll(ctx context.Context) ([]LockedPasswordTransaction, error)
	Close()
}
