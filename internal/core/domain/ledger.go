package domain

import (
	"context"
	"time"
)

// UsedInput binds a set of spent inputs to the only outputs this oracle is
// willing to sign for.
type UsedInput struct {
	InputHash string
	Outputs   string
	CreatedAt time.Time
}

// HandledTransaction tracks the highest signature count seen for a txid.
type HandledTransaction struct {
	Txid    string
	MaxSigs int
}

type SignedTransaction struct {
	Id             int64
	HexTransaction string
	Prevtx         string
	CreatedAt      time.Time
}

type LedgerRepository interface {
	// RecordInputUsage inserts the entry if absent and reports whether it
	// did.
	RecordInputUsage(ctx context.Context, inputHash, outputs string) (bool, error)
	// LookupInputUsage returns nil if the inputs were never recorded.
	LookupInputUsage(ctx context.Context, inputHash string) (*UsedInput, error)
	// GetSignatureCount returns 0 for a txid seen for the first time.
	GetSignatureCount(ctx context.Context, txid string) (int, error)
	SetSignatureCount(ctx context.Context, txid string, count int) error
	AddSignedTransaction(ctx context.Context, tx SignedTransaction) error
	GetSignedTransactions(ctx context.Context) ([]SignedTransaction, error)
	Close()
}
