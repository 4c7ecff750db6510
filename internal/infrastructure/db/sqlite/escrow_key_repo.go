package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/ArkLabsHQ/oracle-node/internal/infrastructure/db/sqlite/sqlc/queries"
)

type escrowKeyRepository struct {
	db      *sql.DB
	querier *queries.Queries
}

func NewEscrowKeyRepository(db *sql.DB) (domain.EscrowKeyRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("cannot open escrow key repository: db is nil")
	}

	return &escrowKeyRepository{
		db:      db,
		querier: queries.New(db),
	}, nil
}

func (r *escrowKeyRepository) Add(ctx context.Context, keyPair domain.EscrowKeyPair) error {
	createdAt := keyPair.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	count, err := r.querier.InsertKeyPair(ctx, queries.InsertKeyPairParams{
		Ts:     createdAt.UnixNano(),
		Pwtxid: keyPair.Pwtxid,
		Public: keyPair.PublicKey,
		Whole:  keyPair.PrivateKey,
	})
	if err != nil {
		return fmt.Errorf("failed to insert escrow key: %w", err)
	}
	if count <= 0 {
		return fmt.Errorf("escrow key for %s: %w", keyPair.Pwtxid, domain.ErrAlreadyExists)
	}
	return nil
}

func (r *escrowKeyRepository) Get(ctx context.Context, pwtxid string) (*domain.EscrowKeyPair, error) {
	row, err := r.querier.SelectKeyPair(ctx, pwtxid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get escrow key: %w", err)
	}

	return &domain.EscrowKeyPair{
		Pwtxid:     row.Pwtxid,
		PublicKey:  row.Public,
		PrivateKey: row.Whole,
		CreatedAt:  time.Unix(0, row.Ts),
	}, nil
}

func (r *escrowKeyRepository) Close() {
	// nolint
	r.db.Close()
}
