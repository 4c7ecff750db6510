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

type lockedTransactionRepository struct {
	db      *sql.DB
	querier *queries.Queries
}

func NewLockedTransactionRepository(db *sql.DB) (domain.LockedTransactionRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("cannot open locked transaction repository: db is nil")
	}

	return &lockedTransactionRepository{
		db:      db,
		querier: queries.New(db),
	}, nil
}

func (r *lockedTransactionRepository) Add(
	ctx context.Context, tx domain.LockedPasswordTransaction,
) error {
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	count, err := r.querier.InsertLockedTransaction(ctx, queries.InsertLockedTransactionParams{
		Ts:       createdAt.UnixNano(),
		Pwtxid:   tx.Pwtxid,
		JsonData: string(tx.Request),
		Done:     tx.Done,
	})
	if err != nil {
		return fmt.Errorf("failed to insert locked transaction: %w", err)
	}
	if count <= 0 {
		return fmt.Errorf("locked transaction %s: %w", tx.Pwtxid, domain.ErrAlreadyExists)
	}
	return nil
}

func (r *lockedTransactionRepository) Get(
	ctx context.Context, pwtxid string,
) (*domain.LockedPasswordTransaction, error) {
	row, err := r.querier.SelectLockedTransaction(ctx, pwtxid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get locked transaction: %w", err)
	}
	tx := toLockedTransaction(row)
	return &tx, nil
}

func (r *lockedTransactionRepository) MarkDone(ctx context.Context, pwtxid string) error {
	count, err := r.querier.MarkLockedTransactionDone(ctx, pwtxid)
	if err != nil {
		return fmt.Errorf("failed to mark locked transaction done: %w", err)
	}
	if count <= 0 {
		return fmt.Errorf("locked transaction %s not found", pwtxid)
	}
	return nil
}

func (r *lockedTransactionRepository) GetAll(
	ctx context.Context,
) ([]domain.LockedPasswordTransaction, error) {
	rows, err := r.querier.SelectAllLockedTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get locked transactions: %w", err)
	}

	txs := make([]domain.LockedPasswordTransaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, toLockedTransaction(row))
	}
	return txs, nil
}

func (r *lockedTransactionRepository) Close() {
	// nolint
	r.db.Close()
}

func toLockedTransaction(row queries.LockedPasswordTransaction) domain.LockedPasswordTransaction {
	return domain.LockedPasswordTransaction{
		Pwtxid:    row.Pwtxid,
		Request:   []byte(row.JsonData),
		Done:      row.Done,
		CreatedAt: time.Unix(0, row.Ts),
	}
}
