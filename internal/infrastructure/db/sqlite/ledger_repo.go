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

type ledgerRepository struct {
	db      *sql.DB
	querier *queries.Queries
}

func NewLedgerRepository(db *sql.DB) (domain.LedgerRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("cannot open ledger repository: db is nil")
	}

	return &ledgerRepository{
		db:      db,
		querier: queries.New(db),
	}, nil
}

func (r *ledgerRepository) RecordInputUsage(
	ctx context.Context, inputHash, outputs string,
) (bool, error) {
	count, err := r.querier.InsertUsedInput(ctx, queries.InsertUsedInputParams{
		Ts:        time.Now().UnixNano(),
		InputHash: inputHash,
		JsonOut:   outputs,
	})
	if err != nil {
		return false, fmt.Errorf("failed to record input usage: %w", err)
	}
	return count > 0, nil
}

func (r *ledgerRepository) LookupInputUsage(
	ctx context.Context, inputHash string,
) (*domain.UsedInput, error) {
	row, err := r.querier.SelectUsedInput(ctx, inputHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get input usage: %w", err)
	}
	return &domain.UsedInput{
		InputHash: row.InputHash,
		Outputs:   row.JsonOut,
		CreatedAt: time.Unix(0, row.Ts),
	}, nil
}

func (r *ledgerRepository) GetSignatureCount(ctx context.Context, txid string) (int, error) {
	var count int
	txBody := func(querierWithTx *queries.Queries) error {
		if err := querierWithTx.InsertHandledTx(ctx, queries.InsertHandledTxParams{
			Ts:   time.Now().UnixNano(),
			Txid: txid,
		}); err != nil {
			return fmt.Errorf("failed to insert handled tx: %w", err)
		}
		row, err := querierWithTx.SelectHandledTx(ctx, txid)
		if err != nil {
			return fmt.Errorf("failed to get handled tx: %w", err)
		}
		count = int(row.MaxSigs)
		return nil
	}

	if err := execTx(ctx, r.db, txBody); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ledgerRepository) SetSignatureCount(ctx context.Context, txid string, count int) error {
	if err := r.querier.UpsertHandledTx(ctx, queries.UpsertHandledTxParams{
		Ts:      time.Now().UnixNano(),
		Txid:    txid,
		MaxSigs: int64(count),
	}); err != nil {
		return fmt.Errorf("failed to set signature count: %w", err)
	}
	return nil
}

func (r *ledgerRepository) AddSignedTransaction(
	ctx context.Context, signedTx domain.SignedTransaction,
) error {
	createdAt := signedTx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if err := r.querier.InsertSignedTransaction(ctx, queries.InsertSignedTransactionParams{
		Ts:             createdAt.UnixNano(),
		HexTransaction: signedTx.HexTransaction,
		Prevtx:         signedTx.Prevtx,
	}); err != nil {
		return fmt.Errorf("failed to insert signed transaction: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetSignedTransactions(
	ctx context.Context,
) ([]domain.SignedTransaction, error) {
	rows, err := r.querier.SelectAllSignedTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get signed transactions: %w", err)
	}

	txs := make([]domain.SignedTransaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, domain.SignedTransaction{
			Id:             row.ID,
			HexTransaction: row.HexTransaction,
			Prevtx:         row.Prevtx,
			CreatedAt:      time.Unix(0, row.Ts),
		})
	}
	return txs, nil
}

func (r *ledgerRepository) Close() {
	// nolint
	r.db.Close()
}
