package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const (
	ledgerDir           = "ledger"
	signedTxSequenceKey = "signed_transaction_seq"
)

type ledgerRepository struct {
	store *badgerhold.Store
	seq   *badger.Sequence
}

type usedInputData struct {
	InputHash string
	Outputs   string
	CreatedAt int64
}

type handledTxData struct {
	Txid    string
	MaxSigs int
}

type signedTxData struct {
	Id             int64
	HexTransaction string
	Prevtx         string
	CreatedAt      int64
}

func NewLedgerRepository(baseDir string, logger badger.Logger) (domain.LedgerRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, ledgerDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store: %s", err)
	}
	seq, err := store.Badger().GetSequence([]byte(signedTxSequenceKey), 100)
	if err != nil {
		// nolint:all
		store.Close()
		return nil, fmt.Errorf("failed to open signed transaction sequence: %s", err)
	}
	return &ledgerRepository{store, seq}, nil
}

func (r *ledgerRepository) RecordInputUsage(
	ctx context.Context, inputHash, outputs string,
) (bool, error) {
	data := usedInputData{
		InputHash: inputHash,
		Outputs:   outputs,
		CreatedAt: time.Now().UnixNano(),
	}
	if err := r.store.Insert(inputHash, data); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record input usage: %w", err)
	}
	return true, nil
}

func (r *ledgerRepository) LookupInputUsage(
	ctx context.Context, inputHash string,
) (*domain.UsedInput, error) {
	var data usedInputData
	if err := r.store.Get(inputHash, &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.UsedInput{
		InputHash: data.InputHash,
		Outputs:   data.Outputs,
		CreatedAt: time.Unix(0, data.CreatedAt),
	}, nil
}

func (r *ledgerRepository) GetSignatureCount(ctx context.Context, txid string) (int, error) {
	var count int
	err := r.store.Badger().Update(func(tx *badger.Txn) error {
		var data handledTxData
		err := r.store.TxGet(tx, txid, &data)
		if err == nil {
			count = data.MaxSigs
			return nil
		}
		if !errors.Is(err, badgerhold.ErrNotFound) {
			return err
		}
		return r.store.TxInsert(tx, txid, handledTxData{Txid: txid})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get signature count: %w", err)
	}
	return count, nil
}

func (r *ledgerRepository) SetSignatureCount(ctx context.Context, txid string, count int) error {
	data := handledTxData{Txid: txid, MaxSigs: count}
	if err := r.store.Upsert(txid, data); err != nil {
		return fmt.Errorf("failed to set signature count: %w", err)
	}
	return nil
}

func (r *ledgerRepository) AddSignedTransaction(
	ctx context.Context, signedTx domain.SignedTransaction,
) error {
	next, err := r.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to get next signed transaction id: %w", err)
	}
	createdAt := signedTx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	data := signedTxData{
		Id:             int64(next) + 1,
		HexTransaction: signedTx.HexTransaction,
		Prevtx:         signedTx.Prevtx,
		CreatedAt:      createdAt.UnixNano(),
	}
	return r.store.Insert(data.Id, data)
}

func (r *ledgerRepository) GetSignedTransactions(
	ctx context.Context,
) ([]domain.SignedTransaction, error) {
	var dataList []signedTxData
	if err := r.store.Find(&dataList, nil); err != nil {
		return nil, fmt.Errorf("failed to get signed transactions: %w", err)
	}
	sort.SliceStable(dataList, func(i, j int) bool {
		return dataList[i].Id < dataList[j].Id
	})

	txs := make([]domain.SignedTransaction, 0, len(dataList))
	for _, data := range dataList {
		txs = append(txs, domain.SignedTransaction{
			Id:             data.Id,
			HexTransaction: data.HexTransaction,
			Prevtx:         data.Prevtx,
			CreatedAt:      time.Unix(0, data.CreatedAt),
		})
	}
	return txs, nil
}

func (r *ledgerRepository) Close() {
	// nolint:all
	r.seq.Release()
	// nolint:all
	r.store.Close()
}
