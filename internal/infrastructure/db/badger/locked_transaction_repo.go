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
	lockedTransactionDir = "locked_transactions"
)

type lockedTransactionRepository struct {
	store *badgerhold.Store
}

type lockedTransactionData struct {
	Pwtxid    string
	Request   []byte
	Done      bool
	CreatedAt int64
}

func NewLockedTransactionRepository(
	baseDir string, logger badger.Logger,
) (domain.LockedTransactionRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, lockedTransactionDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open locked transaction store: %s", err)
	}
	return &lockedTransactionRepository{store}, nil
}

func (r *lockedTransactionRepository) Add(
	ctx context.Context, tx domain.LockedPasswordTransaction,
) error {
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	data := lockedTransactionData{
		Pwtxid:    tx.Pwtxid,
		Request:   tx.Request,
		Done:      tx.Done,
		CreatedAt: createdAt.UnixNano(),
	}
	if err := r.store.Insert(tx.Pwtxid, data); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("locked transaction %s: %w", tx.Pwtxid, domain.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

func (r *lockedTransactionRepository) Get(
	ctx context.Context, pwtxid string,
) (*domain.LockedPasswordTransaction, error) {
	var data lockedTransactionData
	if err := r.store.Get(pwtxid, &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	tx := data.toLockedTransaction()
	return &tx, nil
}

func (r *lockedTransactionRepository) MarkDone(ctx context.Context, pwtxid string) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var data lockedTransactionData
		if err := r.store.TxGet(tx, pwtxid, &data); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return fmt.Errorf("locked transaction %s not found", pwtxid)
			}
			return err
		}
		if data.Done {
			return nil
		}
		data.Done = true
		return r.store.TxUpdate(tx, pwtxid, data)
	})
}

func (r *lockedTransactionRepository) GetAll(
	ctx context.Context,
) ([]domain.LockedPasswordTransaction, error) {
	var dataList []lockedTransactionData
	if err := r.store.Find(&dataList, nil); err != nil {
		return nil, fmt.Errorf("failed to get all locked transactions: %w", err)
	}
	sort.SliceStable(dataList, func(i, j int) bool {
		return dataList[i].CreatedAt < dataList[j].CreatedAt
	})

	txs := make([]domain.LockedPasswordTransaction, 0, len(dataList))
	for _, data := range dataList {
		txs = append(txs, data.toLockedTransaction())
	}
	return txs, nil
}

func (r *lockedTransactionRepository) Close() {
	// nolint:all
	r.store.Close()
}

func (d lockedTransactionData) toLockedTransaction() domain.LockedPasswordTransaction {
	return domain.LockedPasswordTransaction{
		Pwtxid:    d.Pwtxid,
		Request:   d.Request,
		Done:      d.Done,
		CreatedAt: time.Unix(0, d.CreatedAt),
	}
}
