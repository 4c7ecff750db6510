package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const (
	escrowKeyDir = "rsa_keys"
)

type escrowKeyRepository struct {
	store *badgerhold.Store
}

type escrowKeyData struct {
	Pwtxid     string
	PublicKey  string
	PrivateKey string
	CreatedAt  int64
}

func NewEscrowKeyRepository(baseDir string, logger badger.Logger) (domain.EscrowKeyRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, escrowKeyDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open escrow key store: %s", err)
	}
	return &escrowKeyRepository{store}, nil
}

func (r *escrowKeyRepository) Add(ctx context.Context, keyPair domain.EscrowKeyPair) error {
	createdAt := keyPair.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	data := escrowKeyData{
		Pwtxid:     keyPair.Pwtxid,
		PublicKey:  keyPair.PublicKey,
		PrivateKey: keyPair.PrivateKey,
		CreatedAt:  createdAt.UnixNano(),
	}
	if err := r.store.Insert(keyPair.Pwtxid, data); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("escrow key for %s: %w", keyPair.Pwtxid, domain.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

func (r *escrowKeyRepository) Get(ctx context.Context, pwtxid string) (*domain.EscrowKeyPair, error) {
	var data escrowKeyData
	if err := r.store.Get(pwtxid, &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.EscrowKeyPair{
		Pwtxid:     data.Pwtxid,
		PublicKey:  data.PublicKey,
		PrivateKey: data.PrivateKey,
		CreatedAt:  time.Unix(0, data.CreatedAt),
	}, nil
}

func (r *escrowKeyRepository) Close() {
	// nolint:all
	r.store.Close()
}
