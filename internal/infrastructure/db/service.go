package db

import (
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	badgerdb "github.com/ArkLabsHQ/oracle-node/internal/infrastructure/db/badger"
	sqlitedb "github.com/ArkLabsHQ/oracle-node/internal/infrastructure/db/sqlite"
	"github.com/dgraph-io/badger/v4"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	sqliteDbFile = "oracle.db"
)

var (
	//go:embed sqlite/migration/*
	migrations   embed.FS
	allowedTypes = strings.Join([]string{"badger", "sqlite"}, ",")
)

type ServiceConfig struct {
	DbType   string
	DbConfig []any
}

type service struct {
	taskRepo              domain.TaskRepository
	lockedTransactionRepo domain.LockedTransactionRepository
	escrowKeyRepo         domain.EscrowKeyRepository
	ledgerRepo            domain.LedgerRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	var (
		taskRepo              domain.TaskRepository
		lockedTransactionRepo domain.LockedTransactionRepository
		escrowKeyRepo         domain.EscrowKeyRepository
		ledgerRepo            domain.LedgerRepository
		err                   error
	)

	switch config.DbType {
	case "badger":
		if len(config.DbConfig) != 2 {
			return nil, fmt.Errorf("badger db config must have 2 elements, got %d", len(config.DbConfig))
		}
		baseDir, ok := config.DbConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}
		var logger badger.Logger
		if config.DbConfig[1] != nil {
			logger, ok = config.DbConfig[1].(badger.Logger)
			if !ok {
				return nil, fmt.Errorf("invalid logger")
			}
		}
		taskRepo, err = badgerdb.NewTaskRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open task db: %s", err)
		}
		lockedTransactionRepo, err = badgerdb.NewLockedTransactionRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open locked transaction db: %s", err)
		}
		escrowKeyRepo, err = badgerdb.NewEscrowKeyRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open escrow key db: %s", err)
		}
		ledgerRepo, err = badgerdb.NewLedgerRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger db: %s", err)
		}

	case "sqlite":
		if len(config.DbConfig) != 1 {
			return nil, fmt.Errorf("sqlite db config must have 1 element, got %d", len(config.DbConfig))
		}
		baseDir, ok := config.DbConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}
		dbFile := filepath.Join(baseDir, sqliteDbFile)
		db, err := sqlitedb.OpenDb(dbFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite db: %s", err)
		}

		driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init driver: %s", err)
		}

		source, err := iofs.New(migrations, "sqlite/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed migrations: %s", err)
		}

		m, err := migrate.NewWithInstance("iofs", source, "oracledb", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %s", err)
		}

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to run migrations: %s", err)
		}

		taskRepo, err = sqlitedb.NewTaskRepository(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open task db: %s", err)
		}
		lockedTransactionRepo, err = sqlitedb.NewLockedTransactionRepository(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open locked transaction db: %s", err)
		}
		escrowKeyRepo, err = sqlitedb.NewEscrowKeyRepository(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open escrow key db: %s", err)
		}
		ledgerRepo, err = sqlitedb.NewLedgerRepository(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger db: %s", err)
		}

	default:
		return nil, fmt.Errorf("unsupported db type %s, please select one of %s", config.DbType, allowedTypes)
	}

	return &service{
		taskRepo:              taskRepo,
		lockedTransactionRepo: lockedTransactionRepo,
		escrowKeyRepo:         escrowKeyRepo,
		ledgerRepo:            ledgerRepo,
	}, nil
}

func (s *service) Tasks() domain.TaskRepository {
	return s.taskRepo
}

func (s *service) LockedTransactions() domain.LockedTransactionRepository {
	return s.lockedTransactionRepo
}

func (s *service) EscrowKeys() domain.EscrowKeyRepository {
	return s.escrowKeyRepo
}

func (s *service) Ledger() domain.LedgerRepository {
	return s.ledgerRepo
}

func (s *service) Close() {
	s.taskRepo.Close()
	s.lockedTransactionRepo.Close()
	s.escrowKeyRepo.Close()
	s.ledgerRepo.Close()
}
