package ports

import "github.com/ArkLabsHQ/oracle-node/internal/core/domain"

type RepoManager interface {
	Tasks() domain.TaskRepository
	LockedTransactions() domain.LockedTransactionRepository
	EscrowKeys() domain.EscrowKeyRepository
	Ledger() domain.LedgerRepository
	Close()
}
