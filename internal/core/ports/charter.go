package ports

import (
	"context"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
)

type CharterService interface {
	// Fetch blocks until the charter is retrieved or ctx is done.
	Fetch(ctx context.Context) (*domain.Charter, error)
}
