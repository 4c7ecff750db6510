package ports

import (
	"context"

	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
)

// TransportService is the store-and-forward network shared by oracles and
// clients.
type TransportService interface {
	// Identity is the source address of the envelopes this node publishes.
	Identity() string
	Broadcast(ctx context.Context, subject string, body []byte) error
	Send(ctx context.Context, recipient, subject string, body []byte) error
	// Subscribe streams inbound messages until ctx is done.
	Subscribe(ctx context.Context) (<-chan protocol.Message, error)
	Close()
}
