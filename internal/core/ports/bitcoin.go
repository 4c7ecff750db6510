package ports

import (
	"context"

	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
)

type Multisig struct {
	Address      string
	RedeemScript string
}

// BitcoinService is the currency node holding the oracle wallet.
type BitcoinService interface {
	IsAddressMine(ctx context.Context, address string) (bool, error)
	// IsFeeSufficient reports whether fee, paid to address, is an acceptable
	// fee for this oracle.
	IsFeeSufficient(ctx context.Context, address string, fee int64) (bool, error)
	AddMultisigAddress(ctx context.Context, reqSigs int, pubkeys []string) (string, error)
	CreateMultisig(ctx context.Context, reqSigs int, pubkeys []string) (*Multisig, error)
	// GetNewPubKey returns the public key of a fresh wallet address.
	GetNewPubKey(ctx context.Context) (string, error)
	// SignTransaction adds the wallet signatures to the hex encoded tx and
	// returns the result hex encoded.
	SignTransaction(ctx context.Context, txHex string, prevtxs []protocol.PrevTx) (string, error)
	Close()
}
