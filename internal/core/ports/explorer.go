package ports

import "context"

type Utxo struct {
	Txid   string
	Vout   uint32
	Amount int64
}

type ExplorerService interface {
	GetUtxos(ctx context.Context, address string) ([]Utxo, error)
}
