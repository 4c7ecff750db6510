package esplora_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	"github.com/ArkLabsHQ/oracle-node/internal/infrastructure/esplora"
	"github.com/stretchr/testify/require"
)

func TestGetUtxos(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/address/2NmultisigAddr/utxo":
			w.Header().Set("Content-Type", "application/json")
			// nolint:all
			w.Write([]byte(`[
				{"txid": "aa", "vout": 0, "value": 50000, "status": {"confirmed": true}},
				{"txid": "bb", "vout": 3, "value": 70000, "status": {"confirmed": false}}
			]`))
		case "/address/broken/utxo":
			// nolint:all
			w.Write([]byte(`not json`))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer server.Close()

	svc := esplora.NewService(server.URL + "/")
	ctx := context.Background()

	utxos, err := svc.GetUtxos(ctx, "2NmultisigAddr")
	require.NoError(t, err)
	require.Equal(t, []ports.Utxo{
		{Txid: "aa", Vout: 0, Amount: 50000},
		{Txid: "bb", Vout: 3, Amount: 70000},
	}, utxos)

	_, err = svc.GetUtxos(ctx, "broken")
	require.Error(t, err)

	_, err = svc.GetUtxos(ctx, "unknown")
	require.ErrorContains(t, err, "404")
}
