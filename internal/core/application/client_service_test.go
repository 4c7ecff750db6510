package application

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func testCharter(t *testing.T) *domain.Charter {
	return &domain.Charter{
		Nodes: []domain.OracleNode{
			{PubKey: "02aa", Address: testAddress(t, 1), Fee: "0.0001"},
			{PubKey: "03bb", Address: testAddress(t, 2), Fee: "0.0001"},
			{PubKey: "02cc", Address: testAddress(t, 3), Fee: "0.0002"},
		},
		OrgFee:     "0.00005",
		OrgAddress: testAddress(t, 4),
	}
}

func newTestClient(
	t *testing.T, utxos []ports.Utxo,
) (*ClientService, *fakeTransport) {
	transport := newFakeTransport()
	return NewClientService(
		fakeCharter{testCharter(t)}, newFakeBitcoin(), fakeExplorer{utxos}, transport, params,
	), transport
}

func TestClientCharter(t *testing.T) {
	client, _ := newTestClient(t, nil)

	summary, err := client.Charter(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Nodes)
	require.Equal(t, 2, summary.MinSigs)
	require.Equal(t, int64(45000), summary.FeesSatoshi)

	multisig, err := client.CreateMultisig(ctx)
	require.NoError(t, err)
	require.Equal(t, "02client", multisig.ClientPubKey)
	require.Equal(t, testMultisigAddress(), multisig.Address)
	require.Equal(t, 2, multisig.MinSigs)
	require.Equal(t, int64(45000+MinersFee), multisig.MinAmount)
}

func TestClientRequestBounty(t *testing.T) {
	utxos := []ports.Utxo{
		{Txid: testPrevTxid, Vout: 0, Amount: 60000},
		{Txid: strings.Repeat("cd", 32), Vout: 2, Amount: 40000},
	}
	returnAddress := testAddress(t, 42)

	t.Run("valid", func(t *testing.T) {
		client, transport := newTestClient(t, utxos)

		req, err := client.RequestBounty(ctx, "02client", testLocktime, returnAddress)
		require.NoError(t, err)
		require.Equal(t, int64(100000-MinersFee), req.SumAmount)
		require.Equal(t, int64(MinersFee), req.MinersFee)
		require.Equal(t, 2, req.ReqSigs)
		require.Equal(t, []string{"02client", "02aa", "03bb", "02cc"}, req.PubkeyJSON)
		require.Len(t, req.OracleFees, 4)
		require.True(t, strings.HasPrefix(req.MessageId, testMultisigAddress()+"-"))

		addr, err := btcutil.DecodeAddress(testMultisigAddress(), params)
		require.NoError(t, err)
		script, err := txscript.PayToAddrScript(addr)
		require.NoError(t, err)
		require.Len(t, req.Prevtx, 2)
		for _, prev := range req.Prevtx {
			require.Equal(t, hex.EncodeToString(script), prev.ScriptPubKey)
			require.Equal(t, "52ae", prev.RedeemScript)
		}

		requests := transport.bySubject(protocol.SubjectRequest)
		require.Len(t, requests, 1)
		decoded, err := decodePasswordTransaction(requests[0].body)
		require.NoError(t, err)
		require.Equal(t, req, decoded)

		tx, err := buildFutureTransaction(decoded, params)
		require.NoError(t, err)
		require.Len(t, tx.TxIn, 2)
		var outputs int64
		for _, out := range tx.TxOut {
			outputs += out.Value
		}
		require.Equal(t, int64(100000-MinersFee), outputs)
	})

	t.Run("no funds", func(t *testing.T) {
		client, transport := newTestClient(t, nil)
		_, err := client.RequestBounty(ctx, "02client", testLocktime, returnAddress)
		require.Error(t, err)
		require.Empty(t, transport.sent)
	})

	t.Run("not enough funds", func(t *testing.T) {
		client, transport := newTestClient(t, []ports.Utxo{{Txid: testPrevTxid, Amount: 1000}})
		_, err := client.RequestBounty(ctx, "02client", testLocktime, returnAddress)
		require.Error(t, err)
		require.Empty(t, transport.sent)
	})

	t.Run("nothing left after fees", func(t *testing.T) {
		client, transport := newTestClient(t, []ports.Utxo{{Txid: testPrevTxid, Amount: 45000 + MinersFee}})
		_, err := client.RequestBounty(ctx, "02client", testLocktime, returnAddress)
		require.Error(t, err)
		require.Empty(t, transport.sent)
	})

	t.Run("invalid return address", func(t *testing.T) {
		client, _ := newTestClient(t, utxos)
		_, err := client.RequestBounty(ctx, "02client", testLocktime, "invalid")
		require.Error(t, err)
	})
}

func TestClientWaitFinalSignatures(t *testing.T) {
	client, transport := newTestClient(t, nil)

	final, err := json.Marshal(protocol.FinalSignMessage{Pwtxid: "pwtxid", Transaction: "0100"})
	require.NoError(t, err)
	transport.inbound <- newMessage(protocol.SubjectBounty, []byte(`{}`))
	transport.inbound <- newMessage(protocol.SubjectFinalSign, []byte(`not json`))
	transport.inbound <- newMessage(protocol.SubjectFinalSign, final)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var got []protocol.FinalSignMessage
	err = client.WaitFinalSignatures(ctx, func(msg protocol.FinalSignMessage) {
		got = append(got, msg)
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []protocol.FinalSignMessage{{Pwtxid: "pwtxid", Transaction: "0100"}}, got)
}

func TestClientPing(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.inbound <- newMessage(protocol.SubjectPing, protocol.PingMessage())

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	responses := make(map[string]string)
	require.NoError(t, client.Ping(ctx, func(source, version string) {
		responses[source] = version
		cancel()
	}))
	require.Equal(t, map[string]string{"client": protocol.Version}, responses)

	requests := transport.bySubject(protocol.SubjectRequest)
	require.Len(t, requests, 1)
	req, err := protocol.Decode(requests[0].body)
	require.NoError(t, err)
	require.Equal(t, protocol.OperationPing, req.Operation())
}
