package application

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	"github.com/ArkLabsHQ/oracle-node/internal/infrastructure/db"
	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

var (
	ctx    = context.Background()
	params = &chaincfg.RegressionNetParams

	testPrevTxid = strings.Repeat("ab", 32)
	// 71 bytes that are not a signature.
	testSignature = bytes.Repeat([]byte{0x30}, 71)

	// Keys of the oracles of a 2-of-3 federation.
	testKeys         = []*btcec.PrivateKey{testKey(101), testKey(102), testKey(103)}
	testPubKeys      = serializePubKeys(testKeys)
	testRedeemScript = multisigRedeemScript(2, testKeys)
)

func testKey(seed byte) *btcec.PrivateKey {
	key, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return key
}

func serializePubKeys(keys []*btcec.PrivateKey) []string {
	pubkeys := make([]string, 0, len(keys))
	for _, key := range keys {
		pubkeys = append(pubkeys, hex.EncodeToString(key.PubKey().SerializeCompressed()))
	}
	return pubkeys
}

func multisigRedeemScript(reqSigs int, keys []*btcec.PrivateKey) []byte {
	pubkeys := make([]*btcutil.AddressPubKey, 0, len(keys))
	for _, key := range keys {
		// nolint:all
		addr, _ := btcutil.NewAddressPubKey(key.PubKey().SerializeCompressed(), params)
		pubkeys = append(pubkeys, addr)
	}
	// nolint:all
	script, _ := txscript.MultiSigScript(pubkeys, reqSigs)
	return script
}

func testAddress(t *testing.T, seed byte) string {
	t.Helper()
	_, pubkey := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pubkey.SerializeCompressed()), params,
	)
	require.NoError(t, err)
	return addr.EncodeAddress()
}

func testMultisigAddress() string {
	// nolint:all
	addr, _ := btcutil.NewAddressScriptHash([]byte{txscript.OP_2, txscript.OP_CHECKMULTISIG}, params)
	return addr.EncodeAddress()
}

func newRepoManager(t *testing.T) ports.RepoManager {
	t.Helper()
	svc, err := db.NewService(db.ServiceConfig{
		DbType:   "badger",
		DbConfig: []any{"", nil},
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func newPasswordRequest(
	t *testing.T, fees map[string]int64, returnAddress string, locktime int64,
	opts ...func(*protocol.PasswordTransactionRequest),
) []byte {
	t.Helper()
	req := &protocol.PasswordTransactionRequest{
		SumAmount:  100000,
		OracleFees: fees,
		MinersFee:  MinersFee,
		Locktime:   locktime,
		Prevtx: []protocol.PrevTx{{
			Txid:         testPrevTxid,
			Vout:         1,
			RedeemScript: hex.EncodeToString(testRedeemScript),
			Amount:       100000,
		}},
		ReturnAddress: returnAddress,
		ReqSigs:       2,
		PubkeyJSON:    testPubKeys,
	}
	for _, opt := range opts {
		opt(req)
	}
	body, err := protocol.Encode(req)
	require.NoError(t, err)
	return body
}

func newMessage(subject string, body []byte) protocol.Message {
	return protocol.Message{
		Envelope: protocol.NewEnvelope("client", body),
		Subject:  subject,
	}
}

// multisigScript builds a p2sh multisig unlocking script carrying sigs.
func multisigScript(sigs ...[]byte) []byte {
	builder := txscript.NewScriptBuilder().AddOp(txscript.OP_0)
	for _, sig := range sigs {
		builder.AddData(sig)
	}
	// nolint:all
	script, _ := builder.AddData(testRedeemScript).Script()
	return script
}

// signInputs adds a signature of key to every p2sh input of tx, keeping the
// signatures already there.
func signInputs(tx *wire.MsgTx, key *btcec.PrivateKey) error {
	for i, in := range tx.TxIn {
		var sigs [][]byte
		if pushes, err := txscript.PushedData(in.SignatureScript); err == nil && len(pushes) > 1 {
			for _, push := range pushes[:len(pushes)-1] {
				if len(push) > 0 {
					sigs = append(sigs, push)
				}
			}
		}
		hash, err := txscript.CalcSignatureHash(testRedeemScript, txscript.SigHashAll, tx, i)
		if err != nil {
			return err
		}
		sig := append(ecdsa.Sign(key, hash).Serialize(), byte(txscript.SigHashAll))
		in.SignatureScript = multisigScript(append(sigs, sig)...)
	}
	return nil
}

// signedBy returns a copy of tx signed by keys.
func signedBy(t *testing.T, tx *wire.MsgTx, keys ...*btcec.PrivateKey) *wire.MsgTx {
	t.Helper()
	signed := tx.Copy()
	for _, key := range keys {
		require.NoError(t, signInputs(signed, key))
	}
	return signed
}

type fakeBitcoin struct {
	lock             sync.Mutex
	key              *btcec.PrivateKey
	mine             map[string]bool
	minFee           int64
	signCalls        int
	multisigImported int
	signErr          error
}

func newFakeBitcoin(mine ...string) *fakeBitcoin {
	owned := make(map[string]bool)
	for _, addr := range mine {
		owned[addr] = true
	}
	return &fakeBitcoin{key: testKeys[0], mine: owned}
}

func (b *fakeBitcoin) IsAddressMine(_ context.Context, address string) (bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.mine[address], nil
}

func (b *fakeBitcoin) IsFeeSufficient(_ context.Context, address string, fee int64) (bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return fee >= b.minFee && b.mine[address], nil
}

func (b *fakeBitcoin) AddMultisigAddress(context.Context, int, []string) (string, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.multisigImported++
	return "multisig", nil
}

func (b *fakeBitcoin) CreateMultisig(
	_ context.Context, reqSigs int, pubkeys []string,
) (*ports.Multisig, error) {
	return &ports.Multisig{Address: testMultisigAddress(), RedeemScript: "52ae"}, nil
}

func (b *fakeBitcoin) GetNewPubKey(context.Context) (string, error) {
	return "02client", nil
}

// SignTransaction adds the signature of the oracle key to every input.
func (b *fakeBitcoin) SignTransaction(
	_ context.Context, txHex string, _ []protocol.PrevTx,
) (string, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.signErr != nil {
		return "", b.signErr
	}
	b.signCalls++

	tx, err := deserializeTx(txHex)
	if err != nil {
		return "", err
	}
	if err := signInputs(tx, b.key); err != nil {
		return "", err
	}
	return serializeTx(tx)
}

func (b *fakeBitcoin) Close() {}

func (b *fakeBitcoin) signed() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.signCalls
}

type sentMessage struct {
	recipient string
	subject   string
	body      []byte
}

type fakeTransport struct {
	lock    sync.Mutex
	sent    []sentMessage
	inbound chan protocol.Message
	closed  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan protocol.Message, 10)}
}

func (f *fakeTransport) Identity() string { return "oracle" }

func (f *fakeTransport) Broadcast(_ context.Context, subject string, body []byte) error {
	return f.Send(context.Background(), "", subject, body)
}

func (f *fakeTransport) Send(_ context.Context, recipient, subject string, body []byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.sent = append(f.sent, sentMessage{recipient, subject, body})
	return nil
}

func (f *fakeTransport) Subscribe(context.Context) (<-chan protocol.Message, error) {
	return f.inbound, nil
}

func (f *fakeTransport) Close() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.closed = true
}

func (f *fakeTransport) bySubject(subject string) []sentMessage {
	f.lock.Lock()
	defer f.lock.Unlock()
	out := make([]sentMessage, 0)
	for _, msg := range f.sent {
		if msg.subject == subject {
			out = append(out, msg)
		}
	}
	return out
}

type fakeScheduler struct {
	lock     sync.Mutex
	jobs     []func()
	interval time.Duration
	started  bool
}

func (s *fakeScheduler) Start() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.started = true
}

func (s *fakeScheduler) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.started = false
}

func (s *fakeScheduler) ScheduleEvery(interval time.Duration, fn func()) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.interval = interval
	s.jobs = append(s.jobs, fn)
	return nil
}

type fakeCharter struct {
	charter *domain.Charter
}

func (c fakeCharter) Fetch(context.Context) (*domain.Charter, error) {
	return c.charter, nil
}

type fakeExplorer struct {
	utxos []ports.Utxo
}

func (e fakeExplorer) GetUtxos(context.Context, string) ([]ports.Utxo, error) {
	return e.utxos, nil
}

// flakyRepoManager fails the first MarkDone of a locked transaction, like a
// node stopped right before persisting it.
type flakyRepoManager struct {
	ports.RepoManager
	locked *flakyLockedRepo
}

func newFlakyRepoManager(repoManager ports.RepoManager) *flakyRepoManager {
	return &flakyRepoManager{
		repoManager, &flakyLockedRepo{LockedTransactionRepository: repoManager.LockedTransactions()},
	}
}

func (m *flakyRepoManager) LockedTransactions() domain.LockedTransactionRepository {
	return m.locked
}

type flakyLockedRepo struct {
	domain.LockedTransactionRepository
	failed bool
}

func (r *flakyLockedRepo) MarkDone(ctx context.Context, pwtxid string) error {
	if !r.failed {
		r.failed = true
		return errors.New("node stopped")
	}
	return r.LockedTransactionRepository.MarkDone(ctx, pwtxid)
}
