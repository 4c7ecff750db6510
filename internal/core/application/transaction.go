package application

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	futureTxVersion = 1
	// Lets the lock time be enforced without opting into replace-by-fee.
	futureTxSequence = wire.MaxTxInSequenceNum - 1

	conditionTrue = "True"
)

// Pwtxid identifies a password transaction by the hash of the request body
// as it was received.
func Pwtxid(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type txInput struct {
	Txid string `json:"txid"`
	Vout uint32 `json:"vout"`
}

type futureTransaction struct {
	Condition string           `json:"condition"`
	Inputs    []txInput        `json:"inputs"`
	Locktime  int64            `json:"locktime"`
	Outputs   map[string]int64 `json:"outputs"`
}

// buildFutureTransaction deterministically builds the transaction every
// oracle signs for req: prevtx outpoints in the given order, every fee
// address paid its fee and the remainder paid back to the return address.
func buildFutureTransaction(
	req *protocol.PasswordTransactionRequest, params *chaincfg.Params,
) (*wire.MsgTx, error) {
	if len(req.Prevtx) <= 0 {
		return nil, fmt.Errorf("%w: missing prevtx", ErrMalformedRequest)
	}
	if req.Locktime < 0 || req.Locktime > math.MaxUint32 {
		return nil, fmt.Errorf("%w: locktime out of range", ErrMalformedRequest)
	}

	outputs := make(map[string]int64, len(req.OracleFees)+1)
	var fees int64
	for addr, fee := range req.OracleFees {
		if fee < 0 {
			return nil, fmt.Errorf("%w: negative fee for %s", ErrMalformedRequest, addr)
		}
		if fee > 0 {
			outputs[addr] += fee
		}
		fees += fee
	}
	returnAmount := req.SumAmount - fees
	if returnAmount <= 0 {
		return nil, fmt.Errorf("%w: fees exceed sum amount", ErrMalformedRequest)
	}
	outputs[req.ReturnAddress] += returnAmount

	tx := wire.NewMsgTx(futureTxVersion)
	for _, prev := range req.Prevtx {
		hash, err := chainhash.NewHashFromStr(prev.Txid)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid prevtx txid %s", ErrMalformedRequest, prev.Txid)
		}
		in := wire.NewTxIn(wire.NewOutPoint(hash, prev.Vout), nil, nil)
		in.Sequence = futureTxSequence
		tx.AddTxIn(in)
	}

	addresses := make([]string, 0, len(outputs))
	for addr := range outputs {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	for _, addr := range addresses {
		decoded, err := btcutil.DecodeAddress(addr, params)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid address %s: %s", ErrMalformedRequest, addr, err)
		}
		if !decoded.IsForNet(params) {
			return nil, fmt.Errorf("%w: address %s is not for %s", ErrMalformedRequest, addr, params.Name)
		}
		script, err := txscript.PayToAddrScript(decoded)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedRequest, err)
		}
		tx.AddTxOut(wire.NewTxOut(outputs[addr], script))
	}
	tx.LockTime = uint32(req.Locktime)

	return tx, nil
}

// futureHash is the digest shared by every oracle building the same future
// transaction.
func futureHash(tx *wire.MsgTx, params *chaincfg.Params) (string, error) {
	outputs, err := txOutputs(tx, params)
	if err != nil {
		return "", err
	}
	buf, err := json.Marshal(futureTransaction{
		Condition: conditionTrue,
		Inputs:    txInputs(tx),
		Locktime:  int64(tx.LockTime),
		Outputs:   outputs,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

func txInputs(tx *wire.MsgTx) []txInput {
	inputs := make([]txInput, 0, len(tx.TxIn))
	for _, in := range tx.TxIn {
		inputs = append(inputs, txInput{
			Txid: in.PreviousOutPoint.Hash.String(),
			Vout: in.PreviousOutPoint.Index,
		})
	}
	return inputs
}

func txOutputs(tx *wire.MsgTx, params *chaincfg.Params) (map[string]int64, error) {
	outputs := make(map[string]int64, len(tx.TxOut))
	for _, out := range tx.TxOut {
		_, addrs, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, params)
		if err != nil {
			return nil, fmt.Errorf("failed to parse output script: %w", err)
		}
		key := hex.EncodeToString(out.PkScript)
		if len(addrs) == 1 {
			key = addrs[0].EncodeAddress()
		}
		outputs[key] += out.Value
	}
	return outputs, nil
}

// inputsHash identifies a set of spent outpoints regardless of their order.
func inputsHash(tx *wire.MsgTx) (string, error) {
	inputs := txInputs(tx)
	sort.Slice(inputs, func(i, j int) bool {
		if inputs[i].Txid != inputs[j].Txid {
			return inputs[i].Txid < inputs[j].Txid
		}
		return inputs[i].Vout < inputs[j].Vout
	})
	buf, err := json.Marshal(inputs)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

func outputsKey(tx *wire.MsgTx, params *chaincfg.Params) (string, error) {
	outputs, err := txOutputs(tx, params)
	if err != nil {
		return "", err
	}
	buf, err := json.Marshal(outputs)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// unsignedTxid is the txid of tx with every signature stripped, so that
// partially signed copies of the same transaction share it.
func unsignedTxid(tx *wire.MsgTx) string {
	unsigned := tx.Copy()
	for _, in := range unsigned.TxIn {
		in.SignatureScript = nil
		in.Witness = nil
	}
	return unsigned.TxHash().String()
}

// countSignatures is the lowest number of valid signatures found among the
// inputs of tx, each pubkey counting once per input. Witness inputs are
// verified only if prevtx carries their amount.
func countSignatures(tx *wire.MsgTx, prevtx []protocol.PrevTx, pubkeys []string) int {
	keys := parsePubKeys(pubkeys)
	amounts := make(map[wire.OutPoint]int64, len(prevtx))
	for _, prev := range prevtx {
		hash, err := chainhash.NewHashFromStr(prev.Txid)
		if err != nil {
			continue
		}
		amounts[*wire.NewOutPoint(hash, prev.Vout)] = prev.Amount
	}

	count := -1
	for i, in := range tx.TxIn {
		n := inputSignatures(tx, i, keys, amounts[in.PreviousOutPoint])
		if count < 0 || n < count {
			count = n
		}
	}
	if count < 0 {
		return 0
	}
	return count
}

// inputSignatures counts the pushes preceding the redeem script of a
// multisig unlocking script that are valid signatures of distinct keys.
func inputSignatures(tx *wire.MsgTx, idx int, keys []*btcec.PublicKey, amount int64) int {
	in := tx.TxIn[idx]
	witness := len(in.Witness) > 0
	pushes := [][]byte(in.Witness)
	if !witness {
		data, err := txscript.PushedData(in.SignatureScript)
		if err != nil {
			return 0
		}
		pushes = data
	}
	if len(pushes) <= 1 {
		return 0
	}
	script := pushes[len(pushes)-1]

	used := make([]bool, len(keys))
	count := 0
	for _, push := range pushes[:len(pushes)-1] {
		if len(push) <= 1 {
			continue
		}
		sig, err := ecdsa.ParseDERSignature(push[:len(push)-1])
		if err != nil {
			continue
		}
		hashType := txscript.SigHashType(push[len(push)-1])
		hash, err := signatureHash(tx, idx, script, hashType, witness, amount)
		if err != nil {
			return 0
		}
		for k, key := range keys {
			if !used[k] && sig.Verify(hash, key) {
				used[k] = true
				count++
				break
			}
		}
	}
	return count
}

func signatureHash(
	tx *wire.MsgTx, idx int, script []byte, hashType txscript.SigHashType,
	witness bool, amount int64,
) ([]byte, error) {
	if !witness {
		return txscript.CalcSignatureHash(script, hashType, tx, idx)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("missing amount of input %d", idx)
	}
	hashes := txscript.NewTxSigHashes(tx, txscript.NewCannedPrevOutputFetcher(nil, amount))
	return txscript.CalcWitnessSigHash(script, hashes, hashType, tx, idx, amount)
}

func parsePubKeys(pubkeys []string) []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, 0, len(pubkeys))
	for _, pubkey := range pubkeys {
		buf, err := hex.DecodeString(pubkey)
		if err != nil {
			continue
		}
		key, err := btcec.ParsePubKey(buf)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func serializeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

func deserializeTx(txHex string) (*wire.MsgTx, error) {
	buf, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid transaction hex", ErrMalformedRequest)
	}
	tx := wire.NewMsgTx(futureTxVersion)
	if err := tx.Deserialize(bytes.NewReader(buf)); err != nil {
		return nil, fmt.Errorf("%w: invalid transaction: %s", ErrMalformedRequest, err)
	}
	return tx, nil
}
