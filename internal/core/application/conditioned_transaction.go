package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
)

// ConditionedTransactionHandler collects the signatures of the oracles on
// conditioned transactions and announces the ones reaching the quorum.
type ConditionedTransactionHandler struct {
	repoManager         ports.RepoManager
	bitcoin             ports.BitcoinService
	transport           ports.TransportService
	params              *chaincfg.Params
	rebroadcastInterval time.Duration
}

func NewConditionedTransactionHandler(
	repoManager ports.RepoManager, bitcoin ports.BitcoinService,
	transport ports.TransportService, params *chaincfg.Params,
	rebroadcastInterval time.Duration,
) *ConditionedTransactionHandler {
	return &ConditionedTransactionHandler{
		repoManager, bitcoin, transport, params, rebroadcastInterval,
	}
}

func (h *ConditionedTransactionHandler) HandleRequest(
	ctx context.Context, msg protocol.Message,
) error {
	req, err := decodeConditionedTransaction([]byte(msg.Body))
	if err != nil {
		return err
	}
	if req.Condition != conditionTrue {
		log.Debugf("unsupported condition %q, skipping", req.Condition)
		return nil
	}

	for _, partial := range req.Transactions {
		if err := h.handleTransaction(ctx, req, partial); err != nil {
			return err
		}
	}
	return nil
}

// handleTransaction records the signatures of a peer on the future
// transaction of a password transaction locked by this oracle, co-signing it
// once its lock time has passed. Signers, prevouts, quorum and lock time are
// taken from the locked request, never from the message.
func (h *ConditionedTransactionHandler) handleTransaction(
	ctx context.Context, req *protocol.ConditionedTransactionRequest,
	partial protocol.PartialTransaction,
) error {
	tx, err := deserializeTx(partial.RawTransaction)
	if err != nil {
		return err
	}
	txid := unsignedTxid(tx)
	logger := log.WithFields(log.Fields{"txid": txid, "pwtxid": req.Pwtxid})

	locked, err := h.lockedRequest(ctx, req.Pwtxid)
	if err != nil {
		return err
	}
	if locked == nil {
		logger.Debug("password transaction not locked by this oracle, skipping")
		return nil
	}
	expected, err := buildFutureTransaction(locked, h.params)
	if err != nil {
		return err
	}
	if unsignedTxid(expected) != txid {
		return fmt.Errorf("%w: %s", ErrUnexpectedTransaction, txid)
	}

	sigs := countSignatures(tx, locked.Prevtx, locked.PubkeyJSON)
	maxSigs, err := h.repoManager.Ledger().GetSignatureCount(ctx, txid)
	if err != nil {
		return err
	}
	if sigs <= maxSigs {
		logger.Debugf("transaction already handled with %d signatures", maxSigs)
		return nil
	}
	if err := h.repoManager.Ledger().SetSignatureCount(ctx, txid, sigs); err != nil {
		return err
	}

	partial.Prevtx = locked.Prevtx
	if sigs >= locked.ReqSigs {
		return h.finalize(ctx, req.Pwtxid, partial)
	}
	if time.Now().Unix() < int64(tx.LockTime) {
		logger.Debugf("got %d of %d signatures, waiting for locktime", sigs, locked.ReqSigs)
		return nil
	}

	if err := checkInputUsage(ctx, h.repoManager.Ledger(), tx, h.params); err != nil {
		return err
	}
	if _, err := h.bitcoin.AddMultisigAddress(ctx, locked.ReqSigs, locked.PubkeyJSON); err != nil {
		return fmt.Errorf("failed to import multisig: %w", err)
	}
	signedHex, err := h.bitcoin.SignTransaction(ctx, partial.RawTransaction, locked.Prevtx)
	if err != nil {
		return fmt.Errorf("failed to sign conditioned transaction: %w", err)
	}
	signedTx, err := deserializeTx(signedHex)
	if err != nil {
		return err
	}
	if unsignedTxid(signedTx) != txid {
		return fmt.Errorf("signed transaction %s differs from %s", unsignedTxid(signedTx), txid)
	}

	newSigs := countSignatures(signedTx, locked.Prevtx, locked.PubkeyJSON)
	if newSigs <= sigs {
		logger.Debug("no signature added")
		return nil
	}
	if err := h.repoManager.Ledger().SetSignatureCount(ctx, txid, newSigs); err != nil {
		return err
	}
	logger.Infof("transaction co-signed, %d of %d signatures", newSigs, locked.ReqSigs)

	signed := protocol.PartialTransaction{RawTransaction: signedHex, Prevtx: locked.Prevtx}
	if newSigs >= locked.ReqSigs {
		return h.finalize(ctx, req.Pwtxid, signed)
	}

	body, err := protocol.Encode(&protocol.ConditionedTransactionRequest{
		Transactions: []protocol.PartialTransaction{signed},
		Locktime:     int64(tx.LockTime),
		Condition:    conditionTrue,
		PubkeyJSON:   locked.PubkeyJSON,
		ReqSigs:      locked.ReqSigs,
		Pwtxid:       req.Pwtxid,
	})
	if err != nil {
		return err
	}
	return h.transport.Broadcast(ctx, protocol.SubjectConditionedTransaction, body)
}

// lockedRequest returns the password transaction locked under pwtxid, or
// nil if this oracle never locked it.
func (h *ConditionedTransactionHandler) lockedRequest(
	ctx context.Context, pwtxid string,
) (*protocol.PasswordTransactionRequest, error) {
	if pwtxid == "" {
		return nil, nil
	}
	locked, err := h.repoManager.LockedTransactions().Get(ctx, pwtxid)
	if err != nil || locked == nil {
		return nil, err
	}
	return decodePasswordTransaction(locked.Request)
}

// HandleTask rebroadcasts the body of a push marker until its transactions
// gather the quorum.
func (h *ConditionedTransactionHandler) HandleTask(ctx context.Context, task domain.Task) error {
	logger := log.WithFields(log.Fields{"task_id": task.Id, "filter": task.FilterField})

	req, err := decodeConditionedTransaction(task.Payload)
	if err != nil {
		return err
	}

	complete := true
	for _, partial := range req.Transactions {
		tx, err := deserializeTx(partial.RawTransaction)
		if err != nil {
			return err
		}
		maxSigs, err := h.repoManager.Ledger().GetSignatureCount(ctx, unsignedTxid(tx))
		if err != nil {
			return err
		}
		if max(maxSigs, countSignatures(tx, partial.Prevtx, req.PubkeyJSON)) < req.ReqSigs {
			complete = false
		}
	}
	if complete {
		logger.Debug("quorum reached, stop rebroadcasting")
		return h.repoManager.Tasks().MarkDone(ctx, task.Id)
	}

	if _, err := h.repoManager.Tasks().Enqueue(ctx, domain.Task{
		Operation:   task.Operation,
		Payload:     task.Payload,
		FilterField: task.FilterField,
		NextCheck:   time.Now().Add(h.rebroadcastInterval).Unix(),
	}); err != nil {
		return err
	}
	if err := h.repoManager.Tasks().MarkDone(ctx, task.Id); err != nil {
		return err
	}

	logger.Debug("rebroadcasting conditioned transaction")
	return h.transport.Broadcast(ctx, protocol.SubjectConditionedTransaction, task.Payload)
}

func (h *ConditionedTransactionHandler) finalize(
	ctx context.Context, pwtxid string, partial protocol.PartialTransaction,
) error {
	prevtx, err := json.Marshal(partial.Prevtx)
	if err != nil {
		return err
	}
	if err := h.repoManager.Ledger().AddSignedTransaction(ctx, domain.SignedTransaction{
		HexTransaction: partial.RawTransaction,
		Prevtx:         string(prevtx),
	}); err != nil {
		return err
	}

	return broadcastFinalSign(ctx, h.transport, pwtxid, partial.RawTransaction)
}

func broadcastFinalSign(
	ctx context.Context, transport ports.TransportService, pwtxid, txHex string,
) error {
	body, err := json.Marshal(protocol.FinalSignMessage{
		Pwtxid:      pwtxid,
		Transaction: txHex,
	})
	if err != nil {
		return err
	}
	log.WithField("pwtxid", pwtxid).Info("transaction reached the quorum")
	return transport.Broadcast(ctx, protocol.SubjectFinalSign, body)
}

func decodeConditionedTransaction(body []byte) (*protocol.ConditionedTransactionRequest, error) {
	req, err := protocol.Decode(body)
	if err != nil {
		return nil, err
	}
	condReq, ok := req.(*protocol.ConditionedTransactionRequest)
	if !ok {
		return nil, fmt.Errorf(
			"%w: expected %s, got %s",
			ErrMalformedRequest, protocol.OperationConditionedTransaction, req.Operation(),
		)
	}
	return condReq, nil
}
