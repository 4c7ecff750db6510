package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
)

const (
	// SafetyTime is waited after the locktime before the first oracle signs.
	SafetyTime = 15 * time.Minute
	// HeuristicAddTime spaces the turns of the oracles.
	HeuristicAddTime = 3 * time.Minute
)

// PasswordTransactionHandler accepts bounty requests, schedules them for
// the oracle's turn and signs the future transaction once due.
type PasswordTransactionHandler struct {
	repoManager         ports.RepoManager
	bitcoin             ports.BitcoinService
	transport           ports.TransportService
	escrow              *EscrowKeyIssuer
	params              *chaincfg.Params
	rebroadcastInterval time.Duration
}

func NewPasswordTransactionHandler(
	repoManager ports.RepoManager, bitcoin ports.BitcoinService,
	transport ports.TransportService, escrow *EscrowKeyIssuer,
	params *chaincfg.Params, rebroadcastInterval time.Duration,
) *PasswordTransactionHandler {
	return &PasswordTransactionHandler{
		repoManager, bitcoin, transport, escrow, params, rebroadcastInterval,
	}
}

// HandleRequest locks the password transaction carried by msg and schedules
// its signature. Requests without a sufficient fee for this oracle and
// requests already locked are dropped without error.
func (h *PasswordTransactionHandler) HandleRequest(
	ctx context.Context, msg protocol.Message,
) error {
	body := []byte(msg.Body)
	req, err := decodePasswordTransaction(body)
	if err != nil {
		return err
	}

	pwtxid := Pwtxid(body)
	logger := log.WithField("pwtxid", pwtxid)

	logger.Debugf("final amount: %d", req.FinalAmount())
	if _, err := buildFutureTransaction(req, h.params); err != nil {
		return err
	}

	ok, err := h.isFeeSufficient(ctx, req.OracleFees)
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug(ErrInsufficientFee)
		return nil
	}

	locked, err := h.repoManager.LockedTransactions().Get(ctx, pwtxid)
	if err != nil {
		return err
	}
	if locked != nil {
		logger.Info(ErrAlreadyLocked)
		return nil
	}

	pubkey, err := h.escrowPublicKey(ctx, pwtxid)
	if err != nil {
		return err
	}
	request, err := protocol.WithField(body, "rsa_pubkey", pubkey)
	if err != nil {
		return err
	}

	turn, err := h.turn(ctx, req.OracleFees)
	if err != nil {
		return err
	}
	nextCheck := req.Locktime +
		int64(turn)*int64(HeuristicAddTime.Seconds()) + int64(SafetyTime.Seconds())

	if err := h.repoManager.LockedTransactions().Add(ctx, domain.LockedPasswordTransaction{
		Pwtxid:  pwtxid,
		Request: request,
	}); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			logger.Info(ErrAlreadyLocked)
			return nil
		}
		return fmt.Errorf("failed to lock password transaction: %w", err)
	}

	task, err := h.repoManager.Tasks().Enqueue(ctx, domain.Task{
		Operation:   protocol.PasswordTransactionOperationName,
		Payload:     body,
		FilterField: domain.PwtxidFilter(pwtxid),
		NextCheck:   nextCheck,
	})
	if err != nil {
		return fmt.Errorf("failed to schedule password transaction: %w", err)
	}
	logger.WithField("task_id", task.Id).Infof(
		"password transaction locked, turn %d, next check at %s",
		turn, time.Unix(nextCheck, 0).Format(time.RFC3339),
	)

	if err := h.transport.Broadcast(ctx, protocol.SubjectBounty, request); err != nil {
		logger.WithError(err).Warn("failed to broadcast bounty")
	}
	return nil
}

// HandleTask signs and broadcasts the future transaction of a due password
// transaction task.
func (h *PasswordTransactionHandler) HandleTask(ctx context.Context, task domain.Task) error {
	pwtxid := Pwtxid(task.Payload)
	logger := log.WithFields(log.Fields{"pwtxid": pwtxid, "task_id": task.Id})

	locked, err := h.repoManager.LockedTransactions().Get(ctx, pwtxid)
	if err != nil {
		return err
	}
	if locked == nil {
		return fmt.Errorf("%w: %s", ErrOrphanTask, pwtxid)
	}
	if locked.Done {
		logger.Debug("password transaction already done")
		return h.repoManager.Tasks().MarkDone(ctx, task.Id)
	}

	req, err := decodePasswordTransaction(task.Payload)
	if err != nil {
		return err
	}
	tx, err := buildFutureTransaction(req, h.params)
	if err != nil {
		return err
	}
	hash, err := futureHash(tx, h.params)
	if err != nil {
		return err
	}

	pushed, err := h.repoManager.Tasks().FindByFilter(ctx, domain.PushFilter(hash))
	if err != nil {
		return err
	}
	if len(pushed) > 0 {
		logger.Info(ErrAlreadyPushed)
		return h.markDone(ctx, pwtxid, task.Id)
	}

	if err := checkInputUsage(ctx, h.repoManager.Ledger(), tx, h.params); err != nil {
		return err
	}

	if _, err := h.bitcoin.AddMultisigAddress(ctx, req.ReqSigs, req.PubkeyJSON); err != nil {
		return fmt.Errorf("failed to import multisig: %w", err)
	}
	txHex, err := serializeTx(tx)
	if err != nil {
		return err
	}
	signedTx, err := h.bitcoin.SignTransaction(ctx, txHex, req.Prevtx)
	if err != nil {
		return fmt.Errorf("failed to sign future transaction: %w", err)
	}
	decodedTx, err := deserializeTx(signedTx)
	if err != nil {
		return err
	}
	sigs := countSignatures(decodedTx, req.Prevtx, req.PubkeyJSON)
	if err := raiseSignatureCount(ctx, h.repoManager.Ledger(), unsignedTxid(tx), sigs); err != nil {
		return err
	}

	prevtx, err := json.Marshal(req.Prevtx)
	if err != nil {
		return err
	}
	if err := h.repoManager.Ledger().AddSignedTransaction(ctx, domain.SignedTransaction{
		HexTransaction: signedTx,
		Prevtx:         string(prevtx),
	}); err != nil {
		return err
	}

	body, err := protocol.Encode(&protocol.ConditionedTransactionRequest{
		Transactions: []protocol.PartialTransaction{{RawTransaction: signedTx, Prevtx: req.Prevtx}},
		Locktime:     req.Locktime,
		Condition:    conditionTrue,
		PubkeyJSON:   req.PubkeyJSON,
		ReqSigs:      req.ReqSigs,
		Pwtxid:       pwtxid,
	})
	if err != nil {
		return err
	}

	// A failed broadcast is retried by the marker task.
	if _, err := h.repoManager.Tasks().Enqueue(ctx, domain.Task{
		Operation:   protocol.ConditionedTransactionOperationName,
		Payload:     body,
		FilterField: domain.PushFilter(hash),
		NextCheck:   time.Now().Add(h.rebroadcastInterval).Unix(),
	}); err != nil {
		return fmt.Errorf("failed to schedule rebroadcast: %w", err)
	}

	if err := h.transport.Broadcast(ctx, protocol.SubjectConditionedTransaction, body); err != nil {
		logger.WithError(err).Warn("failed to broadcast signed transaction, retrying later")
	}

	if sigs >= req.ReqSigs {
		if err := broadcastFinalSign(ctx, h.transport, pwtxid, signedTx); err != nil {
			logger.WithError(err).Warn("failed to broadcast final signature")
		}
	}

	logger.Infof("future transaction %s signed, %d of %d signatures", unsignedTxid(tx), sigs, req.ReqSigs)
	return h.markDone(ctx, pwtxid, task.Id)
}

func (h *PasswordTransactionHandler) markDone(ctx context.Context, pwtxid string, taskId int64) error {
	if err := h.repoManager.LockedTransactions().MarkDone(ctx, pwtxid); err != nil {
		return err
	}
	return h.repoManager.Tasks().MarkDone(ctx, taskId)
}

func (h *PasswordTransactionHandler) isFeeSufficient(
	ctx context.Context, fees map[string]int64,
) (bool, error) {
	for _, addr := range sortedAddresses(fees) {
		ok, err := h.bitcoin.IsFeeSufficient(ctx, addr, fees[addr])
		if err != nil {
			return false, fmt.Errorf("failed to check fee for %s: %w", addr, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// turn is the rank of the first fee address owned by this oracle.
func (h *PasswordTransactionHandler) turn(
	ctx context.Context, fees map[string]int64,
) (int, error) {
	for i, addr := range sortedAddresses(fees) {
		mine, err := h.bitcoin.IsAddressMine(ctx, addr)
		if err != nil {
			return 0, fmt.Errorf("failed to check address %s: %w", addr, err)
		}
		if mine {
			return i, nil
		}
	}
	return 0, nil
}

// escrowPublicKey issues the escrow key for pwtxid, or returns the one issued
// by a previous attempt that did not get to lock the transaction.
func (h *PasswordTransactionHandler) escrowPublicKey(
	ctx context.Context, pwtxid string,
) (string, error) {
	pubkey, err := h.escrow.IssueAndSave(ctx, pwtxid)
	if err == nil {
		return pubkey, nil
	}
	if !errors.Is(err, ErrDuplicateRequest) {
		return "", err
	}
	return h.escrow.PublicKey(ctx, pwtxid)
}

// checkInputUsage binds the inputs of tx to its outputs, failing if they were
// already bound to different ones.
func checkInputUsage(
	ctx context.Context, ledger domain.LedgerRepository, tx *wire.MsgTx, params *chaincfg.Params,
) error {
	inputHash, err := inputsHash(tx)
	if err != nil {
		return err
	}
	outputs, err := outputsKey(tx, params)
	if err != nil {
		return err
	}

	inserted, err := ledger.RecordInputUsage(ctx, inputHash, outputs)
	if err != nil {
		return err
	}
	if inserted {
		return nil
	}

	usage, err := ledger.LookupInputUsage(ctx, inputHash)
	if err != nil {
		return err
	}
	if usage != nil && usage.Outputs != outputs {
		return fmt.Errorf("%w: %s", ErrConflictingSpend, inputHash)
	}
	return nil
}

func raiseSignatureCount(
	ctx context.Context, ledger domain.LedgerRepository, txid string, sigs int,
) error {
	maxSigs, err := ledger.GetSignatureCount(ctx, txid)
	if err != nil {
		return err
	}
	if sigs <= maxSigs {
		return nil
	}
	return ledger.SetSignatureCount(ctx, txid, sigs)
}

func decodePasswordTransaction(body []byte) (*protocol.PasswordTransactionRequest, error) {
	req, err := protocol.Decode(body)
	if err != nil {
		return nil, err
	}
	pwReq, ok := req.(*protocol.PasswordTransactionRequest)
	if !ok {
		return nil, fmt.Errorf(
			"%w: expected %s, got %s",
			ErrMalformedRequest, protocol.OperationPasswordTransaction, req.Operation(),
		)
	}
	return pwReq, nil
}

func sortedAddresses(fees map[string]int64) []string {
	addresses := make([]string, 0, len(fees))
	for addr := range fees {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)
	return addresses
}
