package application

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// MinersFee is the fee, in satoshis, reserved to the miners by every bounty.
const MinersFee = 4 * 4096

type CharterSummary struct {
	Charter     *domain.Charter
	Nodes       int
	MinSigs     int
	FeesSatoshi int64
}

type MultisigInfo struct {
	ClientPubKey string
	Address      string
	RedeemScript string
	MinSigs      int
	// MinAmount is the least the multisig has to be funded with to cover
	// oracles and miners.
	MinAmount int64
}

// ClientService is used by bounty creators to talk to the oracle
// federation.
type ClientService struct {
	charterSvc   ports.CharterService
	bitcoinSvc   ports.BitcoinService
	explorerSvc  ports.ExplorerService
	transportSvc ports.TransportService
	params       *chaincfg.Params
}

func NewClientService(
	charterSvc ports.CharterService,
	bitcoinSvc ports.BitcoinService,
	explorerSvc ports.ExplorerService,
	transportSvc ports.TransportService,
	params *chaincfg.Params,
) *ClientService {
	return &ClientService{charterSvc, bitcoinSvc, explorerSvc, transportSvc, params}
}

func (c *ClientService) Charter(ctx context.Context) (*CharterSummary, error) {
	charter, err := c.charterSvc.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	fees, err := charter.FeesSatoshi()
	if err != nil {
		return nil, err
	}
	return &CharterSummary{
		Charter:     charter,
		Nodes:       len(charter.Nodes),
		MinSigs:     charter.MinSigs(),
		FeesSatoshi: fees,
	}, nil
}

// CreateMultisig creates the address to fund with the bounty, spendable by a
// quorum of oracles and a fresh client key.
func (c *ClientService) CreateMultisig(ctx context.Context) (*MultisigInfo, error) {
	summary, err := c.Charter(ctx)
	if err != nil {
		return nil, err
	}
	clientPubKey, err := c.bitcoinSvc.GetNewPubKey(ctx)
	if err != nil {
		return nil, err
	}

	pubkeys := append([]string{clientPubKey}, summary.Charter.PubKeys()...)
	multisig, err := c.bitcoinSvc.CreateMultisig(ctx, summary.MinSigs, pubkeys)
	if err != nil {
		return nil, err
	}

	return &MultisigInfo{
		ClientPubKey: clientPubKey,
		Address:      multisig.Address,
		RedeemScript: multisig.RedeemScript,
		MinSigs:      summary.MinSigs,
		MinAmount:    summary.FeesSatoshi + MinersFee,
	}, nil
}

// RequestBounty broadcasts the password transaction spending every utxo of
// the multisig created for clientPubKey.
func (c *ClientService) RequestBounty(
	ctx context.Context, clientPubKey string, locktime int64, returnAddress string,
) (*protocol.PasswordTransactionRequest, error) {
	if _, err := btcutil.DecodeAddress(returnAddress, c.params); err != nil {
		return nil, fmt.Errorf("invalid return address: %w", err)
	}

	summary, err := c.Charter(ctx)
	if err != nil {
		return nil, err
	}
	fees, err := summary.Charter.OracleFees()
	if err != nil {
		return nil, err
	}

	pubkeys := append([]string{clientPubKey}, summary.Charter.PubKeys()...)
	multisig, err := c.bitcoinSvc.CreateMultisig(ctx, summary.MinSigs, pubkeys)
	if err != nil {
		return nil, err
	}
	scriptPubKey, err := c.scriptPubKey(multisig.Address)
	if err != nil {
		return nil, err
	}

	utxos, err := c.explorerSvc.GetUtxos(ctx, multisig.Address)
	if err != nil {
		return nil, err
	}
	if len(utxos) <= 0 {
		return nil, fmt.Errorf("no funds found for multisig %s", multisig.Address)
	}

	var funds int64
	prevtx := make([]protocol.PrevTx, 0, len(utxos))
	for _, utxo := range utxos {
		funds += utxo.Amount
		prevtx = append(prevtx, protocol.PrevTx{
			Txid:         utxo.Txid,
			Vout:         utxo.Vout,
			ScriptPubKey: scriptPubKey,
			RedeemScript: multisig.RedeemScript,
			Amount:       utxo.Amount,
		})
	}

	req := &protocol.PasswordTransactionRequest{
		MessageId:     fmt.Sprintf("%s-%s", multisig.Address, uuid.New().String()),
		SumAmount:     funds - MinersFee,
		OracleFees:    fees,
		MinersFee:     MinersFee,
		Locktime:      locktime,
		Prevtx:        prevtx,
		ReturnAddress: returnAddress,
		ReqSigs:       summary.MinSigs,
		PubkeyJSON:    pubkeys,
	}
	if req.ReturnAmount() <= 0 {
		return nil, fmt.Errorf(
			"multisig funds %d don't cover fees, more than %d required",
			funds, summary.FeesSatoshi+MinersFee,
		)
	}

	body, err := protocol.Encode(req)
	if err != nil {
		return nil, err
	}
	if err := c.transportSvc.Broadcast(ctx, protocol.SubjectRequest, body); err != nil {
		return nil, fmt.Errorf("failed to broadcast bounty request: %w", err)
	}
	return req, nil
}

// WaitFinalSignatures calls fn for every transaction announced as fully
// signed until ctx is done.
func (c *ClientService) WaitFinalSignatures(
	ctx context.Context, fn func(protocol.FinalSignMessage),
) error {
	messages, err := c.transportSvc.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("transport subscription closed")
			}
			if !protocol.HasSubjectPrefix(msg.Subject, protocol.SubjectFinalSign) {
				continue
			}
			var final protocol.FinalSignMessage
			if err := json.Unmarshal([]byte(msg.Body), &final); err != nil {
				log.WithError(err).Debug("dropped malformed final signature")
				continue
			}
			fn(final)
		}
	}
}

// Ping asks every oracle for its status and calls fn with each response
// received until ctx is done.
func (c *ClientService) Ping(ctx context.Context, fn func(source, version string)) error {
	messages, err := c.transportSvc.Subscribe(ctx)
	if err != nil {
		return err
	}

	body, err := protocol.Encode(&protocol.PingRequest{})
	if err != nil {
		return err
	}
	if err := c.transportSvc.Broadcast(ctx, protocol.SubjectRequest, body); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if msg.Subject != protocol.SubjectPing {
				continue
			}
			version, err := protocol.RemoteVersion([]byte(msg.Body))
			if err != nil {
				log.WithError(err).Debug("dropped malformed ping response")
				continue
			}
			fn(msg.Source, version)
		}
	}
}

func (c *ClientService) scriptPubKey(address string) (string, error) {
	addr, err := btcutil.DecodeAddress(address, c.params)
	if err != nil {
		return "", fmt.Errorf("invalid multisig address: %w", err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(script), nil
}
