package bitcoind

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
)

type Config struct {
	Host    string
	User    string
	Pass    string
	Network *chaincfg.Params
	// MinFee is the lowest fee, in satoshis, this oracle accepts per request.
	MinFee int64
}

func (c Config) String() string {
	network := ""
	if c.Network != nil {
		network = c.Network.Name
	}
	return fmt.Sprintf(
		"host: %s, user: %s, pass: %s, network: %s, min fee: %d",
		c.Host, c.User, maskSecret(c.Pass), network, c.MinFee,
	)
}

type service struct {
	client *rpcclient.Client
	params *chaincfg.Params
	minFee int64
}

func NewService(cfg Config) (ports.BitcoinService, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("missing bitcoind rpc host")
	}
	params := cfg.Network
	if params == nil {
		params = &chaincfg.MainNetParams
	}

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		Params:       params.Name,
		DisableTLS:   true,
		HTTPPostMode: true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bitcoind rpc client: %w", err)
	}

	return &service{client, params, cfg.MinFee}, nil
}

type addressInfo struct {
	Address string `json:"address"`
	IsMine  bool   `json:"ismine"`
	PubKey  string `json:"pubkey"`
}

func (s *service) IsAddressMine(ctx context.Context, address string) (bool, error) {
	info, err := s.getAddressInfo(address)
	if err != nil {
		return false, err
	}
	return info.IsMine, nil
}

func (s *service) IsFeeSufficient(ctx context.Context, address string, fee int64) (bool, error) {
	if fee < s.minFee {
		return false, nil
	}
	return s.IsAddressMine(ctx, address)
}

func (s *service) AddMultisigAddress(
	ctx context.Context, reqSigs int, pubkeys []string,
) (string, error) {
	keys, err := s.parsePubKeys(pubkeys)
	if err != nil {
		return "", err
	}
	addr, err := s.client.AddMultisigAddress(reqSigs, keys, "")
	if err != nil {
		return "", fmt.Errorf("failed to add multisig address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

func (s *service) CreateMultisig(
	ctx context.Context, reqSigs int, pubkeys []string,
) (*ports.Multisig, error) {
	keys, err := s.parsePubKeys(pubkeys)
	if err != nil {
		return nil, err
	}
	res, err := s.client.CreateMultisig(reqSigs, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to create multisig: %w", err)
	}
	return &ports.Multisig{
		Address:      res.Address,
		RedeemScript: res.RedeemScript,
	}, nil
}

func (s *service) GetNewPubKey(ctx context.Context) (string, error) {
	addr, err := s.client.GetNewAddress("")
	if err != nil {
		return "", fmt.Errorf("failed to get new address: %w", err)
	}
	info, err := s.getAddressInfo(addr.EncodeAddress())
	if err != nil {
		return "", err
	}
	if info.PubKey == "" {
		return "", fmt.Errorf("no public key known for address %s", addr.EncodeAddress())
	}
	return info.PubKey, nil
}

func (s *service) SignTransaction(
	ctx context.Context, txHex string, prevtxs []protocol.PrevTx,
) (string, error) {
	buf, err := hex.DecodeString(txHex)
	if err != nil {
		return "", fmt.Errorf("invalid tx hex: %w", err)
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(buf)); err != nil {
		return "", fmt.Errorf("failed to parse tx: %w", err)
	}

	inputs := make([]btcjson.RawTxWitnessInput, 0, len(prevtxs))
	for _, prev := range prevtxs {
		input := btcjson.RawTxWitnessInput{
			Txid:         prev.Txid,
			Vout:         prev.Vout,
			ScriptPubKey: prev.ScriptPubKey,
		}
		if prev.RedeemScript != "" {
			redeemScript := prev.RedeemScript
			input.RedeemScript = &redeemScript
		}
		if prev.Amount > 0 {
			amount := btcutil.Amount(prev.Amount).ToBTC()
			input.Amount = &amount
		}
		inputs = append(inputs, input)
	}

	signedTx, _, err := s.client.SignRawTransactionWithWallet2(&tx, inputs)
	if err != nil {
		return "", fmt.Errorf("failed to sign tx: %w", err)
	}

	var out bytes.Buffer
	if err := signedTx.Serialize(&out); err != nil {
		return "", err
	}
	return hex.EncodeToString(out.Bytes()), nil
}

func (s *service) Close() {
	s.client.Shutdown()
}

func (s *service) getAddressInfo(address string) (*addressInfo, error) {
	param, err := json.Marshal(address)
	if err != nil {
		return nil, err
	}
	res, err := s.client.RawRequest("getaddressinfo", []json.RawMessage{param})
	if err != nil {
		return nil, fmt.Errorf("failed to get address info for %s: %w", address, err)
	}
	var info addressInfo
	if err := json.Unmarshal(res, &info); err != nil {
		return nil, fmt.Errorf("failed to parse address info: %w", err)
	}
	return &info, nil
}

func (s *service) parsePubKeys(pubkeys []string) ([]btcutil.Address, error) {
	addrs := make([]btcutil.Address, 0, len(pubkeys))
	for _, pubkey := range pubkeys {
		buf, err := hex.DecodeString(pubkey)
		if err != nil {
			return nil, fmt.Errorf("invalid pubkey %s: %w", pubkey, err)
		}
		if _, err := btcec.ParsePubKey(buf); err != nil {
			return nil, fmt.Errorf("invalid pubkey %s: %w", pubkey, err)
		}
		addr, err := btcutil.NewAddressPubKey(buf, s.params)
		if err != nil {
			return nil, fmt.Errorf("invalid pubkey %s: %w", pubkey, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
