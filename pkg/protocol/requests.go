package protocol

import (
	"encoding/json"
	"fmt"
)

// Request is one of the closed set of decoded request bodies.
type Request interface {
	Operation() Operation
}

type PingRequest struct{}

func (PingRequest) Operation() Operation { return OperationPing }

type TransactionRequest struct {
	RawTransaction string `json:"raw_transaction"`
	CheckTime      int64  `json:"check_time"`
	Condition      string `json:"condition"`
}

func (TransactionRequest) Operation() Operation { return OperationTransaction }

// PrevTx describes a previous output spent by a multisig transaction.
type PrevTx struct {
	Txid         string `json:"txid"`
	Vout         uint32 `json:"vout"`
	ScriptPubKey string `json:"scriptPubKey,omitempty"`
	RedeemScript string `json:"redeemScript,omitempty"`
	Amount       int64  `json:"amount,omitempty"`
}

// PasswordTransactionRequest is a bounty/timelock claim. Amounts are in
// satoshis and OracleFees maps a fee address to its fee.
type PasswordTransactionRequest struct {
	MessageId     string           `json:"message_id,omitempty"`
	SumAmount     int64            `json:"sum_amount"`
	OracleFees    map[string]int64 `json:"oracle_fees"`
	MinersFee     int64            `json:"miners_fee"`
	Locktime      int64            `json:"locktime"`
	Prevtx        []PrevTx         `json:"prevtx"`
	ReturnAddress string           `json:"return_address"`
	ReqSigs       int              `json:"req_sigs"`
	PubkeyJSON    []string         `json:"pubkey_json"`
	RSAPubKey     string           `json:"rsa_pubkey,omitempty"`
}

func (PasswordTransactionRequest) Operation() Operation { return OperationPasswordTransaction }

// FinalAmount is what is left to the claimant once miners and oracles are
// paid.
func (r PasswordTransactionRequest) FinalAmount() int64 {
	amount := r.SumAmount - r.MinersFee
	for _, fee := range r.OracleFees {
		amount -= fee
	}
	return amount
}

// ReturnAmount is what the future transaction pays back to the return
// address. SumAmount is expected to already exclude the miners fee.
func (r PasswordTransactionRequest) ReturnAmount() int64 {
	amount := r.SumAmount
	for _, fee := range r.OracleFees {
		amount -= fee
	}
	return amount
}

type PartialTransaction struct {
	RawTransaction string   `json:"raw_transaction"`
	Prevtx         []PrevTx `json:"prevtx"`
}

type ConditionedTransactionRequest struct {
	Transactions []PartialTransaction `json:"transactions"`
	Locktime     int64                `json:"locktime"`
	Condition    string               `json:"condition"`
	PubkeyJSON   []string             `json:"pubkey_json"`
	ReqSigs      int                  `json:"req_sigs"`
	Pwtxid       string               `json:"pwtxid,omitempty"`
}

func (ConditionedTransactionRequest) Operation() Operation {
	return OperationConditionedTransaction
}

// FinalSignMessage announces a transaction that gathered the required
// signatures.
type FinalSignMessage struct {
	Pwtxid      string `json:"pwtxid"`
	Transaction string `json:"transaction"`
}

// Decode reads the operation of a request body, validates its required fields
// and decodes it into the matching variant.
func Decode(body []byte) (Request, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	rawOp, ok := obj["operation"]
	if !ok {
		return nil, fmt.Errorf("%w: missing field %q", ErrMalformedRequest, "operation")
	}
	var name string
	if err := json.Unmarshal(rawOp, &name); err != nil {
		return nil, fmt.Errorf("%w: invalid operation: %s", ErrMalformedRequest, err)
	}
	op, err := ParseOperation(name)
	if err != nil {
		return nil, err
	}
	if err := ValidateRequired(op, body); err != nil {
		return nil, err
	}

	var req Request
	switch op {
	case OperationPing:
		req = &PingRequest{}
	case OperationTransaction:
		req = &TransactionRequest{}
	case OperationPasswordTransaction:
		req = &PasswordTransactionRequest{}
	case OperationConditionedTransaction:
		req = &ConditionedTransactionRequest{}
	}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrMalformedRequest, op, err)
	}
	return req, nil
}

// Encode serializes req and stamps its wire operation name.
func Encode(req Request) ([]byte, error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return WithField(buf, "operation", req.Operation().WireName())
}

// WithField returns body with key set to value, preserving every other field
// of the original object.
func WithField(body []byte, key string, value any) ([]byte, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	obj[key] = encoded
	return json.Marshal(obj)
}
