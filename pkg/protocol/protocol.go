// Package protocol defines the message vocabulary shared by oracle nodes and
// their clients: the envelope, the operation names with their required body
// fields, the broadcast subjects and the protocol version.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const Version = "0.1"

var ErrMalformedRequest = errors.New("malformed request")

type Operation string

const (
	OperationPing                   Operation = "PingRequest"
	OperationTransaction            Operation = "TransactionRequest"
	OperationPasswordTransaction    Operation = "PasswordTransactionRequest"
	OperationConditionedTransaction Operation = "ConditionedTransactionRequest"
)

// Wire names used in the "operation" field of a request body.
const (
	PingOperationName                   = "ping"
	TransactionOperationName            = "transaction"
	PasswordTransactionOperationName    = "password_transaction"
	ConditionedTransactionOperationName = "conditioned_transaction"
)

// Broadcast subjects, fixed per operation family so that receivers can filter
// by prefix without parsing the body.
const (
	SubjectPing                   = "PingResponse"
	SubjectIdentity               = "IdentityBroadcast"
	SubjectRequest                = "OracleRequest"
	SubjectBounty                 = "New bounty available!"
	SubjectConditionedTransaction = "conditioned_transaction"
	SubjectFinalSign              = "final-sign"
)

var validOperations = map[string]Operation{
	PingOperationName:                   OperationPing,
	TransactionOperationName:            OperationTransaction,
	PasswordTransactionOperationName:    OperationPasswordTransaction,
	ConditionedTransactionOperationName: OperationConditionedTransaction,
}

var operationRequiredFields = map[Operation][]string{
	OperationPing:        {},
	OperationTransaction: {"raw_transaction", "check_time", "condition"},
	OperationPasswordTransaction: {
		"sum_amount", "oracle_fees", "miners_fee", "locktime",
		"prevtx", "return_address", "req_sigs", "pubkey_json",
	},
	OperationConditionedTransaction: {
		"transactions", "locktime", "condition", "pubkey_json", "req_sigs",
	},
}

// ParseOperation maps a wire operation name to its Operation.
func ParseOperation(name string) (Operation, error) {
	op, ok := validOperations[strings.TrimSpace(name)]
	if !ok {
		return "", fmt.Errorf("%w: unknown operation %q", ErrMalformedRequest, name)
	}
	return op, nil
}

// WireName returns the name used in the "operation" field for op.
func (op Operation) WireName() string {
	for name, o := range validOperations {
		if o == op {
			return name
		}
	}
	return ""
}

// RequiredFields returns the body fields that must be present for op.
func RequiredFields(op Operation) []string {
	fields := operationRequiredFields[op]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// ValidateRequired checks that every required field of op is present in the
// JSON object body.
func ValidateRequired(op Operation, body []byte) error {
	fields, ok := operationRequiredFields[op]
	if !ok {
		return fmt.Errorf("%w: unknown operation %q", ErrMalformedRequest, op)
	}
	obj, err := decodeObject(body)
	if err != nil {
		return err
	}
	for _, field := range fields {
		if _, ok := obj[field]; !ok {
			return fmt.Errorf("%w: missing field %q for %s", ErrMalformedRequest, field, op)
		}
	}
	return nil
}

// HasSubjectPrefix reports whether subject belongs to the family identified by
// prefix.
func HasSubjectPrefix(subject, prefix string) bool {
	return strings.HasPrefix(subject, prefix)
}

type statusMessage struct {
	Response string `json:"response"`
	Version  string `json:"version"`
}

// PingMessage is the body of a PingResponse.
func PingMessage() []byte {
	// nolint:all
	buf, _ := json.Marshal(statusMessage{Response: "active", Version: Version})
	return buf
}

// IdentityMessage is the body of an IdentityBroadcast.
func IdentityMessage() []byte {
	// nolint:all
	buf, _ := json.Marshal(statusMessage{Response: "active", Version: Version})
	return buf
}

// RemoteVersion extracts the protocol version from a ping or identity body.
func RemoteVersion(body []byte) (string, error) {
	var msg statusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedRequest, err)
	}
	return msg.Version, nil
}

// CompatibleVersion reports whether remote matches the local protocol
// version. Mismatches are meant to be logged, not rejected.
func CompatibleVersion(remote string) bool {
	return remote == Version
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedRequest, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: body is not a json object", ErrMalformedRequest)
	}
	return obj, nil
}
