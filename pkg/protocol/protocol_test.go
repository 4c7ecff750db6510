package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func TestParseOperation(t *testing.T) {
	tests := []struct {
		name     string
		expected protocol.Operation
	}{
		{"ping", protocol.OperationPing},
		{"transaction", protocol.OperationTransaction},
		{"password_transaction", protocol.OperationPasswordTransaction},
		{"conditioned_transaction", protocol.OperationConditionedTransaction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := protocol.ParseOperation(tt.name)
			require.NoError(t, err)
			require.Equal(t, tt.expected, op)
			require.Equal(t, tt.name, op.WireName())
		})
	}

	_, err := protocol.ParseOperation("timelock_create")
	require.ErrorIs(t, err, protocol.ErrMalformedRequest)
}

func TestValidateRequired(t *testing.T) {
	t.Run("ping has no required fields", func(t *testing.T) {
		require.NoError(t, protocol.ValidateRequired(protocol.OperationPing, []byte(`{}`)))
	})

	t.Run("transaction", func(t *testing.T) {
		body := []byte(`{"raw_transaction":"00","check_time":10,"condition":"True"}`)
		require.NoError(t, protocol.ValidateRequired(protocol.OperationTransaction, body))

		body = []byte(`{"raw_transaction":"00","condition":"True"}`)
		err := protocol.ValidateRequired(protocol.OperationTransaction, body)
		require.ErrorIs(t, err, protocol.ErrMalformedRequest)
		require.Contains(t, err.Error(), "check_time")
	})

	t.Run("invalid json", func(t *testing.T) {
		err := protocol.ValidateRequired(protocol.OperationTransaction, []byte(`not json`))
		require.ErrorIs(t, err, protocol.ErrMalformedRequest)
	})

	t.Run("required fields are copied", func(t *testing.T) {
		fields := protocol.RequiredFields(protocol.OperationTransaction)
		fields[0] = "changed"
		require.Equal(t, "raw_transaction", protocol.RequiredFields(protocol.OperationTransaction)[0])
	})
}

func TestDecode(t *testing.T) {
	t.Run("password transaction", func(t *testing.T) {
		body := []byte(`{
			"operation": "password_transaction",
			"sum_amount": 100000,
			"oracle_fees": {"addr1": 2000, "addr2": 3000},
			"miners_fee": 16384,
			"locktime": 1700000000,
			"prevtx": [{"txid": "aa", "vout": 1}],
			"return_address": "ret",
			"req_sigs": 2,
			"pubkey_json": ["02aa", "03bb"]
		}`)
		req, err := protocol.Decode(body)
		require.NoError(t, err)
		pwReq, ok := req.(*protocol.PasswordTransactionRequest)
		require.True(t, ok)
		require.Equal(t, int64(100000), pwReq.SumAmount)
		require.Equal(t, int64(100000-16384-5000), pwReq.FinalAmount())
		require.Equal(t, int64(100000-5000), pwReq.ReturnAmount())
		require.Len(t, pwReq.Prevtx, 1)
		require.Equal(t, uint32(1), pwReq.Prevtx[0].Vout)
	})

	t.Run("missing field", func(t *testing.T) {
		body := []byte(`{"operation": "password_transaction", "sum_amount": 1}`)
		_, err := protocol.Decode(body)
		require.ErrorIs(t, err, protocol.ErrMalformedRequest)
	})

	t.Run("missing operation", func(t *testing.T) {
		_, err := protocol.Decode([]byte(`{"sum_amount": 1}`))
		require.ErrorIs(t, err, protocol.ErrMalformedRequest)
	})

	t.Run("wrong field type", func(t *testing.T) {
		body := []byte(`{"operation":"transaction","raw_transaction":1,"check_time":1,"condition":"True"}`)
		_, err := protocol.Decode(body)
		require.ErrorIs(t, err, protocol.ErrMalformedRequest)
	})

	t.Run("ping", func(t *testing.T) {
		req, err := protocol.Decode([]byte(`{"operation":"ping"}`))
		require.NoError(t, err)
		require.Equal(t, protocol.OperationPing, req.Operation())
	})
}

func TestEncode(t *testing.T) {
	req := &protocol.ConditionedTransactionRequest{
		Transactions: []protocol.PartialTransaction{{RawTransaction: "0100", Prevtx: []protocol.PrevTx{{Txid: "aa"}}}},
		Locktime:     10,
		Condition:    "True",
		PubkeyJSON:   []string{"02aa"},
		ReqSigs:      1,
	}
	body, err := protocol.Encode(req)
	require.NoError(t, err)

	var obj map[string]any
	require.NoError(t, json.Unmarshal(body, &obj))
	require.Equal(t, "conditioned_transaction", obj["operation"])

	decoded, err := protocol.Decode(body)
	require.NoError(t, err)
	require.Equal(t, req, decoded)
}

func TestWithField(t *testing.T) {
	body := []byte(`{"a":1,"nested":{"b":2}}`)
	enriched, err := protocol.WithField(body, "rsa_pubkey", `{"n":"1","e":65537}`)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1,"nested":{"b":2},"rsa_pubkey":"{\"n\":\"1\",\"e\":65537}"}`, string(enriched))
}

func TestVersion(t *testing.T) {
	remote, err := protocol.RemoteVersion(protocol.PingMessage())
	require.NoError(t, err)
	require.True(t, protocol.CompatibleVersion(remote))
	require.False(t, protocol.CompatibleVersion("0.2"))

	require.True(t, protocol.HasSubjectPrefix("final-sign:abc", protocol.SubjectFinalSign))
	require.False(t, protocol.HasSubjectPrefix("ping", protocol.SubjectFinalSign))
}

func TestEnvelope(t *testing.T) {
	env := protocol.NewEnvelope("pubkey", []byte(`{"operation":"ping"}`))
	require.NoError(t, env.Validate())
	require.Equal(t, protocol.UnsignedSignature, env.Signature)
	require.NotZero(t, env.Epoch)

	env.Source = ""
	require.ErrorIs(t, env.Validate(), protocol.ErrMalformedRequest)
}
