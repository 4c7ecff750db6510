package application

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/stretchr/testify/require"
)

const testLocktime = int64(1700000000)

// federationFees returns the sorted fee addresses of a federation of n
// oracles, each asking for 1000 sats.
func federationFees(t *testing.T, n int) (map[string]int64, []string) {
	t.Helper()
	fees := make(map[string]int64, n)
	addresses := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		addr := testAddress(t, byte(i))
		fees[addr] = 1000
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)
	return fees, addresses
}

func newPasswordTxHandler(
	repoManager ports.RepoManager, bitcoin ports.BitcoinService, transport ports.TransportService,
) *PasswordTransactionHandler {
	escrow := NewEscrowKeyIssuer(repoManager.EscrowKeys(), WithEscrowKeySize(1024))
	return NewPasswordTransactionHandler(
		repoManager, bitcoin, transport, escrow, params, time.Minute,
	)
}

func pendingTask(t *testing.T, repoManager ports.RepoManager, filter string) domain.Task {
	t.Helper()
	tasks, err := repoManager.Tasks().FindByFilter(ctx, filter)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	return tasks[0]
}

func TestPasswordTransactionRequest(t *testing.T) {
	fees, addresses := federationFees(t, 5)
	returnAddress := testAddress(t, 42)

	t.Run("lock and schedule", func(t *testing.T) {
		repoManager := newRepoManager(t)
		transport := newFakeTransport()
		handler := newPasswordTxHandler(repoManager, newFakeBitcoin(addresses[0]), transport)

		body := newPasswordRequest(t, fees, returnAddress, testLocktime)
		pwtxid := Pwtxid(body)
		require.NoError(t, handler.HandleRequest(ctx, newMessage(protocol.SubjectRequest, body)))

		locked, err := repoManager.LockedTransactions().Get(ctx, pwtxid)
		require.NoError(t, err)
		require.NotNil(t, locked)
		require.False(t, locked.Done)

		var request map[string]any
		require.NoError(t, json.Unmarshal(locked.Request, &request))
		pubkey, ok := request["rsa_pubkey"].(string)
		require.True(t, ok)
		_, err = ParseEscrowPublicKey(pubkey)
		require.NoError(t, err)

		task := pendingTask(t, repoManager, domain.PwtxidFilter(pwtxid))
		require.Equal(t, protocol.PasswordTransactionOperationName, task.Operation)
		require.Equal(t, body, task.Payload)
		require.Equal(t, testLocktime+int64(SafetyTime.Seconds()), task.NextCheck)

		bounties := transport.bySubject(protocol.SubjectBounty)
		require.Len(t, bounties, 1)
		require.JSONEq(t, string(locked.Request), string(bounties[0].body))

		t.Run("replay", func(t *testing.T) {
			require.NoError(t, handler.HandleRequest(ctx, newMessage(protocol.SubjectRequest, body)))

			pendingTask(t, repoManager, domain.PwtxidFilter(pwtxid))
			require.Len(t, transport.bySubject(protocol.SubjectBounty), 1)

			replayed, err := repoManager.LockedTransactions().Get(ctx, pwtxid)
			require.NoError(t, err)
			require.Equal(t, locked.Request, replayed.Request)
		})
	})

	t.Run("turn", func(t *testing.T) {
		repoManager := newRepoManager(t)
		handler := newPasswordTxHandler(
			repoManager, newFakeBitcoin(addresses[2]), newFakeTransport(),
		)

		body := newPasswordRequest(t, fees, returnAddress, testLocktime)
		require.NoError(t, handler.HandleRequest(ctx, newMessage(protocol.SubjectRequest, body)))

		task := pendingTask(t, repoManager, domain.PwtxidFilter(Pwtxid(body)))
		expected := testLocktime + 2*int64(HeuristicAddTime.Seconds()) + int64(SafetyTime.Seconds())
		require.Equal(t, expected, task.NextCheck)
	})

	t.Run("insufficient fee", func(t *testing.T) {
		repoManager := newRepoManager(t)
		transport := newFakeTransport()
		bitcoin := newFakeBitcoin(addresses[1])
		bitcoin.minFee = 5000
		handler := newPasswordTxHandler(repoManager, bitcoin, transport)

		body := newPasswordRequest(t, fees, returnAddress, testLocktime)
		require.NoError(t, handler.HandleRequest(ctx, newMessage(protocol.SubjectRequest, body)))

		locked, err := repoManager.LockedTransactions().Get(ctx, Pwtxid(body))
		require.NoError(t, err)
		require.Nil(t, locked)
		tasks, err := repoManager.Tasks().GetAll(ctx)
		require.NoError(t, err)
		require.Empty(t, tasks)
		require.Empty(t, transport.bySubject(protocol.SubjectBounty))
	})

	t.Run("not a fee address", func(t *testing.T) {
		repoManager := newRepoManager(t)
		handler := newPasswordTxHandler(repoManager, newFakeBitcoin(), newFakeTransport())

		body := newPasswordRequest(t, fees, returnAddress, testLocktime)
		require.NoError(t, handler.HandleRequest(ctx, newMessage(protocol.SubjectRequest, body)))

		locked, err := repoManager.LockedTransactions().Get(ctx, Pwtxid(body))
		require.NoError(t, err)
		require.Nil(t, locked)
	})

	t.Run("malformed", func(t *testing.T) {
		handler := newPasswordTxHandler(
			newRepoManager(t), newFakeBitcoin(addresses[0]), newFakeTransport(),
		)

		body := []byte(`{"operation":"password_transaction","sum_amount":1}`)
		err := handler.HandleRequest(ctx, newMessage(protocol.SubjectRequest, body))
		require.ErrorIs(t, err, ErrMalformedRequest)

		body = newPasswordRequest(t, fees, returnAddress, testLocktime, func(req *protocol.PasswordTransactionRequest) {
			req.SumAmount = 1000
		})
		err = handler.HandleRequest(ctx, newMessage(protocol.SubjectRequest, body))
		require.ErrorIs(t, err, ErrMalformedRequest)

		body = []byte(`{"operation":"ping"}`)
		err = handler.HandleRequest(ctx, newMessage(protocol.SubjectRequest, body))
		require.ErrorIs(t, err, ErrMalformedRequest)
	})

	t.Run("unbuildable future transaction", func(t *testing.T) {
		tests := []struct {
			name string
			opt  func(*protocol.PasswordTransactionRequest)
		}{
			{"return address", func(req *protocol.PasswordTransactionRequest) {
				req.ReturnAddress = "not-an-address"
			}},
			{"prevtx txid", func(req *protocol.PasswordTransactionRequest) {
				req.Prevtx[0].Txid = "zz"
			}},
			{"negative fee", func(req *protocol.PasswordTransactionRequest) {
				req.OracleFees = map[string]int64{addresses[0]: 3000, addresses[1]: -2000}
			}},
			{"locktime", func(req *protocol.PasswordTransactionRequest) {
				req.Locktime = 1 << 33
			}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repoManager := newRepoManager(t)
				transport := newFakeTransport()
				handler := newPasswordTxHandler(repoManager, newFakeBitcoin(addresses[0]), transport)

				body := newPasswordRequest(t, fees, returnAddress, testLocktime, tt.opt)
				err := handler.HandleRequest(ctx, newMessage(protocol.SubjectRequest, body))
				require.ErrorIs(t, err, ErrMalformedRequest)

				locked, err := repoManager.LockedTransactions().Get(ctx, Pwtxid(body))
				require.NoError(t, err)
				require.Nil(t, locked)
				key, err := repoManager.EscrowKeys().Get(ctx, Pwtxid(body))
				require.NoError(t, err)
				require.Nil(t, key)
				tasks, err := repoManager.Tasks().GetAll(ctx)
				require.NoError(t, err)
				require.Empty(t, tasks)
				require.Empty(t, transport.sent)
			})
		}
	})

	t.Run("escrow key issued by a previous attempt", func(t *testing.T) {
		repoManager := newRepoManager(t)
		handler := newPasswordTxHandler(
			repoManager, newFakeBitcoin(addresses[0]), newFakeTransport(),
		)

		body := newPasswordRequest(t, fees, returnAddress, testLocktime)
		pwtxid := Pwtxid(body)
		pubkey, err := handler.escrow.IssueAndSave(ctx, pwtxid)
		require.NoError(t, err)

		require.NoError(t, handler.HandleRequest(ctx, newMessage(protocol.SubjectRequest, body)))

		locked, err := repoManager.LockedTransactions().Get(ctx, pwtxid)
		require.NoError(t, err)
		require.NotNil(t, locked)

		var request protocol.PasswordTransactionRequest
		require.NoError(t, json.Unmarshal(locked.Request, &request))
		require.Equal(t, pubkey, request.RSAPubKey)
	})
}

func TestPasswordTransactionTask(t *testing.T) {
	fees, addresses := federationFees(t, 3)
	returnAddress := testAddress(t, 42)

	lock := func(
		t *testing.T, handler *PasswordTransactionHandler, repoManager ports.RepoManager,
		opts ...func(*protocol.PasswordTransactionRequest),
	) (string, domain.Task) {
		body := newPasswordRequest(t, fees, returnAddress, testLocktime, opts...)
		pwtxid := Pwtxid(body)
		require.NoError(t, handler.HandleRequest(ctx, newMessage(protocol.SubjectRequest, body)))
		return pwtxid, pendingTask(t, repoManager, domain.PwtxidFilter(pwtxid))
	}

	futureTx := func(t *testing.T, task domain.Task) (string, string) {
		req, err := decodePasswordTransaction(task.Payload)
		require.NoError(t, err)
		tx, err := buildFutureTransaction(req, params)
		require.NoError(t, err)
		hash, err := futureHash(tx, params)
		require.NoError(t, err)
		return hash, unsignedTxid(tx)
	}

	t.Run("sign and broadcast", func(t *testing.T) {
		repoManager := newRepoManager(t)
		bitcoin := newFakeBitcoin(addresses[0])
		transport := newFakeTransport()
		handler := newPasswordTxHandler(repoManager, bitcoin, transport)

		pwtxid, task := lock(t, handler, repoManager)
		require.NoError(t, handler.HandleTask(ctx, task))
		require.Equal(t, 1, bitcoin.signed())

		locked, err := repoManager.LockedTransactions().Get(ctx, pwtxid)
		require.NoError(t, err)
		require.True(t, locked.Done)

		pending, err := repoManager.Tasks().FindByFilter(ctx, domain.PwtxidFilter(pwtxid))
		require.NoError(t, err)
		require.Empty(t, pending)

		broadcasts := transport.bySubject(protocol.SubjectConditionedTransaction)
		require.Len(t, broadcasts, 1)
		condReq, err := decodeConditionedTransaction(broadcasts[0].body)
		require.NoError(t, err)
		require.Equal(t, pwtxid, condReq.Pwtxid)
		require.Equal(t, conditionTrue, condReq.Condition)
		require.Equal(t, testLocktime, condReq.Locktime)
		require.Equal(t, 2, condReq.ReqSigs)
		require.Len(t, condReq.Transactions, 1)

		signedTx, err := deserializeTx(condReq.Transactions[0].RawTransaction)
		require.NoError(t, err)
		require.Equal(t, 1, countSignatures(signedTx, condReq.Transactions[0].Prevtx, condReq.PubkeyJSON))

		hash, txid := futureTx(t, task)
		require.Equal(t, txid, unsignedTxid(signedTx))

		marker := pendingTask(t, repoManager, domain.PushFilter(hash))
		require.Equal(t, protocol.ConditionedTransactionOperationName, marker.Operation)
		require.Equal(t, broadcasts[0].body, marker.Payload)
		require.Greater(t, marker.NextCheck, time.Now().Unix())

		sigs, err := repoManager.Ledger().GetSignatureCount(ctx, txid)
		require.NoError(t, err)
		require.Equal(t, 1, sigs)

		signed, err := repoManager.Ledger().GetSignedTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, signed, 1)
		require.Equal(t, condReq.Transactions[0].RawTransaction, signed[0].HexTransaction)

		require.Empty(t, transport.bySubject(protocol.SubjectFinalSign))

		t.Run("replay", func(t *testing.T) {
			require.NoError(t, handler.HandleTask(ctx, task))
			require.Equal(t, 1, bitcoin.signed())
			require.Len(t, transport.bySubject(protocol.SubjectConditionedTransaction), 1)
		})
	})

	t.Run("restart before done", func(t *testing.T) {
		repoManager := newFlakyRepoManager(newRepoManager(t))
		bitcoin := newFakeBitcoin(addresses[0])
		transport := newFakeTransport()
		handler := newPasswordTxHandler(repoManager, bitcoin, transport)

		pwtxid, task := lock(t, handler, repoManager)
		require.Error(t, handler.HandleTask(ctx, task))
		require.Equal(t, 1, bitcoin.signed())

		task = pendingTask(t, repoManager, domain.PwtxidFilter(pwtxid))
		require.NoError(t, handler.HandleTask(ctx, task))
		require.Equal(t, 1, bitcoin.signed())
		require.Len(t, transport.bySubject(protocol.SubjectConditionedTransaction), 1)

		locked, err := repoManager.LockedTransactions().Get(ctx, pwtxid)
		require.NoError(t, err)
		require.True(t, locked.Done)

		pending, err := repoManager.Tasks().FindByFilter(ctx, domain.PwtxidFilter(pwtxid))
		require.NoError(t, err)
		require.Empty(t, pending)
	})

	t.Run("conflicting spend", func(t *testing.T) {
		repoManager := newRepoManager(t)
		bitcoin := newFakeBitcoin(addresses[0])
		transport := newFakeTransport()
		handler := newPasswordTxHandler(repoManager, bitcoin, transport)

		pwtxid, task := lock(t, handler, repoManager)

		req, err := decodePasswordTransaction(task.Payload)
		require.NoError(t, err)
		tx, err := buildFutureTransaction(req, params)
		require.NoError(t, err)
		inputHash, err := inputsHash(tx)
		require.NoError(t, err)
		_, err = repoManager.Ledger().RecordInputUsage(ctx, inputHash, `{"attacker":100000}`)
		require.NoError(t, err)

		err = handler.HandleTask(ctx, task)
		require.ErrorIs(t, err, ErrConflictingSpend)
		require.Zero(t, bitcoin.signed())
		require.Empty(t, transport.bySubject(protocol.SubjectConditionedTransaction))

		locked, err := repoManager.LockedTransactions().Get(ctx, pwtxid)
		require.NoError(t, err)
		require.False(t, locked.Done)
	})

	t.Run("same outputs already recorded", func(t *testing.T) {
		repoManager := newRepoManager(t)
		bitcoin := newFakeBitcoin(addresses[0])
		handler := newPasswordTxHandler(repoManager, bitcoin, newFakeTransport())

		_, task := lock(t, handler, repoManager)

		req, err := decodePasswordTransaction(task.Payload)
		require.NoError(t, err)
		tx, err := buildFutureTransaction(req, params)
		require.NoError(t, err)
		require.NoError(t, checkInputUsage(ctx, repoManager.Ledger(), tx, params))

		require.NoError(t, handler.HandleTask(ctx, task))
		require.Equal(t, 1, bitcoin.signed())
	})

	t.Run("orphan task", func(t *testing.T) {
		repoManager := newRepoManager(t)
		handler := newPasswordTxHandler(repoManager, newFakeBitcoin(addresses[0]), newFakeTransport())

		body := newPasswordRequest(t, fees, returnAddress, testLocktime)
		task, err := repoManager.Tasks().Enqueue(ctx, domain.Task{
			Operation:   protocol.PasswordTransactionOperationName,
			Payload:     body,
			FilterField: domain.PwtxidFilter(Pwtxid(body)),
			NextCheck:   testLocktime,
		})
		require.NoError(t, err)

		err = handler.HandleTask(ctx, *task)
		require.ErrorIs(t, err, ErrOrphanTask)
		pendingTask(t, repoManager, domain.PwtxidFilter(Pwtxid(body)))
	})

	t.Run("signing failure", func(t *testing.T) {
		repoManager := newRepoManager(t)
		bitcoin := newFakeBitcoin(addresses[0])
		bitcoin.signErr = ErrConflictingSpend
		transport := newFakeTransport()
		handler := newPasswordTxHandler(repoManager, bitcoin, transport)

		pwtxid, task := lock(t, handler, repoManager)
		require.Error(t, handler.HandleTask(ctx, task))
		require.Empty(t, transport.bySubject(protocol.SubjectConditionedTransaction))

		hash, _ := futureTx(t, task)
		pushed, err := repoManager.Tasks().FindByFilter(ctx, domain.PushFilter(hash))
		require.NoError(t, err)
		require.Empty(t, pushed)

		pendingTask(t, repoManager, domain.PwtxidFilter(pwtxid))
	})

	t.Run("single signature quorum", func(t *testing.T) {
		repoManager := newRepoManager(t)
		transport := newFakeTransport()
		handler := newPasswordTxHandler(repoManager, newFakeBitcoin(addresses[0]), transport)

		pwtxid, task := lock(t, handler, repoManager, func(req *protocol.PasswordTransactionRequest) {
			req.ReqSigs = 1
		})
		require.NoError(t, handler.HandleTask(ctx, task))

		finals := transport.bySubject(protocol.SubjectFinalSign)
		require.Len(t, finals, 1)
		var final protocol.FinalSignMessage
		require.NoError(t, json.Unmarshal(finals[0].body, &final))
		require.Equal(t, pwtxid, final.Pwtxid)
		require.NotEmpty(t, final.Transaction)
	})
}
