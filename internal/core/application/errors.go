package application

import (
	"errors"

	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
)

var (
	ErrMalformedRequest = protocol.ErrMalformedRequest
	ErrInsufficientFee  = errors.New("no sufficient fee for this oracle")
	ErrDuplicateRequest = errors.New("escrow key already issued")
	ErrAlreadyLocked    = errors.New("password transaction already locked")
	ErrAlreadyPushed    = errors.New("future transaction already pushed")
	ErrConflictingSpend = errors.New("inputs already signed for different outputs")
	ErrOrphanTask       = errors.New("task does not apply to any locked transaction")

	ErrUnexpectedTransaction = errors.New("transaction differs from the locked future transaction")
)
