// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientNativeBalance defines that utxos could not cover target amount with fee.
	ErrInsufficientNativeBalance = errors.New("insufficient native balance")
	// ErrInsufficientRuneBalance defines that rune utxos could not cover transfer amount.
	ErrInsufficientRuneBalance = errors.New("insufficient rune balance")
	// ErrInvalidUTXOAmount defines that there are not enough utxos to satisfy required number.
	ErrInvalidUTXOAmount = errors.New("invalid utxo amount")
	// ErrUnsupportedAddressType defines that address does not belong to any known input encoding.
	ErrUnsupportedAddressType = errors.New("unsupported address type")
	// ErrMalformedInput defines that input could not be encoded, e.g. unknown address type reached encoder.
	ErrMalformedInput = errors.New("malformed input")
	// ErrUnresolvedCounterparty defines that counterparty payout address could not be determined.
	ErrUnresolvedCounterparty = errors.New("unresolved counterparty")
	// ErrMempoolRejection defines that the transaction was not accepted by mempool policy.
	ErrMempoolRejection = errors.New("mempool rejection")
	// ErrIndexingLag defines that transaction exists but is not visible for chain-state queries yet.
	ErrIndexingLag = errors.New("indexing lag")
)

// MempoolRejectionError describes mempool policy rejection with the reason reported by node.
type MempoolRejectionError struct {
	TxID   string
	Reason string
}

// Error returns error description.
func (e *MempoolRejectionError) Error() string {
	if e.TxID == "" {
		return fmt.Sprintf("%s: %s", ErrMempoolRejection, e.Reason)
	}

	return fmt.Sprintf("%s: %s (%s)", ErrMempoolRejection, e.Reason, e.TxID)
}

// Is implements comparator method for [errors] package.
func (e *MempoolRejectionError) Is(target error) bool {
	return target == ErrMempoolRejection
}
