// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/txengine/bitcoin"
)

var (
	// ErrTxNotFound defines that transaction or output is not known to the node.
	ErrTxNotFound = errors.New("chain: transaction not found")
	// ErrInvalidResponse defines that node returned malformed or unexpected data.
	ErrInvalidResponse = errors.New("chain: invalid response")
)

// Provider is a chain data source used to build and broadcast transactions.
type Provider interface {
	// RawTransaction returns transaction by its hash.
	RawTransaction(ctx context.Context, txHash string) (*wire.MsgTx, error)
	// TxStatus returns transaction confirmation status, Found is false for unknown transactions.
	TxStatus(ctx context.Context, txHash string) (*TxStatus, error)
	// TxOut returns unspent transaction output, ErrTxNotFound if it is spent or not visible yet.
	TxOut(ctx context.Context, txHash string, index uint32) (*wire.TxOut, error)
	// FeeRate returns fee rate estimation in satoshi per virtual byte.
	FeeRate(ctx context.Context, confTarget int64) (*big.Int, error)
	// UTXOs returns unspent outputs of the address.
	UTXOs(ctx context.Context, address string) ([]bitcoin.UTXO, error)
	// TestMempoolAccept checks transaction against mempool policy without broadcasting.
	TestMempoolAccept(ctx context.Context, tx *wire.MsgTx) (*MempoolAcceptResult, error)
	// Broadcast submits transaction to the network and returns its hash.
	Broadcast(ctx context.Context, tx *wire.MsgTx) (string, error)
}

// TxStatus describes transaction confirmation status.
type TxStatus struct {
	Found         bool
	Confirmations int64
	BlockHash     string
}

// Confirmed returns true if transaction has at least one confirmation.
func (s *TxStatus) Confirmed() bool {
	return s != nil && s.Found && s.Confirmations > 0
}

// MempoolAcceptResult describes mempool policy check result.
type MempoolAcceptResult struct {
	TxID    string
	Allowed bool
	Reason  string
	VSize   int64
}

// Err returns MempoolRejectionError if transaction was not allowed.
func (r *MempoolAcceptResult) Err() error {
	if r.Allowed {
		return nil
	}

	return &bitcoin.MempoolRejectionError{TxID: r.TxID, Reason: r.Reason}
}
