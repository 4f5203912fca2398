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

// errNotMocked defines that mock function is not set.
var errNotMocked = errors.New("chain: mock function is not set")

// MockProvider is a test double for Provider. Unset functions return an error.
type MockProvider struct {
	RawTransactionFn    func(ctx context.Context, txHash string) (*wire.MsgTx, error)
	TxStatusFn          func(ctx context.Context, txHash string) (*TxStatus, error)
	TxOutFn             func(ctx context.Context, txHash string, index uint32) (*wire.TxOut, error)
	FeeRateFn           func(ctx context.Context, confTarget int64) (*big.Int, error)
	UTXOsFn             func(ctx context.Context, address string) ([]bitcoin.UTXO, error)
	TestMempoolAcceptFn func(ctx context.Context, tx *wire.MsgTx) (*MempoolAcceptResult, error)
	BroadcastFn         func(ctx context.Context, tx *wire.MsgTx) (string, error)
}

// ensures that MockProvider implements Provider.
var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) RawTransaction(ctx context.Context, txHash string) (*wire.MsgTx, error) {
	if m.RawTransactionFn == nil {
		return nil, errNotMocked
	}

	return m.RawTransactionFn(ctx, txHash)
}

func (m *MockProvider) TxStatus(ctx context.Context, txHash string) (*TxStatus, error) {
	if m.TxStatusFn == nil {
		return nil, errNotMocked
	}

	return m.TxStatusFn(ctx, txHash)
}

func (m *MockProvider) TxOut(ctx context.Context, txHash string, index uint32) (*wire.TxOut, error) {
	if m.TxOutFn == nil {
		return nil, errNotMocked
	}

	return m.TxOutFn(ctx, txHash, index)
}

func (m *MockProvider) FeeRate(ctx context.Context, confTarget int64) (*big.Int, error) {
	if m.FeeRateFn == nil {
		return nil, errNotMocked
	}

	return m.FeeRateFn(ctx, confTarget)
}

func (m *MockProvider) UTXOs(ctx context.Context, address string) ([]bitcoin.UTXO, error) {
	if m.UTXOsFn == nil {
		return nil, errNotMocked
	}

	return m.UTXOsFn(ctx, address)
}

func (m *MockProvider) TestMempoolAccept(ctx context.Context, tx *wire.MsgTx) (*MempoolAcceptResult, error) {
	if m.TestMempoolAcceptFn == nil {
		return nil, errNotMocked
	}

	return m.TestMempoolAcceptFn(ctx, tx)
}

func (m *MockProvider) Broadcast(ctx context.Context, tx *wire.MsgTx) (string, error) {
	if m.BroadcastFn == nil {
		return "", errNotMocked
	}

	return m.BroadcastFn(ctx, tx)
}
