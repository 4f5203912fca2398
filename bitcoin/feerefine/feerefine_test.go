// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package feerefine_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/txengine/bitcoin"
	"github.com/BoostyLabs/txengine/bitcoin/chain"
	"github.com/BoostyLabs/txengine/bitcoin/feerefine"
	"github.com/BoostyLabs/txengine/bitcoin/signer"
	"github.com/BoostyLabs/txengine/bitcoin/txbuilder"
)

var networkParams = &chaincfg.RegressionNetParams

func TestRefiner(t *testing.T) {
	ctx := context.Background()
	privateKey, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x03}, 32))
	accounts, err := bitcoin.NewStaticAccounts(privateKey.PubKey(), networkParams)
	require.NoError(t, err)

	s, err := signer.NewSignerFromKey(networkParams, privateKey)
	require.NoError(t, err)

	taproot := accounts[bitcoin.AddressTypeTaproot]
	script, err := bitcoin.PayToAddress(taproot.Address, networkParams)
	require.NoError(t, err)

	pool := []bitcoin.UTXO{{
		TxHash:      chainhash.Hash{0x01}.String(),
		Amount:      big.NewInt(100000),
		Script:      script,
		Address:     taproot.Address,
		AddressType: bitcoin.AddressTypeTaproot,
	}}

	builder := txbuilder.NewTxBuilder(networkParams, accounts, nil, nil)
	rate := big.NewInt(10)
	var builtWith []*big.Int
	build := func(ctx context.Context, fee *big.Int) (*txbuilder.Skeleton, error) {
		builtWith = append(builtWith, fee)
		return builder.Build(ctx, txbuilder.BuildParams{
			Outputs: []txbuilder.Output{{Address: accounts[bitcoin.AddressTypeNativeSegwit].Address, Amount: big.NewInt(30000)}},
			Pool:    pool,
			Strategy: txbuilder.SpendStrategy{
				AddressTypes:      []bitcoin.AddressType{bitcoin.AddressTypeTaproot},
				ChangeAddressType: bitcoin.AddressTypeTaproot,
			},
			SatoshiPerVByte: rate,
			Fee:             fee,
		})
	}

	t.Run("two rounds reach measured fee", func(t *testing.T) {
		builtWith = nil
		refiner := feerefine.NewRefiner(s, feerefine.LocalMeasurer{}, 0, nil)

		estimate, err := refiner.Estimate(ctx, build, rate)
		require.NoError(t, err)
		require.Equal(t, feerefine.StateFinal, estimate.State)
		require.Equal(t, 2, estimate.Rounds)
		require.EqualValues(t, 142, estimate.VSize)
		require.Equal(t, big.NewInt(1420), estimate.Fee)

		// first build is provisional, second uses measured fee.
		require.Len(t, builtWith, 2)
		require.Nil(t, builtWith[0])
		require.Equal(t, big.NewInt(1420), builtWith[1])
	})

	t.Run("idempotent", func(t *testing.T) {
		refiner := feerefine.NewRefiner(s, feerefine.LocalMeasurer{}, feerefine.DefaultMaxRounds, nil)

		first, err := refiner.Estimate(ctx, build, rate)
		require.NoError(t, err)
		second, err := refiner.Estimate(ctx, build, rate)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})

	t.Run("transaction built at estimated fee measures the same", func(t *testing.T) {
		refiner := feerefine.NewRefiner(s, nil, 0, nil)
		estimate, err := refiner.Estimate(ctx, build, rate)
		require.NoError(t, err)

		skeleton, err := build(ctx, estimate.Fee)
		require.NoError(t, err)
		require.Equal(t, estimate.Fee, skeleton.Fee)

		signed, err := s.SignAll(ctx, skeleton.Packet, true)
		require.NoError(t, err)
		tx, err := psbt.Extract(signed)
		require.NoError(t, err)
		require.Equal(t, estimate.Fee, txbuilder.FeeForVSize(txbuilder.MeasureVSize(tx), rate))
	})

	t.Run("stops early when fee is reproduced", func(t *testing.T) {
		builtWith = nil
		refiner := feerefine.NewRefiner(s, feerefine.LocalMeasurer{}, 5, nil)

		estimate, err := refiner.Estimate(ctx, build, rate)
		require.NoError(t, err)
		require.Equal(t, 2, estimate.Rounds)
		require.Len(t, builtWith, 2)
	})

	t.Run("single round", func(t *testing.T) {
		refiner := feerefine.NewRefiner(s, feerefine.LocalMeasurer{}, 1, nil)

		estimate, err := refiner.Estimate(ctx, build, rate)
		require.NoError(t, err)
		require.Equal(t, 1, estimate.Rounds)
		require.Equal(t, big.NewInt(1420), estimate.Fee)
	})

	t.Run("mempool rejection is returned", func(t *testing.T) {
		provider := &chain.MockProvider{
			TestMempoolAcceptFn: func(ctx context.Context, tx *wire.MsgTx) (*chain.MempoolAcceptResult, error) {
				return &chain.MempoolAcceptResult{TxID: tx.TxHash().String(), Reason: "non-mandatory-script-verify-flag"}, nil
			},
		}
		refiner := feerefine.NewRefiner(s, chain.NewMempoolMeasurer(provider), 0, nil)

		_, err := refiner.Estimate(ctx, build, rate)
		require.ErrorIs(t, err, bitcoin.ErrMempoolRejection)
	})

	t.Run("mempool measured size", func(t *testing.T) {
		provider := &chain.MockProvider{
			TestMempoolAcceptFn: func(ctx context.Context, tx *wire.MsgTx) (*chain.MempoolAcceptResult, error) {
				return &chain.MempoolAcceptResult{TxID: tx.TxHash().String(), Allowed: true, VSize: 150}, nil
			},
		}
		refiner := feerefine.NewRefiner(s, chain.NewMempoolMeasurer(provider), 0, nil)

		estimate, err := refiner.Estimate(ctx, build, rate)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(1500), estimate.Fee)
	})

	t.Run("build errors are returned", func(t *testing.T) {
		refiner := feerefine.NewRefiner(s, nil, 0, nil)
		buildErr := errors.New("pool changed")

		_, err := refiner.Estimate(ctx, func(context.Context, *big.Int) (*txbuilder.Skeleton, error) {
			return nil, buildErr
		}, rate)
		require.ErrorIs(t, err, buildErr)

		_, err = refiner.Estimate(ctx, build, big.NewInt(0))
		require.Error(t, err)
	})
}
