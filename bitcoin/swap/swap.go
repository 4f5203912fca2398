// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/txengine/bitcoin"
	"github.com/BoostyLabs/txengine/bitcoin/chain"
	"github.com/BoostyLabs/txengine/bitcoin/txbuilder"
	"github.com/BoostyLabs/txengine/internal/logger"
)

const (
	// DefaultPaddingValue defines value of the padding outputs.
	DefaultPaddingValue int64 = 600
	// DefaultPaddingCount defines number of padding utxos spent before the fragment input.
	DefaultPaddingCount = 2
	// MinPaddingCount defines the least padding count, first two padding inputs are merged into output 0.
	MinPaddingCount = 2
)

// MergedPaddingIndex defines output index of the merged padding.
const MergedPaddingIndex = 0

var (
	// ErrInsufficientPadding defines that pool has not enough padding utxos of the required value.
	ErrInsufficientPadding = errors.New("insufficient padding utxos")
	// ErrInvalidPaddingCount defines that padding count does not allow to pair fragment input with payout output.
	ErrInvalidPaddingCount = errors.New("invalid padding count")
)

// Params describes single fragment composition.
type Params struct {
	Fragment        *Fragment
	Pool            []bitcoin.UTXO // taker utxos, padding and payment.
	AssetReceiver   string         // taker taproot account if empty.
	PaddingAddress  string         // padding outputs receiver, change account if empty.
	Strategy        txbuilder.SpendStrategy
	SatoshiPerVByte *big.Int
}

// Composition describes composed swap transaction.
type Composition struct {
	*txbuilder.Skeleton
	MakerAddress   string
	AssetIndex     int   // output receiving fragment asset.
	PayoutIndex    int   // maker payout output, equals fragment input index.
	PaddingIndexes []int // fresh padding outputs for the next swap.
}

// Composer composes taker transactions around counterparty fragments.
type Composer struct {
	builder  *txbuilder.TxBuilder
	accounts bitcoin.AccountProvider
	provider chain.Provider
	signer   bitcoin.Signer
	log      logger.Logger

	paddingValue *big.Int
	paddingCount int
}

// NewComposer is a constructor for Composer.
// Default padding value and count are used if not positive.
func NewComposer(builder *txbuilder.TxBuilder, accounts bitcoin.AccountProvider, provider chain.Provider, signer bitcoin.Signer,
	log logger.Logger, paddingValue int64, paddingCount int) (*Composer, error) {
	if paddingCount > 0 && paddingCount < MinPaddingCount {
		return nil, fmt.Errorf("%w: %d, at least %d required", ErrInvalidPaddingCount, paddingCount, MinPaddingCount)
	}
	if log == nil {
		log = logger.NewNop()
	}
	if paddingValue <= 0 {
		paddingValue = DefaultPaddingValue
	}
	if paddingCount <= 0 {
		paddingCount = DefaultPaddingCount
	}

	return &Composer{
		builder:      builder,
		accounts:     accounts,
		provider:     provider,
		signer:       signer,
		log:          log,
		paddingValue: big.NewInt(paddingValue),
		paddingCount: paddingCount,
	}, nil
}

// Compose builds unsigned swap transaction paying provided fee, analytic fee is used if fee is nil.
// Fragment input is placed right after k padding inputs and keeps its final witness unchanged.
// Outputs before the asset sum exactly to padding inputs, so asset sats land at the asset output
// and maker payout lands at index k, paired with the SIGHASH_SINGLE signature of the fragment.
// Pool is not modified.
//
//	inputs:
//	┌─────────────┬──────────────────┬────────────────────────────────────────┐
//	│    index    │       type       │             description                │
//	├=============┼==================┼========================================┤
//	│   0 - k-1   │ padding          │ taker padding utxos                    │
//	├─────────────┼──────────────────┼────────────────────────────────────────┤
//	│           k │ fragment         │ maker asset input, signed              │
//	├─────────────┼──────────────────┼────────────────────────────────────────┤
//	│   k+1 - n   │ payment          │ taker fee-paying utxos                 │
//	└─────────────┴──────────────────┴────────────────────────────────────────┘
//
//	outputs:
//	┌─────────────┬──────────────────┬────────────────────────────────────────┐
//	│    index    │       type       │             description                │
//	├=============┼==================┼========================================┤
//	│           0 │ merged padding   │ padding inputs 0 and 1 to taker        │
//	├─────────────┼──────────────────┼────────────────────────────────────────┤
//	│   1 - k-2   │ padding          │ padding inputs 2 - k-1, one to one     │
//	├─────────────┼──────────────────┼────────────────────────────────────────┤
//	│         k-1 │ asset            │ fragment asset value to taker          │
//	├─────────────┼──────────────────┼────────────────────────────────────────┤
//	│           k │ payout           │ maker payout from the fragment         │
//	├─────────────┼──────────────────┼────────────────────────────────────────┤
//	│  k+1 - 2k   │ padding          │ fresh padding for the next swap        │
//	├─────────────┼──────────────────┼────────────────────────────────────────┤
//	│        2k+1 │ change           │ optional                               │
//	└─────────────┴──────────────────┴────────────────────────────────────────┘
func (c *Composer) Compose(ctx context.Context, params Params, fee *big.Int) (*Composition, error) {
	if params.Fragment == nil {
		return nil, errors.New("no fragment provided")
	}

	makerAddress, err := params.Fragment.PayoutAddress(c.builder.NetworkParams())
	if err != nil {
		return nil, err
	}

	padding, payment := c.splitPool(params.Pool, params.Fragment)
	if len(padding) < c.paddingCount {
		return nil, fmt.Errorf("%w: need %d utxos of %s sats, have %d", ErrInsufficientPadding, c.paddingCount, c.paddingValue, len(padding))
	}
	padding = padding[:c.paddingCount]

	assetReceiver, paddingAddress, err := c.receivers(params)
	if err != nil {
		return nil, err
	}

	inputs := make([]txbuilder.Input, 0, len(padding)+1)
	for _, utxo := range padding {
		inputs = append(inputs, txbuilder.Input{UTXO: utxo})
	}
	fragmentIndex := len(inputs)
	inputs = append(inputs, txbuilder.Input{
		UTXO:     params.Fragment.utxo(),
		Sequence: params.Fragment.sequence,
		PInput:   params.Fragment.pInput(),
	})

	outputs := make([]txbuilder.Output, 0, 2*len(padding)+2)
	outputs = append(outputs, txbuilder.Output{Address: paddingAddress, Amount: new(big.Int).Add(padding[0].Amount, padding[1].Amount)})
	for _, utxo := range padding[MinPaddingCount:] {
		outputs = append(outputs, txbuilder.Output{Address: paddingAddress, Amount: new(big.Int).Set(utxo.Amount)})
	}

	assetIndex := len(outputs)
	payout := params.Fragment.Payout()
	outputs = append(outputs,
		txbuilder.Output{Address: assetReceiver, Amount: params.Fragment.AssetValue()},
		txbuilder.Output{PkScript: payout.PkScript, Amount: big.NewInt(payout.Value)},
	)
	if payoutIndex := assetIndex + 1; payoutIndex != fragmentIndex {
		return nil, fmt.Errorf("%w: payout output %d does not pair fragment input %d", ErrInvalidPaddingCount, payoutIndex, fragmentIndex)
	}

	paddingIndexes := make([]int, 0, c.paddingCount)
	for i := 0; i < c.paddingCount; i++ {
		paddingIndexes = append(paddingIndexes, len(outputs))
		outputs = append(outputs, txbuilder.Output{Address: paddingAddress, Amount: new(big.Int).Set(c.paddingValue)})
	}

	skeleton, err := c.builder.Build(ctx, txbuilder.BuildParams{
		Inputs:          inputs,
		Outputs:         outputs,
		Pool:            payment,
		Strategy:        params.Strategy,
		SatoshiPerVByte: params.SatoshiPerVByte,
		Fee:             fee,
	})
	if err != nil {
		return nil, err
	}

	c.log.Debugf("composed swap of %s for %s sats to %s", params.Fragment.OutPoint(), params.Fragment.Price(), makerAddress)

	return &Composition{
		Skeleton:       skeleton,
		MakerAddress:   makerAddress,
		AssetIndex:     assetIndex,
		PayoutIndex:    fragmentIndex,
		PaddingIndexes: paddingIndexes,
	}, nil
}

// Complete signs taker inputs, finalizes all inputs and extracts network transaction.
func (c *Composer) Complete(ctx context.Context, composition *Composition) (*wire.MsgTx, error) {
	signed, err := c.signer.SignAll(ctx, composition.Packet, true)
	if err != nil {
		return nil, err
	}

	return psbt.Extract(signed)
}

// Submit checks swap transaction against mempool policy and broadcasts it.
func (c *Composer) Submit(ctx context.Context, tx *wire.MsgTx) (string, error) {
	return chain.Submit(ctx, c.provider, tx)
}

// splitPool returns padding utxos of the padding value and the rest of spendable pool.
// Padding utxos are never spent as payment.
func (c *Composer) splitPool(pool []bitcoin.UTXO, fragment *Fragment) (padding []*bitcoin.UTXO, payment []bitcoin.UTXO) {
	outPoint := fragment.OutPoint()
	payment = make([]bitcoin.UTXO, 0, len(pool))
	for i := range pool {
		utxo := &pool[i]
		if utxo.Index == outPoint.Index && utxo.TxHash == outPoint.Hash.String() {
			continue
		}

		if utxo.Amount != nil && utxo.Amount.Cmp(c.paddingValue) == 0 && !utxo.HasMetaMarkers() {
			padding = append(padding, utxo)
			continue
		}

		payment = append(payment, *utxo)
	}

	return padding, payment
}

// receivers returns asset and padding receivers, wallet accounts are used if not set.
func (c *Composer) receivers(params Params) (assetReceiver, paddingAddress string, err error) {
	assetReceiver, paddingAddress = params.AssetReceiver, params.PaddingAddress
	if assetReceiver == "" {
		account, err := c.accounts.Account(bitcoin.AddressTypeTaproot)
		if err != nil {
			return "", "", err
		}

		assetReceiver = account.Address
	}

	if paddingAddress == "" {
		account, err := c.accounts.Account(params.Strategy.OrDefault().ChangeAddressType)
		if err != nil {
			return "", "", err
		}

		paddingAddress = account.Address
	}

	return assetReceiver, paddingAddress, nil
}
