// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package engine

import (
	"context"
	"math/big"

	"github.com/BoostyLabs/txengine/bitcoin/feerefine"
	"github.com/BoostyLabs/txengine/bitcoin/swap"
	"github.com/BoostyLabs/txengine/bitcoin/txbuilder"
)

// SwapParams describes purchase of the counterparty fragment.
type SwapParams struct {
	Fragment       *swap.Fragment
	AssetReceiver  string
	PaddingAddress string
	Funding
	FeeParams
}

// SwapBatchParams describes purchase of several fragments from the same pool.
type SwapBatchParams struct {
	Fragments      []*swap.Fragment
	AssetReceiver  string
	PaddingAddress string
	Funding
	FeeParams
}

// EstimateSwapFee returns refined fee of the swap transaction.
func (e *Engine) EstimateSwapFee(ctx context.Context, params SwapParams) (*feerefine.Estimate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	swapParams, err := e.planSwap(ctx, params)
	if err != nil {
		return nil, err
	}

	return e.estimate(ctx, func(ctx context.Context, fee *big.Int) (*txbuilder.Skeleton, error) {
		composition, err := e.composer.Compose(ctx, swapParams, fee)
		if err != nil {
			return nil, err
		}

		return composition.Skeleton, nil
	}, swapParams.SatoshiPerVByte)
}

// BuildSwap composes swap transaction paying provided fee, analytic fee is used if fee is nil.
func (e *Engine) BuildSwap(ctx context.Context, params SwapParams, fee *big.Int) (*swap.Composition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	swapParams, err := e.planSwap(ctx, params)
	if err != nil {
		return nil, err
	}

	return e.composer.Compose(ctx, swapParams, fee)
}

// BuildSwapBatch composes and signs swaps one after another at refined fees.
// Fees are measured locally, mempool policy is checked by BroadcastSwapBatch.
func (e *Engine) BuildSwapBatch(ctx context.Context, params SwapBatchParams) (*swap.BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rate, pool, err := e.resolve(ctx, params.FeeParams, params.Funding)
	if err != nil {
		return nil, err
	}

	return e.composer.ComposeBatch(ctx, swap.BatchParams{
		Fragments:       params.Fragments,
		Pool:            pool,
		AssetReceiver:   params.AssetReceiver,
		PaddingAddress:  params.PaddingAddress,
		Strategy:        params.Strategy,
		SatoshiPerVByte: rate,
		Refiner:         e.batchRefiner,
	})
}

// BroadcastSwapBatch submits composed swaps in order, halting swaps which depend on rejected ones.
func (e *Engine) BroadcastSwapBatch(ctx context.Context, items []swap.BatchItem) []swap.BroadcastResult {
	return e.composer.BroadcastBatch(ctx, items)
}

func (e *Engine) planSwap(ctx context.Context, params SwapParams) (swap.Params, error) {
	rate, pool, err := e.resolve(ctx, params.FeeParams, params.Funding)
	if err != nil {
		return swap.Params{}, err
	}

	return swap.Params{
		Fragment:        params.Fragment,
		Pool:            pool,
		AssetReceiver:   params.AssetReceiver,
		PaddingAddress:  params.PaddingAddress,
		Strategy:        params.Strategy,
		SatoshiPerVByte: rate,
	}, nil
}
