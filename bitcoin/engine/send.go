// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package engine

import (
	"context"
	"errors"
	"math/big"

	"github.com/BoostyLabs/txengine/bitcoin"
	"github.com/BoostyLabs/txengine/bitcoin/feerefine"
	"github.com/BoostyLabs/txengine/bitcoin/txbuilder"
	"github.com/BoostyLabs/txengine/internal/numbers"
)

// SendParams describes plain value transfer.
type SendParams struct {
	Recipient string
	Amount    *big.Int
	Funding
	FeeParams
}

// EstimateSendFee returns refined fee of the value transfer.
func (e *Engine) EstimateSendFee(ctx context.Context, params SendParams) (*feerefine.Estimate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, rate, err := e.planSend(ctx, params)
	if err != nil {
		return nil, err
	}

	return e.estimate(ctx, plan, rate)
}

// BuildSend builds value transfer paying provided fee, analytic fee is used if fee is nil.
func (e *Engine) BuildSend(ctx context.Context, params SendParams, fee *big.Int) (*txbuilder.Skeleton, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, _, err := e.planSend(ctx, params)
	if err != nil {
		return nil, err
	}

	return plan(ctx, fee)
}

func (e *Engine) planSend(ctx context.Context, params SendParams) (feerefine.BuildFunc, *big.Int, error) {
	if params.Amount == nil || !numbers.IsGreater(params.Amount, big.NewInt(bitcoin.DustAmount)) {
		return nil, nil, errors.New("amount must be above dust")
	}
	if _, err := bitcoin.ClassifyAddress(params.Recipient, e.networkParams); err != nil {
		return nil, nil, err
	}

	rate, pool, err := e.resolve(ctx, params.FeeParams, params.Funding)
	if err != nil {
		return nil, nil, err
	}

	plan := func(ctx context.Context, fee *big.Int) (*txbuilder.Skeleton, error) {
		return e.builder.Build(ctx, txbuilder.BuildParams{
			Outputs:         []txbuilder.Output{{Address: params.Recipient, Amount: params.Amount}},
			Pool:            pool,
			Strategy:        params.Strategy,
			SatoshiPerVByte: rate,
			Fee:             fee,
		})
	}

	return plan, rate, nil
}
