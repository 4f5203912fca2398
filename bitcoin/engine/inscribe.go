// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/BoostyLabs/txengine/bitcoin"
	"github.com/BoostyLabs/txengine/bitcoin/commitreveal"
	"github.com/BoostyLabs/txengine/bitcoin/feerefine"
	"github.com/BoostyLabs/txengine/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/txengine/bitcoin/txbuilder"
)

// InscribeParams describes new inscription.
type InscribeParams struct {
	Inscription *inscriptions.Inscription
	Destination string   // wallet taproot account if empty.
	Postage     *big.Int // configured postage if nil.
	Funding
	FeeParams
}

// BRC20Params describes BRC-20 operation inscription.
type BRC20Params struct {
	Payload     *inscriptions.BRC20
	Destination string
	Postage     *big.Int
	Funding
	FeeParams
}

// InscribeEstimate describes fees of both inscription transactions.
type InscribeEstimate struct {
	Commit    *feerefine.Estimate
	RevealFee *big.Int // paid from the commit output.
	Total     *big.Int
}

// PendingInscription holds inscriber state and its commit transaction.
type PendingInscription struct {
	*commitreveal.Inscriber
	Commit *txbuilder.Skeleton
}

// EstimateInscribeFee returns refined commit fee and exact reveal fee.
func (e *Engine) EstimateInscribeFee(ctx context.Context, params InscribeParams) (*InscribeEstimate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inscriber, rate, err := e.planInscribe(ctx, params)
	if err != nil {
		return nil, err
	}

	commit, err := e.estimate(ctx, inscriber.Commit, rate)
	if err != nil {
		return nil, err
	}

	revealFee, err := inscriber.RevealFee()
	if err != nil {
		return nil, err
	}

	return &InscribeEstimate{
		Commit:    commit,
		RevealFee: revealFee,
		Total:     new(big.Int).Add(commit.Fee, revealFee),
	}, nil
}

// BuildInscribe builds commit transaction paying provided fee, analytic fee is used if fee is nil.
// Reveal is built by BuildReveal once commit transaction is broadcast.
func (e *Engine) BuildInscribe(ctx context.Context, params InscribeParams, fee *big.Int) (*PendingInscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inscriber, _, err := e.planInscribe(ctx, params)
	if err != nil {
		return nil, err
	}

	commit, err := inscriber.Commit(ctx, fee)
	if err != nil {
		return nil, err
	}

	return &PendingInscription{Inscriber: inscriber, Commit: commit}, nil
}

// EstimateBRC20Fee returns fees of the BRC-20 operation inscription.
func (e *Engine) EstimateBRC20Fee(ctx context.Context, params BRC20Params) (*InscribeEstimate, error) {
	inscribe, err := brc20Inscription(params)
	if err != nil {
		return nil, err
	}

	return e.EstimateInscribeFee(ctx, inscribe)
}

// BuildBRC20 builds commit transaction of the BRC-20 operation inscription.
func (e *Engine) BuildBRC20(ctx context.Context, params BRC20Params, fee *big.Int) (*PendingInscription, error) {
	inscribe, err := brc20Inscription(params)
	if err != nil {
		return nil, err
	}

	return e.BuildInscribe(ctx, inscribe, fee)
}

// BuildReveal builds reveal transaction of the inscription committed by commitTxID.
// Returns bitcoin.ErrIndexingLag while commit output is not visible to the chain provider.
func (e *Engine) BuildReveal(ctx context.Context, inscription *PendingInscription, commitTxID string) (*txbuilder.Skeleton, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch inscription.State() {
	case commitreveal.StateUncommitted:
		if err := inscription.MarkCommitted(ctx, commitTxID); err != nil {
			return nil, err
		}
	case commitreveal.StateCommitted:
		if inscription.CommitTxID() != commitTxID {
			return nil, fmt.Errorf("%w: committed by %s", commitreveal.ErrInvalidState, inscription.CommitTxID())
		}
	}

	return inscription.Reveal(ctx)
}

func (e *Engine) planInscribe(ctx context.Context, params InscribeParams) (*commitreveal.Inscriber, *big.Int, error) {
	if params.Inscription == nil {
		return nil, nil, errors.New("no inscription provided")
	}

	destination := params.Destination
	if destination == "" {
		account, err := e.accounts.Account(bitcoin.AddressTypeTaproot)
		if err != nil {
			return nil, nil, err
		}

		destination = account.Address
	}
	if _, err := bitcoin.ClassifyAddress(destination, e.networkParams); err != nil {
		return nil, nil, err
	}

	postage := params.Postage
	if postage == nil {
		postage = e.postage
	}

	rate, pool, err := e.resolve(ctx, params.FeeParams, params.Funding)
	if err != nil {
		return nil, nil, err
	}

	inscriber, err := commitreveal.NewInscriber(e.builder, e.accounts, e.provider, e.log.Named("commitreveal"), commitreveal.Params{
		Inscription:     params.Inscription,
		Destination:     destination,
		Postage:         postage,
		SatoshiPerVByte: rate,
		Pool:            pool,
		Strategy:        params.Strategy,
	})
	if err != nil {
		return nil, nil, err
	}

	return inscriber, rate, nil
}

func brc20Inscription(params BRC20Params) (InscribeParams, error) {
	if params.Payload == nil {
		return InscribeParams{}, errors.New("no brc-20 payload provided")
	}

	inscription, err := params.Payload.IntoInscription()
	if err != nil {
		return InscribeParams{}, err
	}

	return InscribeParams{
		Inscription: inscription,
		Destination: params.Destination,
		Postage:     params.Postage,
		Funding:     params.Funding,
		FeeParams:   params.FeeParams,
	}, nil
}
