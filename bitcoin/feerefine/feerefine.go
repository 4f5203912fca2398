// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package feerefine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/looplab/fsm"

	"github.com/BoostyLabs/txengine/bitcoin"
	"github.com/BoostyLabs/txengine/bitcoin/txbuilder"
	"github.com/BoostyLabs/txengine/internal/logger"
)

// DefaultMaxRounds defines default number of measured rounds.
const DefaultMaxRounds = 2

// Estimate lifecycle states.
const (
	StateProvisional = "provisional"
	StateDrySigned   = "dry_signed"
	StateMeasured    = "measured"
	StateFinal       = "final"
)

// Estimate lifecycle events.
const (
	EventDrySign  = "dry_sign"
	EventMeasure  = "measure"
	EventRebuild  = "rebuild"
	EventFinalize = "finalize"
)

// ErrInvalidSkeleton defines that build function returned nothing to measure.
var ErrInvalidSkeleton = errors.New("build returned empty skeleton")

// Measurer measures signed transaction virtual size.
type Measurer interface {
	MeasureVSize(ctx context.Context, tx *wire.MsgTx) (int64, error)
}

// LocalMeasurer measures virtual size from transaction weight.
type LocalMeasurer struct{}

// MeasureVSize returns virtual size computed from serialized transaction.
func (LocalMeasurer) MeasureVSize(ctx context.Context, tx *wire.MsgTx) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return txbuilder.MeasureVSize(tx), nil
}

// BuildFunc assembles transaction paying provided fee, analytic fee is used if fee is nil.
type BuildFunc func(ctx context.Context, fee *big.Int) (*txbuilder.Skeleton, error)

// Estimate describes refined fee.
type Estimate struct {
	SatoshiPerVByte *big.Int
	Fee             *big.Int
	VSize           int64
	State           string
	Rounds          int
}

// Refiner converts analytic fee into measured one by signing and measuring transactions.
type Refiner struct {
	signer    bitcoin.Signer
	measurer  Measurer
	maxRounds int
	log       logger.Logger
}

// NewRefiner is a constructor for Refiner. DefaultMaxRounds is used if maxRounds is not positive.
func NewRefiner(signer bitcoin.Signer, measurer Measurer, maxRounds int, log logger.Logger) *Refiner {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	if measurer == nil {
		measurer = LocalMeasurer{}
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Refiner{
		signer:    signer,
		measurer:  measurer,
		maxRounds: maxRounds,
		log:       log,
	}
}

// Estimate builds provisional transaction, dry-signs and measures it, then rebuilds at the measured fee
// and measures again. The last measurement is authoritative. The loop is bounded by max rounds and
// stops early once a round reproduces the fee it was built with.
func (r *Refiner) Estimate(ctx context.Context, build BuildFunc, satoshiPerVByte *big.Int) (*Estimate, error) {
	if satoshiPerVByte == nil || satoshiPerVByte.Sign() <= 0 {
		return nil, errors.New("fee rate must be positive")
	}

	machine := r.newMachine()
	estimate := &Estimate{SatoshiPerVByte: satoshiPerVByte}

	var requested *big.Int
	for round := 1; ; round++ {
		skeleton, err := build(ctx, requested)
		if err != nil {
			return nil, err
		}
		if skeleton == nil || skeleton.Packet == nil {
			return nil, ErrInvalidSkeleton
		}

		signed, err := r.signer.SignAll(ctx, skeleton.Packet, true)
		if err != nil {
			return nil, fmt.Errorf("dry sign: %w", err)
		}
		if err = machine.Event(ctx, EventDrySign); err != nil {
			return nil, err
		}

		tx, err := psbt.Extract(signed)
		if err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}

		estimate.VSize, err = r.measurer.MeasureVSize(ctx, tx)
		if err != nil {
			return nil, err
		}
		if err = machine.Event(ctx, EventMeasure); err != nil {
			return nil, err
		}

		fee := txbuilder.FeeForVSize(estimate.VSize, satoshiPerVByte)
		estimate.Fee = fee
		estimate.Rounds = round
		r.log.Debugf("round %d: built with fee %s, measured %d vB, fee %s", round, skeleton.Fee, estimate.VSize, fee)

		if round >= r.maxRounds || (requested != nil && fee.Cmp(requested) == 0) {
			break
		}

		if err = machine.Event(ctx, EventRebuild); err != nil {
			return nil, err
		}
		requested = fee
	}

	if err := machine.Event(ctx, EventFinalize); err != nil {
		return nil, err
	}
	estimate.State = machine.Current()

	return estimate, nil
}

func (r *Refiner) newMachine() *fsm.FSM {
	return fsm.NewFSM(
		StateProvisional,
		fsm.Events{
			{Name: EventDrySign, Src: []string{StateProvisional}, Dst: StateDrySigned},
			{Name: EventMeasure, Src: []string{StateDrySigned}, Dst: StateMeasured},
			{Name: EventRebuild, Src: []string{StateMeasured}, Dst: StateProvisional},
			{Name: EventFinalize, Src: []string{StateMeasured}, Dst: StateFinal},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				r.log.Debugf("fee estimate %s -> %s", e.Src, e.Dst)
			},
		},
	)
}
