// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/BoostyLabs/txengine/bitcoin/ord/runes"
	"github.com/BoostyLabs/txengine/internal/numbers"
)

// ErrMintClosed defines that rune terms do not allow minting.
var ErrMintClosed = errors.New("rune mint is closed")

// Rune defines etched rune data as reported by an indexer.
type Rune struct {
	ID            runes.RuneID
	Divisibility  byte
	Premine       *big.Int
	Name          *runes.Rune
	Spacers       uint32
	Symbol        rune
	Turbo         bool
	MintAmount    *big.Int // amount per mint, nil if rune has no terms.
	MintCapAmount *big.Int // mints cap.
	Mints         *big.Int // mints done so far.
	HeightStart   uint64
	HeightEnd     uint64
	OffsetStart   uint64
	OffsetEnd     uint64
}

// SpacedName returns rune name with spacers, rune id is used if name is unknown.
func (r *Rune) SpacedName() string {
	if r.Name == nil {
		return r.ID.String()
	}

	return r.Name.StringWithSeparator(r.Spacers)
}

// CheckMintable returns ErrMintClosed if rune could not be minted in block with provided height.
// Zero height skips window checks. Offsets are counted from the etching block.
func (r *Rune) CheckMintable(height uint64) error {
	if r.MintAmount == nil || !numbers.IsPositive(r.MintAmount) {
		return fmt.Errorf("%w: %s has no mint terms", ErrMintClosed, r.SpacedName())
	}
	if r.MintCapAmount != nil && r.Mints != nil && !numbers.IsLess(r.Mints, r.MintCapAmount) {
		return fmt.Errorf("%w: %s cap of %s mints reached", ErrMintClosed, r.SpacedName(), r.MintCapAmount)
	}
	if height == 0 {
		return nil
	}

	start, end := r.HeightStart, r.HeightEnd
	if r.OffsetStart != 0 {
		start = max(start, r.ID.Block+r.OffsetStart)
	}
	if r.OffsetEnd != 0 {
		end = min(nonZero(end), r.ID.Block+r.OffsetEnd)
	}

	if height < start || (end != 0 && height >= end) {
		return fmt.Errorf("%w: %s is mintable in [%d;%d), current height %d", ErrMintClosed, r.SpacedName(), start, end, height)
	}

	return nil
}

// nonZero returns value or max uint64 for zero, which defines unbounded end.
func nonZero(value uint64) uint64 {
	if value == 0 {
		return ^uint64(0)
	}

	return value
}
