// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/BoostyLabs/txengine/bitcoin"
)

type balanceErrorType string

const (
	// InsufficientErrorTypeBitcoin defines insufficient bitcoin balance error type.
	InsufficientErrorTypeBitcoin balanceErrorType = "bitcoin"
	// InsufficientErrorTypeRune defines insufficient rune balance error type.
	InsufficientErrorTypeRune balanceErrorType = "rune"
)

// InsufficientError is the error type to describe insufficient balance errors with details.
type InsufficientError struct {
	Type balanceErrorType
	Need *big.Int
	Have *big.Int
}

// NewInsufficientError is a constructor for InsufficientError.
func NewInsufficientError(type_ balanceErrorType, need, have *big.Int) *InsufficientError {
	return &InsufficientError{type_, need, have}
}

// Error returns error description.
func (e *InsufficientError) Error() string {
	var errMsg = fmt.Sprintf("insufficient %s balance", e.Type)

	if e.Have != nil && e.Need != nil {
		errMsg += fmt.Sprintf(": need - %s, have - %s", e.Need, e.Have)
	}

	return errMsg
}

// Is implements comparator method for [errors] package.
// Matches insufficient errors of the same type and the corresponding bitcoin sentinel.
func (e *InsufficientError) Is(target error) bool {
	var insufficientErr *InsufficientError
	if errors.As(target, &insufficientErr) {
		return insufficientErr.Type == e.Type
	}

	switch e.Type {
	case InsufficientErrorTypeBitcoin:
		return target == bitcoin.ErrInsufficientNativeBalance
	case InsufficientErrorTypeRune:
		return target == bitcoin.ErrInsufficientRuneBalance
	}

	return false
}

// Shortfall returns missing amount if known.
func (e *InsufficientError) Shortfall() *big.Int {
	if e.Have == nil || e.Need == nil {
		return nil
	}

	return new(big.Int).Sub(e.Need, e.Have)
}
