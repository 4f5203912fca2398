// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"math/big"
	"slices"

	"github.com/BoostyLabs/txengine/bitcoin"
	"github.com/BoostyLabs/txengine/bitcoin/ord/runes"
	"github.com/BoostyLabs/txengine/internal/numbers"
)

// Direction defines utxos ordering inside address type group.
type Direction byte

const (
	// LargestFirst spends bigger utxos first, minimizing inputs count.
	LargestFirst Direction = iota
	// SmallestFirst spends smaller utxos first, consolidating the wallet.
	SmallestFirst
)

// SpendStrategy describes which utxos are spent first and where change goes.
type SpendStrategy struct {
	AddressTypes      []bitcoin.AddressType // preference order, utxos of other types are not spent.
	Direction         Direction
	ChangeAddressType bitcoin.AddressType
}

// DefaultSpendStrategy spends native segwit first, largest first, change to native segwit.
var DefaultSpendStrategy = SpendStrategy{
	AddressTypes: []bitcoin.AddressType{
		bitcoin.AddressTypeNativeSegwit,
		bitcoin.AddressTypeTaproot,
		bitcoin.AddressTypeNestedSegwit,
		bitcoin.AddressTypeLegacy,
	},
	Direction:         LargestFirst,
	ChangeAddressType: bitcoin.AddressTypeNativeSegwit,
}

// OrDefault returns default strategy if no address types are set, change goes to the first preferred type if not set.
func (s SpendStrategy) OrDefault() SpendStrategy {
	if len(s.AddressTypes) == 0 {
		return DefaultSpendStrategy
	}

	if !s.ChangeAddressType.IsKnown() {
		s.ChangeAddressType = s.AddressTypes[0]
	}

	return s
}

// Selection describes selected fee-paying utxos.
type Selection struct {
	UTXOs []*bitcoin.UTXO
	Total *big.Int
}

// AddressTypes returns address types of selected utxos in order.
func (s *Selection) AddressTypes() []bitcoin.AddressType {
	types := make([]bitcoin.AddressType, len(s.UTXOs))
	for i, utxo := range s.UTXOs {
		types[i] = utxo.ResolvedAddressType()
	}

	return types
}

// SelectUTXOs selects fee-paying utxos covering target amount following spend strategy.
// Utxos with meta markers, dust and utxos of not preferred address types are never selected.
// Returned utxos point into provided pool.
func SelectUTXOs(pool []bitcoin.UTXO, target *big.Int, strategy SpendStrategy) (*Selection, error) {
	strategy = strategy.OrDefault()

	selection := &Selection{UTXOs: make([]*bitcoin.UTXO, 0), Total: big.NewInt(0)}
	for _, addressType := range strategy.AddressTypes {
		group := make([]*bitcoin.UTXO, 0)
		for i := range pool {
			utxo := &pool[i]
			if utxo.HasMetaMarkers() || utxo.IsDust() || utxo.ResolvedAddressType() != addressType {
				continue
			}

			group = append(group, utxo)
		}

		slices.SortStableFunc(group, func(a, b *bitcoin.UTXO) int {
			if strategy.Direction == SmallestFirst {
				return a.Amount.Cmp(b.Amount)
			}

			return b.Amount.Cmp(a.Amount)
		})

		for _, utxo := range group {
			if !numbers.IsLess(selection.Total, target) {
				return selection, nil
			}

			selection.UTXOs = append(selection.UTXOs, utxo)
			selection.Total.Add(selection.Total, utxo.Amount)
		}
	}

	if numbers.IsLess(selection.Total, target) {
		return nil, NewInsufficientError(InsufficientErrorTypeBitcoin, target, selection.Total)
	}

	return selection, nil
}

// PrepareRuneUTXOs selects utxos to cover rune transfer amount.
// Returns used utxos, total rune amount of utxos and error if any.
func PrepareRuneUTXOs(utxos []bitcoin.UTXO, transferAmount *big.Int, runeID runes.RuneID) (usedUTXOs []*bitcoin.UTXO, totalAmount *big.Int, err error) {
	runeFn := func(u *bitcoin.UTXO) *big.Int {
		for _, rune_ := range u.Runes {
			if rune_.RuneID == runeID {
				return rune_.Amount
			}
		}

		return big.NewInt(0)
	}

	sorted := slices.Clone(utxos)
	slices.SortStableFunc(sorted, func(a, b bitcoin.UTXO) int {
		return runeFn(&b).Cmp(runeFn(&a))
	})

	for i := 1; i <= len(sorted); i++ {
		usedUTXOs, totalAmount, err = SelectUTXO(sorted, runeFn, transferAmount, i, bitcoin.ErrInsufficientRuneBalance)
		if err != nil {
			if errors.Is(err, bitcoin.ErrInsufficientRuneBalance) {
				continue
			}

			return nil, nil, err
		}

		return usedUTXOs, totalAmount, nil
	}

	return nil, nil, NewInsufficientError(InsufficientErrorTypeRune, transferAmount, nil)
}

// SelectUTXO is a partly greedy selection algorithm for UTXOs with 'requiredUTXOs' parameter.
// Utxos must be sorted by amount function desc.
// Returns list of selected by algorithm UTXOs with total amount, counted by passed amount function.
func SelectUTXO(utxos []bitcoin.UTXO, amountFn func(*bitcoin.UTXO) *big.Int, minAmount *big.Int, requiredUTXOs int,
	insufficientBalanceError error) (usedUTXOs []*bitcoin.UTXO, totalAmount *big.Int, _ error) {
	if len(utxos) < requiredUTXOs || requiredUTXOs < 1 {
		return nil, nil, bitcoin.ErrInvalidUTXOAmount
	}

	usedUTXOs = make([]*bitcoin.UTXO, 0, requiredUTXOs)
	totalAmount = big.NewInt(0)
	var startIdx = 0
	var usedIdxs = make([]int, 0)

	// find the closest by amount UTXO that is greater than minAmount or take the biggest possible.
	for idx := range utxos {
		if numbers.IsGreater(minAmount, amountFn(&utxos[idx])) {
			break
		}

		startIdx = idx
	}

	usedIdxs = append(usedIdxs, startIdx)
	totalAmount.Add(totalAmount, amountFn(&utxos[startIdx]))
	usedUTXOs = append(usedUTXOs, &utxos[startIdx])
	requiredUTXOs--

	// pick bigger amount if total amount do not cover minAmount, otherwise - the smallest to pass requiredUTXOs.
	for ; requiredUTXOs > 0; requiredUTXOs-- {
		idx := selectUnused(startIdx, len(utxos), usedIdxs, !numbers.IsGreater(minAmount, totalAmount))
		if idx == -1 {
			return nil, nil, bitcoin.ErrInvalidUTXOAmount
		}

		usedIdxs = append(usedIdxs, idx)
		totalAmount.Add(totalAmount, amountFn(&utxos[idx]))
		usedUTXOs = append(usedUTXOs, &utxos[idx])
	}

	if numbers.IsGreater(minAmount, totalAmount) {
		return nil, nil, insufficientBalanceError
	}

	return usedUTXOs, totalAmount, nil
}

// selectUnused returns first unused idx depending on search direction.
func selectUnused(start, end int, usedIdxs []int, reversed bool) int {
	if reversed {
		for idx := end - 1; idx >= start; idx-- {
			if !slices.Contains(usedIdxs, idx) {
				return idx
			}
		}
	} else {
		for idx := start; idx < end; idx++ {
			if !slices.Contains(usedIdxs, idx) {
				return idx
			}
		}
	}

	return -1
}
