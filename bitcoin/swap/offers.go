// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package swap

import (
	"github.com/BoostyLabs/txengine/bitcoin/txbuilder"
)

// Offer describes counterparty fragment selling asset amount for fragment price.
type Offer struct {
	Fragment *Fragment
	Amount   int // asset units sold, e.g. rune amount.
}

// OfferMatch describes cheapest offers set buying exactly the amount.
type OfferMatch struct {
	Amount int
	Price  int64
	Offers []Offer
}

// MatchOffers returns cheapest offers combination for each reachable amount in [minAmount, maxAmount],
// ordered by amount ascending.
func MatchOffers(offers []Offer, minAmount, maxAmount int) ([]OfferMatch, error) {
	costs := make([]int64, len(offers))
	weights := make([]int, len(offers))
	for i, offer := range offers {
		costs[i] = offer.Fragment.Price().Int64()
		weights[i] = offer.Amount
	}

	matches, err := txbuilder.SelectByWeight(costs, weights, minAmount, maxAmount)
	if err != nil {
		return nil, err
	}

	result := make([]OfferMatch, 0, len(matches))
	for _, match := range matches {
		selected := make([]Offer, 0, len(match.Indexes))
		for _, index := range match.Indexes {
			selected = append(selected, offers[index])
		}

		result = append(result, OfferMatch{Amount: match.Weight, Price: match.Cost, Offers: selected})
	}

	return result, nil
}
