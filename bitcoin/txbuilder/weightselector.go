// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrInvalidWeights defines that items or weight window could not be used for matching.
var ErrInvalidWeights = errors.New("invalid weights")

// WeightMatch describes cheapest items set reaching exactly the weight.
type WeightMatch struct {
	Weight  int
	Cost    int64
	Indexes []int // ascending item indexes.
}

// SelectByWeight returns cheapest items combination for each reachable total weight in [minWeight, maxWeight].
// Every item is used at most once. On equal costs the first found combination wins.
// Matches are ordered by weight ascending, empty combination is never returned.
// Combination costs must fit int64.
// Runs in O(n*maxWeight) time, cost table is O(maxWeight), backtracking keeps one bit per item and weight.
func SelectByWeight(costs []int64, weights []int, minWeight, maxWeight int) ([]WeightMatch, error) {
	if len(costs) != len(weights) || maxWeight < 0 || maxWeight < minWeight {
		return nil, ErrInvalidWeights
	}

	minWeight = max(minWeight, 1)

	// dp[w] holds minimum cost to reach exactly w, unreachable weights are marked by math.MaxInt64.
	dp := make([]int64, maxWeight+1)
	for w := 1; w <= maxWeight; w++ {
		dp[w] = math.MaxInt64
	}

	// taken[i] bit w is set when item i improved dp[w], used to backtrack without item reuse.
	words := (maxWeight + 64) / 64
	taken := make([][]uint64, len(costs))
	for i := range costs {
		if costs[i] < 0 || weights[i] < 0 {
			return nil, ErrInvalidWeights
		}

		taken[i] = make([]uint64, words)
		if weights[i] == 0 || weights[i] > maxWeight {
			continue
		}

		for w := maxWeight; w >= weights[i]; w-- {
			prev := dp[w-weights[i]]
			if prev == math.MaxInt64 {
				continue
			}

			if prev > math.MaxInt64-1-costs[i] {
				return nil, fmt.Errorf("%w: cost of weight %d overflows", ErrInvalidWeights, w)
			}

			if candidate := prev + costs[i]; candidate < dp[w] {
				dp[w] = candidate
				taken[i][w/64] |= 1 << (w % 64)
			}
		}
	}

	matches := make([]WeightMatch, 0)
	for w := minWeight; w <= maxWeight; w++ {
		if dp[w] == math.MaxInt64 {
			continue
		}

		match := WeightMatch{Weight: w, Cost: dp[w], Indexes: make([]int, 0)}
		for i, rest := len(costs)-1, w; i >= 0 && rest > 0; i-- {
			if taken[i][rest/64]&(1<<(rest%64)) != 0 {
				match.Indexes = append(match.Indexes, i)
				rest -= weights[i]
			}
		}

		slices.Reverse(match.Indexes)
		matches = append(matches, match)
	}

	return matches, nil
}
