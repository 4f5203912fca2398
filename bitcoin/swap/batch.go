// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/txengine/bitcoin"
	"github.com/BoostyLabs/txengine/bitcoin/feerefine"
	"github.com/BoostyLabs/txengine/bitcoin/txbuilder"
)

// ErrDependencyFailed defines that transaction spends outputs of a transaction which was not broadcast.
var ErrDependencyFailed = errors.New("parent swap transaction was not broadcast")

// BatchParams describes fragments composed one after another from the same pool.
type BatchParams struct {
	Fragments       []*Fragment
	Pool            []bitcoin.UTXO
	AssetReceiver   string
	PaddingAddress  string
	Strategy        txbuilder.SpendStrategy
	SatoshiPerVByte *big.Int
	// Refiner refines fee of each swap by dry signing, analytic fee is used if nil.
	Refiner *feerefine.Refiner
}

// BatchItem describes composition result of a single fragment.
type BatchItem struct {
	Fragment    *Fragment
	Composition *Composition
	Tx          *wire.MsgTx
	Err         error
}

// BatchResult describes composed batch.
type BatchResult struct {
	Items []BatchItem
	Pool  []bitcoin.UTXO // pool after all successful swaps.
}

// BroadcastResult describes broadcast result of a single batch item.
type BroadcastResult struct {
	TxID string
	Err  error
}

// ComposeBatch composes and signs fragments in order. Each next swap spends fresh padding
// outputs and change of the previous successful one. Failed fragment leaves the pool untouched
// and does not stop the batch.
func (c *Composer) ComposeBatch(ctx context.Context, params BatchParams) (*BatchResult, error) {
	pool := slices.Clone(params.Pool)
	result := &BatchResult{Items: make([]BatchItem, 0, len(params.Fragments))}

	for i, fragment := range params.Fragments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := BatchItem{Fragment: fragment}
		single := Params{
			Fragment:        fragment,
			Pool:            pool,
			AssetReceiver:   params.AssetReceiver,
			PaddingAddress:  params.PaddingAddress,
			Strategy:        params.Strategy,
			SatoshiPerVByte: params.SatoshiPerVByte,
		}

		item.Composition, item.Tx, item.Err = c.composeSigned(ctx, single, params.Refiner)
		if item.Err != nil {
			c.log.Warnf("swap %d of %d skipped: %v", i+1, len(params.Fragments), item.Err)
			result.Items = append(result.Items, item)
			continue
		}

		pool = advancePool(pool, item.Composition, item.Tx)
		result.Items = append(result.Items, item)
	}

	result.Pool = pool

	return result, nil
}

// BroadcastBatch submits composed swaps in order. Swap spending outputs of a failed
// or halted swap is halted with ErrDependencyFailed, independent swaps are still submitted.
func (c *Composer) BroadcastBatch(ctx context.Context, items []BatchItem) []BroadcastResult {
	results := make([]BroadcastResult, len(items))
	failed := make(map[string]struct{})

	for i, item := range items {
		if item.Err != nil || item.Tx == nil {
			results[i].Err = item.Err
			if results[i].Err == nil {
				results[i].Err = errors.New("swap is not composed")
			}
			continue
		}

		txID := item.Tx.TxHash().String()
		results[i].TxID = txID

		if parent, ok := spendsAny(item.Tx, failed); ok {
			results[i].Err = fmt.Errorf("%w: %s", ErrDependencyFailed, parent)
			failed[txID] = struct{}{}
			continue
		}

		if _, err := c.Submit(ctx, item.Tx); err != nil {
			c.log.Errorf("swap %s rejected: %v", txID, err)
			results[i].Err = err
			failed[txID] = struct{}{}
		}
	}

	return results
}

// composeSigned composes swap at refined fee and signs it.
func (c *Composer) composeSigned(ctx context.Context, params Params, refiner *feerefine.Refiner) (*Composition, *wire.MsgTx, error) {
	var fee *big.Int
	if refiner != nil {
		estimate, err := refiner.Estimate(ctx, func(ctx context.Context, fee *big.Int) (*txbuilder.Skeleton, error) {
			composition, err := c.Compose(ctx, params, fee)
			if err != nil {
				return nil, err
			}

			return composition.Skeleton, nil
		}, params.SatoshiPerVByte)
		if err != nil {
			return nil, nil, err
		}

		fee = estimate.Fee
	}

	composition, err := c.Compose(ctx, params, fee)
	if err != nil {
		return nil, nil, err
	}

	tx, err := c.Complete(ctx, composition)
	if err != nil {
		return nil, nil, err
	}

	return composition, tx, nil
}

// advancePool removes spent utxos and puts fresh padding and change outputs first.
func advancePool(pool []bitcoin.UTXO, composition *Composition, tx *wire.MsgTx) []bitcoin.UTXO {
	txHash := tx.TxHash().String()

	fresh := make([]int, 0, len(composition.PaddingIndexes)+1)
	fresh = append(fresh, composition.PaddingIndexes...)
	if composition.ChangeIndex != txbuilder.NoChange {
		fresh = append(fresh, composition.ChangeIndex)
	}

	next := make([]bitcoin.UTXO, 0, len(pool)+len(fresh))
	for _, index := range fresh {
		out := tx.TxOut[index]
		next = append(next, bitcoin.UTXO{
			TxHash:      txHash,
			Index:       uint32(index),
			Amount:      big.NewInt(out.Value),
			Script:      out.PkScript,
			AddressType: bitcoin.ClassifyScript(out.PkScript),
		})
	}

	for _, utxo := range pool {
		if isSpent(tx, utxo) {
			continue
		}

		next = append(next, utxo)
	}

	return next
}

// isSpent returns true if transaction spends the utxo.
func isSpent(tx *wire.MsgTx, utxo bitcoin.UTXO) bool {
	for _, txIn := range tx.TxIn {
		if txIn.PreviousOutPoint.Index == utxo.Index && txIn.PreviousOutPoint.Hash.String() == utxo.TxHash {
			return true
		}
	}

	return false
}

// spendsAny returns hash of the first listed transaction spent by tx.
func spendsAny(tx *wire.MsgTx, txIDs map[string]struct{}) (string, bool) {
	for _, txIn := range tx.TxIn {
		parent := txIn.PreviousOutPoint.Hash.String()
		if _, ok := txIDs[parent]; ok {
			return parent, true
		}
	}

	return "", false
}
