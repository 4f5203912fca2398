// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/txengine/bitcoin"
)

// witnessScaleFactor defines weight units per virtual byte.
const witnessScaleFactor = blockchain.WitnessScaleFactor

// EstimateWeight returns analytic tx weight for inputs of provided address types and outputs count.
func EstimateWeight(inputs []bitcoin.AddressType, outputs int) int64 {
	weight := bitcoin.TxOverheadWeight
	for _, addressType := range inputs {
		weight += addressType.InputWeight()
	}

	return weight + int64(outputs)*bitcoin.OutputWeight
}

// WeightToVSize converts weight units to virtual bytes rounding up.
func WeightToVSize(weight int64) int64 {
	return (weight + witnessScaleFactor - 1) / witnessScaleFactor
}

// FeeForVSize returns fee in satoshi for provided virtual size and fee rate in satoshi per virtual byte.
func FeeForVSize(vSize int64, satoshiPerVByte *big.Int) *big.Int {
	return new(big.Int).Mul(big.NewInt(vSize), satoshiPerVByte)
}

// EstimateFee returns analytic fee for inputs of provided address types and outputs count.
func EstimateFee(inputs []bitcoin.AddressType, outputs int, satoshiPerVByte *big.Int) *big.Int {
	return FeeForVSize(WeightToVSize(EstimateWeight(inputs, outputs)), satoshiPerVByte)
}

// MeasureVSize returns exact virtual size of the transaction, witness included.
func MeasureVSize(tx *wire.MsgTx) int64 {
	return WeightToVSize(blockchain.GetTransactionWeight(btcutil.NewTx(tx)))
}
