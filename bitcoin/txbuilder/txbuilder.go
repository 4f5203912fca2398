// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"

	"github.com/BoostyLabs/txengine/bitcoin"
	"github.com/BoostyLabs/txengine/internal/numbers"
)

// TxVersion defines transaction version for this builder.
const TxVersion int32 = 2

// NoChange defines change index of the transaction without change output.
const NoChange = -1

// PrevTxFetcher provides previous transactions for legacy inputs encoding.
type PrevTxFetcher interface {
	// RawTransaction returns transaction by its hash.
	RawTransaction(ctx context.Context, txHash string) (*wire.MsgTx, error)
}

// Input describes explicitly spent utxo.
type Input struct {
	UTXO *bitcoin.UTXO
	// Sequence overrides default max sequence if set.
	Sequence uint32
	// PInput is used verbatim instead of the wallet encoding, e.g. for counterparty signed inputs.
	PInput *psbt.PInput
}

// Output describes transaction output.
type Output struct {
	Address  string
	PkScript []byte // used instead of address if set.
	Amount   *big.Int
}

// BuildParams describes data needed to assemble transaction.
type BuildParams struct {
	Inputs          []Input  // explicit inputs, placed first in provided order.
	Outputs         []Output // destination outputs, placed first in provided order.
	Pool            []bitcoin.UTXO
	Strategy        SpendStrategy
	SatoshiPerVByte *big.Int
	Fee             *big.Int // used verbatim if set.
	ChangeAddress   string   // overrides strategy change account address if set.
}

// Skeleton describes assembled unsigned transaction with spent utxos.
// Invariant: sum(inputs) = sum(outputs) + fee.
type Skeleton struct {
	Packet      *psbt.Packet
	Inputs      []*bitcoin.UTXO // explicit inputs followed by selected.
	Selected    []*bitcoin.UTXO
	Target      *big.Int // sum of destination outputs.
	Fee         *big.Int
	Change      *big.Int
	ChangeIndex int
}

// Serialize returns serialized PSBT.
func (s *Skeleton) Serialize() ([]byte, error) {
	w := bytes.NewBuffer(nil)
	if err := s.Packet.Serialize(w); err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

// Base64 returns serialized PSBT in base64 encoding.
func (s *Skeleton) Base64() (string, error) {
	data, err := s.Serialize()
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// TxBuilder provides transaction assembling logic.
type TxBuilder struct {
	networkParams   *chaincfg.Params
	accounts        bitcoin.AccountProvider
	prevTxs         PrevTxFetcher
	changeThreshold *big.Int
}

// NewTxBuilder is a constructor for TxBuilder.
// Change not greater than changeThreshold is added to fee, relay dust threshold is used if nil.
func NewTxBuilder(networkParams *chaincfg.Params, accounts bitcoin.AccountProvider, prevTxs PrevTxFetcher, changeThreshold *big.Int) *TxBuilder {
	return &TxBuilder{
		networkParams:   networkParams,
		accounts:        accounts,
		prevTxs:         prevTxs,
		changeThreshold: changeThreshold,
	}
}

// NetworkParams returns builder network params.
func (b *TxBuilder) NetworkParams() *chaincfg.Params {
	return b.networkParams
}

// Build assembles transaction spending explicit inputs and fee-paying utxos selected from pool.
//
//	inputs:
//	┌─────────┬──────────────────┬────────────────────────────────────────┐
//	│  index  │       type       │             description                │
//	├=========┼==================┼========================================┤
//	│   0 - k │ explicit inputs  │ caller provided, e.g. rune utxos       │
//	├─────────┼──────────────────┼────────────────────────────────────────┤
//	│ k+1 - n │ selected inputs  │ fee-paying utxos by spend strategy     │
//	└─────────┴──────────────────┴────────────────────────────────────────┘
//
//	outputs:
//	┌─────────┬──────────────────┬────────────────────────────────────────┐
//	│  index  │       type       │             description                │
//	├=========┼==================┼========================================┤
//	│   0 - m │ destinations     │ caller provided, in order              │
//	├─────────┼──────────────────┼────────────────────────────────────────┤
//	│     m+1 │ change           │ optional, only above dust threshold    │
//	└─────────┴──────────────────┴────────────────────────────────────────┘
func (b *TxBuilder) Build(ctx context.Context, params BuildParams) (*Skeleton, error) {
	if params.Fee == nil && params.SatoshiPerVByte == nil {
		return nil, errors.New("either fee or fee rate must be provided")
	}

	strategy := params.Strategy.OrDefault()

	skeleton := &Skeleton{
		Inputs:      make([]*bitcoin.UTXO, 0, len(params.Inputs)),
		Target:      big.NewInt(0),
		Change:      big.NewInt(0),
		ChangeIndex: NoChange,
	}
	for _, output := range params.Outputs {
		if output.Amount == nil || output.Amount.Sign() < 0 {
			return nil, errors.New("output amount must not be negative")
		}

		skeleton.Target.Add(skeleton.Target, output.Amount)
	}

	explicitTypes := make([]bitcoin.AddressType, 0, len(params.Inputs))
	explicitTotal := big.NewInt(0)
	for _, input := range params.Inputs {
		if input.UTXO == nil || input.UTXO.Amount == nil {
			return nil, fmt.Errorf("%w: explicit input without utxo", bitcoin.ErrMalformedInput)
		}

		skeleton.Inputs = append(skeleton.Inputs, input.UTXO)
		explicitTypes = append(explicitTypes, input.UTXO.ResolvedAddressType())
		explicitTotal.Add(explicitTotal, input.UTXO.Amount)
	}

	selection, fee, err := b.selectFeePaying(params, strategy, explicitTypes, explicitTotal, skeleton.Target)
	if err != nil {
		return nil, err
	}

	skeleton.Selected = selection.UTXOs
	skeleton.Inputs = append(skeleton.Inputs, selection.UTXOs...)
	skeleton.Fee = fee

	tx := wire.NewMsgTx(TxVersion)
	for i, utxo := range skeleton.Inputs {
		outPoint, err := utxo.OutPoint()
		if err != nil {
			return nil, errors.Join(bitcoin.ErrMalformedInput, err)
		}

		txIn := wire.NewTxIn(outPoint, nil, nil)
		if i < len(params.Inputs) && params.Inputs[i].Sequence != 0 {
			txIn.Sequence = params.Inputs[i].Sequence
		}

		tx.AddTxIn(txIn)
	}

	for _, output := range params.Outputs {
		pkScript := output.PkScript
		if len(pkScript) == 0 {
			pkScript, err = bitcoin.PayToAddress(output.Address, b.networkParams)
			if err != nil {
				return nil, err
			}
		}

		tx.AddTxOut(wire.NewTxOut(output.Amount.Int64(), pkScript))
	}

	change := new(big.Int).Sub(bitcoin.SumAmounts(skeleton.Inputs), skeleton.Target)
	change.Sub(change, fee)
	if change.Sign() < 0 {
		return nil, NewInsufficientError(InsufficientErrorTypeBitcoin, new(big.Int).Add(skeleton.Target, fee), bitcoin.SumAmounts(skeleton.Inputs))
	}

	changeOutput, err := b.changeOutput(params.ChangeAddress, strategy.ChangeAddressType, change)
	if err != nil {
		return nil, err
	}

	if changeOutput != nil {
		skeleton.Change = change
		skeleton.ChangeIndex = len(tx.TxOut)
		tx.AddTxOut(changeOutput)
	} else {
		// dust change is donated to miners.
		skeleton.Fee = new(big.Int).Add(fee, change)
	}

	skeleton.Packet, err = psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}

	if err = b.encodeInputs(ctx, skeleton.Packet, params.Inputs, skeleton.Inputs); err != nil {
		return nil, err
	}

	return skeleton, nil
}

// selectFeePaying selects fee-paying utxos and returns them with the fee they are paying.
// Analytic fee is recomputed with the actual input types until it stops growing.
func (b *TxBuilder) selectFeePaying(params BuildParams, strategy SpendStrategy, explicitTypes []bitcoin.AddressType,
	explicitTotal, target *big.Int) (*Selection, *big.Int, error) {
	outputs := len(params.Outputs) + 1 // change output is always counted.
	feeFor := func(selected []bitcoin.AddressType) *big.Int {
		if params.Fee != nil {
			return new(big.Int).Set(params.Fee)
		}

		return EstimateFee(append(append([]bitcoin.AddressType{}, explicitTypes...), selected...), outputs, params.SatoshiPerVByte)
	}

	pool := excludeSpent(params.Pool, params.Inputs)
	emptySelection := &Selection{UTXOs: make([]*bitcoin.UTXO, 0), Total: big.NewInt(0)}

	fee := feeFor(nil)
	if !numbers.IsGreater(new(big.Int).Add(target, fee), explicitTotal) {
		return emptySelection, fee, nil
	}

	// provisional fee assumes one input of the preferred type.
	fee = feeFor(strategy.AddressTypes[:1])
	for attempt := 0; attempt <= len(pool); attempt++ {
		need := new(big.Int).Add(target, fee)
		need.Sub(need, explicitTotal)

		selection, err := SelectUTXOs(pool, need, strategy)
		if err != nil {
			return nil, nil, err
		}

		actualFee := feeFor(selection.AddressTypes())
		if !numbers.IsGreater(actualFee, fee) {
			return selection, actualFee, nil
		}

		fee = actualFee
	}

	return nil, nil, NewInsufficientError(InsufficientErrorTypeBitcoin, new(big.Int).Add(target, fee), nil)
}

// changeOutput returns change output if change is above dust threshold.
func (b *TxBuilder) changeOutput(changeAddress string, changeAddressType bitcoin.AddressType, change *big.Int) (*wire.TxOut, error) {
	if change.Sign() <= 0 {
		return nil, nil
	}

	if changeAddress == "" {
		account, err := b.accounts.Account(changeAddressType)
		if err != nil {
			return nil, err
		}

		changeAddress = account.Address
	}

	pkScript, err := bitcoin.PayToAddress(changeAddress, b.networkParams)
	if err != nil {
		return nil, err
	}

	txOut := wire.NewTxOut(change.Int64(), pkScript)
	if b.changeThreshold != nil {
		if !numbers.IsGreater(change, b.changeThreshold) {
			return nil, nil
		}

		return txOut, nil
	}

	if txrules.IsDustOutput(txOut, txrules.DefaultRelayFeePerKb) {
		return nil, nil
	}

	return txOut, nil
}

// encodeInputs fills psbt inputs and writes wallet inputs indexes into packet unknowns.
func (b *TxBuilder) encodeInputs(ctx context.Context, p *psbt.Packet, explicit []Input, utxos []*bitcoin.UTXO) error {
	indexes := make(map[InputsHelpingKey][]int)
	for i, utxo := range utxos {
		if i < len(explicit) && explicit[i].PInput != nil {
			p.Inputs[i] = *explicit[i].PInput
			continue
		}

		addressType := utxo.ResolvedAddressType()
		account, err := b.accounts.Account(addressType)
		if err != nil {
			return err
		}

		var prevTx *wire.MsgTx
		if addressType == bitcoin.AddressTypeLegacy {
			if b.prevTxs == nil {
				return fmt.Errorf("%w: no previous transactions source for legacy input", bitcoin.ErrMalformedInput)
			}

			prevTx, err = b.prevTxs.RawTransaction(ctx, utxo.TxHash)
			if err != nil {
				return err
			}
		}

		pib, err := NewPSBTInputBuilder(account)
		if err != nil {
			return err
		}

		if err = pib.PrepareInput(&p.Inputs[i], utxo, prevTx); err != nil {
			return err
		}

		indexes[pib.InputsHelpingKey()] = append(indexes[pib.InputsHelpingKey()], i)
	}

	return WriteInputIndexes(p, indexes)
}

// excludeSpent returns pool without utxos spent explicitly.
func excludeSpent(pool []bitcoin.UTXO, inputs []Input) []bitcoin.UTXO {
	if len(inputs) == 0 {
		return pool
	}

	filtered := make([]bitcoin.UTXO, 0, len(pool))
	for _, utxo := range pool {
		spent := false
		for _, input := range inputs {
			if input.UTXO.TxHash == utxo.TxHash && input.UTXO.Index == utxo.Index {
				spent = true
				break
			}
		}

		if !spent {
			filtered = append(filtered, utxo)
		}
	}

	return filtered
}
