// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/BoostyLabs/txengine/bitcoin"
	"github.com/BoostyLabs/txengine/bitcoin/alkanes"
	"github.com/BoostyLabs/txengine/bitcoin/feerefine"
	"github.com/BoostyLabs/txengine/bitcoin/ord/runes"
	"github.com/BoostyLabs/txengine/bitcoin/txbuilder"
	"github.com/BoostyLabs/txengine/internal/numbers"
)

// Runes transfer output indexes.
const (
	RunestoneOutput  uint32 = 0
	RecipientOutput  uint32 = 1
	RuneChangeOutput uint32 = 2
)

// InscriptionSendParams describes inscribed utxo transfer.
type InscriptionSendParams struct {
	UTXO      bitcoin.UTXO
	Recipient string
	Funding
	FeeParams
}

// RunesSendParams describes rune transfer by edict.
type RunesSendParams struct {
	RuneID    runes.RuneID
	Amount    *big.Int // in rune units.
	Recipient string
	// ChangeAddress receives unallocated runes, wallet taproot account if empty.
	ChangeAddress string
	// Commission is an optional service payment sent to CommissionAddress.
	Commission        *big.Int
	CommissionAddress string
	Funding
	FeeParams
}

// RunesMintParams describes mint of an open rune.
type RunesMintParams struct {
	Rune      *bitcoin.Rune
	Recipient string // receives minted runes, wallet taproot account if empty.
	Height    uint64 // current block height to check mint window, zero skips the check.
	Funding
	FeeParams
}

// AlkanesExecuteParams describes alkanes contract call.
type AlkanesExecuteParams struct {
	Cellpack  *alkanes.Cellpack
	Recipient string         // receives call results, wallet taproot account if empty.
	Inputs    []bitcoin.UTXO // explicit inputs, e.g. alkane balances spent by the call.
	Funding
	FeeParams
}

// EstimateInscriptionSendFee returns refined fee of the inscription transfer.
func (e *Engine) EstimateInscriptionSendFee(ctx context.Context, params InscriptionSendParams) (*feerefine.Estimate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, rate, err := e.planInscriptionSend(ctx, params)
	if err != nil {
		return nil, err
	}

	return e.estimate(ctx, plan, rate)
}

// BuildInscriptionSend builds inscription transfer: inscribed utxo is input 0, its full value goes to output 0.
func (e *Engine) BuildInscriptionSend(ctx context.Context, params InscriptionSendParams, fee *big.Int) (*txbuilder.Skeleton, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, _, err := e.planInscriptionSend(ctx, params)
	if err != nil {
		return nil, err
	}

	return plan(ctx, fee)
}

// EstimateRunesSendFee returns refined fee of the rune transfer.
func (e *Engine) EstimateRunesSendFee(ctx context.Context, params RunesSendParams) (*feerefine.Estimate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, rate, err := e.planRunesSend(ctx, params)
	if err != nil {
		return nil, err
	}

	return e.estimate(ctx, plan, rate)
}

// BuildRunesSend builds rune transfer.
//
//	outputs:
//	┌─────────┬──────────────────┬────────────────────────────────────────┐
//	│  index  │       type       │             description                │
//	├=========┼==================┼========================================┤
//	│       0 │ runestone        │ edict to the recipient output          │
//	├─────────┼──────────────────┼────────────────────────────────────────┤
//	│       1 │ recipient        │ transferred runes                      │
//	├─────────┼──────────────────┼────────────────────────────────────────┤
//	│       2 │ rune change      │ optional, pointer target               │
//	├─────────┼──────────────────┼────────────────────────────────────────┤
//	│       3 │ commission       │ optional                               │
//	├─────────┼──────────────────┼────────────────────────────────────────┤
//	│       4 │ change           │ optional                               │
//	└─────────┴──────────────────┴────────────────────────────────────────┘
func (e *Engine) BuildRunesSend(ctx context.Context, params RunesSendParams, fee *big.Int) (*txbuilder.Skeleton, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, _, err := e.planRunesSend(ctx, params)
	if err != nil {
		return nil, err
	}

	return plan(ctx, fee)
}

// EstimateRunesMintFee returns refined fee of the rune mint.
func (e *Engine) EstimateRunesMintFee(ctx context.Context, params RunesMintParams) (*feerefine.Estimate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, rate, err := e.planRunesMint(ctx, params)
	if err != nil {
		return nil, err
	}

	return e.estimate(ctx, plan, rate)
}

// BuildRunesMint builds rune mint: runestone output 0 with pointer to the recipient dust output 1.
func (e *Engine) BuildRunesMint(ctx context.Context, params RunesMintParams, fee *big.Int) (*txbuilder.Skeleton, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, _, err := e.planRunesMint(ctx, params)
	if err != nil {
		return nil, err
	}

	return plan(ctx, fee)
}

// EstimateAlkanesExecuteFee returns refined fee of the alkanes contract call.
func (e *Engine) EstimateAlkanesExecuteFee(ctx context.Context, params AlkanesExecuteParams) (*feerefine.Estimate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, rate, err := e.planAlkanesExecute(ctx, params)
	if err != nil {
		return nil, err
	}

	return e.estimate(ctx, plan, rate)
}

// BuildAlkanesExecute builds alkanes contract call: recipient dust output 0 and runestone output 1
// carrying protostone with the cellpack, pointer and refund point to the recipient.
func (e *Engine) BuildAlkanesExecute(ctx context.Context, params AlkanesExecuteParams, fee *big.Int) (*txbuilder.Skeleton, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, _, err := e.planAlkanesExecute(ctx, params)
	if err != nil {
		return nil, err
	}

	return plan(ctx, fee)
}

func (e *Engine) planInscriptionSend(ctx context.Context, params InscriptionSendParams) (feerefine.BuildFunc, *big.Int, error) {
	if len(params.UTXO.Inscriptions) == 0 {
		return nil, nil, fmt.Errorf("%w: utxo %s:%d holds no inscriptions", bitcoin.ErrMalformedInput, params.UTXO.TxHash, params.UTXO.Index)
	}
	if _, err := bitcoin.ClassifyAddress(params.Recipient, e.networkParams); err != nil {
		return nil, nil, err
	}

	rate, pool, err := e.resolve(ctx, params.FeeParams, params.Funding)
	if err != nil {
		return nil, nil, err
	}

	inscribed := params.UTXO
	plan := func(ctx context.Context, fee *big.Int) (*txbuilder.Skeleton, error) {
		return e.builder.Build(ctx, txbuilder.BuildParams{
			Inputs:          []txbuilder.Input{{UTXO: &inscribed}},
			Outputs:         []txbuilder.Output{{Address: params.Recipient, Amount: inscribed.Amount}},
			Pool:            pool,
			Strategy:        params.Strategy,
			SatoshiPerVByte: rate,
			Fee:             fee,
		})
	}

	return plan, rate, nil
}

func (e *Engine) planRunesSend(ctx context.Context, params RunesSendParams) (feerefine.BuildFunc, *big.Int, error) {
	if params.Amount == nil || !numbers.IsPositive(params.Amount) {
		return nil, nil, errors.New("rune amount must be positive")
	}
	if _, err := bitcoin.ClassifyAddress(params.Recipient, e.networkParams); err != nil {
		return nil, nil, err
	}

	rate, pool, err := e.resolve(ctx, params.FeeParams, params.Funding)
	if err != nil {
		return nil, nil, err
	}

	runeUTXOs, totalRuneAmount, err := txbuilder.PrepareRuneUTXOs(holding(pool, params.RuneID), params.Amount, params.RuneID)
	if err != nil {
		return nil, nil, err
	}

	runestone := &runes.Runestone{
		Edicts: []runes.Edict{{RuneID: params.RuneID, Amount: params.Amount, Output: RecipientOutput}},
	}

	dust := big.NewInt(bitcoin.DustAmount)
	outputs := []txbuilder.Output{{}, {Address: params.Recipient, Amount: dust}}

	// unallocated runes, including other runes held by spent utxos, return to the sender.
	if numbers.IsGreater(totalRuneAmount, params.Amount) || holdsOtherRunes(runeUTXOs, params.RuneID) {
		changeAddress := params.ChangeAddress
		if changeAddress == "" {
			account, err := e.accounts.Account(bitcoin.AddressTypeTaproot)
			if err != nil {
				return nil, nil, err
			}

			changeAddress = account.Address
		}

		pointer := RuneChangeOutput
		runestone.Pointer = &pointer
		outputs = append(outputs, txbuilder.Output{Address: changeAddress, Amount: dust})
	}

	if params.Commission != nil && numbers.IsPositive(params.Commission) {
		outputs = append(outputs, txbuilder.Output{Address: params.CommissionAddress, Amount: params.Commission})
	}

	if err := runestone.Verify(len(outputs)); err != nil {
		return nil, nil, err
	}

	script, err := runestone.IntoScript()
	if err != nil {
		return nil, nil, err
	}
	outputs[RunestoneOutput] = txbuilder.Output{PkScript: script, Amount: big.NewInt(0)}

	inputs := make([]txbuilder.Input, 0, len(runeUTXOs))
	for _, utxo := range runeUTXOs {
		inputs = append(inputs, txbuilder.Input{UTXO: utxo})
	}

	e.log.Debugf("rune %s transfer of %s from %d utxos", params.RuneID.String(), params.Amount, len(runeUTXOs))

	plan := func(ctx context.Context, fee *big.Int) (*txbuilder.Skeleton, error) {
		return e.builder.Build(ctx, txbuilder.BuildParams{
			Inputs:          inputs,
			Outputs:         outputs,
			Pool:            pool,
			Strategy:        params.Strategy,
			SatoshiPerVByte: rate,
			Fee:             fee,
		})
	}

	return plan, rate, nil
}

func (e *Engine) planRunesMint(ctx context.Context, params RunesMintParams) (feerefine.BuildFunc, *big.Int, error) {
	if params.Rune == nil {
		return nil, nil, errors.New("no rune provided")
	}
	if err := params.Rune.CheckMintable(params.Height); err != nil {
		return nil, nil, err
	}

	recipient, err := e.orTaproot(params.Recipient)
	if err != nil {
		return nil, nil, err
	}

	mint, pointer := params.Rune.ID, RecipientOutput
	runestone := &runes.Runestone{Mint: &mint, Pointer: &pointer}
	outputs := []txbuilder.Output{{}, {Address: recipient, Amount: big.NewInt(bitcoin.DustAmount)}}
	if err := runestone.Verify(len(outputs)); err != nil {
		return nil, nil, err
	}

	script, err := runestone.IntoScript()
	if err != nil {
		return nil, nil, err
	}
	outputs[RunestoneOutput] = txbuilder.Output{PkScript: script, Amount: big.NewInt(0)}

	rate, pool, err := e.resolve(ctx, params.FeeParams, params.Funding)
	if err != nil {
		return nil, nil, err
	}

	e.log.Debugf("mint of %s %s to %s", params.Rune.MintAmount, params.Rune.SpacedName(), recipient)

	plan := func(ctx context.Context, fee *big.Int) (*txbuilder.Skeleton, error) {
		return e.builder.Build(ctx, txbuilder.BuildParams{
			Outputs:         outputs,
			Pool:            pool,
			Strategy:        params.Strategy,
			SatoshiPerVByte: rate,
			Fee:             fee,
		})
	}

	return plan, rate, nil
}

func (e *Engine) planAlkanesExecute(ctx context.Context, params AlkanesExecuteParams) (feerefine.BuildFunc, *big.Int, error) {
	if params.Cellpack == nil {
		return nil, nil, errors.New("no cellpack provided")
	}

	recipient, err := e.orTaproot(params.Recipient)
	if err != nil {
		return nil, nil, err
	}

	protostone, err := alkanes.NewExecuteProtostone(params.Cellpack, 0, 0)
	if err != nil {
		return nil, nil, err
	}

	runestone, err := alkanes.IntoRunestone(protostone)
	if err != nil {
		return nil, nil, err
	}
	if err := runestone.Verify(2); err != nil {
		return nil, nil, err
	}

	script, err := runestone.IntoScript()
	if err != nil {
		return nil, nil, err
	}

	rate, pool, err := e.resolve(ctx, params.FeeParams, params.Funding)
	if err != nil {
		return nil, nil, err
	}

	inputs := make([]txbuilder.Input, 0, len(params.Inputs))
	for i := range params.Inputs {
		inputs = append(inputs, txbuilder.Input{UTXO: &params.Inputs[i]})
	}

	e.log.Debugf("alkanes call of %s", params.Cellpack.Target)

	plan := func(ctx context.Context, fee *big.Int) (*txbuilder.Skeleton, error) {
		return e.builder.Build(ctx, txbuilder.BuildParams{
			Inputs: inputs,
			Outputs: []txbuilder.Output{
				{Address: recipient, Amount: big.NewInt(bitcoin.DustAmount)},
				{PkScript: script, Amount: big.NewInt(0)},
			},
			Pool:            pool,
			Strategy:        params.Strategy,
			SatoshiPerVByte: rate,
			Fee:             fee,
		})
	}

	return plan, rate, nil
}

// holding returns pool utxos holding the rune.
func holding(pool []bitcoin.UTXO, runeID runes.RuneID) []bitcoin.UTXO {
	utxos := make([]bitcoin.UTXO, 0)
	for _, utxo := range pool {
		for _, runeUTXO := range utxo.Runes {
			if runeUTXO.RuneID == runeID && numbers.IsPositive(runeUTXO.Amount) {
				utxos = append(utxos, utxo)
				break
			}
		}
	}

	return utxos
}

// holdsOtherRunes returns true if any utxo holds runes other than runeID.
func holdsOtherRunes(utxos []*bitcoin.UTXO, runeID runes.RuneID) bool {
	for _, utxo := range utxos {
		for _, runeUTXO := range utxo.Runes {
			if runeUTXO.RuneID != runeID {
				return true
			}
		}
	}

	return false
}

// orTaproot returns validated address, wallet taproot account address if empty.
func (e *Engine) orTaproot(address string) (string, error) {
	if address == "" {
		account, err := e.accounts.Account(bitcoin.AddressTypeTaproot)
		if err != nil {
			return "", err
		}

		address = account.Address
	}
	if _, err := bitcoin.ClassifyAddress(address, e.networkParams); err != nil {
		return "", err
	}

	return address, nil
}
