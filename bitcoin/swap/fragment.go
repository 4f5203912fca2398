// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package swap

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/txengine/bitcoin"
	"github.com/BoostyLabs/txengine/bitcoin/txbuilder"
)

// FragmentSigHashType defines signature scope of the fragment input: own input and paired output only.
const FragmentSigHashType = txscript.SigHashSingle | txscript.SigHashAnyOneCanPay

// ErrInvalidFragment defines that counterparty fragment does not follow fragment rules.
var ErrInvalidFragment = errors.New("invalid swap fragment")

// Fragment is a counterparty partial transaction with exactly one input signed
// under SIGHASH_SINGLE|ANYONECANPAY and one paired payout output.
// Fragment input is finalized on creation and never changed afterwards.
type Fragment struct {
	input    psbt.PInput
	outPoint wire.OutPoint
	sequence uint32
	prevOut  *wire.TxOut
	payout   *wire.TxOut
}

// ParseFragment decodes base64 encoded fragment PSBT.
func ParseFragment(b64 string) (*Fragment, error) {
	packet, err := psbt.NewFromRawBytes(bytes.NewBufferString(b64), true)
	if err != nil {
		return nil, errors.Join(ErrInvalidFragment, err)
	}

	return NewFragment(packet)
}

// NewFragment validates and finalizes counterparty fragment.
func NewFragment(packet *psbt.Packet) (*Fragment, error) {
	if packet == nil || packet.UnsignedTx == nil {
		return nil, fmt.Errorf("%w: empty packet", ErrInvalidFragment)
	}

	tx := packet.UnsignedTx
	if len(tx.TxIn) != 1 || len(tx.TxOut) != 1 || len(packet.Inputs) != 1 {
		return nil, fmt.Errorf("%w: expected one input and one output, got %d and %d", ErrInvalidFragment, len(tx.TxIn), len(tx.TxOut))
	}
	if tx.TxIn[0].Sequence == 0 {
		return nil, fmt.Errorf("%w: zero sequence", ErrInvalidFragment)
	}
	// version and lock time are covered by every signature hash.
	if tx.Version != txbuilder.TxVersion || tx.LockTime != 0 {
		return nil, fmt.Errorf("%w: expected version %d without lock time", ErrInvalidFragment, txbuilder.TxVersion)
	}

	finalized, err := finalizedCopy(packet)
	if err != nil {
		return nil, err
	}

	input := finalized.Inputs[0]
	if input.WitnessUtxo == nil || len(input.FinalScriptWitness) == 0 {
		return nil, fmt.Errorf("%w: input is not a finalized witness input", ErrInvalidFragment)
	}

	witness, err := parseWitness(input.FinalScriptWitness)
	if err != nil {
		return nil, errors.Join(ErrInvalidFragment, err)
	}
	if len(witness) == 0 || !isFragmentSignature(witness[0]) {
		return nil, fmt.Errorf("%w: input is not signed with SIGHASH_SINGLE|ANYONECANPAY", ErrInvalidFragment)
	}

	return &Fragment{
		input:    input,
		outPoint: tx.TxIn[0].PreviousOutPoint,
		sequence: tx.TxIn[0].Sequence,
		prevOut:  input.WitnessUtxo,
		payout:   tx.TxOut[0],
	}, nil
}

// OutPoint returns spent asset output.
func (f *Fragment) OutPoint() wire.OutPoint {
	return f.outPoint
}

// AssetValue returns value of the spent asset output.
func (f *Fragment) AssetValue() *big.Int {
	return big.NewInt(f.prevOut.Value)
}

// Price returns maker payout value.
func (f *Fragment) Price() *big.Int {
	return big.NewInt(f.payout.Value)
}

// Payout returns copy of maker payout output.
func (f *Fragment) Payout() *wire.TxOut {
	return wire.NewTxOut(f.payout.Value, bytes.Clone(f.payout.PkScript))
}

// PayoutAddress resolves maker payout address, ErrUnresolvedCounterparty if script has no single address.
func (f *Fragment) PayoutAddress(networkParams *chaincfg.Params) (string, error) {
	class, addresses, _, err := txscript.ExtractPkScriptAddrs(f.payout.PkScript, networkParams)
	if err != nil || class == txscript.NonStandardTy || class == txscript.NullDataTy || len(addresses) != 1 {
		return "", fmt.Errorf("%w: payout script %x", bitcoin.ErrUnresolvedCounterparty, f.payout.PkScript)
	}

	return addresses[0].EncodeAddress(), nil
}

// pInput returns copy of the finalized fragment input stanza.
func (f *Fragment) pInput() *psbt.PInput {
	input := f.input
	input.FinalScriptWitness = bytes.Clone(f.input.FinalScriptWitness)
	input.FinalScriptSig = bytes.Clone(f.input.FinalScriptSig)

	return &input
}

// utxo returns fragment asset output as utxo.
func (f *Fragment) utxo() *bitcoin.UTXO {
	return &bitcoin.UTXO{
		TxHash:      f.outPoint.Hash.String(),
		Index:       f.outPoint.Index,
		Amount:      f.AssetValue(),
		Script:      f.prevOut.PkScript,
		AddressType: bitcoin.ClassifyScript(f.prevOut.PkScript),
	}
}

// finalizedCopy returns packet copy with finalized input.
func finalizedCopy(packet *psbt.Packet) (*psbt.Packet, error) {
	w := bytes.NewBuffer(nil)
	if err := packet.Serialize(w); err != nil {
		return nil, errors.Join(ErrInvalidFragment, err)
	}

	finalized, err := psbt.NewFromRawBytes(w, false)
	if err != nil {
		return nil, errors.Join(ErrInvalidFragment, err)
	}

	if !finalized.IsComplete() {
		if err = psbt.Finalize(finalized, 0); err != nil {
			return nil, errors.Join(ErrInvalidFragment, err)
		}
	}

	return finalized, nil
}

// parseWitness decodes serialized witness stack.
func parseWitness(serialized []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(serialized)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}

	witness := make(wire.TxWitness, 0, count)
	for i := uint64(0); i < count; i++ {
		item, err := wire.ReadVarBytes(r, 0, txscript.MaxScriptSize, "witness item")
		if err != nil {
			return nil, err
		}

		witness = append(witness, item)
	}

	return witness, nil
}

// isFragmentSignature returns true if signature carries SIGHASH_SINGLE|ANYONECANPAY flag.
// 64 bytes schnorr signature implies SIGHASH_DEFAULT.
func isFragmentSignature(sig []byte) bool {
	if len(sig) == 0 || len(sig) == schnorr.SignatureSize {
		return false
	}

	return txscript.SigHashType(sig[len(sig)-1]) == FragmentSigHashType
}

// Base64 returns fragment as finalized base64 PSBT.
func (f *Fragment) Base64() (string, error) {
	tx := wire.NewMsgTx(txbuilder.TxVersion)
	txIn := wire.NewTxIn(&f.outPoint, nil, nil)
	txIn.Sequence = f.sequence
	tx.AddTxIn(txIn)
	tx.AddTxOut(f.Payout())

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return "", err
	}
	packet.Inputs[0] = *f.pInput()

	w := bytes.NewBuffer(nil)
	if err = packet.Serialize(w); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(w.Bytes()), nil
}
