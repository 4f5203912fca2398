// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/txengine/bitcoin"
)

// ErrNotOwnInput defines that input could not be signed by signer keys.
var ErrNotOwnInput = errors.New("input is not owned by signer")

// ensures that Signer implements bitcoin.Signer.
var _ bitcoin.Signer = (*Signer)(nil)

// key describes signing key of the address type with its pkScript.
type key struct {
	addressType bitcoin.AddressType
	privateKey  *btcec.PrivateKey
	pkScript    []byte
}

// signInputParams defines parameters for signInput method.
type signInputParams struct {
	packet       *psbt.Packet
	input        int
	inputFetcher txscript.PrevOutputFetcher
	sigHashes    *txscript.TxSigHashes
}

// Signer signs psbt inputs with local private keys.
// Inputs are matched to keys by their previous output scripts, inputs of other owners are skipped.
type Signer struct {
	networkParams *chaincfg.Params
	keys          []key
}

// NewSigner is a constructor for Signer.
func NewSigner(networkParams *chaincfg.Params, keys map[bitcoin.AddressType]*btcec.PrivateKey) (*Signer, error) {
	signer := &Signer{networkParams: networkParams}
	for _, addressType := range bitcoin.AddressTypes {
		privateKey, ok := keys[addressType]
		if !ok {
			continue
		}

		address, err := bitcoin.AddressFromPublicKey(privateKey.PubKey(), addressType, networkParams)
		if err != nil {
			return nil, err
		}

		pkScript, err := txscript.PayToAddrScript(address)
		if err != nil {
			return nil, err
		}

		signer.keys = append(signer.keys, key{addressType: addressType, privateKey: privateKey, pkScript: pkScript})
	}

	if len(signer.keys) == 0 {
		return nil, errors.New("no keys provided")
	}

	return signer, nil
}

// NewSignerFromKey returns Signer using the same private key for all provided address types, all if none provided.
func NewSignerFromKey(networkParams *chaincfg.Params, privateKey *btcec.PrivateKey, types ...bitcoin.AddressType) (*Signer, error) {
	if len(types) == 0 {
		types = bitcoin.AddressTypes
	}

	keys := make(map[bitcoin.AddressType]*btcec.PrivateKey, len(types))
	for _, addressType := range types {
		keys[addressType] = privateKey
	}

	return NewSigner(networkParams, keys)
}

// SignAll signs copy of the packet inputs owned by signer, finalizes all inputs if finalize is set.
func (signer *Signer) SignAll(ctx context.Context, packet *psbt.Packet, finalize bool) (*psbt.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	signed, err := copyPacket(packet)
	if err != nil {
		return nil, err
	}

	fetcher, err := prevOutputFetcher(signed)
	if err != nil {
		return nil, err
	}

	sigHashes := txscript.NewTxSigHashes(signed.UnsignedTx, fetcher)
	for idx := range signed.Inputs {
		err = signer.signInput(signInputParams{
			packet:       signed,
			input:        idx,
			inputFetcher: fetcher,
			sigHashes:    sigHashes,
		})
		if err != nil && !errors.Is(err, ErrNotOwnInput) {
			return nil, fmt.Errorf("sign input %d: %w", idx, err)
		}
	}

	if finalize {
		if err = psbt.MaybeFinalizeAll(signed); err != nil {
			return nil, err
		}
	}

	return signed, nil
}

// SignInput signs copy of the packet input by index without finalization.
func (signer *Signer) SignInput(ctx context.Context, packet *psbt.Packet, index int) (*psbt.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if index < 0 || index >= len(packet.Inputs) {
		return nil, errors.New("invalid input index")
	}

	signed, err := copyPacket(packet)
	if err != nil {
		return nil, err
	}

	fetcher, err := prevOutputFetcher(signed)
	if err != nil {
		return nil, err
	}

	err = signer.signInput(signInputParams{
		packet:       signed,
		input:        index,
		inputFetcher: fetcher,
		sigHashes:    txscript.NewTxSigHashes(signed.UnsignedTx, fetcher),
	})
	if err != nil {
		return nil, err
	}

	return signed, nil
}

// signInput signs input by the key owning its previous output.
func (signer *Signer) signInput(params signInputParams) error {
	input := &params.packet.Inputs[params.input]
	if input.FinalScriptWitness != nil || input.FinalScriptSig != nil {
		return ErrNotOwnInput
	}

	prevOut := params.inputFetcher.FetchPrevOutput(params.packet.UnsignedTx.TxIn[params.input].PreviousOutPoint)
	if prevOut == nil {
		return ErrNotOwnInput
	}

	if len(input.TaprootLeafScript) != 0 {
		return signer.signTaprootScriptPath(params, prevOut)
	}

	for _, k := range signer.keys {
		if !bytes.Equal(k.pkScript, prevOut.PkScript) {
			continue
		}

		switch k.addressType {
		case bitcoin.AddressTypeTaproot:
			return signer.signTaprootKeyPath(params, prevOut, k.privateKey)
		default:
			return signer.signECDSA(params, prevOut, k)
		}
	}

	return ErrNotOwnInput
}

// signTaprootKeyPath signs taproot input by the key path.
func (signer *Signer) signTaprootKeyPath(params signInputParams, prevOut *wire.TxOut, privateKey *btcec.PrivateKey) error {
	input := &params.packet.Inputs[params.input]
	witness, err := txscript.TaprootWitnessSignature(
		params.packet.UnsignedTx, params.sigHashes, params.input,
		prevOut.Value, prevOut.PkScript, input.SighashType, privateKey)
	if err != nil {
		return err
	}

	input.TaprootKeySpendSig = witness[0]

	return nil
}

// signTaprootScriptPath signs taproot input by the leaf script with the key matching internal key.
func (signer *Signer) signTaprootScriptPath(params signInputParams, prevOut *wire.TxOut) error {
	input := &params.packet.Inputs[params.input]

	var privateKey *btcec.PrivateKey
	for _, k := range signer.keys {
		if bytes.Equal(schnorr.SerializePubKey(k.privateKey.PubKey()), input.TaprootInternalKey) {
			privateKey = k.privateKey
			break
		}
	}
	if privateKey == nil {
		return ErrNotOwnInput
	}

	leafScript := input.TaprootLeafScript[0]
	tapLeaf := txscript.NewTapLeaf(leafScript.LeafVersion, leafScript.Script)
	leafHash := tapLeaf.TapHash()

	sig, err := txscript.RawTxInTapscriptSignature(
		params.packet.UnsignedTx, params.sigHashes, params.input,
		prevOut.Value, prevOut.PkScript, tapLeaf, input.SighashType, privateKey,
	)
	if err != nil {
		return err
	}

	// sighash flag is stored separately and appended back on finalization.
	if len(sig) > schnorr.SignatureSize {
		sig = sig[:schnorr.SignatureSize]
	}

	input.TaprootScriptSpendSig = []*psbt.TaprootScriptSpendSig{{
		XOnlyPubKey: schnorr.SerializePubKey(privateKey.PubKey()),
		LeafHash:    leafHash.CloneBytes(),
		Signature:   sig,
		SigHash:     input.SighashType,
	}}

	return nil
}

// signECDSA signs legacy, nested segwit and native segwit inputs.
func (signer *Signer) signECDSA(params signInputParams, prevOut *wire.TxOut, k key) error {
	var (
		input       = &params.packet.Inputs[params.input]
		tx          = params.packet.UnsignedTx
		sigHashType = input.SighashType
		sig         []byte
		err         error
	)
	if sigHashType == txscript.SigHashDefault {
		sigHashType = txscript.SigHashAll
	}

	switch k.addressType {
	case bitcoin.AddressTypeLegacy:
		sig, err = txscript.RawTxInSignature(tx, params.input, prevOut.PkScript, sigHashType, k.privateKey)
	case bitcoin.AddressTypeNestedSegwit:
		if len(input.RedeemScript) == 0 {
			return fmt.Errorf("%w: no redeem script", bitcoin.ErrMalformedInput)
		}

		sig, err = txscript.RawTxInWitnessSignature(tx, params.sigHashes, params.input,
			prevOut.Value, input.RedeemScript, sigHashType, k.privateKey)
	case bitcoin.AddressTypeNativeSegwit:
		sig, err = txscript.RawTxInWitnessSignature(tx, params.sigHashes, params.input,
			prevOut.Value, prevOut.PkScript, sigHashType, k.privateKey)
	default:
		return ErrNotOwnInput
	}
	if err != nil {
		return err
	}

	input.SighashType = sigHashType
	input.PartialSigs = []*psbt.PartialSig{{
		PubKey:    k.privateKey.PubKey().SerializeCompressed(),
		Signature: sig,
	}}

	return nil
}

// prevOutputFetcher returns fetcher of all packet inputs previous outputs.
func prevOutputFetcher(packet *psbt.Packet) (*txscript.MultiPrevOutFetcher, error) {
	var (
		tx                   = packet.UnsignedTx
		prevOutputFetcherMap = make(map[wire.OutPoint]*wire.TxOut, len(tx.TxIn))
	)
	for idx, in := range packet.Inputs {
		outPoint := tx.TxIn[idx].PreviousOutPoint
		switch {
		case in.WitnessUtxo != nil:
			prevOutputFetcherMap[outPoint] = in.WitnessUtxo
		case in.NonWitnessUtxo != nil:
			if int(outPoint.Index) >= len(in.NonWitnessUtxo.TxOut) {
				return nil, fmt.Errorf("%w: previous output %s not found", bitcoin.ErrMalformedInput, outPoint)
			}

			prevOutputFetcherMap[outPoint] = in.NonWitnessUtxo.TxOut[outPoint.Index]
		default:
			return nil, fmt.Errorf("%w: input %d has no previous output", bitcoin.ErrMalformedInput, idx)
		}
	}

	return txscript.NewMultiPrevOutFetcher(prevOutputFetcherMap), nil
}

// copyPacket returns deep copy of the packet.
func copyPacket(packet *psbt.Packet) (*psbt.Packet, error) {
	w := bytes.NewBuffer(nil)
	if err := packet.Serialize(w); err != nil {
		return nil, err
	}

	return psbt.NewFromRawBytes(w, false)
}
