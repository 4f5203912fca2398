// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/txengine/bitcoin/utils"
)

// Commitment describes taproot output committing to the inscription reveal script.
// Created once per inscription and spent by exactly one reveal transaction.
type Commitment struct {
	InternalKey  *btcec.PublicKey
	RevealScript []byte
	Tree         *txscript.IndexedTapScriptTree
	ControlBlock []byte
	Address      *btcutil.AddressTaproot
	PkScript     []byte
}

// NewCommitment returns commitment to the inscription envelope locked by internal key signature.
func NewCommitment(inscription *Inscription, internalKey *btcec.PublicKey, chainParams *chaincfg.Params) (*Commitment, error) {
	xOnlyKey := schnorr.SerializePubKey(internalKey)
	revealScript, err := inscription.IntoScriptForWitness(xOnlyKey)
	if err != nil {
		return nil, err
	}

	tree, err := utils.NewTapScriptTreeFromRawScripts(revealScript)
	if err != nil {
		return nil, err
	}

	address, err := utils.NewTaprootAddressFromTree(chainParams, internalKey, tree)
	if err != nil {
		return nil, err
	}

	ctrlBlock, err := utils.ControlBlockForLeaf(tree, xOnlyKey, revealScript)
	if err != nil {
		return nil, err
	}

	ctrlBlockBytes, err := ctrlBlock.ToBytes()
	if err != nil {
		return nil, err
	}

	pkScript, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, err
	}

	return &Commitment{
		InternalKey:  internalKey,
		RevealScript: revealScript,
		Tree:         tree,
		ControlBlock: ctrlBlockBytes,
		Address:      address,
		PkScript:     pkScript,
	}, nil
}

// UpdateInput fills psbt input spending the commitment output by the script path.
func (c *Commitment) UpdateInput(input *psbt.PInput, value int64) error {
	input.WitnessUtxo = wire.NewTxOut(value, c.PkScript)
	input.TaprootInternalKey = schnorr.SerializePubKey(c.InternalKey)
	input.SighashType = txscript.SigHashDefault

	return utils.UpdatePSBTInputWithTapScriptLeafData(input, c.Tree, c.RevealScript)
}

// Witness returns reveal witness stack: signature, reveal script and control block.
func (c *Commitment) Witness(signature []byte) wire.TxWitness {
	return wire.TxWitness{signature, c.RevealScript, c.ControlBlock}
}
