// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package utils

import (
	"bytes"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

// ErrLeafNotFound defines that leaf script is not a part of the tapScript tree.
var ErrLeafNotFound = errors.New("leaf script not found in tree")

// NewTapScriptTreeFromRawScripts builds tapScript tree from provided raw leaf scripts.
func NewTapScriptTreeFromRawScripts(leafScripts ...[]byte) (*txscript.IndexedTapScriptTree, error) {
	if len(leafScripts) == 0 {
		return nil, errors.New("no leaf scripts provided")
	}

	var tapLeafs = make([]txscript.TapLeaf, len(leafScripts))
	for i, leafScript := range leafScripts {
		tapLeafs[i] = txscript.NewBaseTapLeaf(leafScript)
	}

	return txscript.AssembleTaprootScriptTree(tapLeafs...), nil
}

// ControlBlockForLeaf returns control block for leaf script spending.
func ControlBlockForLeaf(tapScriptTree *txscript.IndexedTapScriptTree, internalKey []byte, leafScript []byte) (*txscript.ControlBlock, error) {
	internalPublicKey, err := schnorr.ParsePubKey(internalKey)
	if err != nil {
		return nil, err
	}

	for _, proof := range tapScriptTree.LeafMerkleProofs {
		if bytes.Equal(proof.TapLeaf.Script, leafScript) {
			ctrlBlock := proof.ToControlBlock(internalPublicKey)
			return &ctrlBlock, nil
		}
	}

	return nil, ErrLeafNotFound
}

// UpdatePSBTInputWithTapScriptLeafData updates provided psbt input with all data needed to sign taproot utxo by script path.
func UpdatePSBTInputWithTapScriptLeafData(input *psbt.PInput, tapScriptTree *txscript.IndexedTapScriptTree, leafScript []byte) error {
	if len(input.TaprootInternalKey) == 0 {
		return errors.New("no taproot internal key provided")
	}
	if len(leafScript) == 0 {
		return errors.New("no leaf script provided")
	}

	ctrlBlock, err := ControlBlockForLeaf(tapScriptTree, input.TaprootInternalKey, leafScript)
	if err != nil {
		return err
	}

	tapLeaf := txscript.NewBaseTapLeaf(leafScript)
	tapLeafScript := &psbt.TaprootTapLeafScript{
		Script:      tapLeaf.Script,
		LeafVersion: tapLeaf.LeafVersion,
	}
	tapLeafScript.ControlBlock, err = ctrlBlock.ToBytes()
	if err != nil {
		return err
	}

	if len(input.TaprootLeafScript) == 0 {
		input.TaprootLeafScript = []*psbt.TaprootTapLeafScript{tapLeafScript}
	}

	if len(input.TaprootMerkleRoot) == 0 {
		input.TaprootMerkleRoot = ctrlBlock.RootHash(tapLeaf.Script)
	}

	return nil
}
