// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/txengine/bitcoin"
)

// ErrPSBTInputBuilder defines errors class for psbt input preparation.
var ErrPSBTInputBuilder = errors.New("prepare psbt input")

// PSBTInputBuilder is a helping tool to prepare psbt input based on account address type.
type PSBTInputBuilder struct {
	addressType  bitcoin.AddressType
	xOnlyPubKey  []byte
	redeemScript []byte
}

// NewPSBTInputBuilder is a constructor for PSBTInputBuilder.
func NewPSBTInputBuilder(account bitcoin.Account) (pib *PSBTInputBuilder, err error) {
	pib = &PSBTInputBuilder{addressType: account.Type}

	defer func(err *error) {
		if err != nil && *err != nil {
			*err = errors.Join(ErrPSBTInputBuilder, bitcoin.ErrMalformedInput, *err)
		}
	}(&err)

	if account.PublicKey == nil {
		return nil, errors.New("no public key provided")
	}

	switch account.Type {
	case bitcoin.AddressTypeTaproot:
		pib.xOnlyPubKey = account.XOnlyPublicKey()
	case bitcoin.AddressTypeNestedSegwit:
		pib.redeemScript, err = bitcoin.NestedSegwitRedeemScript(account.PublicKey)
		if err != nil {
			return nil, err
		}
	case bitcoin.AddressTypeNativeSegwit, bitcoin.AddressTypeLegacy:
	default:
		return nil, fmt.Errorf("%w: %s", bitcoin.ErrUnsupportedAddressType, account.Type)
	}

	return pib, nil
}

// PrepareInput updates input with the fields required to sign utxo of the builder address type.
// Legacy inputs carry full previous transaction only, segwit inputs carry previous output only.
// Input is not modified on error.
func (pib *PSBTInputBuilder) PrepareInput(input *psbt.PInput, utxo *bitcoin.UTXO, prevTx *wire.MsgTx) (err error) {
	defer func(err *error) {
		if err != nil && *err != nil {
			*err = errors.Join(ErrPSBTInputBuilder, bitcoin.ErrMalformedInput, *err)
		}
	}(&err)

	if utxo == nil || utxo.Amount == nil || utxo.Amount.Sign() <= 0 {
		return errors.New("utxo amount must be positive")
	}

	switch pib.addressType {
	case bitcoin.AddressTypeLegacy:
		if prevTx == nil {
			return errors.New("previous transaction is required for legacy input")
		}

		if prevTx.TxHash().String() != utxo.TxHash || int(utxo.Index) >= len(prevTx.TxOut) {
			return fmt.Errorf("previous transaction does not match %s:%d", utxo.TxHash, utxo.Index)
		}

		input.NonWitnessUtxo = prevTx
		input.SighashType = txscript.SigHashAll
	case bitcoin.AddressTypeNestedSegwit:
		input.WitnessUtxo = utxo.TxOut()
		input.RedeemScript = pib.redeemScript
		input.SighashType = txscript.SigHashAll
	case bitcoin.AddressTypeNativeSegwit:
		input.WitnessUtxo = utxo.TxOut()
		input.SighashType = txscript.SigHashAll
	case bitcoin.AddressTypeTaproot:
		input.WitnessUtxo = utxo.TxOut()
		input.TaprootInternalKey = pib.xOnlyPubKey
		input.SighashType = txscript.SigHashDefault
	default:
		return fmt.Errorf("%w: %s", bitcoin.ErrUnsupportedAddressType, pib.addressType)
	}

	return nil
}

// InputsHelpingKey return InputsHelpingKey for wallet input indexes distinguishing.
func (pib *PSBTInputBuilder) InputsHelpingKey() InputsHelpingKey {
	key, _ := InputsHelpingKeyFromAddressType(pib.addressType)

	return key
}

// AddressType returns underlying address type.
func (pib *PSBTInputBuilder) AddressType() bitcoin.AddressType {
	return pib.addressType
}

// EncodeInput fills psbt input of the utxo spent by account.
// prevTx is required for legacy inputs only.
func EncodeInput(input *psbt.PInput, utxo *bitcoin.UTXO, account bitcoin.Account, prevTx *wire.MsgTx) error {
	pib, err := NewPSBTInputBuilder(account)
	if err != nil {
		return err
	}

	return pib.PrepareInput(input, utxo, prevTx)
}
