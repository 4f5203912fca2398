// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// AddressType defines input encoding strategy of the address.
type AddressType byte

const (
	// AddressTypeUnknown defines not classified address.
	AddressTypeUnknown AddressType = iota
	// AddressTypeLegacy defines P2PKH address.
	AddressTypeLegacy
	// AddressTypeNestedSegwit defines P2SH-P2WPKH address.
	AddressTypeNestedSegwit
	// AddressTypeNativeSegwit defines P2WPKH address.
	AddressTypeNativeSegwit
	// AddressTypeTaproot defines P2TR address.
	AddressTypeTaproot
)

// Weight units used by analytic fee formula, 4 WU = 1 vB.
const (
	// TxOverheadWeight defines tx version, locktime, counters and segwit marker (10.5 vB).
	TxOverheadWeight int64 = 42
	// TaprootInputWeight defines taproot key-path input weight (57.5 vB).
	TaprootInputWeight int64 = 230
	// NonTaprootInputWeight defines weight of the non-witness input part (41 vB).
	NonTaprootInputWeight int64 = 164
	// OutputWeight defines average output weight (34 vB).
	OutputWeight int64 = 136
)

// AddressTypes lists all known address types.
var AddressTypes = []AddressType{
	AddressTypeLegacy,
	AddressTypeNestedSegwit,
	AddressTypeNativeSegwit,
	AddressTypeTaproot,
}

// String returns address type name.
func (t AddressType) String() string {
	switch t {
	case AddressTypeLegacy:
		return "legacy"
	case AddressTypeNestedSegwit:
		return "nested-segwit"
	case AddressTypeNativeSegwit:
		return "native-segwit"
	case AddressTypeTaproot:
		return "taproot"
	default:
		return "unknown"
	}
}

// IsKnown returns true if the address type has input encoding.
func (t AddressType) IsKnown() bool {
	return t >= AddressTypeLegacy && t <= AddressTypeTaproot
}

// InputWeight returns input contribution to the analytic tx weight.
func (t AddressType) InputWeight() int64 {
	if t == AddressTypeTaproot {
		return TaprootInputWeight
	}

	return NonTaprootInputWeight
}

// ParseAddressType parses address type from its name.
func ParseAddressType(s string) (AddressType, error) {
	for _, t := range AddressTypes {
		if t.String() == s {
			return t, nil
		}
	}

	return AddressTypeUnknown, fmt.Errorf("%w: %s", ErrUnsupportedAddressType, s)
}

// ClassifyAddress maps address string to its input encoding strategy.
func ClassifyAddress(address string, networkParams *chaincfg.Params) (AddressType, error) {
	addr, err := btcutil.DecodeAddress(address, networkParams)
	if err != nil {
		return AddressTypeUnknown, errors.Join(ErrUnsupportedAddressType, err)
	}

	if !addr.IsForNet(networkParams) {
		return AddressTypeUnknown, fmt.Errorf("%w: %s is not for %s", ErrUnsupportedAddressType, address, networkParams.Name)
	}

	switch addr.(type) {
	case *btcutil.AddressTaproot:
		return AddressTypeTaproot, nil
	case *btcutil.AddressWitnessPubKeyHash:
		return AddressTypeNativeSegwit, nil
	case *btcutil.AddressScriptHash:
		return AddressTypeNestedSegwit, nil
	case *btcutil.AddressPubKeyHash:
		return AddressTypeLegacy, nil
	}

	return AddressTypeUnknown, fmt.Errorf("%w: %s", ErrUnsupportedAddressType, address)
}

// ClassifyScript maps pkScript to its input encoding strategy.
// INFO: P2SH scripts are treated as nested segwit as the only supported P2SH form.
func ClassifyScript(pkScript []byte) AddressType {
	switch txscript.GetScriptClass(pkScript) {
	case txscript.WitnessV1TaprootTy:
		return AddressTypeTaproot
	case txscript.WitnessV0PubKeyHashTy:
		return AddressTypeNativeSegwit
	case txscript.ScriptHashTy:
		return AddressTypeNestedSegwit
	case txscript.PubKeyHashTy:
		return AddressTypeLegacy
	default:
		return AddressTypeUnknown
	}
}

// AddressFromPublicKey derives address of provided type from public key.
func AddressFromPublicKey(publicKey *btcec.PublicKey, addressType AddressType, networkParams *chaincfg.Params) (btcutil.Address, error) {
	pubKeyHash := btcutil.Hash160(publicKey.SerializeCompressed())
	switch addressType {
	case AddressTypeLegacy:
		return btcutil.NewAddressPubKeyHash(pubKeyHash, networkParams)
	case AddressTypeNestedSegwit:
		redeemScript, err := NestedSegwitRedeemScript(publicKey)
		if err != nil {
			return nil, err
		}

		return btcutil.NewAddressScriptHash(redeemScript, networkParams)
	case AddressTypeNativeSegwit:
		return btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, networkParams)
	case AddressTypeTaproot:
		return btcutil.NewAddressTaproot(schnorr.SerializePubKey(txscript.ComputeTaprootKeyNoScript(publicKey)), networkParams)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddressType, addressType)
}

// NestedSegwitRedeemScript returns P2WPKH witness program wrapped by P2SH for public key.
func NestedSegwitRedeemScript(publicKey *btcec.PublicKey) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(btcutil.Hash160(publicKey.SerializeCompressed())).
		Script()
}

// PayToAddress returns pkScript for address string.
func PayToAddress(address string, networkParams *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, networkParams)
	if err != nil {
		return nil, err
	}

	return txscript.PayToAddrScript(addr)
}
