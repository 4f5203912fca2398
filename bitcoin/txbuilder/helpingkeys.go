// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"

	"github.com/BoostyLabs/txengine/bitcoin"
)

// ErrUnknownInputsHelpingKey defines that inputs help keys is unknown.
var ErrUnknownInputsHelpingKey = errors.New("unknown inputs help keys")

// InputsHelpingKey defines type for additional data in PSBT Unknowns field
// to distinguish input address types and their indexes.
type InputsHelpingKey byte

const (
	// TaprootInputsHelpingKey defines key for taproot inputs.
	TaprootInputsHelpingKey InputsHelpingKey = 0x10
	// NativeSegwitInputsHelpingKey defines key for native segwit inputs.
	NativeSegwitInputsHelpingKey InputsHelpingKey = 0x20
	// NestedSegwitInputsHelpingKey defines key for nested segwit inputs.
	NestedSegwitInputsHelpingKey InputsHelpingKey = 0x30
	// LegacyInputsHelpingKey defines key for legacy inputs.
	LegacyInputsHelpingKey InputsHelpingKey = 0x40
)

// InputsHelpingKeyFromBytes parses bytes array into InputsHelpingKey if any.
func InputsHelpingKeyFromBytes(b []byte) (InputsHelpingKey, error) {
	if len(b) != 1 {
		return 0, ErrUnknownInputsHelpingKey
	}

	key := InputsHelpingKey(b[0])
	if !key.AddressType().IsKnown() {
		return 0, ErrUnknownInputsHelpingKey
	}

	return key, nil
}

// InputsHelpingKeyFromAddressType returns InputsHelpingKey of the address type.
func InputsHelpingKeyFromAddressType(addressType bitcoin.AddressType) (InputsHelpingKey, error) {
	switch addressType {
	case bitcoin.AddressTypeTaproot:
		return TaprootInputsHelpingKey, nil
	case bitcoin.AddressTypeNativeSegwit:
		return NativeSegwitInputsHelpingKey, nil
	case bitcoin.AddressTypeNestedSegwit:
		return NestedSegwitInputsHelpingKey, nil
	case bitcoin.AddressTypeLegacy:
		return LegacyInputsHelpingKey, nil
	}

	return 0, ErrUnknownInputsHelpingKey
}

// AddressType returns address type of the inputs marked by the key.
func (k InputsHelpingKey) AddressType() bitcoin.AddressType {
	switch k {
	case TaprootInputsHelpingKey:
		return bitcoin.AddressTypeTaproot
	case NativeSegwitInputsHelpingKey:
		return bitcoin.AddressTypeNativeSegwit
	case NestedSegwitInputsHelpingKey:
		return bitcoin.AddressTypeNestedSegwit
	case LegacyInputsHelpingKey:
		return bitcoin.AddressTypeLegacy
	}

	return bitcoin.AddressTypeUnknown
}

// Byte returns InputsHelpingKey as byte.
func (k InputsHelpingKey) Byte() byte {
	return byte(k)
}

// Bytes returns InputsHelpingKey as bytes array.
func (k InputsHelpingKey) Bytes() []byte {
	return []byte{byte(k)}
}
