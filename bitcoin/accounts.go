// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
)

// ErrNoAccount defines that account provider has no account for address type.
var ErrNoAccount = errors.New("no account for address type")

// Account describes wallet account of the particular address type.
type Account struct {
	Type      AddressType
	Address   string
	PublicKey *btcec.PublicKey
}

// XOnlyPublicKey returns 32 bytes x-only public key used as taproot internal key.
func (a Account) XOnlyPublicKey() []byte {
	return schnorr.SerializePubKey(a.PublicKey)
}

// AccountProvider provides wallet accounts per address type.
type AccountProvider interface {
	// Account returns account of the provided address type.
	Account(addressType AddressType) (Account, error)
}

// Signer signs PSBT inputs owned by the wallet.
type Signer interface {
	// SignAll signs all wallet inputs of the packet, finalizes all inputs if finalize is set.
	SignAll(ctx context.Context, packet *psbt.Packet, finalize bool) (*psbt.Packet, error)
	// SignInput signs single input of the packet without finalization.
	SignInput(ctx context.Context, packet *psbt.Packet, index int) (*psbt.Packet, error)
}

// StaticAccounts is an AccountProvider over fixed public keys.
type StaticAccounts map[AddressType]Account

// NewStaticAccounts derives accounts of the provided types from the same public key.
// All known address types are derived if none provided.
func NewStaticAccounts(publicKey *btcec.PublicKey, networkParams *chaincfg.Params, types ...AddressType) (StaticAccounts, error) {
	if len(types) == 0 {
		types = AddressTypes
	}

	accounts := make(StaticAccounts, len(types))
	for _, addressType := range types {
		address, err := AddressFromPublicKey(publicKey, addressType, networkParams)
		if err != nil {
			return nil, err
		}

		accounts[addressType] = Account{Type: addressType, Address: address.EncodeAddress(), PublicKey: publicKey}
	}

	return accounts, nil
}

// Account returns account of the provided address type.
func (accounts StaticAccounts) Account(addressType AddressType) (Account, error) {
	account, ok := accounts[addressType]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrNoAccount, addressType)
	}

	return account, nil
}
