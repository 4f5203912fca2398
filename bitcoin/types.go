// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/txengine/bitcoin/alkanes"
	"github.com/BoostyLabs/txengine/bitcoin/ord/runes"
	"github.com/BoostyLabs/txengine/internal/numbers"
)

// DustAmount defines the smallest output value in satoshi treated as spendable for standard scripts.
// Utxos with amount less or equal to it are never used to pay fees.
const DustAmount int64 = 546

// UTXO describes unspent transaction output data.
type UTXO struct {
	TxHash        string
	Index         uint32   // output index in transaction outputs.
	Amount        *big.Int // in Satoshi.
	Script        []byte   // ScriptPubKey.
	Address       string   // output recipient address.
	AddressType   AddressType
	Confirmations int64
	Inscriptions  []string // inscription ids linked to the output sats.
	Runes         []RuneUTXO
	Alkanes       []AlkaneUTXO
}

// RuneUTXO describes linked to UTXO runes transaction.
type RuneUTXO struct {
	RuneID runes.RuneID
	Amount *big.Int // in rune units.
}

// AlkaneUTXO describes alkane balance held by UTXO.
type AlkaneUTXO struct {
	ID     alkanes.AlkaneID
	Amount *big.Int
}

// HasMetaMarkers returns true if the utxo carries inscriptions or token balances.
func (u *UTXO) HasMetaMarkers() bool {
	return len(u.Inscriptions) != 0 || len(u.Runes) != 0 || len(u.Alkanes) != 0
}

// IsDust returns true if the utxo amount is not greater than DustAmount.
func (u *UTXO) IsDust() bool {
	return u.Amount == nil || !numbers.IsGreater(u.Amount, big.NewInt(DustAmount))
}

// IsReserved returns true if the utxo is a dust output holding meta markers.
// Such outputs keep inscriptions and token balances and must not be spent as fee.
func (u *UTXO) IsReserved() bool {
	return u.IsDust() && u.HasMetaMarkers()
}

// ResolvedAddressType returns utxo address type, classified by script if not set.
func (u *UTXO) ResolvedAddressType() AddressType {
	if u.AddressType.IsKnown() {
		return u.AddressType
	}

	return ClassifyScript(u.Script)
}

// OutPoint returns utxo reference as wire.OutPoint.
func (u *UTXO) OutPoint() (*wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(u.TxHash)
	if err != nil {
		return nil, err
	}

	return wire.NewOutPoint(hash, u.Index), nil
}

// TxOut returns utxo as wire.TxOut.
func (u *UTXO) TxOut() *wire.TxOut {
	return wire.NewTxOut(u.Amount.Int64(), u.Script)
}

// SumAmounts returns total satoshi amount of provided utxos.
func SumAmounts(utxos []*UTXO) *big.Int {
	total := big.NewInt(0)
	for _, utxo := range utxos {
		total.Add(total, utxo.Amount)
	}

	return total
}
