// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package alkanes

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/BoostyLabs/txengine/bitcoin/ord/runes"
)

// ErrMalformedCellpack defines that cellpack data could not be decoded.
var ErrMalformedCellpack = errors.New("malformed cellpack")

// AlkaneID defines the id of the alkane contract.
type AlkaneID struct {
	Block uint64
	TxID  uint64
}

// NewAlkaneIDFromString returns AlkaneID parsed from "<block>:<tx>" string.
func NewAlkaneIDFromString(s string) (AlkaneID, error) {
	data := strings.Split(s, ":")
	if len(data) != 2 {
		return AlkaneID{}, fmt.Errorf("invalid alkane id format: %s", s)
	}

	block, err := strconv.ParseUint(data[0], 10, 64)
	if err != nil {
		return AlkaneID{}, err
	}

	txID, err := strconv.ParseUint(data[1], 10, 64)
	if err != nil {
		return AlkaneID{}, err
	}

	return AlkaneID{Block: block, TxID: txID}, nil
}

// String returns AlkaneID as string.
func (id AlkaneID) String() string {
	return fmt.Sprintf("%d:%d", id.Block, id.TxID)
}

// Cellpack describes contract call: target contract and call inputs (opcode first).
type Cellpack struct {
	Target AlkaneID
	Inputs []*big.Int
}

// ToIntSeq returns Cellpack as integer sequence.
func (c *Cellpack) ToIntSeq() []*big.Int {
	seq := make([]*big.Int, 0, len(c.Inputs)+2)
	seq = append(seq, new(big.Int).SetUint64(c.Target.Block), new(big.Int).SetUint64(c.Target.TxID))
	for _, input := range c.Inputs {
		seq = append(seq, new(big.Int).Set(input))
	}

	return seq
}

// Encipher returns Cellpack as LEB128 encoded calldata.
func (c *Cellpack) Encipher() ([]byte, error) {
	return runes.IntSequenceIntoPayload(c.ToIntSeq())
}

// ParseCellpack decodes Cellpack from LEB128 calldata.
// INFO: trailing zero inputs are indistinguishable from chunk padding and are dropped.
func ParseCellpack(calldata []byte) (*Cellpack, error) {
	seq, err := runes.PayloadIntoIntSequence(trimTrailingZeros(calldata))
	if err != nil {
		return nil, errors.Join(ErrMalformedCellpack, err)
	}

	if len(seq) < 2 {
		return nil, ErrMalformedCellpack
	}

	if !seq[0].IsUint64() || !seq[1].IsUint64() {
		return nil, ErrMalformedCellpack
	}

	cellpack := &Cellpack{
		Target: AlkaneID{Block: seq[0].Uint64(), TxID: seq[1].Uint64()},
		Inputs: seq[2:],
	}
	if len(cellpack.Inputs) == 0 {
		cellpack.Inputs = nil
	}

	return cellpack, nil
}

// trimTrailingZeros returns data without trailing zero bytes.
func trimTrailingZeros(data []byte) []byte {
	end := len(data)
	for end > 0 && data[end-1] == 0 {
		end--
	}

	return data[:end]
}
