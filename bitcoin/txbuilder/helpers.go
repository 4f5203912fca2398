// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"errors"
	"math"
	"sort"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

// ErrTooManyInputs defines that input index does not fit helping key value.
var ErrTooManyInputs = errors.New("input index does not fit helping key")

// ExtractAddressTypeInputIndexesFromPSBT returns map with address types and indexes to sign.
func ExtractAddressTypeInputIndexesFromPSBT(data []byte) (map[InputsHelpingKey][]int, error) {
	p, err := psbt.NewFromRawBytes(bytes.NewBuffer(data), false)
	if err != nil {
		return nil, err
	}

	return InputIndexesByHelpingKey(p)
}

// InputIndexesByHelpingKey returns wallet input indexes grouped by helping keys written into packet unknowns.
func InputIndexesByHelpingKey(p *psbt.Packet) (map[InputsHelpingKey][]int, error) {
	var result = make(map[InputsHelpingKey][]int, len(p.Unknowns))
	for _, unknown := range p.Unknowns {
		if len(unknown.Key) != 1 {
			continue
		}

		key, err := InputsHelpingKeyFromBytes(unknown.Key)
		if err != nil {
			return nil, err
		}

		result[key] = make([]int, len(unknown.Value))
		for idx, val := range unknown.Value {
			result[key][idx] = int(val)
		}
	}

	return result, nil
}

// WriteInputIndexes writes wallet input indexes grouped by helping keys into packet unknowns.
// Existing helping keys are replaced.
func WriteInputIndexes(p *psbt.Packet, indexes map[InputsHelpingKey][]int) error {
	unknowns := make([]*psbt.Unknown, 0, len(p.Unknowns)+len(indexes))
	for _, unknown := range p.Unknowns {
		if _, err := InputsHelpingKeyFromBytes(unknown.Key); err == nil {
			continue
		}

		unknowns = append(unknowns, unknown)
	}

	keys := make([]InputsHelpingKey, 0, len(indexes))
	for key := range indexes {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		if len(indexes[key]) == 0 {
			continue
		}

		value := make([]byte, len(indexes[key]))
		for i, index := range indexes[key] {
			if index < 0 || index > math.MaxUint8 {
				return ErrTooManyInputs
			}

			value[i] = byte(index)
		}

		unknowns = append(unknowns, &psbt.Unknown{Key: key.Bytes(), Value: value})
	}

	p.Unknowns = unknowns

	return nil
}
