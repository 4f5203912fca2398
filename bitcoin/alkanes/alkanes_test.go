// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package alkanes_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/txengine/bitcoin/alkanes"
	"github.com/BoostyLabs/txengine/bitcoin/ord/runes"
)

func TestAlkaneID(t *testing.T) {
	id, err := alkanes.NewAlkaneIDFromString("2:21568")
	require.NoError(t, err)
	require.Equal(t, alkanes.AlkaneID{Block: 2, TxID: 21568}, id)
	require.Equal(t, "2:21568", id.String())

	for _, invalid := range []string{"", "2", "2:x", "x:2", "1:2:3"} {
		_, err = alkanes.NewAlkaneIDFromString(invalid)
		require.Error(t, err, invalid)
	}
}

func TestCellpack(t *testing.T) {
	cellpack := &alkanes.Cellpack{
		Target: alkanes.AlkaneID{Block: 2, TxID: 1},
		Inputs: []*big.Int{big.NewInt(77), big.NewInt(300)},
	}

	calldata, err := cellpack.Encipher()
	require.NoError(t, err)
	// 2, 1, 77, 300 (ac 02).
	require.Equal(t, []byte{0x02, 0x01, 0x4d, 0xac, 0x02}, calldata)

	parsed, err := alkanes.ParseCellpack(calldata)
	require.NoError(t, err)
	require.Equal(t, cellpack, parsed)

	_, err = alkanes.ParseCellpack([]byte{0x02})
	require.ErrorIs(t, err, alkanes.ErrMalformedCellpack)
}

func TestChunks(t *testing.T) {
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i + 1)
	}

	chunks := alkanes.BytesIntoChunks(data)
	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		require.LessOrEqual(t, chunk.BitLen(), 120)
	}

	// first byte is the least significant one.
	require.EqualValues(t, 1, new(big.Int).And(chunks[0], big.NewInt(0xff)).Int64())

	unpacked, err := alkanes.ChunksIntoBytes(chunks)
	require.NoError(t, err)
	require.Len(t, unpacked, 45)
	require.Equal(t, data, unpacked[:40])
	require.Equal(t, make([]byte, 5), unpacked[40:])

	_, err = alkanes.ChunksIntoBytes([]*big.Int{new(big.Int).Lsh(big.NewInt(1), 121)})
	require.ErrorIs(t, err, alkanes.ErrMalformedProtostone)
}

func TestProtostones(t *testing.T) {
	t.Run("execute round trip", func(t *testing.T) {
		cellpack := &alkanes.Cellpack{
			Target: alkanes.AlkaneID{Block: 4, TxID: 65522},
			Inputs: []*big.Int{big.NewInt(77), new(big.Int).Lsh(big.NewInt(1), 100), big.NewInt(5)},
		}

		protostone, err := alkanes.NewExecuteProtostone(cellpack, 1, 2)
		require.NoError(t, err)

		runestone, err := alkanes.IntoRunestone(protostone)
		require.NoError(t, err)
		require.NotEmpty(t, runestone.Protocol)

		script, err := runestone.IntoScript()
		require.NoError(t, err)

		parsedRunestone, err := runes.ParseRunestone(script)
		require.NoError(t, err)

		protostones, err := alkanes.DecodeProtostones(parsedRunestone.Protocol)
		require.NoError(t, err)
		require.Len(t, protostones, 1)
		require.Equal(t, alkanes.ProtocolTagAlkanes, protostones[0].ProtocolTag)
		require.EqualValues(t, 1, *protostones[0].Pointer)
		require.EqualValues(t, 2, *protostones[0].Refund)

		parsedCellpack, err := alkanes.ParseCellpack(protostones[0].Message)
		require.NoError(t, err)
		require.Equal(t, cellpack.Target, parsedCellpack.Target)
		require.Len(t, parsedCellpack.Inputs, 3)
		for i := range cellpack.Inputs {
			require.Zero(t, cellpack.Inputs[i].Cmp(parsedCellpack.Inputs[i]))
		}
	})

	t.Run("many protostones with edicts", func(t *testing.T) {
		pointer := uint32(0)
		first := &alkanes.Protostone{
			ProtocolTag: alkanes.ProtocolTagAlkanes,
			Pointer:     &pointer,
			Edicts: []runes.Edict{
				{RuneID: runes.RuneID{Block: 2, TxID: 5}, Amount: big.NewInt(1000), Output: 1},
			},
		}
		second := &alkanes.Protostone{ProtocolTag: 7, Message: []byte{0x01, 0x02, 0x03}}

		protocol, err := alkanes.EncodeProtostones(first, second)
		require.NoError(t, err)

		protostones, err := alkanes.DecodeProtostones(protocol)
		require.NoError(t, err)
		require.Len(t, protostones, 2)
		require.Equal(t, first.Edicts, protostones[0].Edicts)
		require.EqualValues(t, 0, *protostones[0].Pointer)
		require.Equal(t, uint64(7), protostones[1].ProtocolTag)
		require.Equal(t, []byte{0x01, 0x02, 0x03}, protostones[1].Message)
	})

	t.Run("no protostones", func(t *testing.T) {
		_, err := alkanes.IntoRunestone()
		require.Error(t, err)
	})
}
