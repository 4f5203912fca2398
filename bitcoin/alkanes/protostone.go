// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package alkanes

import (
	"errors"
	"math/big"

	"github.com/BoostyLabs/txengine/bitcoin/ord/runes"
	"github.com/BoostyLabs/txengine/internal/reverse"
	"github.com/BoostyLabs/txengine/internal/sequencereader"
)

// ErrMalformedProtostone defines that protostone integers could not be decoded.
var ErrMalformedProtostone = errors.New("malformed protostone")

// ProtocolTagAlkanes defines protocol tag of the alkanes metaprotocol.
const ProtocolTagAlkanes uint64 = 1

// chunkSize defines how many bytes are packed into one runestone protocol integer.
const chunkSize = 15

// Protostone tags.
const (
	// TagMessage defines protostone calldata chunk tag.
	TagMessage uint64 = 81
	// TagBurn defines protostone burn tag.
	TagBurn uint64 = 83
	// TagPointer defines protostone pointer tag.
	TagPointer uint64 = 91
	// TagRefund defines protostone refund pointer tag.
	TagRefund uint64 = 93
)

// Protostone describes message of the subprotocol carried in the runestone protocol field.
type Protostone struct {
	ProtocolTag uint64
	Message     []byte // calldata, e.g. enciphered Cellpack.
	Pointer     *uint32
	Refund      *uint32
	Edicts      []runes.Edict
}

// NewExecuteProtostone returns alkanes protostone calling the contract with provided cellpack.
func NewExecuteProtostone(cellpack *Cellpack, pointer, refund uint32) (*Protostone, error) {
	calldata, err := cellpack.Encipher()
	if err != nil {
		return nil, err
	}

	return &Protostone{
		ProtocolTag: ProtocolTagAlkanes,
		Message:     calldata,
		Pointer:     &pointer,
		Refund:      &refund,
	}, nil
}

// ToIntSeq returns Protostone as integer sequence: [protocol tag, payload length, payload...].
func (p *Protostone) ToIntSeq() []*big.Int {
	payload := make([]*big.Int, 0)
	if p.Pointer != nil {
		payload = append(payload, new(big.Int).SetUint64(TagPointer), big.NewInt(int64(*p.Pointer)))
	}

	if p.Refund != nil {
		payload = append(payload, new(big.Int).SetUint64(TagRefund), big.NewInt(int64(*p.Refund)))
	}

	for _, chunk := range BytesIntoChunks(p.Message) {
		payload = append(payload, new(big.Int).SetUint64(TagMessage), chunk)
	}

	if len(p.Edicts) != 0 {
		edicts := make([]runes.Edict, len(p.Edicts))
		copy(edicts, p.Edicts)

		payload = append(payload, runes.TagBody.BigInt())
		payload = append(payload, runes.EdictsToIntSeq(edicts)...)
	}

	return append([]*big.Int{new(big.Int).SetUint64(p.ProtocolTag), big.NewInt(int64(len(payload)))}, payload...)
}

// EncodeProtostones returns protostones packed as runestone protocol field values.
func EncodeProtostones(protostones ...*Protostone) ([]*big.Int, error) {
	seq := make([]*big.Int, 0)
	for _, protostone := range protostones {
		seq = append(seq, protostone.ToIntSeq()...)
	}

	data, err := runes.IntSequenceIntoPayload(seq)
	if err != nil {
		return nil, err
	}

	return BytesIntoChunks(data), nil
}

// DecodeProtostones parses protostones from runestone protocol field values.
func DecodeProtostones(protocol []*big.Int) ([]*Protostone, error) {
	data, err := ChunksIntoBytes(protocol)
	if err != nil {
		return nil, err
	}

	seq, err := runes.PayloadIntoIntSequence(trimTrailingZeros(data))
	if err != nil {
		return nil, errors.Join(ErrMalformedProtostone, err)
	}

	var (
		sr          = sequencereader.New(seq)
		protostones = make([]*Protostone, 0)
	)
	for sr.HasNext() {
		tag, _ := sr.Next() // skip error due to the loop condition check.
		if tag.Sign() == 0 {
			break
		}

		length, err := sr.Next()
		if err != nil || !length.IsInt64() || int(length.Int64()) > sr.Len() {
			return nil, ErrMalformedProtostone
		}

		payload := make([]*big.Int, length.Int64())
		for i := range payload {
			payload[i], _ = sr.Next()
		}

		protostone, err := parseProtostone(tag.Uint64(), payload)
		if err != nil {
			return nil, err
		}

		protostones = append(protostones, protostone)
	}

	return protostones, nil
}

// parseProtostone parses protostone fields from its payload.
func parseProtostone(protocolTag uint64, payload []*big.Int) (*Protostone, error) {
	var (
		err        error
		sr         = sequencereader.New(payload)
		protostone = &Protostone{ProtocolTag: protocolTag}
	)
	for sr.HasNext() {
		tag, _ := sr.Next() // skip error due to the loop condition check.
		if runes.TagBody.Equal(tag) {
			protostone.Edicts, err = runes.ParseEdictsFromIntSeq(sr)
			if err != nil {
				return nil, errors.Join(ErrMalformedProtostone, err)
			}

			break
		}

		value, err := sr.Next()
		if err != nil {
			return nil, ErrMalformedProtostone
		}

		switch tag.Uint64() {
		case TagMessage:
			chunk, err := chunkIntoBytes(value)
			if err != nil {
				return nil, err
			}

			protostone.Message = append(protostone.Message, chunk...)
		case TagPointer:
			pointer := uint32(value.Uint64())
			protostone.Pointer = &pointer
		case TagRefund:
			refund := uint32(value.Uint64())
			protostone.Refund = &refund
		}
	}

	protostone.Message = trimTrailingZeros(protostone.Message)

	return protostone, nil
}

// BytesIntoChunks packs data by 15 bytes into little-endian integers.
func BytesIntoChunks(data []byte) []*big.Int {
	chunks := make([]*big.Int, 0, (len(data)+chunkSize-1)/chunkSize)
	for start := 0; start < len(data); start += chunkSize {
		end := min(start+chunkSize, len(data))
		chunk := make([]byte, end-start)
		copy(chunk, data[start:end])
		chunks = append(chunks, new(big.Int).SetBytes(reverse.Bytes(chunk)))
	}

	return chunks
}

// ChunksIntoBytes unpacks little-endian integers into bytes, 15 bytes per integer.
func ChunksIntoBytes(chunks []*big.Int) ([]byte, error) {
	data := make([]byte, 0, len(chunks)*chunkSize)
	for _, chunk := range chunks {
		bytes, err := chunkIntoBytes(chunk)
		if err != nil {
			return nil, err
		}

		data = append(data, bytes...)
	}

	return data, nil
}

// chunkIntoBytes returns integer as 15 little-endian bytes.
func chunkIntoBytes(chunk *big.Int) ([]byte, error) {
	if chunk.Sign() < 0 || chunk.BitLen() > chunkSize*8 {
		return nil, ErrMalformedProtostone
	}

	data := make([]byte, chunkSize)
	chunk.FillBytes(data)

	return reverse.Bytes(data), nil
}

// IntoRunestone returns runestone carrying provided protostones in its protocol field.
func IntoRunestone(protostones ...*Protostone) (*runes.Runestone, error) {
	if len(protostones) == 0 {
		return nil, errors.New("no protostones provided")
	}

	protocol, err := EncodeProtostones(protostones...)
	if err != nil {
		return nil, err
	}

	return &runes.Runestone{Protocol: protocol}, nil
}
