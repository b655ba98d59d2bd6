package bplus

import (
	"encoding/binary"
	"fmt"
)

// Codec maps a fixed-size type to and from its on-page bytes.
// Encode and Decode are always handed exactly Size() bytes.
type Codec[T any] interface {
	Size() int
	Encode(dst []byte, v T)
	Decode(src []byte) T
}

type Int32Codec struct{}

func (Int32Codec) Size() int                  { return 4 }
func (Int32Codec) Encode(dst []byte, v int32) { binary.LittleEndian.PutUint32(dst, uint32(v)) }
func (Int32Codec) Decode(src []byte) int32    { return int32(binary.LittleEndian.Uint32(src)) }

type Int64Codec struct{}

func (Int64Codec) Size() int                  { return 8 }
func (Int64Codec) Encode(dst []byte, v int64) { binary.LittleEndian.PutUint64(dst, uint64(v)) }
func (Int64Codec) Decode(src []byte) int64    { return int64(binary.LittleEndian.Uint64(src)) }

type Uint64Codec struct{}

func (Uint64Codec) Size() int                   { return 8 }
func (Uint64Codec) Encode(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }
func (Uint64Codec) Decode(src []byte) uint64    { return binary.LittleEndian.Uint64(src) }

// StructCodec stores any fixed-size value (structs of numbers and byte arrays)
// in little-endian field order.
type StructCodec[T any] struct {
	size int
}

func NewStructCodec[T any]() (StructCodec[T], error) {
	var zero T
	size := binary.Size(zero)
	if size <= 0 {
		return StructCodec[T]{}, fmt.Errorf("%w: %T has no fixed binary size", ErrInvalidOption, zero)
	}
	return StructCodec[T]{size: size}, nil
}

func (c StructCodec[T]) Size() int { return c.size }

func (c StructCodec[T]) Encode(dst []byte, v T) {
	if _, err := binary.Encode(dst[:c.size], binary.LittleEndian, v); err != nil {
		panic(fmt.Sprintf("bplus: encode %T: %v", v, err))
	}
}

func (c StructCodec[T]) Decode(src []byte) T {
	var v T
	if _, err := binary.Decode(src[:c.size], binary.LittleEndian, &v); err != nil {
		panic(fmt.Sprintf("bplus: decode %T: %v", v, err))
	}
	return v
}
