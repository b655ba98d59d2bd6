package harness

import (
	bplus "BTreeStore/bplustree"
	"cmp"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Key is the index key of the line protocol: the 64-bit hash of the string key
// plus the integer value, so one string can carry many values.
type Key struct {
	Hash  uint64
	Value int32
}

func NewKey(s string, value int32) Key {
	return Key{Hash: xxhash.Sum64String(s), Value: value}
}

// RoughKey matches every entry stored under s.
func RoughKey(s string) Key {
	return Key{Hash: xxhash.Sum64String(s)}
}

func CompareKey(a, b Key) int {
	if c := cmp.Compare(a.Hash, b.Hash); c != 0 {
		return c
	}
	return cmp.Compare(a.Value, b.Value)
}

// RoughCompareKey orders by hash only.
func RoughCompareKey(a, b Key) int {
	return cmp.Compare(a.Hash, b.Hash)
}

type KeyCodec struct{}

func (KeyCodec) Size() int { return 12 }

func (KeyCodec) Encode(dst []byte, k Key) {
	binary.LittleEndian.PutUint64(dst, k.Hash)
	binary.LittleEndian.PutUint32(dst[8:], uint32(k.Value))
}

func (KeyCodec) Decode(src []byte) Key {
	return Key{
		Hash:  binary.LittleEndian.Uint64(src),
		Value: int32(binary.LittleEndian.Uint32(src[8:])),
	}
}

type Tree = bplus.BPlusTree[Key, int32]

// Open opens the protocol index stored at path.
func Open(path string, opts ...bplus.Option) (*Tree, error) {
	return bplus.Open[Key, int32](path, KeyCodec{}, bplus.Int32Codec{}, CompareKey, RoughCompareKey, opts...)
}
