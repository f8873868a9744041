package table

import "github.com/cuemby/beandb/pkg/codec"

// KeyCodec encodes and decodes a table's key type to and from the byte
// encoding used in both the Storage key layout and the lock pool's hash
// input. Implementations must be order-preserving in the sense the table
// needs: Int64KeyCodec encodes big-endian so lexicographic byte order
// matches numeric order, which Walk relies on for ranged scans.
type KeyCodec[K comparable] interface {
	// Encode appends k's byte encoding to o.
	Encode(o *codec.Octets, k K)
	// Decode reads a key previously written by Encode.
	Decode(o *codec.Octets) (K, error)
}

// Int64KeyCodec encodes a non-negative int64 key as 8 fixed big-endian
// bytes, so encoded order matches numeric order (required for TableLong's
// ranged Walk).
type Int64KeyCodec struct{}

// Encode implements KeyCodec.
func (Int64KeyCodec) Encode(o *codec.Octets, k int64) {
	u := uint64(k)
	o.MarshalBytes([]byte{
		byte(u >> 56), byte(u >> 48), byte(u >> 40), byte(u >> 32),
		byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u),
	})
}

// Decode implements KeyCodec.
func (Int64KeyCodec) Decode(o *codec.Octets) (int64, error) {
	b, err := o.UnmarshalBytes(8)
	if err != nil {
		return 0, err
	}
	u := uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
	return int64(u), nil
}

// StringKeyCodec encodes a key as a length-prefixed string.
type StringKeyCodec struct{}

// Encode implements KeyCodec.
func (StringKeyCodec) Encode(o *codec.Octets, k string) {
	o.MarshalString(k)
}

// Decode implements KeyCodec.
func (StringKeyCodec) Decode(o *codec.Octets) (string, error) {
	return o.UnmarshalString()
}

// encodeStorageKey builds the physical Storage key: varuint(tableID) ||
// encode(k).
func encodeStorageKey[K comparable](tableID uint32, codec_ KeyCodec[K], k K) []byte {
	buf := codec.NewOctets()
	buf.MarshalUvarint32(tableID)
	codec_.Encode(buf, k)
	return buf.Bytes()
}

// tableUpperBound returns varuint(tableID+1), the exclusive upper bound of
// every physical key belonging to tableID.
func tableUpperBound(tableID uint32) []byte {
	o := codec.NewOctets()
	o.MarshalUvarint32(tableID + 1)
	return o.Bytes()
}

// tableLowerBound returns varuint(tableID), the inclusive lower bound of
// every physical key belonging to tableID.
func tableLowerBound(tableID uint32) []byte {
	o := codec.NewOctets()
	o.MarshalUvarint32(tableID)
	return o.Bytes()
}
