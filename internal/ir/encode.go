package ir

import (
	"encoding/binary"
	"math"
)

// Order-preserving encodings.
//
// For any two values a and b:
//
//	bytes.Compare(EncodeValue(a), EncodeValue(b)) == Compare(a, b)
//
// Native stores index on these bytes (SQLite BLOB comparison is memcmp,
// badger keys are ordered byte-wise), so index order and the in-memory
// comparator agree without either side knowing about the other.

const (
	// Strings are escaped so 0x00 never appears unescaped inside the payload
	// and then terminated, which keeps them self-delimiting inside key paths.
	escapeByte    = 0x00
	escapedZero   = 0xFF
	stringEndByte = 0x01

	idTag   = 0x01
	nameTag = 0x02
)

// EncodeValue returns the order-preserving encoding of v: one rank byte
// followed by the type's payload.
func EncodeValue(v Value) []byte {
	return AppendValue(nil, v)
}

// AppendValue appends the order-preserving encoding of v to dst.
func AppendValue(dst []byte, v Value) []byte {
	dst = append(dst, byte(TypeRank(v)))

	switch val := v.(type) {
	case Int:
		dst = appendInt64(dst, int64(val))
	case Bool:
		if val {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	case String:
		dst = appendString(dst, string(val))
	case Float:
		dst = appendFloat64(dst, float64(val))
	case Key:
		dst = AppendKey(dst, val)
	}
	return dst
}

// EncodeKey returns the order-preserving encoding of a key path, without a
// rank byte. A key's encoding is a prefix of every descendant's encoding.
func EncodeKey(k Key) []byte {
	return AppendKey(nil, k)
}

// AppendKey appends the path encoding of k to dst.
func AppendKey(dst []byte, k Key) []byte {
	for _, elem := range k.Path {
		dst = appendString(dst, elem.Kind)
		if elem.Name != "" {
			dst = append(dst, nameTag)
			dst = appendString(dst, elem.Name)
		} else {
			dst = append(dst, idTag)
			dst = appendInt64(dst, elem.ID)
		}
	}
	return dst
}

// PrefixEnd returns the smallest byte string greater than every string with
// the given prefix, for half-open range scans [prefix, PrefixEnd(prefix)).
// Returns nil when no such bound exists (prefix is all 0xFF).
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func appendInt64(dst []byte, n int64) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(n)^(1<<63))
}

func appendFloat64(dst []byte, f float64) []byte {
	if f == 0 {
		f = 0 // -0 and +0 compare equal
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	return binary.BigEndian.AppendUint64(dst, bits)
}

func appendString(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		if s[i] == escapeByte {
			dst = append(dst, escapeByte, escapedZero)
			continue
		}
		dst = append(dst, s[i])
	}
	return append(dst, escapeByte, stringEndByte)
}
