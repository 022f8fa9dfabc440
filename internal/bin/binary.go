// Package bin holds small big-endian encode/decode helpers shared by the
// framing and record layers.
package bin

import (
	"encoding/binary"
	"math/big"
)

// PutU32BE writes a uint32 in big-endian order.
func PutU32BE(dst []byte, v uint32) { binary.BigEndian.PutUint32(dst, v) }

// PutU64BE writes a uint64 in big-endian order.
func PutU64BE(dst []byte, v uint64) { binary.BigEndian.PutUint64(dst, v) }

// U32BE reads a uint32 in big-endian order.
func U32BE(src []byte) uint32 { return binary.BigEndian.Uint32(src) }

// U64BE reads a uint64 in big-endian order.
func U64BE(src []byte) uint64 { return binary.BigEndian.Uint64(src) }

// PutID128BE writes v as a 16-byte big-endian unsigned integer into dst.
//
// The relay only ever assigns ids that fit in a uint64, but the wire layout
// reserves the full 128 bits so a future issuer could widen the id space
// without a framing change.
func PutID128BE(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = 0
	}
	binary.BigEndian.PutUint64(dst[8:16], v)
}

// ID128BE reads a 16-byte big-endian unsigned integer.
//
// It returns the value as a *big.Int so callers can detect ids that do not
// fit in a uint64 (big.Int.IsUint64) instead of silently truncating them.
func ID128BE(src []byte) *big.Int {
	return new(big.Int).SetBytes(src[:16])
}
