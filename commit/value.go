// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package commit

import (
	"github.com/crate-crypto/go-ipa/banderwagon"
)

// Value is a single element of the vectors this package commits to. It is a
// scalar of the Banderwagon curve field, covering a value range of roughly
// 253 bits. Not every 32-byte string is representable, but every 31-byte
// string is.
type Value struct {
	scalar banderwagon.Fr
}

// NewValue creates a value from a uint64. Every 64-bit value is in range.
func NewValue(value uint64) Value {
	var scalar banderwagon.Fr
	scalar.SetUint64(value)
	return Value{scalar: scalar}
}

// NewValueFromLittleEndianBytes creates a value from up to 32 little-endian
// bytes. Shorter inputs are zero-expanded to 32 bytes, longer inputs are
// truncated.
func NewValueFromLittleEndianBytes(data []byte) Value {
	var padded [32]byte
	copy(padded[:], data)
	var scalar banderwagon.Fr
	scalar.SetBytesLE(padded[:])
	return Value{scalar: scalar}
}

// NewValueFromBytes creates a value from a big-endian byte string of
// arbitrary length, reduced modulo the scalar field order. Inputs longer
// than 32 bytes, as produced by wide hash functions, map close to uniformly
// onto the field.
func NewValueFromBytes(data []byte) Value {
	var scalar banderwagon.Fr
	scalar.SetBytes(data)
	return Value{scalar: scalar}
}

// Sub returns the field difference of this value and the given one.
func (v Value) Sub(other Value) Value {
	var res banderwagon.Fr
	res.Sub(&v.scalar, &other.scalar)
	return Value{scalar: res}
}

// ToLittleEndianBytes returns the canonical 32-byte little-endian encoding
// of the value, inverse to NewValueFromLittleEndianBytes.
func (v Value) ToLittleEndianBytes() [32]byte {
	return v.scalar.BytesLE()
}

// SetBit128 sets the 128th bit of the value. Tree embeddings use this bit to
// mark a stored value as present, distinguishing an explicitly stored zero
// from an absent value.
func (v *Value) SetBit128() {
	bytes := v.scalar.Bytes()
	bytes[15] = bytes[15] | 0x01
	v.scalar.SetBytes(bytes[:])
}
