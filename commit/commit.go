// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package commit provides Pedersen vector commitments on the Banderwagon
// curve, together with openings proving individual vector positions.
package commit

import (
	"github.com/0xsoniclabs/authtree/common"
	"github.com/crate-crypto/go-ipa/banderwagon"
)

// VectorSize is the length of the vectors a commitment is made to.
const VectorSize = 256

// Commitment is a commitment to a vector of 256 values, represented as a
// point on the Banderwagon curve.
//
// For background on the Pedersen commitment scheme, see:
// https://rareskills.io/post/pedersen-commitment
type Commitment struct {
	point banderwagon.Element
}

// Identity returns the commitment to the all-zero vector, the point at
// infinity of the Banderwagon curve. It is the neutral element of Add.
func Identity() Commitment {
	return Commitment{point: banderwagon.Identity}
}

// IsValid checks that the commitment is a point on the curve. Not every bit
// pattern of a Commitment is valid; instances obtained from untrusted sources
// need to be checked before use.
func (p Commitment) IsValid() bool {
	return p.point.IsOnCurve()
}

// Equal checks if two commitments are the same curve point.
func (p Commitment) Equal(other Commitment) bool {
	return p.point.Equal(&other.point)
}

// Add adds the given commitment to this one. By the homomorphism of the
// Pedersen commitment, the result is the commitment to the element-wise sum
// of the committed vectors.
func (p *Commitment) Add(other Commitment) {
	p.point.Add(&p.point, &other.point)
}

// ToValue maps the commitment into the scalar field, producing a value that
// can itself be committed to. This is what makes commitments composable into
// trees, with each inner node committing to the values of its children.
func (p Commitment) ToValue() Value {
	var res banderwagon.Fr
	p.point.MapToScalarField(&res)
	return Value{scalar: res}
}

// Hash returns a 32-byte digest of the commitment, obtained from its scalar
// field mapping.
func (p Commitment) Hash() common.Hash {
	value := p.ToValue()
	return common.Hash(value.scalar.BytesLE())
}

// Compress returns the canonical 32-byte serialization of the commitment,
// suitable as a unique identifier of the committed state.
func (p Commitment) Compress() [32]byte {
	return p.point.Bytes()
}
