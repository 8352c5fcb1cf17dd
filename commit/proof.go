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
	"fmt"

	multiproof "github.com/crate-crypto/go-ipa"
	"github.com/crate-crypto/go-ipa/banderwagon"
	"github.com/crate-crypto/go-ipa/bandersnatch/fr"
	"github.com/crate-crypto/go-ipa/common"
	"github.com/crate-crypto/go-ipa/ipa"
)

// transcriptLabel is the domain separation label binding all openings
// produced by this package to their protocol.
const transcriptLabel = "authtree"

// Opening is a piece of information used to verify that a commitment commits
// to a specific value at a specific position. It is an Inner Product
// Argument (IPA) proof.
// Details: https://dankradfeist.de/ethereum/2021/07/27/inner-product-arguments.html
type Opening struct {
	proof ipa.IPAProof
}

// Open creates an opening for the given commitment at the given position.
// The values must be the full vector the commitment was created from.
func (c *Context) Open(
	commitment Commitment,
	values [VectorSize]Value,
	position byte,
) (Opening, error) {
	transcript := common.NewTranscript(transcriptLabel)

	elements := make([]fr.Element, VectorSize)
	for i, value := range values {
		elements[i] = value.scalar
	}

	var pos fr.Element
	pos.SetUint64(uint64(position))
	proof, err := ipa.CreateIPAProof(
		transcript,
		c.config,
		commitment.point,
		elements,
		pos,
	)
	return Opening{proof: proof}, err
}

// Verify checks that the opening proves the given value at the given
// position of the committed vector. It returns true if the opening is valid.
func (o Opening) Verify(
	ctx *Context,
	commitment Commitment,
	position byte,
	value Value,
) (bool, error) {
	transcript := common.NewTranscript(transcriptLabel)
	var pos fr.Element
	pos.SetUint64(uint64(position))
	return ipa.CheckIPAProof(
		transcript,
		ctx.config,
		commitment.point,
		o.proof,
		pos,
		value.scalar,
	)
}

// VectorClaim states that a committed vector holds the given value at the
// given position. A MultiOpening proves a list of such claims at once.
type VectorClaim struct {
	Commitment Commitment // < the commitment to the full vector
	Position   byte       // < the vector position the claim is about
	Value      Value      // < the value claimed at that position
}

// MultiOpening is a joint opening for one position in each of several
// committed vectors. It is constant in size regardless of the number of
// claims, which makes it considerably cheaper to transfer and verify than
// individual openings.
type MultiOpening struct {
	proof multiproof.MultiProof
}

// OpenMulti creates a joint opening proving, for every i, the value of
// vectors[i] at positions[i] under commitments[i]. All three slices must
// have the same non-zero length.
func (c *Context) OpenMulti(
	vectors [][VectorSize]Value,
	commitments []Commitment,
	positions []byte,
) (MultiOpening, error) {
	if len(vectors) == 0 {
		return MultiOpening{}, fmt.Errorf("cannot create an opening for an empty set of vectors")
	}
	if len(vectors) != len(commitments) || len(vectors) != len(positions) {
		return MultiOpening{}, fmt.Errorf(
			"mismatching input sizes, got %d vectors, %d commitments, and %d positions",
			len(vectors), len(commitments), len(positions))
	}

	points := make([]*banderwagon.Element, len(commitments))
	elements := make([][]fr.Element, len(vectors))
	for i := range vectors {
		points[i] = &commitments[i].point
		elements[i] = make([]fr.Element, VectorSize)
		for j, value := range vectors[i] {
			elements[i][j] = value.scalar
		}
	}

	transcript := common.NewTranscript(transcriptLabel)
	proof, err := multiproof.CreateMultiProof(transcript, c.config, points, elements, positions)
	if err != nil {
		return MultiOpening{}, fmt.Errorf("failed to create multi-opening: %w", err)
	}
	return MultiOpening{proof: *proof}, nil
}

// Verify checks that the opening proves all the given claims. It returns
// true if every claimed value is the committed one.
func (m MultiOpening) Verify(ctx *Context, claims []VectorClaim) (bool, error) {
	if len(claims) == 0 {
		return false, fmt.Errorf("cannot verify an opening against an empty set of claims")
	}
	points := make([]*banderwagon.Element, len(claims))
	values := make([]*fr.Element, len(claims))
	positions := make([]byte, len(claims))
	for i := range claims {
		points[i] = &claims[i].Commitment.point
		values[i] = &claims[i].Value.scalar
		positions[i] = claims[i].Position
	}

	transcript := common.NewTranscript(transcriptLabel)
	proof := m.proof
	return multiproof.CheckMultiProof(transcript, ctx.config, &proof, points, values, positions)
}
