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

	"github.com/crate-crypto/go-ipa/banderwagon"
	"github.com/crate-crypto/go-ipa/ipa"
)

// Context holds the configuration of the Inner Product Argument (IPA)
// library backing this package: the generator points committed against and
// the curve parameters of the Banderwagon curve. Creating a context computes
// the precomputed point tables and is expensive; contexts are meant to be
// created once and shared. A Context is safe for concurrent use.
type Context struct {
	config *ipa.IPAConfig
}

// NewContext creates a context with freshly initialized precomputation
// tables.
func NewContext() (*Context, error) {
	config, err := ipa.NewIPASettings()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize IPA configuration: %w", err)
	}
	return &Context{config: config}, nil
}

// Commit creates the commitment to the given vector of values.
func (c *Context) Commit(values [VectorSize]Value) Commitment {
	elements := make([]banderwagon.Fr, VectorSize)
	for i, value := range values {
		elements[i] = value.scalar
	}
	return Commitment{point: c.config.Commit(elements)}
}

// CommitDelta creates the commitment to the vector that is zero everywhere
// except for the given value at the given position. Committing to a vector
// with a single non-zero entry is considerably cheaper than committing to a
// dense vector, making this the building block for updating commitments one
// position at a time.
func (c *Context) CommitDelta(position byte, value Value) Commitment {
	values := [VectorSize]Value{}
	values[position] = value
	return c.Commit(values)
}

// Update derives the commitment of a vector differing from an already
// committed one in a single position. Using the additive homomorphism of the
// Pedersen commitment
//
//	Commit(A+B) = Commit(A) + Commit(B)
//
// only the difference between the old and new value needs to be committed
// and added, instead of re-committing the full vector.
func (c *Context) Update(cur Commitment, position byte, old, new Value) Commitment {
	res := cur
	res.Add(c.CommitDelta(position, new.Sub(old)))
	return res
}
