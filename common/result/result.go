// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package result bundles the value and the error of an operation into a
// single item, so the pair can travel through channels or futures without
// losing the error.
package result

// Result holds the outcome of an operation returning a value of type T
// and an error.
type Result[T any] struct {
	value T
	err   error
}

// Of wraps the outcome of an operation. It is meant to be wrapped around
// the call producing the outcome, as in Of(os.Open(name)).
func Of[T any](value T, err error) Result[T] {
	return Result[T]{value: value, err: err}
}

// Get unpacks the Result into the value and the error of the operation it
// was created from.
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}
