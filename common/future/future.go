// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package future runs a computation on its own goroutine and hands out a
// one-shot handle for collecting the outcome. It lets callers overlap an
// expensive preparation step, the allocation of a large tree for instance,
// with other work and defer the synchronization to the point where the
// outcome is actually needed:
//
//	f := future.Go(expensiveOperation)
//	// ... other work ...
//	value := f.Await()
package future

// Future is a placeholder for a value still being computed. Instances are
// created by Go and consumed by Await.
type Future[T any] struct {
	c <-chan T
}

// Go starts produce on a new goroutine and returns the Future eventually
// holding its outcome.
func Go[T any](produce func() T) Future[T] {
	c := make(chan T, 1)
	go func() {
		c <- produce()
		close(c)
	}()
	return Future[T]{c: c}
}

// Done creates a Future that already holds the given value, for code paths
// where no asynchronous computation is needed.
func Done[T any](value T) Future[T] {
	c := make(chan T, 1)
	c <- value
	close(c)
	return Future[T]{c: c}
}

// Await blocks until the computation has finished and returns its outcome.
// A Future holds its outcome only once, further calls return the zero
// value.
func (f Future[T]) Await() T {
	return <-f.c
}
