// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync

import "iter"

// CursorFuncs binds a Cursor to a native iteration API.
// Op names the iteration within the Session's service; the calls are
// reported as Op+"_init", Op+"_next" and Op+"_finalize", qualified by
// [Session.Op].
type CursorFuncs[T any] struct {
	Op    string
	Open  func() (uint64, Status)
	Next  func(it uint64) (T, Status)
	Close func(it uint64) Status
}

// Cursor is a resumable enumeration over a native collection.
// It is finite and not restartable: open a new Cursor to start over.
// NO_SECTIONS from the native next call ends the sequence and is never
// returned as an error.
type Cursor[T any] struct {
	s      *Session
	fn     CursorFuncs[T]
	it     uint64
	done   bool
	closed bool
}

// OpenCursor opens a native iteration on s.
func OpenCursor[T any](s *Session, fn CursorFuncs[T]) (*Cursor[T], error) {
	if err := s.Check(fn.Op + "_init"); err != nil {
		return nil, err
	}
	it, err := Try(s, s.Op(fn.Op+"_init"), fn.Open)
	if err != nil {
		return nil, err
	}
	return &Cursor[T]{s: s, fn: fn, it: it}, nil
}

// Next returns the next entry and true, or false once the cursor is
// exhausted. Any failure also exhausts the cursor.
func (c *Cursor[T]) Next() (T, bool, error) {
	var zero T
	if c.done || c.closed {
		return zero, false, nil
	}
	var v T
	err := c.s.retry(c.s.Op(c.fn.Op+"_next"), func() Status {
		var st Status
		v, st = c.fn.Next(c.it)
		return st
	})
	if err == nil {
		return v, true, nil
	}
	c.done = true
	if err.Class == ClassEndOfIteration {
		return zero, false, nil
	}
	return zero, false, c.s.finish(err)
}

// Close finalizes the native iteration. It runs the native close
// exactly once; later calls return nil.
func (c *Cursor[T]) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.done = true
	if err := c.s.call(c.s.Op(c.fn.Op+"_finalize"), func() Status {
		return c.fn.Close(c.it)
	}); err != nil {
		return err
	}
	return nil
}

// All returns the remaining entries as a sequence. The cursor is closed
// when the sequence ends, including when the consumer stops early.
// A failure is yielded once as the final pair.
func (c *Cursor[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer c.Close()
		for {
			v, ok, err := c.Next()
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok || !yield(v, nil) {
				return
			}
		}
	}
}

// Collect drains the cursor in native order and closes it.
func (c *Cursor[T]) Collect() (out []T, err error) {
	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()
	for {
		v, ok, err := c.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}
