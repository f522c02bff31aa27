// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// Invoke runs fn once and classifies its status as the result of op.
// A TRY_AGAIN result is returned as a Retryable *Error.
func (s *Session) Invoke(op string, fn func() Status) error {
	if err := s.finish(s.attempt(op, fn)); err != nil {
		return err
	}
	return nil
}

// Call runs fn and classifies its status as the result of op, retrying
// TRY_AGAIN up to Options.Retry.Attempts times with adaptive backoff
// (iox.Backoff) between attempts. When the attempts run out the
// TRY_AGAIN is returned as a Fatal *Error.
func (s *Session) Call(op string, fn func() Status) error {
	if err := s.call(op, fn); err != nil {
		return err
	}
	return nil
}

// Try is Call for native calls that also produce a value.
func Try[T any](s *Session, op string, fn func() (T, Status)) (T, error) {
	var v T
	if err := s.call(op, func() Status {
		var st Status
		v, st = fn()
		return st
	}); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// TryEach runs fn once per item as op, each with its own retry budget,
// and keeps every outcome in item order: Right with the value, Left
// with the classified failure. A failure does not stop later items.
func TryEach[K, T any](s *Session, op string, items []K, fn func(K) (T, Status)) []kont.Either[*Error, T] {
	out := make([]kont.Either[*Error, T], 0, len(items))
	for _, item := range items {
		var v T
		if err := s.call(op, func() Status {
			var st Status
			v, st = fn(item)
			return st
		}); err != nil {
			out = append(out, kont.Left[*Error, T](err))
			continue
		}
		out = append(out, kont.Right[*Error, T](v))
	}
	return out
}

// Partition splits the outcomes of TryEach into the values that
// succeeded and the failures, each in item order.
func Partition[T any](rs []kont.Either[*Error, T]) (vs []T, errs []*Error) {
	for _, r := range rs {
		if e, ok := r.GetLeft(); ok {
			errs = append(errs, e)
			continue
		}
		v, _ := r.GetRight()
		vs = append(vs, v)
	}
	return vs, errs
}

func (s *Session) call(op string, fn func() Status) *Error {
	return s.finish(s.retry(op, fn))
}

// retry is the bounded TRY_AGAIN loop. Non-retryable results, including
// EndOfIteration, return on the first attempt.
func (s *Session) retry(op string, fn func() Status) *Error {
	var bo iox.Backoff
	for n := 1; ; n++ {
		err := s.attempt(op, fn)
		if err == nil || !err.Retryable() {
			return err
		}
		if n >= s.opts.Retry.Attempts {
			err.Class = ClassFatal
			return err
		}
		bo.Wait()
	}
}

// attempt runs one native call inside the depth counter.
func (s *Session) attempt(op string, fn func() Status) *Error {
	s.depth++
	st := fn()
	s.depth--
	return newError(op, st)
}

// finish records the depth of a failed call. A call that finishes while
// another is in progress was made from a callback and gets Depth >= 2.
func (s *Session) finish(err *Error) *Error {
	if err != nil && s.depth > 0 {
		err.Depth = s.depth + 1
	}
	return err
}
