// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync

import (
	"context"
	"time"
)

// Forever makes Dispatch wait for readiness without a bound.
const Forever time.Duration = -1

// Dispatch processes at most one pending event.
//
// A non-zero timeout first waits for the descriptor to become readable:
// Forever waits without bound, a positive timeout bounds the wait. The
// timeout bounds only the wait, never the processing step that follows.
//
// Dispatch returns true if an event was delivered and false if none was
// pending. TRY_AGAIN from the dispatch step itself is that "no event"
// result. A failure that a callback lets escape through Escape is a
// different operation's failure and is returned as an error even when it
// is retryable. Failures the callback handles itself are not reported.
func (s *Session) Dispatch(timeout time.Duration) (bool, error) {
	if err := s.Check("dispatch"); err != nil {
		return false, err
	}
	if timeout != 0 {
		if err := waitReadable(s.fd, timeout); err != nil {
			return false, err
		}
	}

	outer := s.nested
	s.nested = nil
	h := s.handle
	err := s.attempt(s.Op("dispatch"), func() Status {
		return s.svc.Dispatch(h, DispatchOneNonblocking)
	})
	nested := s.nested
	s.nested = outer

	if nested != nil {
		s.log.Debug("dispatch reported nested failure", "error", nested)
		return false, nested
	}
	if err == nil {
		return true, nil
	}
	if err.Retryable() {
		return false, nil
	}
	s.log.Debug("dispatch failed", "error", err)
	return false, s.finish(err)
}

// Escape records err as the failure of the callback running inside
// Dispatch. The first recorded failure is what Dispatch returns. Escape
// with a nil err, or outside Dispatch, does nothing.
func (s *Session) Escape(err error) {
	if err == nil || s.depth == 0 || s.nested != nil {
		return
	}
	s.nested = err
	s.log.Debug("callback failed", "depth", s.depth, "error", err)
}

// Run dispatches events until ctx is done or Dispatch fails. Each step
// waits at most Options.PollInterval for readiness so that cancellation
// is observed between steps.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.Dispatch(s.opts.PollInterval); err != nil {
			return err
		}
	}
}
