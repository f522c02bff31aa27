// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync

import (
	"log/slog"
)

// Handle is an opaque native connection handle.
type Handle uint64

// DispatchFlags selects how many events a native dispatch step processes.
type DispatchFlags int32

const (
	DispatchOne            DispatchFlags = 1
	DispatchAll            DispatchFlags = 2
	DispatchBlocking       DispatchFlags = 3
	DispatchOneNonblocking DispatchFlags = 4
)

// Service is the part of the native contract every cluster service shares.
// Service-specific natives embed it.
//
// FdGet returns an OS descriptor that becomes readable when events are
// pending. Dispatch with DispatchOneNonblocking processes at most one
// pending event, invoking the callbacks registered at initialization,
// and returns StatusTryAgain when nothing is pending.
type Service interface {
	Finalize(h Handle) Status
	FdGet(h Handle) (int, Status)
	Dispatch(h Handle, flags DispatchFlags) Status
}

// Session owns one native handle and its readiness descriptor.
// The descriptor is valid iff the handle is.
//
// A Session is for single-threaded use: callers that share one across
// goroutines must serialize every call, Dispatch included.
type Session struct {
	svc    Service
	name   string
	handle Handle
	fd     int
	valid  bool

	// depth counts client calls in progress on this Session. It is 1
	// while Dispatch runs callbacks, so calls made from a callback
	// observe depth >= 1 when they finish.
	depth int
	// nested holds the first failure that escaped a callback during
	// the current Dispatch step.
	nested error

	opts Options
	log  *slog.Logger
}

// NewSession returns an unconnected Session for svc. name prefixes the
// operation names carried by errors, e.g. "cmap" yields "cmap_dispatch".
func NewSession(name string, svc Service, opts *Options) *Session {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	o.normalize()
	return &Session{
		svc:  svc,
		name: name,
		fd:   -1,
		opts: o,
		log:  o.Logger.With("service", name),
	}
}

// Op returns the qualified operation name for call.
func (s *Session) Op(call string) string {
	return s.name + "_" + call
}

// Connect acquires a handle with init and then its descriptor.
// A Session that is already connected is left as is.
// If the descriptor cannot be obtained the handle is finalized before
// the error is returned.
func (s *Session) Connect(init func() (Handle, Status)) error {
	if s.valid {
		return nil
	}
	var h Handle
	if err := s.call(s.Op("initialize"), func() Status {
		var st Status
		h, st = init()
		return st
	}); err != nil {
		s.log.Debug("connect failed", "error", err)
		return err
	}

	var fd int
	if err := s.call(s.Op("fd_get"), func() Status {
		var st Status
		fd, st = s.svc.FdGet(h)
		return st
	}); err != nil {
		s.svc.Finalize(h)
		s.log.Debug("descriptor unavailable, handle released", "error", err)
		return err
	}

	s.handle, s.fd, s.valid = h, fd, true
	s.log.Debug("connected", "handle", uint64(h), "fd", fd)
	return nil
}

// Finalize releases the handle and descriptor. Calls after the first
// are no-ops. The Session is unconnected afterwards even if the native
// finalize fails.
func (s *Session) Finalize() error {
	if !s.valid {
		return nil
	}
	h := s.handle
	err := s.call(s.Op("finalize"), func() Status {
		return s.svc.Finalize(h)
	})
	s.handle, s.fd, s.valid = 0, -1, false
	s.nested = nil
	s.log.Debug("finalized", "handle", uint64(h))
	if err != nil {
		return err
	}
	return nil
}

// Connected reports whether the Session holds a valid handle.
func (s *Session) Connected() bool {
	return s.valid
}

// Handle returns the native handle, or 0 when unconnected.
func (s *Session) Handle() Handle {
	return s.handle
}

// Fd returns the readiness descriptor, or -1 when unconnected. Callers
// may poll it for readability but must not read from it.
func (s *Session) Fd() int {
	return s.fd
}

// Options returns the normalized options the Session was built with.
func (s *Session) Options() Options {
	return s.opts
}

// Logger returns the Session's logger.
func (s *Session) Logger() *slog.Logger {
	return s.log
}

// Check fails with BAD_HANDLE for op when the Session is unconnected.
func (s *Session) Check(op string) error {
	if !s.valid {
		return errorf(s.Op(op), KindBadHandle)
	}
	return nil
}
