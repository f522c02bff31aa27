// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync

import "errors"

// Error is a classified failure of a named operation.
//
// Depth counts the client calls the failure passed through on its way
// out. A failure raised directly by the operation has Depth 1; a failure
// from a call made inside a callback run by Dispatch has Depth 2 or more.
type Error struct {
	Op     string
	Kind   Kind
	Class  Class
	Status Status
	Depth  int
}

func (e *Error) Error() string {
	s := "corosync: " + e.Kind.String()
	if e.Op != "" {
		s += " during " + e.Op
	}
	return s
}

// Is matches sentinel errors by Kind, so errors.Is(err, ErrNotExist)
// holds for any operation that failed with NOT_EXIST.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Kind == e.Kind
}

// Retryable reports whether the caller should poll again.
func (e *Error) Retryable() bool {
	return e.Class == ClassRetryable
}

// newError classifies st as the failure of op.
// It returns nil for StatusOK.
func newError(op string, st Status) *Error {
	class, kind := Classify(st)
	if class == ClassOK {
		return nil
	}
	return &Error{Op: op, Kind: kind, Class: class, Status: st, Depth: 1}
}

// errorf builds a client-side failure that never reached a native call.
func errorf(op string, kind Kind) *Error {
	return &Error{Op: op, Kind: kind, Class: ClassFatal, Status: kind.Status(), Depth: 1}
}

// Fail is errorf for service packages: a Fatal error of kind for op.
func Fail(op string, kind Kind) error {
	return errorf(op, kind)
}

// IsRetryable reports whether err is a Retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// IsEndOfIteration reports whether err signals cursor exhaustion.
func IsEndOfIteration(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Class == ClassEndOfIteration
}

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func sentinel(k Kind) *Error {
	return &Error{Kind: k, Class: ClassFatal, Status: k.Status()}
}

// Sentinels for errors.Is, one per Kind.
var (
	ErrLibrary           = sentinel(KindLibrary)
	ErrVersion           = sentinel(KindVersion)
	ErrInit              = sentinel(KindInit)
	ErrTimeout           = sentinel(KindTimeout)
	ErrTryAgain          = sentinel(KindTryAgain)
	ErrInvalidParam      = sentinel(KindInvalidParam)
	ErrNoMemory          = sentinel(KindNoMemory)
	ErrBadHandle         = sentinel(KindBadHandle)
	ErrBusy              = sentinel(KindBusy)
	ErrAccess            = sentinel(KindAccess)
	ErrNotExist          = sentinel(KindNotExist)
	ErrNameTooLong       = sentinel(KindNameTooLong)
	ErrExist             = sentinel(KindExist)
	ErrNoSpace           = sentinel(KindNoSpace)
	ErrInterrupt         = sentinel(KindInterrupt)
	ErrNameNotFound      = sentinel(KindNameNotFound)
	ErrNoResources       = sentinel(KindNoResources)
	ErrNotSupported      = sentinel(KindNotSupported)
	ErrBadOperation      = sentinel(KindBadOperation)
	ErrFailedOperation   = sentinel(KindFailedOperation)
	ErrMessageError      = sentinel(KindMessageError)
	ErrQueueFull         = sentinel(KindQueueFull)
	ErrQueueNotAvailable = sentinel(KindQueueNotAvailable)
	ErrBadFlags          = sentinel(KindBadFlags)
	ErrTooBig            = sentinel(KindTooBig)
	ErrNoSections        = sentinel(KindNoSections)
	ErrContextNotFound   = sentinel(KindContextNotFound)
	ErrTooManyGroups     = sentinel(KindTooManyGroups)
	ErrSecurity          = sentinel(KindSecurity)
)
