// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync

import "strconv"

// Status is a native status code as returned by every service call.
type Status int32

const (
	StatusOK                Status = 1
	StatusLibrary           Status = 2
	StatusVersion           Status = 3
	StatusInit              Status = 4
	StatusTimeout           Status = 5
	StatusTryAgain          Status = 6
	StatusInvalidParam      Status = 7
	StatusNoMemory          Status = 8
	StatusBadHandle         Status = 9
	StatusBusy              Status = 10
	StatusAccess            Status = 11
	StatusNotExist          Status = 12
	StatusNameTooLong       Status = 13
	StatusExist             Status = 14
	StatusNoSpace           Status = 15
	StatusInterrupt         Status = 16
	StatusNameNotFound      Status = 17
	StatusNoResources       Status = 18
	StatusNotSupported      Status = 19
	StatusBadOperation      Status = 20
	StatusFailedOperation   Status = 21
	StatusMessageError      Status = 22
	StatusQueueFull         Status = 23
	StatusQueueNotAvailable Status = 24
	StatusBadFlags          Status = 25
	StatusTooBig            Status = 26
	StatusNoSections        Status = 27
	StatusContextNotFound   Status = 28
	StatusTooManyGroups     Status = 30
	StatusSecurity          Status = 100
)

// Class is the retry classification of a Status.
type Class uint8

const (
	ClassOK Class = iota
	ClassRetryable
	ClassEndOfIteration
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassOK:
		return "ok"
	case ClassRetryable:
		return "retryable"
	case ClassEndOfIteration:
		return "end-of-iteration"
	default:
		return "fatal"
	}
}

// Kind names the failure a non-OK Status stands for.
// A Kind is closed: every Status maps to exactly one.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindLibrary
	KindVersion
	KindInit
	KindTimeout
	KindTryAgain
	KindInvalidParam
	KindNoMemory
	KindBadHandle
	KindBusy
	KindAccess
	KindNotExist
	KindNameTooLong
	KindExist
	KindNoSpace
	KindInterrupt
	KindNameNotFound
	KindNoResources
	KindNotSupported
	KindBadOperation
	KindFailedOperation
	KindMessageError
	KindQueueFull
	KindQueueNotAvailable
	KindBadFlags
	KindTooBig
	KindNoSections
	KindContextNotFound
	KindTooManyGroups
	KindSecurity
)

type statusEntry struct {
	name  string
	kind  Kind
	class Class
}

// statusTable is built once; no call site invents its own mapping.
var statusTable = map[Status]statusEntry{
	StatusOK:                {"OK", KindUnknown, ClassOK},
	StatusLibrary:           {"LIBRARY", KindLibrary, ClassFatal},
	StatusVersion:           {"VERSION", KindVersion, ClassFatal},
	StatusInit:              {"INIT", KindInit, ClassFatal},
	StatusTimeout:           {"TIMEOUT", KindTimeout, ClassFatal},
	StatusTryAgain:          {"TRY_AGAIN", KindTryAgain, ClassRetryable},
	StatusInvalidParam:      {"INVALID_PARAM", KindInvalidParam, ClassFatal},
	StatusNoMemory:          {"NO_MEMORY", KindNoMemory, ClassFatal},
	StatusBadHandle:         {"BAD_HANDLE", KindBadHandle, ClassFatal},
	StatusBusy:              {"BUSY", KindBusy, ClassFatal},
	StatusAccess:            {"ACCESS", KindAccess, ClassFatal},
	StatusNotExist:          {"NOT_EXIST", KindNotExist, ClassFatal},
	StatusNameTooLong:       {"NAME_TOO_LONG", KindNameTooLong, ClassFatal},
	StatusExist:             {"EXIST", KindExist, ClassFatal},
	StatusNoSpace:           {"NO_SPACE", KindNoSpace, ClassFatal},
	StatusInterrupt:         {"INTERRUPT", KindInterrupt, ClassFatal},
	StatusNameNotFound:      {"NAME_NOT_FOUND", KindNameNotFound, ClassFatal},
	StatusNoResources:       {"NO_RESOURCES", KindNoResources, ClassFatal},
	StatusNotSupported:      {"NOT_SUPPORTED", KindNotSupported, ClassFatal},
	StatusBadOperation:      {"BAD_OPERATION", KindBadOperation, ClassFatal},
	StatusFailedOperation:   {"FAILED_OPERATION", KindFailedOperation, ClassFatal},
	StatusMessageError:      {"MESSAGE_ERROR", KindMessageError, ClassFatal},
	StatusQueueFull:         {"QUEUE_FULL", KindQueueFull, ClassFatal},
	StatusQueueNotAvailable: {"QUEUE_NOT_AVAILABLE", KindQueueNotAvailable, ClassFatal},
	StatusBadFlags:          {"BAD_FLAGS", KindBadFlags, ClassFatal},
	StatusTooBig:            {"TOO_BIG", KindTooBig, ClassFatal},
	StatusNoSections:        {"NO_SECTIONS", KindNoSections, ClassEndOfIteration},
	StatusContextNotFound:   {"CONTEXT_NOT_FOUND", KindContextNotFound, ClassFatal},
	StatusTooManyGroups:     {"TOO_MANY_GROUPS", KindTooManyGroups, ClassFatal},
	StatusSecurity:          {"SECURITY", KindSecurity, ClassFatal},
}

// kindStatus is the inverse of statusTable, used to render a Kind.
var kindStatus = func() map[Kind]Status {
	m := make(map[Kind]Status, len(statusTable))
	for st, e := range statusTable {
		if st != StatusOK {
			m[e.kind] = st
		}
	}
	return m
}()

// Classify maps a native status to its class and kind.
// Codes outside the table are Fatal with KindUnknown.
func Classify(st Status) (Class, Kind) {
	e, ok := statusTable[st]
	if !ok {
		return ClassFatal, KindUnknown
	}
	return e.class, e.kind
}

// String returns the upper-case native name, e.g. "TRY_AGAIN".
func (st Status) String() string {
	if e, ok := statusTable[st]; ok {
		return e.name
	}
	return "STATUS(" + strconv.Itoa(int(st)) + ")"
}

// Status returns the native status a Kind was classified from.
func (k Kind) Status() Status {
	if st, ok := kindStatus[k]; ok {
		return st
	}
	return 0
}

func (k Kind) String() string {
	if st, ok := kindStatus[k]; ok {
		return statusTable[st].name
	}
	return "UNKNOWN"
}
