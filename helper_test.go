// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync_test

import (
	"code.hybscloud.com/corosync"
)

// fakeService is a scripted native. Dispatch runs one queued event per
// step and reports TRY_AGAIN when the queue is empty.
type fakeService struct {
	next      corosync.Handle
	fd        int
	fdStatus  corosync.Status
	finStatus corosync.Status
	finalized []corosync.Handle
	events    []func()
	steps     int
}

func newFake() *fakeService {
	return &fakeService{fd: 7, fdStatus: corosync.StatusOK, finStatus: corosync.StatusOK}
}

func (f *fakeService) init() (corosync.Handle, corosync.Status) {
	f.next++
	return f.next, corosync.StatusOK
}

func (f *fakeService) Finalize(h corosync.Handle) corosync.Status {
	f.finalized = append(f.finalized, h)
	return f.finStatus
}

func (f *fakeService) FdGet(corosync.Handle) (int, corosync.Status) {
	if f.fdStatus != corosync.StatusOK {
		return -1, f.fdStatus
	}
	return f.fd, corosync.StatusOK
}

func (f *fakeService) Dispatch(corosync.Handle, corosync.DispatchFlags) corosync.Status {
	f.steps++
	if len(f.events) == 0 {
		return corosync.StatusTryAgain
	}
	ev := f.events[0]
	f.events = f.events[1:]
	ev()
	return corosync.StatusOK
}

func (f *fakeService) queue(ev func()) {
	f.events = append(f.events, ev)
}

// connected returns a Session on f that is already connected.
func connected(f *fakeService, opts *corosync.Options) *corosync.Session {
	s := corosync.NewSession("fake", f, opts)
	if err := s.Connect(f.init); err != nil {
		panic(err)
	}
	return s
}

// statuses returns fn that yields sts in order, then OK forever, and
// counts its calls in *n.
func statuses(n *int, sts ...corosync.Status) func() corosync.Status {
	return func() corosync.Status {
		*n++
		if len(sts) == 0 {
			return corosync.StatusOK
		}
		st := sts[0]
		sts = sts[1:]
		return st
	}
}
