// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package quorum monitors the boolean quorum state of the cluster.
package quorum

import (
	"time"

	"code.hybscloud.com/corosync"
)

// Track flags for Native.Trackstart.
const (
	TrackCurrent     uint32 = 0x01
	TrackChanges     uint32 = 0x02
	TrackChangesOnly uint32 = 0x04
)

// Quorum provider types reported at initialization.
const (
	TypeFree uint32 = 0
	TypeSet  uint32 = 1
)

// Callbacks are the native event hooks registered at initialization.
type Callbacks struct {
	Notify func(h corosync.Handle, quorate bool, ringSeq uint64, members []uint32)
}

// Native is the quorum service contract.
type Native interface {
	corosync.Service
	Initialize(cb *Callbacks) (corosync.Handle, uint32, corosync.Status)
	Getquorate(h corosync.Handle) (bool, corosync.Status)
	Trackstart(h corosync.Handle, flags uint32) corosync.Status
	Trackstop(h corosync.Handle) corosync.Status
}

// Monitor reports quorum changes of the cluster.
type Monitor struct {
	s          *corosync.Session
	native     Native
	cb         *Callbacks
	quorumType uint32
	onNotify   func(quorate bool, members []uint32) error
}

// New returns an unconnected Monitor on native.
func New(native Native, opts *corosync.Options) *Monitor {
	m := &Monitor{
		s:      corosync.NewSession("quorum", native, opts),
		native: native,
	}
	m.cb = &Callbacks{Notify: m.notify}
	return m
}

// Connect connects to the service and, with start set, begins tracking.
func (m *Monitor) Connect(start bool) error {
	if err := m.s.Connect(func() (corosync.Handle, corosync.Status) {
		h, t, st := m.native.Initialize(m.cb)
		m.quorumType = t
		return h, st
	}); err != nil {
		return err
	}
	if start {
		return m.Start()
	}
	return nil
}

// Finalize disconnects. Safe to call repeatedly.
func (m *Monitor) Finalize() error {
	return m.s.Finalize()
}

// Session returns the underlying Session.
func (m *Monitor) Session() *corosync.Session {
	return m.s
}

// Fd returns the readiness descriptor, or -1 when unconnected.
func (m *Monitor) Fd() int {
	return m.s.Fd()
}

// QuorumType returns the provider type reported at connect.
func (m *Monitor) QuorumType() uint32 {
	return m.quorumType
}

// OnNotify sets the quorum change callback. Nil disables it. An error
// the callback returns is reported by the Dispatch that delivered it.
func (m *Monitor) OnNotify(fn func(quorate bool, members []uint32) error) {
	m.onNotify = fn
}

// Start begins tracking changes, connecting first if needed, and then
// reports the current state to the callback with an empty member list.
func (m *Monitor) Start() error {
	if err := m.Connect(false); err != nil {
		return err
	}
	h := m.s.Handle()
	if err := m.s.Call(m.s.Op("trackstart"), func() corosync.Status {
		return m.native.Trackstart(h, TrackChanges)
	}); err != nil {
		return err
	}
	if m.onNotify == nil {
		return nil
	}
	q, err := m.Quorate()
	if err != nil {
		return err
	}
	return m.onNotify(q, []uint32{})
}

// Stop stops tracking changes.
func (m *Monitor) Stop() error {
	if err := m.s.Check("trackstop"); err != nil {
		return err
	}
	h := m.s.Handle()
	return m.s.Call(m.s.Op("trackstop"), func() corosync.Status {
		return m.native.Trackstop(h)
	})
}

// Quorate reports whether the cluster is quorate.
func (m *Monitor) Quorate() (bool, error) {
	if err := m.s.Check("getquorate"); err != nil {
		return false, err
	}
	h := m.s.Handle()
	return corosync.Try(m.s, m.s.Op("getquorate"), func() (bool, corosync.Status) {
		return m.native.Getquorate(h)
	})
}

// Dispatch delivers at most one pending notification.
// See [corosync.Session.Dispatch].
func (m *Monitor) Dispatch(timeout time.Duration) (bool, error) {
	return m.s.Dispatch(timeout)
}

func (m *Monitor) notify(_ corosync.Handle, quorate bool, _ uint64, members []uint32) {
	if m.onNotify == nil {
		return
	}
	m.s.Escape(m.onNotify(quorate, append([]uint32{}, members...)))
}
