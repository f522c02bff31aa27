// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package votequorum monitors and configures vote-weighted quorum.
package votequorum

import (
	"time"

	"code.hybscloud.com/corosync"
)

// Track flags for Native.Trackstart.
const (
	TrackCurrent uint32 = 0x01
	TrackChanges uint32 = 0x02
)

// QdeviceNodeID is the node id quorum devices report under.
const QdeviceNodeID uint32 = 0

// NodeRecord is one entry of a native notification node list.
type NodeRecord struct {
	NodeID uint32
	State  uint32
}

// Callbacks are the native event hooks registered at initialization.
type Callbacks struct {
	Notify              func(h corosync.Handle, context uint64, quorate bool, nodes []NodeRecord)
	ExpectedVotesNotify func(h corosync.Handle, context uint64, expected uint32)
}

// Native is the vote quorum service contract.
type Native interface {
	corosync.Service
	Initialize(cb *Callbacks) (corosync.Handle, corosync.Status)
	GetInfo(h corosync.Handle, nodeID uint32) (RawInfo, corosync.Status)
	SetExpected(h corosync.Handle, expected uint32) corosync.Status
	SetVotes(h corosync.Handle, nodeID, votes uint32) corosync.Status
	Trackstart(h corosync.Handle, context uint64, flags uint32) corosync.Status
	Trackstop(h corosync.Handle) corosync.Status
	QdeviceRegister(h corosync.Handle, name string) corosync.Status
	QdeviceUnregister(h corosync.Handle, name string) corosync.Status
	QdeviceUpdate(h corosync.Handle, oldName, newName string) corosync.Status
	QdevicePoll(h corosync.Handle, name string, castVote bool) corosync.Status
	QdeviceMasterWins(h corosync.Handle, name string, allow bool) corosync.Status
}

// Monitor reports vote quorum changes and adjusts votes.
type Monitor struct {
	s      *corosync.Session
	native Native
	cb     *Callbacks

	onNotify   func(quorate bool, nodes map[uint32]NodeState) error
	onExpected func(expected uint32) error
}

// New returns an unconnected Monitor on native.
func New(native Native, opts *corosync.Options) *Monitor {
	m := &Monitor{
		s:      corosync.NewSession("votequorum", native, opts),
		native: native,
	}
	m.cb = &Callbacks{
		Notify:              m.notify,
		ExpectedVotesNotify: m.expectedVotes,
	}
	return m
}

// Connect connects to the service and, with start set, begins tracking
// without an initial callback.
func (m *Monitor) Connect(start bool) error {
	if err := m.s.Connect(func() (corosync.Handle, corosync.Status) {
		return m.native.Initialize(m.cb)
	}); err != nil {
		return err
	}
	if start {
		return m.Start(false)
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

// OnNotify sets the quorum change callback. Nil disables it. Errors
// returned by either callback are reported by the delivering Dispatch.
func (m *Monitor) OnNotify(fn func(quorate bool, nodes map[uint32]NodeState) error) {
	m.onNotify = fn
}

// OnExpectedVotes sets the expected votes change callback. Nil disables it.
func (m *Monitor) OnExpectedVotes(fn func(expected uint32) error) {
	m.onExpected = fn
}

// Start begins tracking changes, connecting first if needed. With
// initialCallback set, the notify callback then receives the current
// quorate state and an empty node map.
func (m *Monitor) Start(initialCallback bool) error {
	if err := m.Connect(false); err != nil {
		return err
	}
	h := m.s.Handle()
	if err := m.s.Call(m.s.Op("trackstart"), func() corosync.Status {
		return m.native.Trackstart(h, 0, TrackChanges)
	}); err != nil {
		return err
	}
	if !initialCallback || m.onNotify == nil {
		return nil
	}
	q, err := m.Quorate()
	if err != nil {
		return err
	}
	return m.onNotify(q, map[uint32]NodeState{})
}

// Stop stops tracking changes.
func (m *Monitor) Stop() error {
	return m.call("trackstop", func(h corosync.Handle) corosync.Status {
		return m.native.Trackstop(h)
	})
}

// Dispatch delivers at most one pending notification.
// See [corosync.Session.Dispatch].
func (m *Monitor) Dispatch(timeout time.Duration) (bool, error) {
	return m.s.Dispatch(timeout)
}

// Info returns the quorum info of nodeID; 0 selects the local node.
func (m *Monitor) Info(nodeID uint32) (Info, error) {
	if err := m.s.Check("getinfo"); err != nil {
		return Info{}, err
	}
	h := m.s.Handle()
	raw, err := corosync.Try(m.s, m.s.Op("getinfo"), func() (RawInfo, corosync.Status) {
		return m.native.GetInfo(h, nodeID)
	})
	if err != nil {
		return Info{}, err
	}
	return decodeInfo(raw), nil
}

// Quorate reports whether the local node is quorate.
func (m *Monitor) Quorate() (bool, error) {
	info, err := m.Info(0)
	if err != nil {
		return false, err
	}
	return info.Has(FlagQuorate), nil
}

// SetExpected sets the expected votes of the cluster.
func (m *Monitor) SetExpected(expected uint32) error {
	return m.call("setexpected", func(h corosync.Handle) corosync.Status {
		return m.native.SetExpected(h, expected)
	})
}

// SetVotes sets the votes contributed by nodeID; 0 selects the local node.
func (m *Monitor) SetVotes(votes, nodeID uint32) error {
	return m.call("setvotes", func(h corosync.Handle) corosync.Status {
		return m.native.SetVotes(h, nodeID, votes)
	})
}

// QdeviceRegister registers a quorum device under name.
func (m *Monitor) QdeviceRegister(name string) error {
	if err := m.checkQdevice("qdevice_register", name); err != nil {
		return err
	}
	return m.call("qdevice_register", func(h corosync.Handle) corosync.Status {
		return m.native.QdeviceRegister(h, name)
	})
}

// QdeviceUnregister unregisters the quorum device name.
func (m *Monitor) QdeviceUnregister(name string) error {
	return m.call("qdevice_unregister", func(h corosync.Handle) corosync.Status {
		return m.native.QdeviceUnregister(h, name)
	})
}

// QdeviceUpdate renames the registered quorum device.
func (m *Monitor) QdeviceUpdate(oldName, newName string) error {
	if err := m.checkQdevice("qdevice_update", newName); err != nil {
		return err
	}
	return m.call("qdevice_update", func(h corosync.Handle) corosync.Status {
		return m.native.QdeviceUpdate(h, oldName, newName)
	})
}

// QdevicePoll tells the service the device is alive and whether it
// casts its vote.
func (m *Monitor) QdevicePoll(name string, castVote bool) error {
	return m.call("qdevice_poll", func(h corosync.Handle) corosync.Status {
		return m.native.QdevicePoll(h, name, castVote)
	})
}

// QdeviceMasterWins sets whether the device's partition wins ties.
func (m *Monitor) QdeviceMasterWins(name string, allow bool) error {
	return m.call("qdevice_master_wins", func(h corosync.Handle) corosync.Status {
		return m.native.QdeviceMasterWins(h, name, allow)
	})
}

func (m *Monitor) checkQdevice(op, name string) error {
	if name == "" {
		return corosync.Fail(m.s.Op(op), corosync.KindInvalidParam)
	}
	if len(name) > QdeviceMaxNameLen {
		return corosync.Fail(m.s.Op(op), corosync.KindNameTooLong)
	}
	return nil
}

func (m *Monitor) call(op string, fn func(corosync.Handle) corosync.Status) error {
	if err := m.s.Check(op); err != nil {
		return err
	}
	h := m.s.Handle()
	return m.s.Call(m.s.Op(op), func() corosync.Status {
		return fn(h)
	})
}

func (m *Monitor) notify(_ corosync.Handle, _ uint64, quorate bool, nodes []NodeRecord) {
	if m.onNotify == nil {
		return
	}
	states := make(map[uint32]NodeState, len(nodes))
	for _, n := range nodes {
		states[n.NodeID] = decodeState(n.State)
	}
	m.s.Escape(m.onNotify(quorate, states))
}

func (m *Monitor) expectedVotes(_ corosync.Handle, _ uint64, expected uint32) {
	if m.onExpected != nil {
		m.s.Escape(m.onExpected(expected))
	}
}
