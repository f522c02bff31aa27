// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package quorum_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"code.hybscloud.com/corosync"
	"code.hybscloud.com/corosync/cpg"
	"code.hybscloud.com/corosync/loopback"
	"code.hybscloud.com/corosync/quorum"
)

type notice struct {
	quorate bool
	members []uint32
}

func monitor(t *testing.T, c *loopback.Cluster) (*quorum.Monitor, *[]notice) {
	t.Helper()
	m := quorum.New(c.Quorum(), nil)
	var seen []notice
	m.OnNotify(func(q bool, members []uint32) error {
		seen = append(seen, notice{q, members})
		return nil
	})
	t.Cleanup(func() { m.Finalize() })
	return m, &seen
}

func TestStartReportsCurrentState(t *testing.T) {
	c := loopback.New(loopback.Config{Quorate: true})
	defer c.Close()
	m, seen := monitor(t, c)
	if err := m.Connect(true); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if m.QuorumType() != quorum.TypeSet {
		t.Fatalf("QuorumType got %d, want %d", m.QuorumType(), quorum.TypeSet)
	}
	if len(*seen) != 1 {
		t.Fatalf("notifications got %d, want 1", len(*seen))
	}
	n := (*seen)[0]
	if !n.quorate || n.members == nil || len(n.members) != 0 {
		t.Fatalf("initial notification got %+v, want quorate with an empty list", n)
	}
	if ok, err := m.Dispatch(0); ok || err != nil {
		t.Fatalf("Dispatch got (%v, %v), want nothing pending", ok, err)
	}
}

func TestTracksChanges(t *testing.T) {
	c := loopback.New(loopback.Config{})
	defer c.Close()
	ch, err := cpg.Open(c.CPG(3, 1), "g", nil)
	if err != nil {
		t.Fatalf("cpg.Open: %v", err)
	}
	defer ch.Finalize()

	m, seen := monitor(t, c)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.SetQuorate(true)
	c.SetQuorate(true)
	if ok, err := m.Dispatch(time.Second); !ok || err != nil {
		t.Fatalf("Dispatch got (%v, %v), want one notification", ok, err)
	}
	if ok, _ := m.Dispatch(0); ok {
		t.Fatal("repeated state notified twice")
	}
	got := (*seen)[len(*seen)-1]
	if !got.quorate || !slices.Equal(got.members, []uint32{3}) {
		t.Fatalf("notification got %+v, want quorate with [3]", got)
	}
	q, err := m.Quorate()
	if err != nil || !q {
		t.Fatalf("Quorate got (%v, %v), want true", q, err)
	}
}

func TestStop(t *testing.T) {
	c := loopback.New(loopback.Config{})
	defer c.Close()
	m, seen := monitor(t, c)
	if err := m.Stop(); !errors.Is(err, corosync.ErrBadHandle) {
		t.Fatalf("Stop unconnected got %v, want ErrBadHandle", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	before := len(*seen)
	c.SetQuorate(true)
	if ok, _ := m.Dispatch(0); ok || len(*seen) != before {
		t.Fatal("stopped monitor was notified")
	}
	if err := m.Stop(); !errors.Is(err, corosync.ErrNotExist) {
		t.Fatalf("second Stop got %v, want ErrNotExist", err)
	}
}

func TestNotifyErrorEscapes(t *testing.T) {
	c := loopback.New(loopback.Config{})
	defer c.Close()
	m := quorum.New(c.Quorum(), nil)
	defer m.Finalize()
	lost := errors.New("lost")
	m.OnNotify(func(q bool, _ []uint32) error {
		if !q {
			return lost
		}
		return nil
	})
	if err := m.Start(); err != lost {
		t.Fatalf("Start got %v, want lost from the initial callback", err)
	}
	c.SetQuorate(true)
	if ok, err := m.Dispatch(0); !ok || err != nil {
		t.Fatalf("Dispatch got (%v, %v), want (true, nil)", ok, err)
	}
	c.SetQuorate(false)
	if ok, err := m.Dispatch(0); ok || err != lost {
		t.Fatalf("Dispatch got (%v, %v), want (false, lost)", ok, err)
	}
}

func TestConnectFailure(t *testing.T) {
	c := loopback.New(loopback.Config{})
	defer c.Close()
	c.Inject("quorum_initialize", corosync.StatusAccess)
	m, _ := monitor(t, c)
	err := m.Connect(true)
	var e *corosync.Error
	if !errors.As(err, &e) || e.Kind != corosync.KindAccess || e.Op != "quorum_initialize" {
		t.Fatalf("Connect got %v, want ACCESS during quorum_initialize", err)
	}
	if m.Fd() != -1 {
		t.Fatalf("Fd got %d, want -1", m.Fd())
	}
}
