// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package votequorum_test

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"testing"

	"code.hybscloud.com/corosync"
	"code.hybscloud.com/corosync/loopback"
	"code.hybscloud.com/corosync/votequorum"
)

type observed struct {
	quorate  []bool
	nodes    []map[uint32]votequorum.NodeState
	expected []uint32
	fail     error
}

// twoNodes returns a monitor on node 1 of a cluster with nodes 1 and 2.
func twoNodes(t *testing.T, flags ...votequorum.Flag) (*loopback.Cluster, *votequorum.Monitor, *observed) {
	t.Helper()
	c := loopback.New(loopback.Config{})
	c.SetVoteFlags(flags...)
	native := c.Votequorum(1)
	c.Votequorum(2)

	m := votequorum.New(native, nil)
	obs := &observed{}
	m.OnNotify(func(q bool, nodes map[uint32]votequorum.NodeState) error {
		obs.quorate = append(obs.quorate, q)
		obs.nodes = append(obs.nodes, nodes)
		return obs.fail
	})
	m.OnExpectedVotes(func(e uint32) error {
		obs.expected = append(obs.expected, e)
		return nil
	})
	if err := m.Connect(false); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		m.Finalize()
		c.Close()
	})
	return c, m, obs
}

func drain(t *testing.T, m *votequorum.Monitor) {
	t.Helper()
	for {
		ok, err := m.Dispatch(0)
		if err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
		if !ok {
			return
		}
	}
}

func TestInfoTwoNode(t *testing.T) {
	_, m, _ := twoNodes(t, votequorum.FlagTwoNode)
	info, err := m.Info(0)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	want := []votequorum.Flag{votequorum.FlagTwoNode, votequorum.FlagQuorate}
	if !slices.Equal(info.Flags, want) {
		t.Fatalf("flags got %v, want %v", info.Flags, want)
	}
	if info.NodeID != 1 || info.State != votequorum.StateMember || info.Votes != 1 {
		t.Fatalf("node got %+v", info)
	}
	if info.TotalVotes != 2 || info.HighestExpected != 2 || info.Quorum != 1 {
		t.Fatalf("tally got total %d highest %d quorum %d, want 2 2 1",
			info.TotalVotes, info.HighestExpected, info.Quorum)
	}
	if q, err := m.Quorate(); err != nil || !q {
		t.Fatalf("Quorate got (%v, %v), want true", q, err)
	}
	if other, err := m.Info(2); err != nil || other.NodeID != 2 {
		t.Fatalf("Info(2) got (%+v, %v)", other, err)
	}
	if _, err := m.Info(9); !errors.Is(err, corosync.ErrNotExist) {
		t.Fatalf("Info(9) got %v, want ErrNotExist", err)
	}
}

func TestStartInitialCallback(t *testing.T) {
	_, m, obs := twoNodes(t)
	if err := m.Start(true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(obs.quorate) != 1 || !obs.quorate[0] || len(obs.nodes[0]) != 0 {
		t.Fatalf("initial callback got %v %v, want quorate with no nodes", obs.quorate, obs.nodes)
	}
	if ok, _ := m.Dispatch(0); ok {
		t.Fatal("Start queued an event")
	}
}

func TestExpectedAndVotes(t *testing.T) {
	_, m, obs := twoNodes(t)
	if err := m.Start(false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.SetExpected(0); !errors.Is(err, corosync.ErrInvalidParam) {
		t.Fatalf("SetExpected(0) got %v, want ErrInvalidParam", err)
	}

	// Five expected votes need three; two nodes hold two.
	if err := m.SetExpected(5); err != nil {
		t.Fatalf("SetExpected: %v", err)
	}
	drain(t, m)
	if !slices.Equal(obs.expected, []uint32{5}) {
		t.Fatalf("expected votes got %v, want [5]", obs.expected)
	}
	if !slices.Equal(obs.quorate, []bool{false}) {
		t.Fatalf("quorate got %v, want [false]", obs.quorate)
	}
	want := map[uint32]votequorum.NodeState{1: votequorum.StateMember, 2: votequorum.StateMember}
	if !maps.Equal(obs.nodes[0], want) {
		t.Fatalf("nodes got %v, want %v", obs.nodes[0], want)
	}

	if err := m.SetVotes(3, 0); err != nil {
		t.Fatalf("SetVotes: %v", err)
	}
	drain(t, m)
	if !slices.Equal(obs.quorate, []bool{false, true}) {
		t.Fatalf("quorate got %v, want [false true]", obs.quorate)
	}
	info, _ := m.Info(0)
	if info.Votes != 3 || info.TotalVotes != 4 || info.ExpectedVotes != 5 || info.Quorum != 3 {
		t.Fatalf("info got %+v", info)
	}
	if err := m.SetVotes(1, 7); !errors.Is(err, corosync.ErrNotExist) {
		t.Fatalf("SetVotes unknown node got %v, want ErrNotExist", err)
	}
}

func TestNodeStates(t *testing.T) {
	c, m, obs := twoNodes(t)
	if err := m.Start(false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.SetNodeState(2, votequorum.StateLeaving)
	c.SetNodeState(2, votequorum.NodeState(7))
	drain(t, m)
	if len(obs.nodes) != 2 {
		t.Fatalf("notifications got %d, want 2", len(obs.nodes))
	}
	if got := obs.nodes[0][2]; got != votequorum.StateLeaving {
		t.Fatalf("node 2 got %v, want leaving", got)
	}
	if got := obs.nodes[1][2]; got != votequorum.StateUnknown {
		t.Fatalf("unknown code got %v, want unknown", got)
	}

	c.SetNodeState(2, votequorum.StateMember)
	c.NodeDown(2)
	drain(t, m)
	last := obs.nodes[len(obs.nodes)-1]
	if last[2] != votequorum.StateDead || last[1] != votequorum.StateMember {
		t.Fatalf("after node down got %v", last)
	}
	if info, _ := m.Info(2); info.State != votequorum.StateDead {
		t.Fatalf("Info(2) state got %v, want dead", info.State)
	}
}

func TestStop(t *testing.T) {
	c, m, obs := twoNodes(t)
	if err := m.Start(false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	c.SetNodeState(2, votequorum.StateDead)
	drain(t, m)
	if len(obs.quorate) != 0 {
		t.Fatalf("stopped monitor notified %v", obs.quorate)
	}
	if err := m.Stop(); !errors.Is(err, corosync.ErrNotExist) {
		t.Fatalf("second Stop got %v, want ErrNotExist", err)
	}
}

func TestNotifyErrorEscapes(t *testing.T) {
	c, m, obs := twoNodes(t)
	if err := m.Start(false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	obs.fail = errors.New("rejected")
	c.SetNodeState(2, votequorum.StateLeaving)
	if ok, err := m.Dispatch(0); ok || err != obs.fail {
		t.Fatalf("Dispatch got (%v, %v), want (false, rejected)", ok, err)
	}
	if err := m.Start(true); err != obs.fail {
		t.Fatalf("Start with initial callback got %v, want rejected", err)
	}
}

func TestQdeviceLifecycle(t *testing.T) {
	_, m, _ := twoNodes(t)
	if err := m.QdeviceRegister(""); !errors.Is(err, corosync.ErrInvalidParam) {
		t.Fatalf("empty name got %v, want ErrInvalidParam", err)
	}
	long := strings.Repeat("q", votequorum.QdeviceMaxNameLen+1)
	if err := m.QdeviceRegister(long); !errors.Is(err, corosync.ErrNameTooLong) {
		t.Fatalf("long name got %v, want ErrNameTooLong", err)
	}
	if err := m.QdevicePoll("qd", true); !errors.Is(err, corosync.ErrNotExist) {
		t.Fatalf("poll unregistered got %v, want ErrNotExist", err)
	}

	if err := m.QdeviceRegister("qd"); err != nil {
		t.Fatalf("QdeviceRegister: %v", err)
	}
	if err := m.QdeviceRegister("qd"); !errors.Is(err, corosync.ErrExist) {
		t.Fatalf("second register got %v, want ErrExist", err)
	}
	info, _ := m.Info(0)
	if !info.Has(votequorum.FlagQdeviceRegistered) || info.Has(votequorum.FlagQdeviceAlive) ||
		info.QdeviceName != "qd" || info.QdeviceVotes != 1 || info.TotalVotes != 2 {
		t.Fatalf("registered info got %+v", info)
	}

	if err := m.QdevicePoll("qd", true); err != nil {
		t.Fatalf("QdevicePoll: %v", err)
	}
	if err := m.QdeviceMasterWins("qd", true); err != nil {
		t.Fatalf("QdeviceMasterWins: %v", err)
	}
	info, _ = m.Info(0)
	for _, f := range []votequorum.Flag{votequorum.FlagQdeviceAlive, votequorum.FlagQdeviceCastVote, votequorum.FlagQdeviceMasterWins} {
		if !info.Has(f) {
			t.Fatalf("flags %v lack %v", info.Flags, f)
		}
	}
	if info.TotalVotes != 3 {
		t.Fatalf("total votes got %d, want 3 with the device vote", info.TotalVotes)
	}

	if err := m.QdeviceUpdate("qd", "qd2"); err != nil {
		t.Fatalf("QdeviceUpdate: %v", err)
	}
	if err := m.QdevicePoll("qd", false); !errors.Is(err, corosync.ErrInvalidParam) {
		t.Fatalf("poll under old name got %v, want ErrInvalidParam", err)
	}
	if err := m.QdeviceUnregister("qd2"); err != nil {
		t.Fatalf("QdeviceUnregister: %v", err)
	}
	if err := m.QdeviceUnregister("qd2"); !errors.Is(err, corosync.ErrNotExist) {
		t.Fatalf("second unregister got %v, want ErrNotExist", err)
	}
	if info, _ := m.Info(0); info.Has(votequorum.FlagQdeviceRegistered) || info.QdeviceName != "" {
		t.Fatalf("unregistered info got %+v", info)
	}
}
