// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package loopback

import (
	"cmp"
	"slices"

	"code.hybscloud.com/corosync"
	"code.hybscloud.com/corosync/votequorum"
)

type vqNode struct {
	state    uint32
	votes    uint32
	expected uint32
}

type qdevice struct {
	name       string
	registered bool
	alive      bool
	castVote   bool
	masterWins bool
	votes      uint32
}

type vqState struct {
	nodes    map[uint32]*vqNode
	expected uint32
	// flags holds the configured flags; the quorate and quorum device
	// bits are derived.
	flags   uint32
	quorate bool
	qdev    qdevice
}

func (s *vqState) init(expected uint32) {
	s.nodes = make(map[uint32]*vqNode)
	s.expected = expected
	s.qdev.votes = 1
}

const configFlags = uint32(votequorum.FlagTwoNode | votequorum.FlagWaitForAll |
	votequorum.FlagLastManStanding | votequorum.FlagAutoTieBreaker | votequorum.FlagAllowDownscale)

// Votequorum is the vote quorum connection point for one node.
type Votequorum struct {
	service
	node uint32
}

var _ votequorum.Native = (*Votequorum)(nil)

// Votequorum returns the vote quorum native of node nodeID. The node
// gets a vote record with one vote if it has none.
func (c *Cluster) Votequorum(nodeID uint32) *Votequorum {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.vq.nodes[nodeID]; !ok {
		c.vq.nodes[nodeID] = &vqNode{
			state:    uint32(votequorum.StateMember),
			votes:    1,
			expected: c.vq.expected,
		}
		c.vqChanged(false)
	}
	return &Votequorum{service: service{c: c, name: "votequorum"}, node: nodeID}
}

// SetVoteFlags sets the configured quorum flags. Only the two node,
// wait for all, last man standing, auto tie breaker and allow downscale
// bits are taken.
func (c *Cluster) SetVoteFlags(flags ...votequorum.Flag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var bits uint32
	for _, f := range flags {
		bits |= uint32(f)
	}
	c.vq.flags = bits & configFlags
	c.vqChanged(false)
}

// SetNodeState sets the quorum state of a node's vote record.
func (c *Cluster) SetNodeState(nodeID uint32, s votequorum.NodeState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.vq.nodes[nodeID]
	if !ok {
		return
	}
	n.state = uint32(s)
	c.vqChanged(true)
}

// tally computes the vote totals. Called with c.mu held.
func (c *Cluster) tally() (total, highest, quorum uint32, quorate bool) {
	highest = c.vq.expected
	for id, n := range c.vq.nodes {
		if n.state == uint32(votequorum.StateMember) && !c.down[id] {
			total += n.votes
		}
		highest = max(highest, n.expected)
	}
	if q := c.vq.qdev; q.registered && q.alive && q.castVote {
		total += q.votes
	}
	highest = max(highest, total)
	quorum = highest/2 + 1
	if c.vq.flags&uint32(votequorum.FlagTwoNode) != 0 && highest == 2 {
		quorum = 1
	}
	return total, highest, quorum, total >= quorum
}

// vqChanged recomputes the quorate state and notifies tracking handles
// when it changed, or always with force. Called with c.mu held.
func (c *Cluster) vqChanged(force bool) {
	_, _, _, quorate := c.tally()
	if quorate == c.vq.quorate && !force {
		return
	}
	c.vq.quorate = quorate
	nodes := c.voteNodes()
	for _, k := range c.conns {
		if k.svc == "votequorum" && k.tracking {
			c.notifyVotes(k, quorate, nodes)
		}
	}
}

// voteNodes lists the vote records by node id. Called with c.mu held.
func (c *Cluster) voteNodes() []votequorum.NodeRecord {
	nodes := make([]votequorum.NodeRecord, 0, len(c.vq.nodes))
	for id, n := range c.vq.nodes {
		st := n.state
		if c.down[id] {
			st = uint32(votequorum.StateDead)
		}
		nodes = append(nodes, votequorum.NodeRecord{NodeID: id, State: st})
	}
	slices.SortFunc(nodes, func(a, b votequorum.NodeRecord) int {
		return cmp.Compare(a.NodeID, b.NodeID)
	})
	return nodes
}

func (c *Cluster) notifyVotes(k *conn, quorate bool, nodes []votequorum.NodeRecord) {
	cb, h, ctx := k.vqCB, k.handle, k.context
	c.deliver(k, func() {
		if cb.Notify != nil {
			cb.Notify(h, ctx, quorate, nodes)
		}
	})
}

func (v *Votequorum) enter(h corosync.Handle, op string) (*conn, corosync.Status) {
	v.c.mu.Lock()
	k, st := v.c.lookup(v.name, h, op)
	if st != corosync.StatusOK {
		v.c.mu.Unlock()
	}
	return k, st
}

func (v *Votequorum) Initialize(cb *votequorum.Callbacks) (corosync.Handle, corosync.Status) {
	if cb == nil {
		return 0, corosync.StatusInvalidParam
	}
	v.c.mu.Lock()
	defer v.c.mu.Unlock()
	k, st := v.c.open(v.name, v.node, 0)
	if st != corosync.StatusOK {
		return 0, st
	}
	k.vqCB = cb
	return k.handle, corosync.StatusOK
}

// GetInfo reports nodeID, or the handle's node for 0.
func (v *Votequorum) GetInfo(h corosync.Handle, nodeID uint32) (votequorum.RawInfo, corosync.Status) {
	k, st := v.enter(h, "getinfo")
	if st != corosync.StatusOK {
		return votequorum.RawInfo{}, st
	}
	defer v.c.mu.Unlock()
	if nodeID == 0 {
		nodeID = k.node
	}
	n, ok := v.c.vq.nodes[nodeID]
	if !ok {
		return votequorum.RawInfo{}, corosync.StatusNotExist
	}
	total, highest, quorum, quorate := v.c.tally()
	flags := v.c.vq.flags
	if quorate {
		flags |= uint32(votequorum.FlagQuorate)
	}
	q := v.c.vq.qdev
	for _, b := range []struct {
		on   bool
		flag votequorum.Flag
	}{
		{q.registered, votequorum.FlagQdeviceRegistered},
		{q.alive, votequorum.FlagQdeviceAlive},
		{q.castVote, votequorum.FlagQdeviceCastVote},
		{q.masterWins, votequorum.FlagQdeviceMasterWins},
	} {
		if b.on {
			flags |= uint32(b.flag)
		}
	}
	state := n.state
	if v.c.down[nodeID] {
		state = uint32(votequorum.StateDead)
	}
	info := votequorum.RawInfo{
		NodeID:            nodeID,
		NodeState:         state,
		NodeVotes:         n.votes,
		NodeExpectedVotes: n.expected,
		HighestExpected:   highest,
		TotalVotes:        total,
		Quorum:            quorum,
		Flags:             flags,
	}
	if q.registered {
		info.QdeviceVotes, info.QdeviceName = q.votes, q.name
	}
	return info, corosync.StatusOK
}

func (v *Votequorum) SetExpected(h corosync.Handle, expected uint32) corosync.Status {
	if _, st := v.enter(h, "setexpected"); st != corosync.StatusOK {
		return st
	}
	defer v.c.mu.Unlock()
	if expected == 0 {
		return corosync.StatusInvalidParam
	}
	v.c.vq.expected = expected
	for _, n := range v.c.vq.nodes {
		n.expected = expected
	}
	for _, k := range v.c.conns {
		if k.svc != v.name || !k.tracking {
			continue
		}
		cb, kh, ctx := k.vqCB, k.handle, k.context
		v.c.deliver(k, func() {
			if cb.ExpectedVotesNotify != nil {
				cb.ExpectedVotesNotify(kh, ctx, expected)
			}
		})
	}
	v.c.vqChanged(false)
	return corosync.StatusOK
}

func (v *Votequorum) SetVotes(h corosync.Handle, nodeID, votes uint32) corosync.Status {
	k, st := v.enter(h, "setvotes")
	if st != corosync.StatusOK {
		return st
	}
	defer v.c.mu.Unlock()
	if nodeID == 0 {
		nodeID = k.node
	}
	n, ok := v.c.vq.nodes[nodeID]
	if !ok {
		return corosync.StatusNotExist
	}
	n.votes = votes
	v.c.vqChanged(false)
	return corosync.StatusOK
}

func (v *Votequorum) Trackstart(h corosync.Handle, context uint64, flags uint32) corosync.Status {
	k, st := v.enter(h, "trackstart")
	if st != corosync.StatusOK {
		return st
	}
	defer v.c.mu.Unlock()
	if flags&(votequorum.TrackCurrent|votequorum.TrackChanges) == 0 {
		return corosync.StatusInvalidParam
	}
	k.context = context
	if flags&votequorum.TrackCurrent != 0 {
		if !k.room(1) {
			return corosync.StatusTryAgain
		}
		_, _, _, quorate := v.c.tally()
		v.c.notifyVotes(k, quorate, v.c.voteNodes())
	}
	if flags&votequorum.TrackChanges != 0 {
		k.tracking = true
	}
	return corosync.StatusOK
}

func (v *Votequorum) Trackstop(h corosync.Handle) corosync.Status {
	k, st := v.enter(h, "trackstop")
	if st != corosync.StatusOK {
		return st
	}
	defer v.c.mu.Unlock()
	if !k.tracking {
		return corosync.StatusNotExist
	}
	k.tracking = false
	return corosync.StatusOK
}

// qdevice resolves the registered device for name. Called with c.mu held.
func (v *Votequorum) qdevice(name string) (*qdevice, corosync.Status) {
	q := &v.c.vq.qdev
	switch {
	case !q.registered:
		return nil, corosync.StatusNotExist
	case q.name != name:
		return nil, corosync.StatusInvalidParam
	}
	return q, corosync.StatusOK
}

func (v *Votequorum) QdeviceRegister(h corosync.Handle, name string) corosync.Status {
	if _, st := v.enter(h, "qdevice_register"); st != corosync.StatusOK {
		return st
	}
	defer v.c.mu.Unlock()
	q := &v.c.vq.qdev
	if q.registered {
		return corosync.StatusExist
	}
	if name == "" || len(name) > votequorum.QdeviceMaxNameLen {
		return corosync.StatusInvalidParam
	}
	q.registered, q.name = true, name
	return corosync.StatusOK
}

func (v *Votequorum) QdeviceUnregister(h corosync.Handle, name string) corosync.Status {
	if _, st := v.enter(h, "qdevice_unregister"); st != corosync.StatusOK {
		return st
	}
	defer v.c.mu.Unlock()
	if _, st := v.qdevice(name); st != corosync.StatusOK {
		return st
	}
	v.c.vq.qdev = qdevice{votes: v.c.vq.qdev.votes}
	v.c.vqChanged(false)
	return corosync.StatusOK
}

func (v *Votequorum) QdeviceUpdate(h corosync.Handle, oldName, newName string) corosync.Status {
	if _, st := v.enter(h, "qdevice_update"); st != corosync.StatusOK {
		return st
	}
	defer v.c.mu.Unlock()
	q, st := v.qdevice(oldName)
	if st != corosync.StatusOK {
		return st
	}
	if newName == "" || len(newName) > votequorum.QdeviceMaxNameLen {
		return corosync.StatusInvalidParam
	}
	q.name = newName
	return corosync.StatusOK
}

func (v *Votequorum) QdevicePoll(h corosync.Handle, name string, castVote bool) corosync.Status {
	if _, st := v.enter(h, "qdevice_poll"); st != corosync.StatusOK {
		return st
	}
	defer v.c.mu.Unlock()
	q, st := v.qdevice(name)
	if st != corosync.StatusOK {
		return st
	}
	q.alive, q.castVote = true, castVote
	v.c.vqChanged(false)
	return corosync.StatusOK
}

func (v *Votequorum) QdeviceMasterWins(h corosync.Handle, name string, allow bool) corosync.Status {
	if _, st := v.enter(h, "qdevice_master_wins"); st != corosync.StatusOK {
		return st
	}
	defer v.c.mu.Unlock()
	q, st := v.qdevice(name)
	if st != corosync.StatusOK {
		return st
	}
	q.masterWins = allow
	return corosync.StatusOK
}
