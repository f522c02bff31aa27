// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package loopback

import (
	"bytes"
	"slices"

	"code.hybscloud.com/corosync"
	"code.hybscloud.com/corosync/cpg"
)

type cpgIter struct {
	k     *conn
	items []cpg.Description
	pos   int
}

type cpgState struct {
	// groups holds each group's members in join order.
	groups map[string][]*conn
	iters  map[uint64]*cpgIter
	ring   cpg.RingID
}

func (s *cpgState) init() {
	s.groups = make(map[string][]*conn)
	s.iters = make(map[uint64]*cpgIter)
}

// CPG is a process group connection point for one process.
type CPG struct {
	service
	node uint32
	pid  uint32
}

var _ cpg.Native = (*CPG)(nil)

// CPG returns the process group native of process pid on node nodeID.
// Handles it opens are group members with that identity.
func (c *Cluster) CPG(nodeID, pid uint32) *CPG {
	p := &CPG{service: service{c: c, name: "cpg"}, node: nodeID, pid: pid}
	p.release = p.releaseConn
	return p
}

func (p *CPG) releaseConn(k *conn) {
	for id, it := range p.c.cpg.iters {
		if it.k == k {
			delete(p.c.cpg.iters, id)
		}
	}
	if k.joined {
		p.c.removeMembers(k.group, []*conn{k}, cpg.ReasonProcDown)
	}
}

func (p *CPG) enter(h corosync.Handle, op string) (*conn, corosync.Status) {
	p.c.mu.Lock()
	k, st := p.c.lookup(p.name, h, op)
	if st != corosync.StatusOK {
		p.c.mu.Unlock()
	}
	return k, st
}

func (p *CPG) Initialize(cb *cpg.Callbacks) (corosync.Handle, corosync.Status) {
	if cb == nil {
		return 0, corosync.StatusInvalidParam
	}
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	k, st := p.c.open(p.name, p.node, p.pid)
	if st != corosync.StatusOK {
		return 0, st
	}
	k.cpgCB = cb
	return k.handle, corosync.StatusOK
}

func member(k *conn, r cpg.Reason) cpg.Member {
	return cpg.Member{NodeID: k.node, PID: k.pid, Reason: r}
}

func packMembers(ks []*conn, r cpg.Reason) []byte {
	ms := make([]cpg.Member, len(ks))
	for i, k := range ks {
		ms[i] = member(k, r)
	}
	return cpg.EncodeMembers(ms)
}

func roomAll(ks []*conn, n int) bool {
	for _, k := range ks {
		if !k.room(n) {
			return false
		}
	}
	return true
}

// confchg queues one configuration change to each of ks.
// Called with c.mu held.
func (c *Cluster) confchg(ks []*conn, group cpg.Name, members, left, joined []byte) {
	for _, k := range ks {
		cb, h := k.cpgCB, k.handle
		c.deliver(k, func() {
			if cb.Confchg != nil {
				cb.Confchg(h, group, members, left, joined)
			}
		})
	}
}

// removeMembers drops gone from group and tells the remaining members.
// Called with c.mu held.
func (c *Cluster) removeMembers(group string, gone []*conn, r cpg.Reason) {
	rest := slices.DeleteFunc(slices.Clone(c.cpg.groups[group]), func(k *conn) bool {
		return slices.Contains(gone, k)
	})
	for _, k := range gone {
		k.group, k.joined = "", false
	}
	if len(rest) == 0 {
		delete(c.cpg.groups, group)
		return
	}
	c.cpg.groups[group] = rest
	name, _ := cpg.NewName(group)
	c.confchg(rest, name, packMembers(rest, cpg.ReasonNone), packMembers(gone, r), nil)
}

func (p *CPG) Join(h corosync.Handle, group cpg.Name) corosync.Status {
	k, st := p.enter(h, "join")
	if st != corosync.StatusOK {
		return st
	}
	defer p.c.mu.Unlock()
	if k.joined {
		return corosync.StatusExist
	}
	g := group.String()
	all := append(slices.Clone(p.c.cpg.groups[g]), k)
	if !roomAll(all, 1) {
		return corosync.StatusTryAgain
	}
	p.c.cpg.groups[g] = all
	k.group, k.joined = g, true
	p.c.confchg(all, group, packMembers(all, cpg.ReasonNone), nil, packMembers([]*conn{k}, cpg.ReasonJoin))
	return corosync.StatusOK
}

// Leave removes the handle from group. The leaver itself is not sent
// the resulting configuration change.
func (p *CPG) Leave(h corosync.Handle, group cpg.Name) corosync.Status {
	k, st := p.enter(h, "leave")
	if st != corosync.StatusOK {
		return st
	}
	defer p.c.mu.Unlock()
	if !k.joined || k.group != group.String() {
		return corosync.StatusNotExist
	}
	rest := slices.DeleteFunc(slices.Clone(p.c.cpg.groups[k.group]), func(x *conn) bool { return x == k })
	if !roomAll(rest, 1) {
		return corosync.StatusTryAgain
	}
	p.c.removeMembers(k.group, []*conn{k}, cpg.ReasonLeave)
	return corosync.StatusOK
}

// McastJoined delivers iov to every member of the handle's group, the
// sender included. The messages of one call are queued consecutively on
// every member, or not at all.
func (p *CPG) McastJoined(h corosync.Handle, _ cpg.Guarantee, iov [][]byte) corosync.Status {
	k, st := p.enter(h, "mcast_joined")
	if st != corosync.StatusOK {
		return st
	}
	defer p.c.mu.Unlock()
	if !k.joined {
		return corosync.StatusNotExist
	}
	members := p.c.cpg.groups[k.group]
	if !roomAll(members, len(iov)) {
		return corosync.StatusTryAgain
	}
	name, _ := cpg.NewName(k.group)
	node, pid := k.node, k.pid
	for _, b := range iov {
		msg := bytes.Clone(b)
		for _, r := range members {
			cb, rh := r.cpgCB, r.handle
			p.c.deliver(r, func() {
				if cb.Deliver != nil {
					cb.Deliver(rh, name, node, pid, msg)
				}
			})
		}
	}
	return corosync.StatusOK
}

func (p *CPG) LocalGet(h corosync.Handle) (uint32, corosync.Status) {
	k, st := p.enter(h, "local_get")
	if st != corosync.StatusOK {
		return 0, st
	}
	defer p.c.mu.Unlock()
	return k.node, corosync.StatusOK
}

func (p *CPG) MembershipGet(h corosync.Handle, group cpg.Name) ([]byte, corosync.Status) {
	if _, st := p.enter(h, "membership_get"); st != corosync.StatusOK {
		return nil, st
	}
	defer p.c.mu.Unlock()
	return packMembers(p.c.cpg.groups[group.String()], cpg.ReasonNone), corosync.StatusOK
}

func (p *CPG) IterationInitialize(h corosync.Handle, t cpg.IterationType, group cpg.Name) (uint64, corosync.Status) {
	k, st := p.enter(h, "iteration_init")
	if st != corosync.StatusOK {
		return 0, st
	}
	defer p.c.mu.Unlock()

	describe := func(g string) []cpg.Description {
		name, _ := cpg.NewName(g)
		var out []cpg.Description
		for _, m := range p.c.cpg.groups[g] {
			out = append(out, cpg.Description{Group: name, NodeID: m.node, PID: m.pid})
		}
		return out
	}
	var items []cpg.Description
	switch t {
	case cpg.IterationNameOnly:
		for _, g := range p.c.groupNames() {
			name, _ := cpg.NewName(g)
			items = append(items, cpg.Description{Group: name})
		}
	case cpg.IterationOneGroup:
		items = describe(group.String())
	case cpg.IterationAll:
		for _, g := range p.c.groupNames() {
			items = append(items, describe(g)...)
		}
	default:
		return 0, corosync.StatusInvalidParam
	}
	id := iterSerial.next()
	p.c.cpg.iters[id] = &cpgIter{k: k, items: items}
	return id, corosync.StatusOK
}

func (p *CPG) IterationNext(h corosync.Handle, it uint64) (cpg.Description, corosync.Status) {
	k, st := p.enter(h, "iteration_next")
	if st != corosync.StatusOK {
		return cpg.Description{}, st
	}
	defer p.c.mu.Unlock()
	iter, ok := p.c.cpg.iters[it]
	if !ok || iter.k != k {
		return cpg.Description{}, corosync.StatusBadHandle
	}
	if iter.pos >= len(iter.items) {
		return cpg.Description{}, corosync.StatusNoSections
	}
	d := iter.items[iter.pos]
	iter.pos++
	return d, corosync.StatusOK
}

func (p *CPG) IterationFinalize(h corosync.Handle, it uint64) corosync.Status {
	k, st := p.enter(h, "iteration_finalize")
	if st != corosync.StatusOK {
		return st
	}
	defer p.c.mu.Unlock()
	iter, ok := p.c.cpg.iters[it]
	if !ok || iter.k != k {
		return corosync.StatusBadHandle
	}
	delete(p.c.cpg.iters, it)
	return corosync.StatusOK
}

// groupNames returns the group names in sorted order.
func (c *Cluster) groupNames() []string {
	names := make([]string, 0, len(c.cpg.groups))
	for g := range c.cpg.groups {
		names = append(names, g)
	}
	slices.Sort(names)
	return names
}
