// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package loopback

import (
	"slices"

	"code.hybscloud.com/corosync/cpg"
	"code.hybscloud.com/corosync/votequorum"
)

// Nodes returns the ids of the live nodes, sorted.
func (c *Cluster) Nodes() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveNodes()
}

// liveNodes collects the nodes that have a handle or a vote record and
// are not down. Called with c.mu held.
func (c *Cluster) liveNodes() []uint32 {
	seen := make(map[uint32]bool)
	for _, k := range c.conns {
		if k.node != 0 {
			seen[k.node] = true
		}
	}
	for id := range c.vq.nodes {
		seen[id] = true
	}
	var out []uint32
	for id := range seen {
		if !c.down[id] {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// NodeDown takes nodeID out of the cluster. Its group members leave
// their groups with reason nodedown, its vote record turns dead, and
// every remaining process group handle sees a new ring.
func (c *Cluster) NodeDown(nodeID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down[nodeID] {
		return
	}
	c.down[nodeID] = true
	c.log.Info("node down", "node", nodeID)

	for _, g := range c.groupNames() {
		var gone []*conn
		for _, k := range c.cpg.groups[g] {
			if k.node == nodeID {
				gone = append(gone, k)
			}
		}
		if len(gone) > 0 {
			c.removeMembers(g, gone, cpg.ReasonNodeDown)
		}
	}
	if n, ok := c.vq.nodes[nodeID]; ok {
		n.state = uint32(votequorum.StateDead)
	}
	c.ringChange()
	c.vqChanged(true)
}

// NodeUp brings a downed node back. Its handles stay valid but rejoin
// no groups.
func (c *Cluster) NodeUp(nodeID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.down[nodeID] {
		return
	}
	delete(c.down, nodeID)
	c.log.Info("node up", "node", nodeID)
	if n, ok := c.vq.nodes[nodeID]; ok {
		n.state = uint32(votequorum.StateMember)
	}
	c.ringChange()
	c.vqChanged(true)
}

// Ring returns the current ring id.
func (c *Cluster) Ring() cpg.RingID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cpg.ring
}

// ringChange advances the ring and sends the totem change to every
// process group handle on a live node. Called with c.mu held.
func (c *Cluster) ringChange() {
	nodes := c.liveNodes()
	c.cpg.ring.Seq += 4
	c.cpg.ring.NodeID = 0
	if len(nodes) > 0 {
		c.cpg.ring.NodeID = nodes[0]
	}
	ring := c.cpg.ring
	for _, k := range c.conns {
		if k.svc != "cpg" || c.down[k.node] {
			continue
		}
		cb, h := k.cpgCB, k.handle
		c.deliver(k, func() {
			if cb.TotemConfchg != nil {
				cb.TotemConfchg(h, ring, nodes)
			}
		})
	}
	c.quorumChanged()
}
