// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package loopback

import (
	"code.hybscloud.com/corosync"
	"code.hybscloud.com/corosync/quorum"
)

type quorumState struct {
	quorate bool
}

// Quorum is the boolean quorum connection point.
type Quorum struct {
	service
}

var _ quorum.Native = (*Quorum)(nil)

// Quorum returns the boolean quorum native.
func (c *Cluster) Quorum() *Quorum {
	return &Quorum{service{c: c, name: "quorum"}}
}

// SetQuorate changes the quorum state and notifies tracking handles.
// Setting the current state again notifies nobody.
func (c *Cluster) SetQuorate(q bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quorum.quorate == q {
		return
	}
	c.quorum.quorate = q
	c.log.Info("quorum changed", "quorate", q)
	c.ringChange()
}

// quorumChanged notifies every tracking quorum handle of the current
// state. Called with c.mu held.
func (c *Cluster) quorumChanged() {
	for _, k := range c.conns {
		if k.svc == "quorum" && k.tracking {
			c.notifyQuorum(k)
		}
	}
}

func (c *Cluster) notifyQuorum(k *conn) {
	cb, h := k.quorumCB, k.handle
	q, seq, nodes := c.quorum.quorate, c.cpg.ring.Seq, c.liveNodes()
	c.deliver(k, func() {
		if cb.Notify != nil {
			cb.Notify(h, q, seq, nodes)
		}
	})
}

func (q *Quorum) enter(h corosync.Handle, op string) (*conn, corosync.Status) {
	q.c.mu.Lock()
	k, st := q.c.lookup(q.name, h, op)
	if st != corosync.StatusOK {
		q.c.mu.Unlock()
	}
	return k, st
}

// Initialize reports the quorum provider as TypeSet.
func (q *Quorum) Initialize(cb *quorum.Callbacks) (corosync.Handle, uint32, corosync.Status) {
	if cb == nil {
		return 0, 0, corosync.StatusInvalidParam
	}
	q.c.mu.Lock()
	defer q.c.mu.Unlock()
	k, st := q.c.open(q.name, 0, 0)
	if st != corosync.StatusOK {
		return 0, 0, st
	}
	k.quorumCB = cb
	return k.handle, quorum.TypeSet, corosync.StatusOK
}

func (q *Quorum) Getquorate(h corosync.Handle) (bool, corosync.Status) {
	if _, st := q.enter(h, "getquorate"); st != corosync.StatusOK {
		return false, st
	}
	defer q.c.mu.Unlock()
	return q.c.quorum.quorate, corosync.StatusOK
}

// Trackstart queues the current state with TrackCurrent and turns on
// change notifications with TrackChanges or TrackChangesOnly.
func (q *Quorum) Trackstart(h corosync.Handle, flags uint32) corosync.Status {
	k, st := q.enter(h, "trackstart")
	if st != corosync.StatusOK {
		return st
	}
	defer q.c.mu.Unlock()
	if flags&(quorum.TrackCurrent|quorum.TrackChanges|quorum.TrackChangesOnly) == 0 {
		return corosync.StatusInvalidParam
	}
	if flags&quorum.TrackCurrent != 0 {
		if !k.room(1) {
			return corosync.StatusTryAgain
		}
		q.c.notifyQuorum(k)
	}
	if flags&(quorum.TrackChanges|quorum.TrackChangesOnly) != 0 {
		k.tracking = true
	}
	return corosync.StatusOK
}

func (q *Quorum) Trackstop(h corosync.Handle) corosync.Status {
	k, st := q.enter(h, "trackstop")
	if st != corosync.StatusOK {
		return st
	}
	defer q.c.mu.Unlock()
	if !k.tracking {
		return corosync.StatusNotExist
	}
	k.tracking = false
	return corosync.StatusOK
}
