// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package loopback implements the cluster service contracts in process.
//
// A [Cluster] holds the shared state of every service: one replicated
// configuration map, the process groups, and the quorum state. Natives
// obtained from it behave like connections from processes on cluster
// nodes. Each handle owns a bounded event queue and a pipe descriptor
// that is readable while events are pending, so client dispatch loops
// run unchanged against it.
//
// The cluster state is locked, so Sessions on different goroutines may
// drive one Cluster concurrently. Events are total ordered: a change
// observed by several handles is queued to all of them under one lock.
package loopback

import (
	"log/slog"
	"math/bits"
	"sync"

	"code.hybscloud.com/corosync"
	"code.hybscloud.com/iox"
)

// DefaultQueueCapacity is the per-handle event queue capacity.
const DefaultQueueCapacity = 64

// Config configures a Cluster.
type Config struct {
	// QueueCapacity bounds each handle's pending events. It is rounded
	// up to a power of two.
	QueueCapacity int `yaml:"queue_capacity"`
	// ExpectedVotes seeds the vote quorum expected votes.
	ExpectedVotes uint32 `yaml:"expected_votes"`
	// Quorate is the initial boolean quorum state.
	Quorate bool         `yaml:"quorate"`
	Logger  *slog.Logger `yaml:"-"`
}

func (c *Config) normalize() {
	if c.QueueCapacity < 1 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	c.QueueCapacity = 1 << bits.Len(uint(c.QueueCapacity-1))
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Cluster is an in-process cluster.
type Cluster struct {
	mu     sync.Mutex
	cfg    Config
	log    *slog.Logger
	conns  map[corosync.Handle]*conn
	faults map[string][]corosync.Status
	down   map[uint32]bool

	cmap   cmapState
	cpg    cpgState
	quorum quorumState
	vq     vqState
}

// New returns an empty cluster.
func New(cfg Config) *Cluster {
	cfg.normalize()
	c := &Cluster{
		cfg:    cfg,
		log:    cfg.Logger.With("component", "loopback"),
		conns:  make(map[corosync.Handle]*conn),
		faults: make(map[string][]corosync.Status),
		down:   make(map[uint32]bool),
	}
	c.cmap.init()
	c.cpg.init()
	c.quorum.quorate = cfg.Quorate
	c.vq.init(cfg.ExpectedVotes)
	return c
}

// Close finalizes every open handle without notifying anyone.
func (c *Cluster) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for h, k := range c.conns {
		k.close()
		delete(c.conns, h)
	}
}

// Conns returns the number of open handles.
func (c *Cluster) Conns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

// Inject makes the next calls of op return the given statuses, one per
// call, before the operation runs. op is the qualified operation name,
// e.g. "cpg_mcast_joined" or "cmap_fd_get".
func (c *Cluster) Inject(op string, sts ...corosync.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults[op] = append(c.faults[op], sts...)
}

// fault pops the next injected status for op. Called with c.mu held.
func (c *Cluster) fault(op string) corosync.Status {
	q := c.faults[op]
	if len(q) == 0 {
		return corosync.StatusOK
	}
	if len(q) == 1 {
		delete(c.faults, op)
	} else {
		c.faults[op] = q[1:]
	}
	c.log.Debug("injected status", "op", op, "status", q[0])
	return q[0]
}

// open registers a new handle. Called with c.mu held.
func (c *Cluster) open(svc string, node, pid uint32) (*conn, corosync.Status) {
	if st := c.fault(svc + "_initialize"); st != corosync.StatusOK {
		return nil, st
	}
	k, err := newConn(svc, c.cfg.QueueCapacity)
	if err != nil {
		c.log.Error("handle not opened", "service", svc, "error", err)
		return nil, corosync.StatusLibrary
	}
	k.node, k.pid = node, pid
	c.conns[k.handle] = k
	c.log.Debug("handle opened", "service", svc, "handle", uint64(k.handle), "node", node)
	return k, corosync.StatusOK
}

// lookup resolves h for svc and applies injected faults for op.
// Called with c.mu held.
func (c *Cluster) lookup(svc string, h corosync.Handle, op string) (*conn, corosync.Status) {
	if st := c.fault(svc + "_" + op); st != corosync.StatusOK {
		return nil, st
	}
	k, ok := c.conns[h]
	if !ok || k.svc != svc {
		return nil, corosync.StatusBadHandle
	}
	return k, corosync.StatusOK
}

// deliver queues ev on k, logging a full queue. Used for notifications
// the producer cannot refuse.
func (c *Cluster) deliver(k *conn, ev event) {
	err := k.post(ev)
	switch {
	case err == nil:
	case iox.IsWouldBlock(err):
		c.log.Warn("event dropped, queue full", "service", k.svc, "handle", uint64(k.handle))
	default:
		c.log.Error("event dropped", "service", k.svc, "handle", uint64(k.handle), "error", err)
	}
}

// service is the part of a native shared by every service.
type service struct {
	c       *Cluster
	name    string
	release func(k *conn)
}

// Finalize closes the handle, running service cleanup first.
func (s *service) Finalize(h corosync.Handle) corosync.Status {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	k, st := s.c.lookup(s.name, h, "finalize")
	if st != corosync.StatusOK {
		return st
	}
	if s.release != nil {
		s.release(k)
	}
	delete(s.c.conns, h)
	k.close()
	s.c.log.Debug("handle closed", "service", s.name, "handle", uint64(h))
	return corosync.StatusOK
}

// FdGet returns the read end of the handle's pipe.
func (s *service) FdGet(h corosync.Handle) (int, corosync.Status) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	k, st := s.c.lookup(s.name, h, "fd_get")
	if st != corosync.StatusOK {
		return -1, st
	}
	return k.rfd, corosync.StatusOK
}

// Dispatch runs pending events. DispatchAll drains the queue; the other
// non-blocking modes run one event. It returns TRY_AGAIN when nothing
// is pending.
func (s *service) Dispatch(h corosync.Handle, flags corosync.DispatchFlags) corosync.Status {
	if flags == corosync.DispatchBlocking {
		return corosync.StatusNotSupported
	}
	n := 0
	for {
		s.c.mu.Lock()
		k, st := s.c.lookup(s.name, h, "dispatch")
		if st != corosync.StatusOK {
			s.c.mu.Unlock()
			return st
		}
		ev, ok := k.take()
		s.c.mu.Unlock()
		if !ok {
			break
		}
		ev()
		n++
		if flags != corosync.DispatchAll {
			break
		}
	}
	if n == 0 {
		return corosync.StatusTryAgain
	}
	return corosync.StatusOK
}
