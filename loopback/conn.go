// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package loopback

import (
	"fmt"

	"code.hybscloud.com/corosync"
	"code.hybscloud.com/corosync/cpg"
	"code.hybscloud.com/corosync/quorum"
	"code.hybscloud.com/corosync/votequorum"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
	"golang.org/x/sys/unix"
)

// event is one queued callback invocation. It runs outside the cluster
// lock so that it may call back into the cluster.
type event func()

// conn is the server side of one handle: a bounded event queue and a
// pipe whose read end is readable while events are pending.
//
// The queue is a single-producer single-consumer ring. Both ends are
// only touched with the cluster lock held, which serializes producers.
type conn struct {
	svc    string
	handle corosync.Handle

	q       lfq.SPSC[event]
	pending int
	limit   int
	rfd     int
	wfd     int

	node uint32
	pid  uint32

	// cpg
	cpgCB  *cpg.Callbacks
	group  string
	joined bool

	// quorum and votequorum
	quorumCB *quorum.Callbacks
	vqCB     *votequorum.Callbacks
	tracking bool
	context  uint64
}

func newConn(svc string, limit int) (*conn, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, fmt.Errorf("loopback: pipe: %w", err)
	}
	for _, fd := range p {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, fmt.Errorf("loopback: nonblock fd %d: %w", fd, err)
		}
	}
	c := &conn{
		svc:    svc,
		handle: corosync.Handle(handleSerial.next()),
		limit:  limit,
		rfd:    p[0],
		wfd:    p[1],
	}
	// The ring needs two slots; pending against limit is the real bound.
	c.q.Init(max(limit, 2))
	return c, nil
}

// room reports whether n more events fit in the queue.
func (c *conn) room(n int) bool {
	return c.pending+n <= c.limit
}

// post queues ev and marks the descriptor readable. It returns
// iox.ErrWouldBlock when the queue is full.
func (c *conn) post(ev event) error {
	if !c.room(1) {
		return iox.ErrWouldBlock
	}
	if err := c.q.Enqueue(&ev); err != nil {
		return err
	}
	c.pending++
	var b = [1]byte{1}
	if _, err := unix.Write(c.wfd, b[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("loopback: signal fd %d: %w", c.wfd, err)
	}
	return nil
}

// take dequeues the next event, clearing one readiness byte.
func (c *conn) take() (event, bool) {
	ev, err := c.q.Dequeue()
	if err != nil {
		return nil, false
	}
	c.pending--
	var b [1]byte
	unix.Read(c.rfd, b[:])
	return ev, true
}

func (c *conn) close() {
	for {
		if _, ok := c.take(); !ok {
			break
		}
	}
	unix.Close(c.rfd)
	unix.Close(c.wfd)
	c.rfd, c.wfd = -1, -1
}
