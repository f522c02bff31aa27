// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cpg

import (
	"os"
	"time"

	"code.hybscloud.com/corosync"
)

// State is the lifecycle state of a Channel.
type State uint8

const (
	StateUnconnected State = iota
	StateConnected
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	}
	return "unconnected"
}

// Message is one delivered multicast message.
type Message struct {
	Group string
	From  Member
	Data  []byte
}

// Confchg is a group configuration change: the full view after the
// change plus the members that left and joined, with their reasons.
type Confchg struct {
	Group   string
	Members *MemberList
	Left    *MemberList
	Joined  *MemberList
}

// Channel is a member of at most one process group.
//
// Messages are delivered in the agreed order: every member, the sender
// included, observes all messages of the group in the same relative
// order through OnMessage. The messages of one Send are delivered
// consecutively.
type Channel struct {
	s      *corosync.Session
	native Native
	cb     *Callbacks

	group   string
	name    Name
	joined  bool
	members *MemberList

	onMessage func(Message) error
	onConfchg func(Confchg) error
	onTotem   func(RingID, []uint32) error
}

// New returns an unconnected Channel on native.
func New(native Native, opts *corosync.Options) *Channel {
	c := &Channel{
		s:       corosync.NewSession("cpg", native, opts),
		native:  native,
		members: NewMemberList(),
	}
	// The callback set is owned by the Channel and registered with
	// every handle it connects.
	c.cb = &Callbacks{
		Deliver:      c.deliver,
		Confchg:      c.confchg,
		TotemConfchg: c.totemConfchg,
	}
	return c
}

// Open returns a Channel joined to group.
func Open(native Native, group string, opts *corosync.Options) (*Channel, error) {
	c := New(native, opts)
	if err := c.Join(group); err != nil {
		c.Finalize()
		return nil, err
	}
	return c, nil
}

// Connect connects to the service. Connecting twice is a no-op.
func (c *Channel) Connect() error {
	return c.s.Connect(func() (corosync.Handle, corosync.Status) {
		return c.native.Initialize(c.cb)
	})
}

// Finalize disconnects, implicitly leaving the group.
// Safe to call repeatedly.
func (c *Channel) Finalize() error {
	c.group, c.name, c.joined = "", Name{}, false
	c.members = NewMemberList()
	return c.s.Finalize()
}

// State returns the lifecycle state.
func (c *Channel) State() State {
	switch {
	case !c.s.Connected():
		return StateUnconnected
	case c.joined:
		return StateJoined
	}
	return StateConnected
}

// Group returns the joined group, or "" when not joined.
func (c *Channel) Group() string {
	return c.group
}

// Session returns the underlying Session.
func (c *Channel) Session() *corosync.Session {
	return c.s
}

// Fd returns the readiness descriptor, or -1 when unconnected.
func (c *Channel) Fd() int {
	return c.s.Fd()
}

// Dispatch delivers at most one pending event.
// See [corosync.Session.Dispatch].
func (c *Channel) Dispatch(timeout time.Duration) (bool, error) {
	return c.s.Dispatch(timeout)
}

// OnMessage sets the delivery callback. Nil disables it. An error the
// callback returns is reported by the Dispatch that delivered it.
func (c *Channel) OnMessage(fn func(Message) error) {
	c.onMessage = fn
}

// OnConfchg sets the group configuration change callback. Nil disables it.
func (c *Channel) OnConfchg(fn func(Confchg) error) {
	c.onConfchg = fn
}

// OnTotemConfchg sets the cluster ring change callback. Nil disables it.
func (c *Channel) OnTotemConfchg(fn func(ring RingID, nodes []uint32) error) {
	c.onTotem = fn
}

// Join joins group, connecting first if needed, and then dispatches once
// (waiting up to Options.JoinTimeout) so the member observes its own
// join. A Channel may be in one group at a time.
//
// If only that dispatch fails, the Channel stays joined and Join returns
// a *JoinDispatchError wrapping the failure.
func (c *Channel) Join(group string) error {
	name, err := NewName(group)
	if err != nil {
		return corosync.Fail(c.s.Op("join"), corosync.KindNameTooLong)
	}
	if err := c.Connect(); err != nil {
		return err
	}
	if c.joined {
		return corosync.Fail(c.s.Op("join"), corosync.KindExist)
	}
	h := c.s.Handle()
	if err := c.s.Call(c.s.Op("join"), func() corosync.Status {
		return c.native.Join(h, name)
	}); err != nil {
		return err
	}
	c.group, c.name, c.joined = group, name, true

	if _, err := c.s.Dispatch(c.s.Options().JoinTimeout); err != nil {
		return &JoinDispatchError{Group: group, Err: err}
	}
	return nil
}

// JoinDispatchError is returned by Join when the group was joined but
// the dispatch that follows the join failed.
type JoinDispatchError struct {
	Group string
	Err   error
}

func (e *JoinDispatchError) Error() string {
	return "cpg: joined " + e.Group + ": " + e.Err.Error()
}

func (e *JoinDispatchError) Unwrap() error {
	return e.Err
}

// Leave leaves the joined group. It is a no-op when not joined.
func (c *Channel) Leave() error {
	if !c.joined {
		return nil
	}
	h := c.s.Handle()
	name := c.name
	if err := c.s.Call(c.s.Op("leave"), func() corosync.Status {
		return c.native.Leave(h, name)
	}); err != nil {
		return err
	}
	c.group, c.name, c.joined = "", Name{}, false
	c.members = NewMemberList()
	return nil
}

// Send multicasts msgs to the group in one agreed-order call. Messages
// given together are delivered consecutively, with no message of
// another sender between them; separate Sends carry no such promise.
func (c *Channel) Send(msgs ...[]byte) error {
	if err := c.s.Check("mcast_joined"); err != nil {
		return err
	}
	if !c.joined {
		return corosync.Fail(c.s.Op("mcast_joined"), corosync.KindNotExist)
	}
	if len(msgs) == 0 {
		return nil
	}
	h := c.s.Handle()
	return c.s.Call(c.s.Op("mcast_joined"), func() corosync.Status {
		return c.native.McastJoined(h, GuaranteeAgreed, msgs)
	})
}

// SendString is Send for text messages.
func (c *Channel) SendString(msgs ...string) error {
	iov := make([][]byte, len(msgs))
	for i, m := range msgs {
		iov[i] = []byte(m)
	}
	return c.Send(iov...)
}

// Membership returns a copy of the view from the last configuration
// change. It is empty until the first change is dispatched.
func (c *Channel) Membership() *MemberList {
	return c.members.Clone()
}

// Self returns this process as a group member: the local node id as
// reported by the service and the process id.
func (c *Channel) Self() (Member, error) {
	if err := c.s.Check("local_get"); err != nil {
		return Member{}, err
	}
	h := c.s.Handle()
	nodeID, err := corosync.Try(c.s, c.s.Op("local_get"), func() (uint32, corosync.Status) {
		return c.native.LocalGet(h)
	})
	if err != nil {
		return Member{}, err
	}
	return NewMember(nodeID, uint32(os.Getpid())), nil
}

// QueryMembership asks the service for the current members of the joined
// group. Unlike Membership it does not read the cached view, nor does it
// update it.
func (c *Channel) QueryMembership() (*MemberList, error) {
	if err := c.s.Check("membership_get"); err != nil {
		return nil, err
	}
	if !c.joined {
		return nil, corosync.Fail(c.s.Op("membership_get"), corosync.KindNotExist)
	}
	h := c.s.Handle()
	name := c.name
	raw, err := corosync.Try(c.s, c.s.Op("membership_get"), func() ([]byte, corosync.Status) {
		return c.native.MembershipGet(h, name)
	})
	if err != nil {
		return nil, err
	}
	ms, err := DecodeMembers(raw)
	if err != nil {
		return nil, err
	}
	return NewMemberList(ms...), nil
}

// GroupMember is one entry of a group iteration.
type GroupMember struct {
	Group string
	Member
}

// Iterate opens a cursor over the members of group, or of every group
// when group is "".
func (c *Channel) Iterate(group string) (*corosync.Cursor[GroupMember], error) {
	t := IterationAll
	if group != "" {
		t = IterationOneGroup
	}
	return c.iterate(t, group)
}

func (c *Channel) iterate(t IterationType, group string) (*corosync.Cursor[GroupMember], error) {
	name, err := NewName(group)
	if err != nil {
		return nil, corosync.Fail(c.s.Op("iteration_init"), corosync.KindNameTooLong)
	}
	h := c.s.Handle()
	return corosync.OpenCursor(c.s, corosync.CursorFuncs[GroupMember]{
		Op: "iteration",
		Open: func() (uint64, corosync.Status) {
			return c.native.IterationInitialize(h, t, name)
		},
		Next: func(it uint64) (GroupMember, corosync.Status) {
			d, st := c.native.IterationNext(h, it)
			return GroupMember{Group: d.Group.String(), Member: NewMember(d.NodeID, d.PID)}, st
		},
		Close: func(it uint64) corosync.Status {
			return c.native.IterationFinalize(h, it)
		},
	})
}

// Groups returns the names of the groups known to the service.
func (c *Channel) Groups() ([]string, error) {
	cur, err := c.iterate(IterationNameOnly, "")
	if err != nil {
		return nil, err
	}
	entries, err := cur.Collect()
	if err != nil {
		return nil, err
	}
	groups := make([]string, len(entries))
	for i, e := range entries {
		groups[i] = e.Group
	}
	return groups, nil
}

// MembersOf returns the members of group as enumerated by the service.
func (c *Channel) MembersOf(group string) (*MemberList, error) {
	cur, err := c.Iterate(group)
	if err != nil {
		return nil, err
	}
	l := NewMemberList()
	for gm, err := range cur.All() {
		if err != nil {
			return nil, err
		}
		l.Add(gm.Member)
	}
	return l, nil
}

func (c *Channel) deliver(_ corosync.Handle, group Name, nodeID, pid uint32, msg []byte) {
	if c.onMessage == nil {
		return
	}
	c.s.Escape(c.onMessage(Message{
		Group: group.String(),
		From:  NewMember(nodeID, pid),
		Data:  append([]byte(nil), msg...),
	}))
}

func (c *Channel) confchg(_ corosync.Handle, group Name, members, left, joined []byte) {
	if !c.joined || !group.Equal(c.name) {
		return
	}
	all, err1 := DecodeMembers(members)
	l, err2 := DecodeMembers(left)
	j, err3 := DecodeMembers(joined)
	if err1 != nil || err2 != nil || err3 != nil {
		c.s.Logger().Debug("malformed confchg dropped", "group", group.String())
		return
	}
	// The view is replaced wholesale, never patched. Reasons belong to
	// the left and joined lists only.
	for i := range all {
		all[i].Reason = ReasonNone
	}
	c.members = NewMemberList(all...)
	if c.onConfchg == nil {
		return
	}
	c.s.Escape(c.onConfchg(Confchg{
		Group:   group.String(),
		Members: c.members.Clone(),
		Left:    NewMemberList(l...),
		Joined:  NewMemberList(j...),
	}))
}

func (c *Channel) totemConfchg(_ corosync.Handle, ring RingID, members []uint32) {
	if c.onTotem == nil {
		return
	}
	c.s.Escape(c.onTotem(ring, append([]uint32(nil), members...)))
}
