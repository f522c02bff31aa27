// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cpg

import (
	"cmp"
	"encoding/binary"
	"iter"
	"maps"
	"slices"
	"strconv"

	"code.hybscloud.com/corosync"
)

// Reason says why a member appears in a join or leave list.
type Reason uint32

const (
	// ReasonNone marks steady members of a full view.
	ReasonNone Reason = 0
	// ReasonJoin: the member joined the group normally.
	ReasonJoin Reason = 1
	// ReasonLeave: the member left the group normally.
	ReasonLeave Reason = 2
	// ReasonNodeDown: the member's node left the cluster.
	ReasonNodeDown Reason = 3
	// ReasonNodeUp: the member was already in the group on a node that
	// just joined the cluster.
	ReasonNodeUp Reason = 4
	// ReasonProcDown: the member's process went away without leaving.
	ReasonProcDown Reason = 5
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonJoin:
		return "join"
	case ReasonLeave:
		return "leave"
	case ReasonNodeDown:
		return "nodedown"
	case ReasonNodeUp:
		return "nodeup"
	case ReasonProcDown:
		return "procdown"
	}
	return "reason(" + strconv.FormatUint(uint64(r), 10) + ")"
}

// AddressSize is the width of one packed member record:
// node id, process id and reason, each a native-order uint32.
const AddressSize = 12

// MemberID is the identity of a group member.
type MemberID struct {
	NodeID uint32
	PID    uint32
}

// Member is a group member. Reason is metadata: two members are the
// same member iff NodeID and PID match, whatever their reasons.
type Member struct {
	NodeID uint32
	PID    uint32
	Reason Reason
}

// NewMember returns a member without a reason.
func NewMember(nodeID, pid uint32) Member {
	return Member{NodeID: nodeID, PID: pid}
}

// ID returns the identity of m, suitable as a map key.
func (m Member) ID() MemberID {
	return MemberID{NodeID: m.NodeID, PID: m.PID}
}

// Equal reports whether m and o are the same member.
func (m Member) Equal(o Member) bool {
	return m.ID() == o.ID()
}

func (m Member) String() string {
	return strconv.FormatUint(uint64(m.NodeID), 10) + ":" + strconv.FormatUint(uint64(m.PID), 10)
}

// AppendBinary appends the packed record of m.
func (m Member) AppendBinary(b []byte) ([]byte, error) {
	b = binary.NativeEndian.AppendUint32(b, m.NodeID)
	b = binary.NativeEndian.AppendUint32(b, m.PID)
	b = binary.NativeEndian.AppendUint32(b, uint32(m.Reason))
	return b, nil
}

// MarshalBinary returns the packed record of m.
func (m Member) MarshalBinary() ([]byte, error) {
	return m.AppendBinary(make([]byte, 0, AddressSize))
}

// UnmarshalBinary decodes one packed record.
func (m *Member) UnmarshalBinary(b []byte) error {
	if len(b) != AddressSize {
		return corosync.Fail("cpg_address_decode", corosync.KindInvalidParam)
	}
	m.NodeID = binary.NativeEndian.Uint32(b[0:])
	m.PID = binary.NativeEndian.Uint32(b[4:])
	m.Reason = Reason(binary.NativeEndian.Uint32(b[8:]))
	return nil
}

// EncodeMembers packs ms as consecutive records.
func EncodeMembers(ms []Member) []byte {
	b := make([]byte, 0, len(ms)*AddressSize)
	for _, m := range ms {
		b, _ = m.AppendBinary(b)
	}
	return b
}

// DecodeMembers unpacks consecutive records.
func DecodeMembers(b []byte) ([]Member, error) {
	if len(b)%AddressSize != 0 {
		return nil, corosync.Fail("cpg_address_decode", corosync.KindInvalidParam)
	}
	ms := make([]Member, len(b)/AddressSize)
	for i := range ms {
		if err := ms[i].UnmarshalBinary(b[i*AddressSize : (i+1)*AddressSize]); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

// MemberList is an unordered set of members that remembers the reason
// each entry was listed with.
type MemberList struct {
	m map[MemberID]Reason
}

// NewMemberList returns a list holding ms.
func NewMemberList(ms ...Member) *MemberList {
	l := &MemberList{m: make(map[MemberID]Reason, len(ms))}
	for _, m := range ms {
		l.Add(m)
	}
	return l
}

// Add inserts m, replacing the reason of an equal member.
func (l *MemberList) Add(m Member) {
	if l.m == nil {
		l.m = make(map[MemberID]Reason)
	}
	l.m[m.ID()] = m.Reason
}

// Delete removes m and reports whether it was present.
func (l *MemberList) Delete(m Member) bool {
	if _, ok := l.m[m.ID()]; !ok {
		return false
	}
	delete(l.m, m.ID())
	return true
}

// Contains reports whether m is in the list.
func (l *MemberList) Contains(m Member) bool {
	_, ok := l.m[m.ID()]
	return ok
}

// Len returns the number of members.
func (l *MemberList) Len() int {
	return len(l.m)
}

// Reason returns the reason m was listed with.
func (l *MemberList) Reason(m Member) (Reason, bool) {
	r, ok := l.m[m.ID()]
	return r, ok
}

// All yields the members in no particular order.
func (l *MemberList) All() iter.Seq[Member] {
	return func(yield func(Member) bool) {
		for id, r := range l.m {
			if !yield(Member{NodeID: id.NodeID, PID: id.PID, Reason: r}) {
				return
			}
		}
	}
}

// Members returns the members sorted by node id, then process id.
func (l *MemberList) Members() []Member {
	return slices.SortedFunc(l.All(), func(a, b Member) int {
		if c := cmp.Compare(a.NodeID, b.NodeID); c != 0 {
			return c
		}
		return cmp.Compare(a.PID, b.PID)
	})
}

// Clone returns an independent copy.
func (l *MemberList) Clone() *MemberList {
	c := maps.Clone(l.m)
	if c == nil {
		c = make(map[MemberID]Reason)
	}
	return &MemberList{m: c}
}

// Intersect returns the members of l that are also in o, with the
// reasons recorded in l.
func (l *MemberList) Intersect(o *MemberList) *MemberList {
	out := NewMemberList()
	for id, r := range l.m {
		if _, ok := o.m[id]; ok {
			out.m[id] = r
		}
	}
	return out
}

// Equal reports whether l and o hold the same members.
func (l *MemberList) Equal(o *MemberList) bool {
	if l.Len() != o.Len() {
		return false
	}
	for id := range l.m {
		if _, ok := o.m[id]; !ok {
			return false
		}
	}
	return true
}

func (l *MemberList) String() string {
	s := "["
	for i, m := range l.Members() {
		if i > 0 {
			s += " "
		}
		s += m.String()
	}
	return s + "]"
}
