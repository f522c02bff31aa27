// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cpg

import (
	"bytes"
	"encoding/binary"

	"code.hybscloud.com/corosync"
)

// MaxNameLength is the longest group name, in bytes.
const MaxNameLength = 128

// NameSize is the width of a packed Name record.
const NameSize = 4 + MaxNameLength

// Name is a group name record: a length followed by a fixed buffer.
type Name struct {
	Length uint32
	Value  [MaxNameLength]byte
}

// NewName builds the record for group. It fails NAME_TOO_LONG for
// names longer than MaxNameLength.
func NewName(group string) (Name, error) {
	var n Name
	if len(group) > MaxNameLength {
		return n, corosync.Fail("cpg_name", corosync.KindNameTooLong)
	}
	n.Length = uint32(len(group))
	copy(n.Value[:], group)
	return n, nil
}

func (n Name) String() string {
	l := min(int(n.Length), MaxNameLength)
	return string(n.Value[:l])
}

// MarshalBinary packs n as a native-order length and the buffer.
func (n Name) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, NameSize)
	b = binary.NativeEndian.AppendUint32(b, n.Length)
	return append(b, n.Value[:]...), nil
}

// UnmarshalBinary decodes a packed record.
func (n *Name) UnmarshalBinary(b []byte) error {
	if len(b) != NameSize {
		return corosync.Fail("cpg_name_decode", corosync.KindInvalidParam)
	}
	l := binary.NativeEndian.Uint32(b)
	if l > MaxNameLength {
		return corosync.Fail("cpg_name_decode", corosync.KindNameTooLong)
	}
	n.Length = l
	copy(n.Value[:], b[4:])
	return nil
}

// Equal compares the significant bytes of two names.
func (n Name) Equal(o Name) bool {
	return n.Length == o.Length && bytes.Equal(n.Value[:n.Length], o.Value[:o.Length])
}

// Guarantee is the delivery guarantee of a multicast.
type Guarantee int32

const (
	GuaranteeUnordered Guarantee = 0
	GuaranteeFIFO      Guarantee = 1
	GuaranteeAgreed    Guarantee = 2
	GuaranteeSafe      Guarantee = 3
)

// IterationType selects what a group iteration enumerates.
type IterationType int32

const (
	// IterationNameOnly yields one entry per group.
	IterationNameOnly IterationType = 1
	// IterationOneGroup yields the members of one group.
	IterationOneGroup IterationType = 2
	// IterationAll yields the members of every group.
	IterationAll IterationType = 3
)

// Description is one entry of a group iteration.
type Description struct {
	Group  Name
	NodeID uint32
	PID    uint32
}

// RingID identifies a cluster membership ring.
type RingID struct {
	NodeID uint32
	Seq    uint64
}

// Callbacks are the native event hooks registered at initialization.
// Member lists are packed records (see DecodeMembers). The slices are
// only valid during the call.
type Callbacks struct {
	Deliver      func(h corosync.Handle, group Name, nodeID, pid uint32, msg []byte)
	Confchg      func(h corosync.Handle, group Name, members, left, joined []byte)
	TotemConfchg func(h corosync.Handle, ring RingID, members []uint32)
}

// Native is the group messaging service contract.
// The service keeps cb for the life of the handle.
type Native interface {
	corosync.Service
	Initialize(cb *Callbacks) (corosync.Handle, corosync.Status)
	Join(h corosync.Handle, group Name) corosync.Status
	Leave(h corosync.Handle, group Name) corosync.Status
	McastJoined(h corosync.Handle, g Guarantee, iov [][]byte) corosync.Status
	LocalGet(h corosync.Handle) (uint32, corosync.Status)
	MembershipGet(h corosync.Handle, group Name) ([]byte, corosync.Status)
	IterationInitialize(h corosync.Handle, t IterationType, group Name) (uint64, corosync.Status)
	IterationNext(h corosync.Handle, it uint64) (Description, corosync.Status)
	IterationFinalize(h corosync.Handle, it uint64) corosync.Status
}
