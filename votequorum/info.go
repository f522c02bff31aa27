// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package votequorum

import (
	"slices"
	"strconv"
)

// Flag is one bit of a node's quorum info flags.
type Flag uint32

const (
	FlagTwoNode           Flag = 1
	FlagQuorate           Flag = 2
	FlagWaitForAll        Flag = 4
	FlagLastManStanding   Flag = 8
	FlagAutoTieBreaker    Flag = 16
	FlagAllowDownscale    Flag = 32
	FlagQdeviceRegistered Flag = 64
	FlagQdeviceAlive      Flag = 128
	FlagQdeviceCastVote   Flag = 256
	FlagQdeviceMasterWins Flag = 512
)

var flagTable = [...]struct {
	flag Flag
	name string
}{
	{FlagTwoNode, "twonode"},
	{FlagQuorate, "quorate"},
	{FlagWaitForAll, "wait_for_all"},
	{FlagLastManStanding, "last_man_standing"},
	{FlagAutoTieBreaker, "auto_tie_breaker"},
	{FlagAllowDownscale, "allow_downscale"},
	{FlagQdeviceRegistered, "qdevice_registered"},
	{FlagQdeviceAlive, "qdevice_alive"},
	{FlagQdeviceCastVote, "qdevice_cast_vote"},
	{FlagQdeviceMasterWins, "qdevice_master_wins"},
}

func (f Flag) String() string {
	for _, e := range flagTable {
		if e.flag == f {
			return e.name
		}
	}
	return "flag(" + strconv.FormatUint(uint64(f), 10) + ")"
}

// DecodeFlags returns the known flags set in bits, in table order.
// Unknown bits are ignored.
func DecodeFlags(bits uint32) []Flag {
	var out []Flag
	for _, e := range flagTable {
		if bits&uint32(e.flag) != 0 {
			out = append(out, e.flag)
		}
	}
	return out
}

// NodeState is the quorum state of a node.
type NodeState uint32

const (
	StateUnknown NodeState = 0
	StateMember  NodeState = 1
	StateDead    NodeState = 2
	StateLeaving NodeState = 3
)

func (s NodeState) String() string {
	switch s {
	case StateMember:
		return "member"
	case StateDead:
		return "dead"
	case StateLeaving:
		return "leaving"
	}
	return "unknown"
}

// decodeState maps a native state code, folding unknown codes into
// StateUnknown.
func decodeState(code uint32) NodeState {
	switch s := NodeState(code); s {
	case StateMember, StateDead, StateLeaving:
		return s
	}
	return StateUnknown
}

// QdeviceMaxNameLen is the longest quorum device name, in bytes.
const QdeviceMaxNameLen = 255

// RawInfo is the native info record.
type RawInfo struct {
	NodeID            uint32
	NodeState         uint32
	NodeVotes         uint32
	NodeExpectedVotes uint32
	HighestExpected   uint32
	TotalVotes        uint32
	Quorum            uint32
	Flags             uint32
	QdeviceVotes      uint32
	QdeviceName       string
}

// Info is the decoded quorum info of a node.
type Info struct {
	NodeID          uint32
	State           NodeState
	Votes           uint32
	ExpectedVotes   uint32
	HighestExpected uint32
	TotalVotes      uint32
	Quorum          uint32
	Flags           []Flag
	QdeviceVotes    uint32
	QdeviceName     string
}

// Has reports whether f is set.
func (i Info) Has(f Flag) bool {
	return slices.Contains(i.Flags, f)
}

func decodeInfo(r RawInfo) Info {
	return Info{
		NodeID:          r.NodeID,
		State:           decodeState(r.NodeState),
		Votes:           r.NodeVotes,
		ExpectedVotes:   r.NodeExpectedVotes,
		HighestExpected: r.HighestExpected,
		TotalVotes:      r.TotalVotes,
		Quorum:          r.Quorum,
		Flags:           DecodeFlags(r.Flags),
		QdeviceVotes:    r.QdeviceVotes,
		QdeviceName:     r.QdeviceName,
	}
}
