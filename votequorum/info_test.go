// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package votequorum_test

import (
	"slices"
	"testing"
	"testing/quick"

	"code.hybscloud.com/corosync/votequorum"
)

var allFlags = []votequorum.Flag{
	votequorum.FlagTwoNode, votequorum.FlagQuorate, votequorum.FlagWaitForAll,
	votequorum.FlagLastManStanding, votequorum.FlagAutoTieBreaker, votequorum.FlagAllowDownscale,
	votequorum.FlagQdeviceRegistered, votequorum.FlagQdeviceAlive, votequorum.FlagQdeviceCastVote,
	votequorum.FlagQdeviceMasterWins,
}

func TestDecodeFlags(t *testing.T) {
	got := votequorum.DecodeFlags(3)
	want := []votequorum.Flag{votequorum.FlagTwoNode, votequorum.FlagQuorate}
	if !slices.Equal(got, want) {
		t.Fatalf("DecodeFlags(3) got %v, want %v", got, want)
	}
	if got := votequorum.DecodeFlags(1 << 20); len(got) != 0 {
		t.Fatalf("unknown bit got %v, want none", got)
	}
	if got := votequorum.FlagWaitForAll.String(); got != "wait_for_all" {
		t.Fatalf("String got %q", got)
	}
	if got := votequorum.Flag(1 << 12).String(); got != "flag(4096)" {
		t.Fatalf("unknown String got %q", got)
	}
}

// TestPropertyDecodeFlags proves that a flag is decoded iff its bit is
// set and that decoding keeps table order.
func TestPropertyDecodeFlags(t *testing.T) {
	property := func(bits uint32) bool {
		got := votequorum.DecodeFlags(bits)
		var want []votequorum.Flag
		for _, f := range allFlags {
			if bits&uint32(f) != 0 {
				want = append(want, f)
			}
		}
		return slices.Equal(got, want)
	}
	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}

func TestNodeStateString(t *testing.T) {
	cases := map[votequorum.NodeState]string{
		votequorum.StateUnknown: "unknown",
		votequorum.StateMember:  "member",
		votequorum.StateDead:    "dead",
		votequorum.StateLeaving: "leaving",
		votequorum.NodeState(9): "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("NodeState(%d) got %q, want %q", uint32(s), got, want)
		}
	}
}
