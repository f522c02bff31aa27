// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package cpg_test

import "testing"

// skipRace skips the multi-sender stress tests. Every delivery crosses
// the loopback lock and an lfq SPSC queue per member, which the race
// detector slows past useful test times.
func skipRace(tb testing.TB) {
	tb.Helper()
	tb.Skip("skip: multi-sender stress under the race detector")
}
