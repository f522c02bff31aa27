// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// waitReadable blocks until fd is readable or timeout elapses.
// A negative timeout waits without bound. Elapsing is not an error:
// the following dispatch step reports "no event" on its own.
func waitReadable(fd int, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		ms := -1
		if timeout > 0 {
			left := time.Until(deadline)
			if left <= 0 {
				return nil
			}
			// Round up so a sub-millisecond remainder still waits.
			ms = int((left + time.Millisecond - 1) / time.Millisecond)
		}
		_, err := unix.Poll(fds, ms)
		if err == nil {
			return nil
		}
		if err == unix.EINTR {
			continue
		}
		return fmt.Errorf("corosync: poll fd %d: %w", fd, err)
	}
}
