// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package loopback

import "code.hybscloud.com/atomix"

// serial is a monotonically increasing identifier source.
// The zero value is ready and the first identifier is 1, so 0 never
// names a live object.
type serial struct {
	n atomix.Uint32
}

func (s *serial) next() uint64 {
	return uint64(s.n.Add(1))
}

// Process-wide sources: identifiers stay unique across clusters, so a
// handle from one Cluster is never valid on another.
var (
	handleSerial serial
	iterSerial   serial
	trackSerial  serial
)
