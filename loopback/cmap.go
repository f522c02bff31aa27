// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package loopback

import (
	"bytes"
	"encoding/binary"
	"slices"
	"strings"

	"code.hybscloud.com/corosync"
	"code.hybscloud.com/corosync/cmap"
)

type cmapEntry struct {
	t    corosync.ValueType
	data []byte
}

type cmapTrack struct {
	k     *conn
	key   string
	flags int32
	fn    cmap.NotifyFunc
}

func (t *cmapTrack) matches(key string, action cmap.Action) bool {
	if t.flags&int32(action) == 0 {
		return false
	}
	if t.flags&cmap.TrackPrefix != 0 {
		return strings.HasPrefix(key, t.key)
	}
	return key == t.key
}

type cmapIter struct {
	k    *conn
	keys []string
	pos  int
}

type cmapState struct {
	entries map[string]cmapEntry
	tracks  map[cmap.TrackHandle]*cmapTrack
	iters   map[uint64]*cmapIter
}

func (s *cmapState) init() {
	s.entries = make(map[string]cmapEntry)
	s.tracks = make(map[cmap.TrackHandle]*cmapTrack)
	s.iters = make(map[uint64]*cmapIter)
}

// Cmap is a configuration map connection point.
type Cmap struct {
	service
}

var _ cmap.Native = (*Cmap)(nil)

// Cmap returns the configuration map native. Every Cmap of a cluster
// shares one map.
func (c *Cluster) Cmap() *Cmap {
	m := &Cmap{service{c: c, name: "cmap"}}
	m.release = m.releaseConn
	return m
}

// Seed stores raw data under key without validation or notification.
// It is the way to place binary values.
func (m *Cmap) Seed(key string, t corosync.ValueType, data []byte) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	m.c.cmap.entries[key] = cmapEntry{t: t, data: bytes.Clone(data)}
}

func (m *Cmap) releaseConn(k *conn) {
	st := &m.c.cmap
	for th, t := range st.tracks {
		if t.k == k {
			delete(st.tracks, th)
		}
	}
	for id, it := range st.iters {
		if it.k == k {
			delete(st.iters, id)
		}
	}
}

func (m *Cmap) Initialize() (corosync.Handle, corosync.Status) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	k, st := m.c.open(m.name, 0, 0)
	if st != corosync.StatusOK {
		return 0, st
	}
	return k.handle, corosync.StatusOK
}

func checkKey(key string) corosync.Status {
	switch {
	case len(key) < cmap.KeyNameMinLen:
		return corosync.StatusInvalidParam
	case len(key) > cmap.KeyNameMaxLen:
		return corosync.StatusNameTooLong
	}
	return corosync.StatusOK
}

// enter locks the cluster and resolves h for op. On success the caller
// must unlock.
func (m *Cmap) enter(h corosync.Handle, op string) (*conn, corosync.Status) {
	m.c.mu.Lock()
	k, st := m.c.lookup(m.name, h, op)
	if st != corosync.StatusOK {
		m.c.mu.Unlock()
	}
	return k, st
}

func (m *Cmap) Get(h corosync.Handle, key string) ([]byte, corosync.ValueType, corosync.Status) {
	if _, st := m.enter(h, "get"); st != corosync.StatusOK {
		return nil, 0, st
	}
	defer m.c.mu.Unlock()
	if st := checkKey(key); st != corosync.StatusOK {
		return nil, 0, st
	}
	e, ok := m.c.cmap.entries[key]
	if !ok {
		return nil, 0, corosync.StatusNotExist
	}
	return bytes.Clone(e.data), e.t, corosync.StatusOK
}

func validData(t corosync.ValueType, data []byte) bool {
	switch {
	case !t.Valid():
		return false
	case t == corosync.TypeString:
		return len(data) > 0 && bytes.IndexByte(data, 0) == len(data)-1
	case t == corosync.TypeBinary:
		return true
	}
	return len(data) == t.Size()
}

func (m *Cmap) Set(h corosync.Handle, key string, data []byte, t corosync.ValueType) corosync.Status {
	if _, st := m.enter(h, "set"); st != corosync.StatusOK {
		return st
	}
	defer m.c.mu.Unlock()
	if st := checkKey(key); st != corosync.StatusOK {
		return st
	}
	if !validData(t, data) {
		return corosync.StatusInvalidParam
	}
	old, exists := m.c.cmap.entries[key]
	if exists && old.t == t && bytes.Equal(old.data, data) {
		return corosync.StatusOK
	}
	action := cmap.ActionAdd
	if exists {
		action = cmap.ActionModify
	}
	next := cmapEntry{t: t, data: bytes.Clone(data)}
	return m.change(key, action, next, old)
}

func (m *Cmap) Delete(h corosync.Handle, key string) corosync.Status {
	if _, st := m.enter(h, "delete"); st != corosync.StatusOK {
		return st
	}
	defer m.c.mu.Unlock()
	if st := checkKey(key); st != corosync.StatusOK {
		return st
	}
	old, ok := m.c.cmap.entries[key]
	if !ok {
		return corosync.StatusNotExist
	}
	return m.change(key, cmap.ActionDelete, cmapEntry{}, old)
}

func (m *Cmap) Inc(h corosync.Handle, key string) corosync.Status {
	return m.step(h, "inc", key, 1)
}

func (m *Cmap) Dec(h corosync.Handle, key string) corosync.Status {
	return m.step(h, "dec", key, ^uint64(0))
}

// step adds d to an integer value, wrapping at the kind's width.
func (m *Cmap) step(h corosync.Handle, op, key string, d uint64) corosync.Status {
	if _, st := m.enter(h, op); st != corosync.StatusOK {
		return st
	}
	defer m.c.mu.Unlock()
	if st := checkKey(key); st != corosync.StatusOK {
		return st
	}
	old, ok := m.c.cmap.entries[key]
	if !ok {
		return corosync.StatusNotExist
	}
	if !old.t.Integer() {
		return corosync.StatusInvalidParam
	}
	next := cmapEntry{t: old.t, data: make([]byte, len(old.data))}
	ne := binary.NativeEndian
	switch len(old.data) {
	case 1:
		next.data[0] = old.data[0] + byte(d)
	case 2:
		ne.PutUint16(next.data, ne.Uint16(old.data)+uint16(d))
	case 4:
		ne.PutUint32(next.data, ne.Uint32(old.data)+uint32(d))
	case 8:
		ne.PutUint64(next.data, ne.Uint64(old.data)+d)
	}
	return m.change(key, cmap.ActionModify, next, old)
}

// change applies one mutation and notifies matching tracks. The
// mutation is refused with TRY_AGAIN when a subscriber's queue is full.
// Called with c.mu held.
func (m *Cmap) change(key string, action cmap.Action, next, old cmapEntry) corosync.Status {
	st := &m.c.cmap
	var hits []cmap.TrackHandle
	need := make(map[*conn]int)
	for th, t := range st.tracks {
		if t.matches(key, action) {
			hits = append(hits, th)
			need[t.k]++
		}
	}
	for k, n := range need {
		if !k.room(n) {
			return corosync.StatusTryAgain
		}
	}

	if action == cmap.ActionDelete {
		delete(st.entries, key)
	} else {
		st.entries[key] = next
	}

	// Tracks are notified in registration order.
	slices.Sort(hits)
	nv := cmap.NotifyValue{Type: next.t, Data: next.data}
	ov := cmap.NotifyValue{Type: old.t, Data: old.data}
	for _, th := range hits {
		t := st.tracks[th]
		h, fn := t.k.handle, t.fn
		m.c.deliver(t.k, func() {
			fn(h, th, action, key, nv, ov)
		})
	}
	return corosync.StatusOK
}

func (m *Cmap) IterInit(h corosync.Handle, prefix string) (uint64, corosync.Status) {
	k, st := m.enter(h, "iter_init")
	if st != corosync.StatusOK {
		return 0, st
	}
	defer m.c.mu.Unlock()
	var keys []string
	for key := range m.c.cmap.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	id := iterSerial.next()
	m.c.cmap.iters[id] = &cmapIter{k: k, keys: keys}
	return id, corosync.StatusOK
}

// IterNext yields the snapshot keys in order, skipping keys deleted
// since the iteration began.
func (m *Cmap) IterNext(h corosync.Handle, it uint64) (cmap.KeyInfo, corosync.Status) {
	k, st := m.enter(h, "iter_next")
	if st != corosync.StatusOK {
		return cmap.KeyInfo{}, st
	}
	defer m.c.mu.Unlock()
	iter, ok := m.c.cmap.iters[it]
	if !ok || iter.k != k {
		return cmap.KeyInfo{}, corosync.StatusBadHandle
	}
	for iter.pos < len(iter.keys) {
		key := iter.keys[iter.pos]
		iter.pos++
		if e, ok := m.c.cmap.entries[key]; ok {
			return cmap.KeyInfo{Name: key, Size: len(e.data), Type: e.t}, corosync.StatusOK
		}
	}
	return cmap.KeyInfo{}, corosync.StatusNoSections
}

func (m *Cmap) IterFinalize(h corosync.Handle, it uint64) corosync.Status {
	k, st := m.enter(h, "iter_finalize")
	if st != corosync.StatusOK {
		return st
	}
	defer m.c.mu.Unlock()
	iter, ok := m.c.cmap.iters[it]
	if !ok || iter.k != k {
		return corosync.StatusBadHandle
	}
	delete(m.c.cmap.iters, it)
	return corosync.StatusOK
}

// Iterators returns the number of open key iterations.
func (m *Cmap) Iterators() int {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	return len(m.c.cmap.iters)
}

func (m *Cmap) TrackAdd(h corosync.Handle, key string, flags int32, fn cmap.NotifyFunc) (cmap.TrackHandle, corosync.Status) {
	k, st := m.enter(h, "track_add")
	if st != corosync.StatusOK {
		return 0, st
	}
	defer m.c.mu.Unlock()
	if fn == nil || flags&int32(cmap.ActionAll) == 0 {
		return 0, corosync.StatusInvalidParam
	}
	if flags&cmap.TrackPrefix == 0 {
		if st := checkKey(key); st != corosync.StatusOK {
			return 0, st
		}
	}
	th := cmap.TrackHandle(trackSerial.next())
	m.c.cmap.tracks[th] = &cmapTrack{k: k, key: key, flags: flags, fn: fn}
	return th, corosync.StatusOK
}

func (m *Cmap) TrackDelete(h corosync.Handle, th cmap.TrackHandle) corosync.Status {
	k, st := m.enter(h, "track_delete")
	if st != corosync.StatusOK {
		return st
	}
	defer m.c.mu.Unlock()
	t, ok := m.c.cmap.tracks[th]
	if !ok || t.k != k {
		return corosync.StatusNotExist
	}
	delete(m.c.cmap.tracks, th)
	return corosync.StatusOK
}
