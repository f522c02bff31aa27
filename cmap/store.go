// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cmap is a client for the cluster configuration map: a
// replicated store of typed values under dot-segmented keys, with
// change tracking delivered through Dispatch.
package cmap

import (
	"errors"
	"time"

	"code.hybscloud.com/corosync"
	"code.hybscloud.com/kont"
)

// Event is one tracked change. New is nil after a deletion and Old is
// nil after a creation. A value whose kind has no decoding (binary) is
// reported with its Type and a nil V.
type Event struct {
	Action Action
	Key    string
	New    *corosync.Value
	Old    *corosync.Value
}

// Store is a connection to the configuration map.
// Like its Session, a Store is for single-threaded use.
type Store struct {
	s      *corosync.Session
	native Native
	tracks map[TrackHandle]func(Event) error
	notify NotifyFunc
}

// New returns an unconnected Store on native.
func New(native Native, opts *corosync.Options) *Store {
	c := &Store{
		s:      corosync.NewSession("cmap", native, opts),
		native: native,
		tracks: make(map[TrackHandle]func(Event) error),
	}
	// One hook for every track; it lives as long as the Store.
	c.notify = c.dispatchNotify
	return c
}

// Open returns a connected Store.
func Open(native Native, opts *corosync.Options) (*Store, error) {
	c := New(native, opts)
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect connects to the service. Connecting twice is a no-op.
func (c *Store) Connect() error {
	return c.s.Connect(c.native.Initialize)
}

// Finalize disconnects and drops every track. Safe to call repeatedly.
func (c *Store) Finalize() error {
	clear(c.tracks)
	return c.s.Finalize()
}

// Session returns the underlying Session.
func (c *Store) Session() *corosync.Session {
	return c.s
}

// Fd returns the readiness descriptor, or -1 when unconnected.
func (c *Store) Fd() int {
	return c.s.Fd()
}

// Dispatch delivers at most one pending change notification.
// See [corosync.Session.Dispatch].
func (c *Store) Dispatch(timeout time.Duration) (bool, error) {
	return c.s.Dispatch(timeout)
}

func (c *Store) checkKey(op, key string) error {
	if err := c.s.Check(op); err != nil {
		return err
	}
	switch {
	case len(key) < KeyNameMinLen:
		return corosync.Fail(c.s.Op(op), corosync.KindInvalidParam)
	case len(key) > KeyNameMaxLen:
		return corosync.Fail(c.s.Op(op), corosync.KindNameTooLong)
	}
	return nil
}

type rawValue struct {
	data []byte
	t    corosync.ValueType
}

func (c *Store) getRaw(key string) (rawValue, error) {
	h := c.s.Handle()
	return corosync.Try(c.s, c.s.Op("get"), func() (rawValue, corosync.Status) {
		data, t, st := c.native.Get(h, key)
		return rawValue{data: data, t: t}, st
	})
}

// Get returns the typed value of key. It fails NOT_EXIST if the key is
// absent and NOT_SUPPORTED if the value is binary.
func (c *Store) Get(key string) (corosync.Value, error) {
	if err := c.checkKey("get", key); err != nil {
		return corosync.Value{}, err
	}
	raw, err := c.getRaw(key)
	if err != nil {
		return corosync.Value{}, err
	}
	v, err := corosync.Decode(raw.t, raw.data)
	if err != nil {
		return corosync.Value{}, corosync.Fail(c.s.Op("get"), corosync.KindOf(err))
	}
	return v, nil
}

// GetMany reads each key independently and keeps every outcome in key
// order, so one absent key does not hide the others. It fails only when
// the Store is unconnected.
func (c *Store) GetMany(keys ...string) ([]kont.Either[*corosync.Error, corosync.Value], error) {
	if err := c.s.Check("get"); err != nil {
		return nil, err
	}
	h := c.s.Handle()
	return corosync.TryEach(c.s, c.s.Op("get"), keys, func(key string) (corosync.Value, corosync.Status) {
		switch {
		case len(key) < KeyNameMinLen:
			return corosync.Value{}, corosync.StatusInvalidParam
		case len(key) > KeyNameMaxLen:
			return corosync.Value{}, corosync.StatusNameTooLong
		}
		data, t, st := c.native.Get(h, key)
		if st != corosync.StatusOK {
			return corosync.Value{}, st
		}
		v, err := corosync.Decode(t, data)
		if err != nil {
			return corosync.Value{}, corosync.KindOf(err).Status()
		}
		return v, corosync.StatusOK
	}), nil
}

// GetValue is Get without the type.
func (c *Store) GetValue(key string) (any, error) {
	v, err := c.Get(key)
	if err != nil {
		return nil, err
	}
	return v.V, nil
}

// Set creates or overwrites key with v as kind t, changing the key's
// kind if needed. It returns the value as stored: a non-string stored
// as String is returned in its string form.
func (c *Store) Set(key string, t corosync.ValueType, v any) (any, error) {
	if err := c.checkKey("set", key); err != nil {
		return nil, err
	}
	stored := corosync.StoredForm(t, v)
	data, err := corosync.Encode(t, stored)
	if err != nil {
		return nil, corosync.Fail(c.s.Op("set"), corosync.KindOf(err))
	}
	h := c.s.Handle()
	if err := c.s.Call(c.s.Op("set"), func() corosync.Status {
		return c.native.Set(h, key, data, t)
	}); err != nil {
		return nil, err
	}
	return stored, nil
}

// SetValue sets key to v, choosing the kind with [corosync.InferType]:
// an existing numeric kind that holds v is kept, otherwise the smallest
// kind that holds v is used.
func (c *Store) SetValue(key string, v any) (any, error) {
	if err := c.checkKey("set", key); err != nil {
		return nil, err
	}
	var existing corosync.ValueType
	exists := false
	if _, ok := v.(string); !ok {
		raw, err := c.getRaw(key)
		switch {
		case err == nil:
			existing, exists = raw.t, true
		case !errors.Is(err, corosync.ErrNotExist):
			return nil, err
		}
	}
	return c.Set(key, corosync.InferType(v, existing, exists), v)
}

// Delete removes key. It fails NOT_EXIST if the key is absent.
func (c *Store) Delete(key string) error {
	return c.keyCall("delete", key, c.native.Delete)
}

// Inc increments the integer value of key.
func (c *Store) Inc(key string) error {
	return c.keyCall("inc", key, c.native.Inc)
}

// Dec decrements the integer value of key.
func (c *Store) Dec(key string) error {
	return c.keyCall("dec", key, c.native.Dec)
}

func (c *Store) keyCall(op, key string, fn func(corosync.Handle, string) corosync.Status) error {
	if err := c.checkKey(op, key); err != nil {
		return err
	}
	h := c.s.Handle()
	return c.s.Call(c.s.Op(op), func() corosync.Status {
		return fn(h, key)
	})
}

// Iter opens a cursor over the keys starting with prefix, in the
// store's native order. An empty prefix selects every key.
func (c *Store) Iter(prefix string) (*corosync.Cursor[KeyInfo], error) {
	h := c.s.Handle()
	return corosync.OpenCursor(c.s, corosync.CursorFuncs[KeyInfo]{
		Op: "iter",
		Open: func() (uint64, corosync.Status) {
			return c.native.IterInit(h, prefix)
		},
		Next: func(it uint64) (KeyInfo, corosync.Status) {
			return c.native.IterNext(h, it)
		},
		Close: func(it uint64) corosync.Status {
			return c.native.IterFinalize(h, it)
		},
	})
}

// Keys returns the names of the keys starting with prefix, in the
// store's native order.
func (c *Store) Keys(prefix string) ([]string, error) {
	cur, err := c.Iter(prefix)
	if err != nil {
		return nil, err
	}
	var keys []string
	for info, err := range cur.All() {
		if err != nil {
			return nil, err
		}
		keys = append(keys, info.Name)
	}
	return keys, nil
}

// Track calls fn on each change of key matching actions. With prefix
// set, every key starting with key is tracked. fn runs inside Dispatch,
// and an error it returns is what that Dispatch reports.
func (c *Store) Track(key string, actions Action, prefix bool, fn func(Event) error) (TrackHandle, error) {
	if prefix {
		if err := c.s.Check("track_add"); err != nil {
			return 0, err
		}
	} else if err := c.checkKey("track_add", key); err != nil {
		return 0, err
	}
	flags := int32(actions & ActionAll)
	if prefix {
		flags |= TrackPrefix
	}
	h := c.s.Handle()
	th, err := corosync.Try(c.s, c.s.Op("track_add"), func() (TrackHandle, corosync.Status) {
		return c.native.TrackAdd(h, key, flags, c.notify)
	})
	if err != nil {
		return 0, err
	}
	c.tracks[th] = fn
	return th, nil
}

// Untrack stops delivery for th and releases the native track.
func (c *Store) Untrack(th TrackHandle) error {
	if err := c.s.Check("track_delete"); err != nil {
		return err
	}
	h := c.s.Handle()
	if err := c.s.Call(c.s.Op("track_delete"), func() corosync.Status {
		return c.native.TrackDelete(h, th)
	}); err != nil {
		// The native track is still live, so its callback stays.
		return err
	}
	delete(c.tracks, th)
	return nil
}

func (c *Store) dispatchNotify(_ corosync.Handle, th TrackHandle, event Action, key string, newValue, oldValue NotifyValue) {
	fn, ok := c.tracks[th]
	if !ok || fn == nil {
		return
	}
	c.s.Escape(fn(Event{
		Action: event,
		Key:    key,
		New:    decodeNotify(newValue),
		Old:    decodeNotify(oldValue),
	}))
}

func decodeNotify(nv NotifyValue) *corosync.Value {
	if nv.Type == 0 {
		return nil
	}
	v, err := corosync.Decode(nv.Type, nv.Data)
	if err != nil {
		return &corosync.Value{Type: nv.Type}
	}
	return &v
}
