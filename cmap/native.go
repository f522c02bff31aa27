// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cmap

import "code.hybscloud.com/corosync"

// Key name bounds, in bytes.
const (
	KeyNameMinLen = 3
	KeyNameMaxLen = 255
)

// TrackHandle identifies one change subscription.
type TrackHandle uint64

// Action is a set of tracked change kinds. The bit values are the
// native track flags.
type Action int32

const (
	ActionDelete Action = 1
	ActionModify Action = 2
	ActionAdd    Action = 4

	// TrackPrefix is the native flag that makes a track match every key
	// starting with its name.
	TrackPrefix int32 = 8
)

// ActionAll tracks every change kind.
const ActionAll = ActionAdd | ActionDelete | ActionModify

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionDelete:
		return "delete"
	case ActionModify:
		return "modify"
	}
	s := ""
	for _, x := range [...]Action{ActionAdd, ActionDelete, ActionModify} {
		if a&x != 0 {
			if s != "" {
				s += "|"
			}
			s += x.String()
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// NotifyValue is a raw value as carried by a change notification.
// Type 0 means no value: there is no new value after a deletion and no
// old value after a creation.
type NotifyValue struct {
	Type corosync.ValueType
	Data []byte
}

// NotifyFunc is the native change notification hook, run by Dispatch.
type NotifyFunc func(h corosync.Handle, th TrackHandle, event Action, key string, newValue, oldValue NotifyValue)

// KeyInfo is one entry of a key iteration.
type KeyInfo struct {
	Name string
	Size int
	Type corosync.ValueType
}

// Native is the configuration map service contract.
type Native interface {
	corosync.Service
	Initialize() (corosync.Handle, corosync.Status)
	Get(h corosync.Handle, key string) ([]byte, corosync.ValueType, corosync.Status)
	Set(h corosync.Handle, key string, data []byte, t corosync.ValueType) corosync.Status
	Delete(h corosync.Handle, key string) corosync.Status
	Inc(h corosync.Handle, key string) corosync.Status
	Dec(h corosync.Handle, key string) corosync.Status
	IterInit(h corosync.Handle, prefix string) (uint64, corosync.Status)
	IterNext(h corosync.Handle, it uint64) (KeyInfo, corosync.Status)
	IterFinalize(h corosync.Handle, it uint64) corosync.Status
	TrackAdd(h corosync.Handle, key string, flags int32, fn NotifyFunc) (TrackHandle, corosync.Status)
	TrackDelete(h corosync.Handle, th TrackHandle) corosync.Status
}
