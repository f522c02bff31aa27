// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/corosync"
)

func TestSessionConnect(t *testing.T) {
	f := newFake()
	s := corosync.NewSession("fake", f, nil)
	if s.Connected() || s.Fd() != -1 || s.Handle() != 0 {
		t.Fatalf("new session got (%v, %d, %d), want unconnected", s.Connected(), s.Fd(), s.Handle())
	}
	if err := s.Connect(f.init); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !s.Connected() || s.Fd() != 7 || s.Handle() != 1 {
		t.Fatalf("connected got (%v, %d, %d), want (true, 7, 1)", s.Connected(), s.Fd(), s.Handle())
	}
	// A second Connect keeps the handle.
	if err := s.Connect(f.init); err != nil {
		t.Fatalf("Connect again: %v", err)
	}
	if s.Handle() != 1 {
		t.Fatalf("handle after reconnect got %d, want 1", s.Handle())
	}
}

func TestSessionConnectFdFailureReleasesHandle(t *testing.T) {
	f := newFake()
	f.fdStatus = corosync.StatusLibrary
	s := corosync.NewSession("fake", f, nil)
	err := s.Connect(f.init)
	if !errors.Is(err, corosync.ErrLibrary) {
		t.Fatalf("Connect got %v, want ErrLibrary", err)
	}
	if len(f.finalized) != 1 || f.finalized[0] != 1 {
		t.Fatalf("finalized got %v, want [1]", f.finalized)
	}
	if s.Connected() || s.Fd() != -1 {
		t.Fatalf("session got (%v, %d), want unconnected", s.Connected(), s.Fd())
	}
}

func TestSessionConnectInitFailure(t *testing.T) {
	f := newFake()
	s := corosync.NewSession("fake", f, nil)
	err := s.Connect(func() (corosync.Handle, corosync.Status) {
		return 0, corosync.StatusAccess
	})
	var e *corosync.Error
	if !errors.As(err, &e) || e.Op != "fake_initialize" || e.Kind != corosync.KindAccess {
		t.Fatalf("Connect got %v, want ACCESS during fake_initialize", err)
	}
	if len(f.finalized) != 0 {
		t.Fatalf("finalized got %v, want none", f.finalized)
	}
}

func TestSessionFinalizeIdempotent(t *testing.T) {
	f := newFake()
	s := connected(f, nil)
	if err := s.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := s.Finalize(); err != nil {
		t.Fatalf("Finalize again: %v", err)
	}
	if len(f.finalized) != 1 {
		t.Fatalf("native finalize calls got %d, want 1", len(f.finalized))
	}
	if s.Connected() || s.Fd() != -1 {
		t.Fatalf("session got (%v, %d), want unconnected", s.Connected(), s.Fd())
	}
}

func TestSessionFinalizeFailureStillReleases(t *testing.T) {
	f := newFake()
	f.finStatus = corosync.StatusBadHandle
	s := connected(f, nil)
	if err := s.Finalize(); !errors.Is(err, corosync.ErrBadHandle) {
		t.Fatalf("Finalize got %v, want ErrBadHandle", err)
	}
	if s.Connected() {
		t.Fatal("session connected after failed finalize")
	}
}

func TestSessionCheck(t *testing.T) {
	s := corosync.NewSession("fake", newFake(), nil)
	err := s.Check("get")
	var e *corosync.Error
	if !errors.As(err, &e) || e.Kind != corosync.KindBadHandle || e.Op != "fake_get" {
		t.Fatalf("Check got %v, want BAD_HANDLE during fake_get", err)
	}
	if got := s.Op("get"); got != "fake_get" {
		t.Fatalf("Op got %q, want %q", got, "fake_get")
	}
}

func TestSessionOptionsNormalized(t *testing.T) {
	opts := corosync.Options{}
	s := corosync.NewSession("fake", newFake(), &opts)
	o := s.Options()
	if o.Retry.Attempts != corosync.DefaultRetryAttempts {
		t.Fatalf("attempts got %d, want %d", o.Retry.Attempts, corosync.DefaultRetryAttempts)
	}
	if o.Logger == nil || s.Logger() == nil {
		t.Fatal("logger got nil, want discard logger")
	}
}
