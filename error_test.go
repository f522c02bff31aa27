// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync_test

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"code.hybscloud.com/corosync"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		st    corosync.Status
		class corosync.Class
		kind  corosync.Kind
	}{
		{corosync.StatusOK, corosync.ClassOK, corosync.KindUnknown},
		{corosync.StatusTryAgain, corosync.ClassRetryable, corosync.KindTryAgain},
		{corosync.StatusNoSections, corosync.ClassEndOfIteration, corosync.KindNoSections},
		{corosync.StatusNotExist, corosync.ClassFatal, corosync.KindNotExist},
		{corosync.StatusSecurity, corosync.ClassFatal, corosync.KindSecurity},
		{corosync.Status(29), corosync.ClassFatal, corosync.KindUnknown},
		{corosync.Status(-4), corosync.ClassFatal, corosync.KindUnknown},
	}
	for _, c := range cases {
		class, kind := corosync.Classify(c.st)
		if class != c.class || kind != c.kind {
			t.Fatalf("Classify(%d) got (%v, %v), want (%v, %v)", c.st, class, kind, c.class, c.kind)
		}
	}
}

func TestStatusNames(t *testing.T) {
	if got := corosync.StatusTryAgain.String(); got != "TRY_AGAIN" {
		t.Fatalf("name got %q, want %q", got, "TRY_AGAIN")
	}
	if got := corosync.StatusNameTooLong.String(); got != "NAME_TOO_LONG" {
		t.Fatalf("name got %q, want %q", got, "NAME_TOO_LONG")
	}
	if got := corosync.Status(99).String(); got != "STATUS(99)" {
		t.Fatalf("name got %q, want %q", got, "STATUS(99)")
	}
	if got := corosync.KindExist.Status(); got != corosync.StatusExist {
		t.Fatalf("KindExist.Status got %v, want %v", got, corosync.StatusExist)
	}
}

func TestErrorText(t *testing.T) {
	err := corosync.Fail("cmap_get", corosync.KindNotExist)
	if got, want := err.Error(), "corosync: NOT_EXIST during cmap_get"; got != want {
		t.Fatalf("text got %q, want %q", got, want)
	}
}

func TestErrorIsSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", corosync.Fail("cpg_join", corosync.KindExist))
	if !errors.Is(err, corosync.ErrExist) {
		t.Fatal("errors.Is(err, ErrExist) got false, want true")
	}
	if errors.Is(err, corosync.ErrNotExist) {
		t.Fatal("errors.Is(err, ErrNotExist) got true, want false")
	}
	if k := corosync.KindOf(err); k != corosync.KindExist {
		t.Fatalf("KindOf got %v, want %v", k, corosync.KindExist)
	}
	if k := corosync.KindOf(errors.New("other")); k != corosync.KindUnknown {
		t.Fatalf("KindOf(foreign) got %v, want %v", k, corosync.KindUnknown)
	}
}

func TestInvokeClassifies(t *testing.T) {
	s := connected(newFake(), nil)
	n := 0
	err := s.Invoke("fake_op", statuses(&n, corosync.StatusTryAgain))
	if n != 1 {
		t.Fatalf("attempts got %d, want 1", n)
	}
	if !corosync.IsRetryable(err) {
		t.Fatalf("Invoke TRY_AGAIN got %v, want retryable", err)
	}
	var e *corosync.Error
	if !errors.As(err, &e) || e.Op != "fake_op" || e.Depth != 1 {
		t.Fatalf("error got %#v, want op fake_op at depth 1", err)
	}
	if err := s.Invoke("fake_op", statuses(&n)); err != nil {
		t.Fatalf("Invoke OK got %v, want nil", err)
	}
}

func TestCallRetriesTryAgain(t *testing.T) {
	s := connected(newFake(), nil)
	n := 0
	err := s.Call("fake_op", statuses(&n, corosync.StatusTryAgain, corosync.StatusTryAgain))
	if err != nil {
		t.Fatalf("Call got %v, want nil", err)
	}
	if n != 3 {
		t.Fatalf("attempts got %d, want 3", n)
	}
}

func TestCallExhaustsAttempts(t *testing.T) {
	opts := corosync.DefaultOptions()
	opts.Retry.Attempts = 2
	s := connected(newFake(), &opts)
	n := 0
	err := s.Call("fake_op", statuses(&n,
		corosync.StatusTryAgain, corosync.StatusTryAgain, corosync.StatusTryAgain))
	if n != 2 {
		t.Fatalf("attempts got %d, want 2", n)
	}
	var e *corosync.Error
	if !errors.As(err, &e) {
		t.Fatalf("Call got %v, want *corosync.Error", err)
	}
	if e.Kind != corosync.KindTryAgain || e.Class != corosync.ClassFatal {
		t.Fatalf("exhausted got (%v, %v), want (TRY_AGAIN, fatal)", e.Kind, e.Class)
	}
	if corosync.IsRetryable(err) {
		t.Fatal("exhausted error is retryable, want fatal")
	}
}

func TestCallFatalNotRetried(t *testing.T) {
	s := connected(newFake(), nil)
	n := 0
	err := s.Call("fake_op", statuses(&n, corosync.StatusAccess))
	if n != 1 {
		t.Fatalf("attempts got %d, want 1", n)
	}
	if !errors.Is(err, corosync.ErrAccess) {
		t.Fatalf("Call got %v, want ErrAccess", err)
	}
}

func TestTry(t *testing.T) {
	s := connected(newFake(), nil)
	v, err := corosync.Try(s, "fake_get", func() (int, corosync.Status) {
		return 42, corosync.StatusOK
	})
	if v != 42 || err != nil {
		t.Fatalf("Try got (%v, %v), want (42, nil)", v, err)
	}
	v, err = corosync.Try(s, "fake_get", func() (int, corosync.Status) {
		return 7, corosync.StatusNotExist
	})
	if v != 0 || !errors.Is(err, corosync.ErrNotExist) {
		t.Fatalf("Try got (%v, %v), want (0, ErrNotExist)", v, err)
	}
}

func TestTryEach(t *testing.T) {
	s := connected(newFake(), nil)
	tries := map[int]int{}
	rs := corosync.TryEach(s, "fake_get", []int{1, 2, 3}, func(k int) (int, corosync.Status) {
		tries[k]++
		switch {
		case k == 2:
			return 0, corosync.StatusNotExist
		case k == 3 && tries[k] == 1:
			return 0, corosync.StatusTryAgain
		}
		return k * 10, corosync.StatusOK
	})
	if len(rs) != 3 || !rs[0].IsRight() || !rs[1].IsLeft() || !rs[2].IsRight() {
		t.Fatalf("TryEach got %v", rs)
	}
	if tries[3] != 2 {
		t.Fatalf("item 3 attempts got %d, want 2", tries[3])
	}
	vs, errs := corosync.Partition(rs)
	if !slices.Equal(vs, []int{10, 30}) {
		t.Fatalf("values got %v, want [10 30]", vs)
	}
	if len(errs) != 1 || errs[0].Kind != corosync.KindNotExist || errs[0].Op != "fake_get" {
		t.Fatalf("failures got %v, want one NOT_EXIST during fake_get", errs)
	}
}
