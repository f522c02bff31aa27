// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package corosync is the client runtime shared by the cluster service
// clients in its subpackages: group messaging ([code.hybscloud.com/corosync/cpg]),
// the configuration map ([code.hybscloud.com/corosync/cmap]), and the
// quorum monitors ([code.hybscloud.com/corosync/quorum],
// [code.hybscloud.com/corosync/votequorum]).
//
// # Architecture
//
//   - Session: one native [Handle] and its readiness descriptor, connected by [Session.Connect] and released once by [Session.Finalize].
//   - Dispatch: [Session.Dispatch] waits for readiness, then runs exactly one non-blocking native dispatch step. TRY_AGAIN from that step means "no event", not failure.
//   - Errors: every native [Status] is classified by one static table ([Classify]) into OK, Retryable, EndOfIteration or Fatal, and surfaced as an [*Error] carrying the operation name and [Kind].
//   - Retry: [Session.Call] and [Try] retry TRY_AGAIN a bounded number of times using [code.hybscloud.com/iox.Backoff].
//   - Iteration: [Cursor] enumerates native collections; NO_SECTIONS ends the sequence.
//   - Values: [Encode], [Decode] and [InferType] marshal typed configuration values.
//
// # Nested failures
//
// Callbacks run inside Dispatch and may call back into the client, for
// example to send a message in reply. The Session counts calls in
// progress, so a nested call fails with Depth >= 2. A failure the
// callback lets escape, by returning it from a service callback or by
// [Session.Escape], is reported by the enclosing Dispatch as an error,
// even TRY_AGAIN, so that congestion on an unrelated send is never
// mistaken for "no event". A failure the callback handles stays with it.
//
// # Example
//
//	s := corosync.NewSession("cmap", native, nil)
//	if err := s.Connect(native.Initialize); err != nil {
//		return err
//	}
//	defer s.Finalize()
//	for {
//		if _, err := s.Dispatch(corosync.Forever); err != nil {
//			return err
//		}
//	}
package corosync
