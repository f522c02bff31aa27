// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/corosync"
)

func TestDefaultOptions(t *testing.T) {
	o := corosync.DefaultOptions()
	assert.Equal(t, corosync.DefaultRetryAttempts, o.Retry.Attempts)
	assert.Equal(t, time.Second, o.JoinTimeout)
	assert.Equal(t, 250*time.Millisecond, o.PollInterval)
}

func TestParseOptions(t *testing.T) {
	o, err := corosync.ParseOptions([]byte(`
retry:
  attempts: 5
join_timeout: 2s
poll_interval: 10ms
`))
	require.NoError(t, err)
	assert.Equal(t, 5, o.Retry.Attempts)
	assert.Equal(t, 2*time.Second, o.JoinTimeout)
	assert.Equal(t, 10*time.Millisecond, o.PollInterval)
	assert.NotNil(t, o.Logger)
}

func TestParseOptionsKeepsDefaults(t *testing.T) {
	o, err := corosync.ParseOptions([]byte("join_timeout: 0s\n"))
	require.NoError(t, err)
	assert.Equal(t, corosync.DefaultRetryAttempts, o.Retry.Attempts)
	assert.Zero(t, o.JoinTimeout)
	assert.Equal(t, 250*time.Millisecond, o.PollInterval)
}

func TestParseOptionsNormalizes(t *testing.T) {
	o, err := corosync.ParseOptions([]byte("retry:\n  attempts: -2\njoin_timeout: -1s\npoll_interval: 0s\n"))
	require.NoError(t, err)
	assert.Equal(t, corosync.DefaultRetryAttempts, o.Retry.Attempts)
	assert.Zero(t, o.JoinTimeout)
	assert.Equal(t, 250*time.Millisecond, o.PollInterval)
}

func TestParseOptionsInvalid(t *testing.T) {
	_, err := corosync.ParseOptions([]byte("retry: [1, 2"))
	assert.Error(t, err)
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corosync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry:\n  attempts: 1\n"), 0o600))

	o, err := corosync.LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 1, o.Retry.Attempts)

	_, err = corosync.LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
