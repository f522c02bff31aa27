// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync

import (
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultRetryAttempts bounds Call's TRY_AGAIN retries.
const DefaultRetryAttempts = 3

// Options configures a Session and the service clients built on it.
type Options struct {
	Retry RetryOptions `yaml:"retry"`
	// JoinTimeout bounds the readiness wait of the dispatch a group
	// join performs so the member observes its own join.
	JoinTimeout time.Duration `yaml:"join_timeout"`
	// PollInterval bounds each readiness wait of Run.
	PollInterval time.Duration `yaml:"poll_interval"`
	// Logger receives Debug events. Nil discards them.
	Logger *slog.Logger `yaml:"-"`
}

// RetryOptions configures Call.
type RetryOptions struct {
	Attempts int `yaml:"attempts"`
}

// DefaultOptions returns the built-in defaults.
func DefaultOptions() Options {
	return Options{
		Retry:        RetryOptions{Attempts: DefaultRetryAttempts},
		JoinTimeout:  time.Second,
		PollInterval: 250 * time.Millisecond,
	}
}

// ParseOptions decodes YAML over the defaults.
func ParseOptions(data []byte) (Options, error) {
	o := DefaultOptions()
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, err
	}
	o.normalize()
	return o, nil
}

// LoadOptions reads a YAML options file over the defaults.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}
	return ParseOptions(data)
}

// normalize replaces unusable values with defaults. The retry bound is
// always explicit and finite.
func (o *Options) normalize() {
	if o.Retry.Attempts < 1 {
		o.Retry.Attempts = DefaultRetryAttempts
	}
	if o.JoinTimeout < 0 {
		o.JoinTimeout = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}
