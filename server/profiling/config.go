/*
 * Copyright 2026 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package profiling serves the metrics of the server and, optionally, the
// pprof endpoints over HTTP.
package profiling

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultReadHeaderTimeout is the default time allowed to read the
	// headers of a request.
	DefaultReadHeaderTimeout = "5s"

	// DefaultShutdownTimeout is the default time a graceful shutdown waits
	// for the open requests.
	DefaultShutdownTimeout = "10s"
)

var (
	// ErrInvalidProfilingPort occurs when the port in the config is invalid.
	ErrInvalidProfilingPort = errors.New("invalid port number for profiling server")

	// ErrInvalidTimeout occurs when a timeout in the config is not a valid
	// duration.
	ErrInvalidTimeout = errors.New("invalid timeout for profiling server")
)

// Config is the configuration of the profiling server. Empty timeouts take
// their default values.
type Config struct {
	Port              int    `yaml:"Port"`
	EnablePprof       bool   `yaml:"EnablePprof"`
	ReadHeaderTimeout string `yaml:"ReadHeaderTimeout"`
	ShutdownTimeout   string `yaml:"ShutdownTimeout"`
}

// Validate validates the port number and the timeouts.
func (c *Config) Validate() error {
	if c.Port < 1 || 65535 < c.Port {
		return fmt.Errorf("must be between 1 and 65535, given %d: %w", c.Port, ErrInvalidProfilingPort)
	}

	for flag, value := range map[string]string{
		"--profiling-read-header-timeout": c.ReadHeaderTimeout,
		"--profiling-shutdown-timeout":    c.ShutdownTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf(`invalid argument "%s" for "%s" flag: %w`, value, flag, ErrInvalidTimeout)
		}
	}

	return nil
}

func (c *Config) readHeaderTimeout() time.Duration {
	return parseDuration(c.ReadHeaderTimeout, DefaultReadHeaderTimeout)
}

func (c *Config) shutdownTimeout() time.Duration {
	return parseDuration(c.ShutdownTimeout, DefaultShutdownTimeout)
}

func parseDuration(value, fallback string) time.Duration {
	if value == "" {
		value = fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}
