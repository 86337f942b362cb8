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

package leader

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMailboxSize is the default size of the local push mailbox.
	DefaultMailboxSize = 64

	// DefaultLocalPushBatchSize is the default number of session pushes
	// merged in one cycle.
	DefaultLocalPushBatchSize = 10

	// DefaultBackendPushBatchSize is the default number of events pushed to
	// the backend at once.
	DefaultBackendPushBatchSize = 100

	// DefaultRollbackTailSize is the default number of confirmed events
	// whose changesets are retained.
	DefaultRollbackTailSize = 100

	// DefaultRetryInterval is the default interval between attempts to
	// reach the backend after a failure.
	DefaultRetryInterval = time.Second
)

var (
	// ErrInvalidLocalPushBatchSize occurs when the local push batch size is
	// out of range.
	ErrInvalidLocalPushBatchSize = errors.New("local push batch size must be between 1 and 10")

	// ErrInvalidBackendPushBatchSize occurs when the backend push batch size
	// is out of range.
	ErrInvalidBackendPushBatchSize = errors.New("backend push batch size must be between 1 and 100")

	// ErrEmptyStoreID occurs when the store id is missing.
	ErrEmptyStoreID = errors.New("store id must not be empty")
)

// Config is the configuration of a leader.
type Config struct {
	// StoreID is the id of the store the leader syncs.
	StoreID string

	// MailboxSize is the number of session pushes that can wait for the
	// local push loop.
	MailboxSize int

	// LocalPushBatchSize is the number of session pushes merged in one cycle.
	LocalPushBatchSize int

	// BackendPushBatchSize is the number of events pushed to the backend at
	// once.
	BackendPushBatchSize int

	// RollbackTailSize is the number of confirmed events whose changesets are
	// retained so that they can still be rolled back.
	RollbackTailSize int

	// RetryInterval is the interval between attempts to reach the backend
	// after a failure.
	RetryInterval time.Duration

	// DevMode validates the sync state after every merge and checks the
	// materializer hashes of replayed events.
	DevMode bool
}

// ensureDefaultValue sets the default value of the fields left empty.
func (c *Config) ensureDefaultValue() {
	if c.MailboxSize == 0 {
		c.MailboxSize = DefaultMailboxSize
	}
	if c.LocalPushBatchSize == 0 {
		c.LocalPushBatchSize = DefaultLocalPushBatchSize
	}
	if c.BackendPushBatchSize == 0 {
		c.BackendPushBatchSize = DefaultBackendPushBatchSize
	}
	if c.RollbackTailSize == 0 {
		c.RollbackTailSize = DefaultRollbackTailSize
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = DefaultRetryInterval
	}
}

// Validate validates this config.
func (c *Config) Validate() error {
	if c.StoreID == "" {
		return ErrEmptyStoreID
	}
	if c.MailboxSize < 1 {
		return fmt.Errorf("mailbox size must be positive: %d", c.MailboxSize)
	}
	if c.LocalPushBatchSize < 1 || c.LocalPushBatchSize > 10 {
		return fmt.Errorf("%d: %w", c.LocalPushBatchSize, ErrInvalidLocalPushBatchSize)
	}
	if c.BackendPushBatchSize < 1 || c.BackendPushBatchSize > 100 {
		return fmt.Errorf("%d: %w", c.BackendPushBatchSize, ErrInvalidBackendPushBatchSize)
	}
	if c.RollbackTailSize < 1 {
		return fmt.Errorf("rollback tail size must be positive: %d", c.RollbackTailSize)
	}
	if c.RetryInterval < 0 {
		return fmt.Errorf("retry interval must not be negative: %s", c.RetryInterval)
	}
	return nil
}
