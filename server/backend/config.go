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

package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPullPageSize is returned when the pull page size is not
	// positive.
	ErrInvalidPullPageSize = errors.New("pull page size must be positive")

	// ErrInvalidMaxPushBatchSize is returned when the push batch limit is out
	// of range.
	ErrInvalidMaxPushBatchSize = errors.New("max push batch size must be between 1 and 100")
)

// Config is the configuration for creating a Backend instance.
type Config struct {
	// SecretKey is the secret key for verifying authentication tokens. An
	// empty key disables authentication.
	SecretKey string `yaml:"SecretKey"`

	// PullPageSize is the number of events sent in one pull response.
	PullPageSize int `yaml:"PullPageSize"`

	// MaxPushBatchSize is the largest batch accepted by a push.
	MaxPushBatchSize int `yaml:"MaxPushBatchSize"`

	// SubscriptionBufferSize is the number of store changes a live puller may
	// lag behind before it is disconnected.
	SubscriptionBufferSize int `yaml:"SubscriptionBufferSize"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if c.PullPageSize <= 0 {
		return fmt.Errorf("%d: %w", c.PullPageSize, ErrInvalidPullPageSize)
	}

	if c.MaxPushBatchSize <= 0 || c.MaxPushBatchSize > 100 {
		return fmt.Errorf("%d: %w", c.MaxPushBatchSize, ErrInvalidMaxPushBatchSize)
	}

	if c.SubscriptionBufferSize <= 0 {
		return fmt.Errorf("subscription buffer size %d must be positive", c.SubscriptionBufferSize)
	}

	return nil
}
