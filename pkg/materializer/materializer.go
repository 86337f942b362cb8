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

// Package materializer turns events into the SQL statements that derive the
// state tables from the event log.
package materializer

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
)

type policyKind int

const (
	policyWarn policyKind = iota
	policyFail
	policyIgnore
	policyCallback
)

// UnknownEventPolicy decides what happens to an event whose name the schema
// does not define. The event stays in the log in every case.
type UnknownEventPolicy struct {
	kind     policyKind
	callback func(*event.Event)
}

var (
	// PolicyWarn logs a warning and skips the event.
	PolicyWarn = UnknownEventPolicy{kind: policyWarn}

	// PolicyFail fails with errors.UnknownEventError.
	PolicyFail = UnknownEventPolicy{kind: policyFail}

	// PolicyIgnore skips the event silently.
	PolicyIgnore = UnknownEventPolicy{kind: policyIgnore}
)

// PolicyCallback skips the event after handing it to fn.
func PolicyCallback(fn func(*event.Event)) UnknownEventPolicy {
	return UnknownEventPolicy{kind: policyCallback, callback: fn}
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(m *Materializer) {
		m.logger = logger
	}
}

// WithDevMode enables the check that replaying an event yields the same
// statements as its first materialization.
func WithDevMode(enabled bool) Option {
	return func(m *Materializer) {
		m.devMode = enabled
	}
}

// WithUnknownEventPolicy sets the policy for undefined event names.
func WithUnknownEventPolicy(policy UnknownEventPolicy) Option {
	return func(m *Materializer) {
		m.policy = policy
	}
}

// Materializer resolves events to statements through the schema.
type Materializer struct {
	schema  *Schema
	logger  logging.Logger
	devMode bool
	policy  UnknownEventPolicy
}

// New creates a new instance of Materializer.
func New(schema *Schema, opts ...Option) *Materializer {
	m := &Materializer{
		schema: schema,
		logger: logging.DefaultLogger(),
		policy: PolicyWarn,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Schema returns the schema of the materializer.
func (m *Materializer) Schema() *Schema {
	return m.schema
}

// Materialize returns the statements of the given event and their hash. A
// skipped unknown event yields no statements and a zero hash.
func (m *Materializer) Materialize(ev *event.Event) ([]Statement, uint64, error) {
	def, ok := m.schema.Definition(ev.Name)
	if !ok {
		switch m.policy.kind {
		case policyFail:
			return nil, 0, &errors.UnknownEventError{Name: ev.Name}
		case policyWarn:
			m.logger.Warnf("skip unknown event %s", ev)
		case policyCallback:
			if m.policy.callback != nil {
				m.policy.callback(ev)
			}
		}
		return nil, 0, nil
	}

	if def.Materialize == nil {
		return nil, 0, nil
	}

	stmts, err := def.Materialize(ev)
	if err != nil {
		return nil, 0, fmt.Errorf("materialize %s: %w", ev, err)
	}

	hash := HashStatements(stmts)
	if m.devMode && ev.Meta.MaterializerHash != 0 && ev.Meta.MaterializerHash != hash {
		return nil, 0, &errors.MaterializerHashMismatchError{
			EventName: ev.Name,
			Seq:       ev.Seq,
			Expected:  ev.Meta.MaterializerHash,
			Actual:    hash,
		}
	}

	return stmts, hash, nil
}

// HashStatements returns the hash of the given statements.
func HashStatements(stmts []Statement) uint64 {
	digest := xxhash.New()
	for _, stmt := range stmts {
		_, _ = digest.WriteString(stmt.SQL)
		for _, arg := range stmt.Args {
			_, _ = fmt.Fprintf(digest, "\x00%T:%v", arg, arg)
		}
		_, _ = digest.WriteString("\x01")
	}

	hash := digest.Sum64()
	if hash == 0 {
		// zero is reserved for "not recorded"
		hash = 1
	}
	return hash
}
