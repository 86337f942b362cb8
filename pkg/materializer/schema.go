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

package materializer

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/yorkie-team/livesync/pkg/event"
)

// Statement is a single SQL write produced by a materializer.
type Statement struct {
	SQL  string
	Args []interface{}

	// WrittenTables lists the tables the statement may change. The state
	// store captures changesets from these tables only; when no statement
	// of an event declares any, every table of the schema is captured.
	WrittenTables []string
}

// Handler turns an event into the statements that apply it to the state.
// It must be pure: the same event always yields the same statements.
type Handler func(ev *event.Event) ([]Statement, error)

// Definition describes one event type.
type Definition struct {
	// ClientOnly events are never pushed to the sync backend.
	ClientOnly bool

	Materialize Handler
}

// Schema is the DDL of the state tables together with the event types that
// write them.
type Schema struct {
	Tables []string
	Events map[string]Definition
}

// Hash returns the hash of the DDL. It is stored with every event log row
// so that a changed schema can be detected at boot.
func (s *Schema) Hash() uint64 {
	return xxhash.Sum64String(strings.Join(s.Tables, ";\n"))
}

// Definition returns the definition of the given event name.
func (s *Schema) Definition(name string) (Definition, bool) {
	def, ok := s.Events[name]
	return def, ok
}

// IsClientOnly reports whether the event is declared client-only. Events
// that are not declared fall back to their sequence number.
func (s *Schema) IsClientOnly(ev *event.Event) bool {
	if def, ok := s.Events[ev.Name]; ok {
		return def.ClientOnly
	}
	return !ev.Seq.IsGlobal()
}

// IsClientOnlyName reports whether events of the given name are declared
// client-only.
func (s *Schema) IsClientOnlyName(name string) bool {
	def, ok := s.Events[name]
	return ok && def.ClientOnly
}
