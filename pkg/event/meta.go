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

package event

import (
	"encoding/json"
)

// ChangesetKind is the tag of a ChangesetState.
type ChangesetKind int

const (
	// ChangesetUnset means the event has not been materialized at its
	// current position.
	ChangesetUnset ChangesetKind = iota

	// ChangesetNoOp means materialization did not change any row.
	ChangesetNoOp

	// ChangesetPresent means materialization produced an invertible
	// changeset.
	ChangesetPresent
)

// String returns the name of the kind.
func (k ChangesetKind) String() string {
	switch k {
	case ChangesetNoOp:
		return "no-op"
	case ChangesetPresent:
		return "present"
	default:
		return "unset"
	}
}

var (
	// UnsetChangeset is the changeset of an event that has not been applied.
	UnsetChangeset = ChangesetState{Kind: ChangesetUnset}

	// NoOpChangeset is the changeset of an event that changed nothing.
	NoOpChangeset = ChangesetState{Kind: ChangesetNoOp}
)

// ChangesetState is the changeset captured when the event was applied to the
// state store. It is only used to roll the event back.
type ChangesetState struct {
	Kind  ChangesetKind
	Bytes []byte
}

// PresentChangeset creates a changeset state holding the given bytes.
func PresentChangeset(b []byte) ChangesetState {
	return ChangesetState{Kind: ChangesetPresent, Bytes: b}
}

// IsApplied returns whether the event has been applied at its position.
func (cs ChangesetState) IsApplied() bool {
	return cs.Kind != ChangesetUnset
}

// Meta is the part of an event that does not take part in equality.
type Meta struct {
	// Changeset is produced by materialization.
	Changeset ChangesetState

	// SyncMetadata is an opaque value round-tripped with the remote backend,
	// e.g. a server cursor.
	SyncMetadata json.RawMessage

	// MaterializerHash is the hash of the statements produced when the event
	// was first materialized. Zero means it has not been recorded.
	MaterializerHash uint64
}
