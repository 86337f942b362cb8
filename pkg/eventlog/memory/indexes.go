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

package memory

import (
	"fmt"

	"github.com/hashicorp/go-memdb"

	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventlog"
	"github.com/yorkie-team/livesync/pkg/eventseq"
)

var (
	tblEvents     = "events"
	tblSyncStatus = "sync_status"
)

const syncStatusID = "sync_status"

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblEvents: {
			Name: tblEvents,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Key"},
				},
			},
		},
		tblSyncStatus: {
			Name: tblSyncStatus,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		},
	},
}

// eventRecord is an event of the log. Key orders records by sequence
// number.
type eventRecord struct {
	Key   string
	Event *event.Event
}

type syncStatusRecord struct {
	ID     string
	Status eventlog.SyncStatus
}

// keyOf returns a key whose lexical order is the order of the numbers.
func keyOf(seq eventseq.SeqNum) string {
	return fmt.Sprintf("%020d.%010d.%010d", seq.Global, seq.Client, seq.RebaseGeneration)
}
