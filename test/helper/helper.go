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

// Package helper provides helper functions for testing.
package helper

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/leader"
	"github.com/yorkie-team/livesync/pkg/event"
	eventlogmemory "github.com/yorkie-team/livesync/pkg/eventlog/memory"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/pkg/materializer"
	"github.com/yorkie-team/livesync/pkg/statedb"
	"github.com/yorkie-team/livesync/pkg/syncbackend"
)

// Names of the events of the todo schema.
const (
	TodoCreated   = "todoCreated"
	TodoCompleted = "todoCompleted"
	TodoDeleted   = "todoDeleted"
	UIStateSet    = "uiStateSet"
)

// Below are the values used to wait in tests.
var (
	WaitTimeout  = 5 * time.Second
	WaitInterval = 10 * time.Millisecond
)

type todoArgs struct {
	ID   string `json:"id"`
	Text string `json:"text,omitempty"`
}

type uiStateArgs struct {
	Filter string `json:"filter"`
}

// TodoSchema returns the schema of a todo list. uiStateSet is client-only.
func TodoSchema() *materializer.Schema {
	return &materializer.Schema{
		Tables: []string{
			`CREATE TABLE todos (id TEXT PRIMARY KEY, text TEXT NOT NULL, completed INTEGER NOT NULL DEFAULT 0)`,
			`CREATE TABLE ui_state (id INTEGER PRIMARY KEY, filter TEXT NOT NULL)`,
		},
		Events: map[string]materializer.Definition{
			TodoCreated: {Materialize: func(ev *event.Event) ([]materializer.Statement, error) {
				var args todoArgs
				if err := decode(ev, &args); err != nil {
					return nil, err
				}
				return []materializer.Statement{{
					SQL:           `INSERT INTO todos (id, text) VALUES (?, ?)`,
					Args:          []interface{}{args.ID, args.Text},
					WrittenTables: []string{"todos"},
				}}, nil
			}},
			TodoCompleted: {Materialize: func(ev *event.Event) ([]materializer.Statement, error) {
				var args todoArgs
				if err := decode(ev, &args); err != nil {
					return nil, err
				}
				return []materializer.Statement{{
					SQL:           `UPDATE todos SET completed = 1 WHERE id = ?`,
					Args:          []interface{}{args.ID},
					WrittenTables: []string{"todos"},
				}}, nil
			}},
			TodoDeleted: {Materialize: func(ev *event.Event) ([]materializer.Statement, error) {
				var args todoArgs
				if err := decode(ev, &args); err != nil {
					return nil, err
				}
				return []materializer.Statement{{
					SQL:           `DELETE FROM todos WHERE id = ?`,
					Args:          []interface{}{args.ID},
					WrittenTables: []string{"todos"},
				}}, nil
			}},
			UIStateSet: {ClientOnly: true, Materialize: func(ev *event.Event) ([]materializer.Statement, error) {
				var args uiStateArgs
				if err := decode(ev, &args); err != nil {
					return nil, err
				}
				return []materializer.Statement{{
					SQL:           `INSERT OR REPLACE INTO ui_state (id, filter) VALUES (1, ?)`,
					Args:          []interface{}{args.Filter},
					WrittenTables: []string{"ui_state"},
				}}, nil
			}},
		},
	}
}

func decode(ev *event.Event, v interface{}) error {
	if err := json.Unmarshal(ev.Args, v); err != nil {
		return fmt.Errorf("decode %s: %w", ev, err)
	}
	return nil
}

// CreateTodo returns the input creating a todo.
func CreateTodo(id, text string) event.Input {
	return mustInput(TodoCreated, todoArgs{ID: id, Text: text})
}

// CompleteTodo returns the input completing a todo.
func CompleteTodo(id string) event.Input {
	return mustInput(TodoCompleted, todoArgs{ID: id})
}

// DeleteTodo returns the input deleting a todo.
func DeleteTodo(id string) event.Input {
	return mustInput(TodoDeleted, todoArgs{ID: id})
}

// SetUIState returns the client-only input setting the filter of the list.
func SetUIState(filter string) event.Input {
	return mustInput(UIStateSet, uiStateArgs{Filter: filter})
}

func mustInput(name string, args interface{}) event.Input {
	input, err := event.NewInput(name, args)
	if err != nil {
		panic(err)
	}
	return input
}

// GlobalTodos returns count todoCreated events chained after the given
// global number, as another client would push them.
func GlobalTodos(after uint64, count int, clientID string) []*event.Event {
	events := make([]*event.Event, 0, count)
	parent := eventseq.New(after, 0, eventseq.InitialRebaseGeneration)
	for i := 0; i < count; i++ {
		pair := eventseq.NextPair(parent, false, nil)
		id := fmt.Sprintf("%s-%d", clientID, pair.Seq.Global)
		events = append(events, event.New(CreateTodo(id, id), pair, clientID, clientID+"-session"))
		parent = pair.Seq
	}
	return events
}

// NewStateDB opens an in-memory state database of the todo schema.
func NewStateDB(t *testing.T) *statedb.DB {
	db, err := statedb.Open(context.Background(), statedb.MemoryPath, TodoSchema())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })
	return db
}

// NewLeader starts a leader of the todo schema over an in-memory event log.
func NewLeader(t *testing.T, storeID string, backend syncbackend.Backend) *leader.Leader {
	log, err := eventlogmemory.New()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, log.Close()) })

	l, err := leader.New(context.Background(), leader.Config{
		StoreID:       storeID,
		RetryInterval: 20 * time.Millisecond,
		DevMode:       true,
	}, leader.Deps{
		State:    NewStateDB(t),
		Eventlog: log,
		Backend:  backend,
	})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, l.Close()) })
	return l
}

// Eventually waits for the condition with the default timeout.
func Eventually(t *testing.T, condition func() bool, msgAndArgs ...interface{}) {
	require.Eventually(t, condition, WaitTimeout, WaitInterval, msgAndArgs...)
}

// TodoIDs returns the ids of the todos returned by the given query
// function, in id order.
func TodoIDs(t *testing.T, query func(ctx context.Context, q string, args ...interface{}) ([]statedb.Row, error)) []string {
	rows, err := query(context.Background(), `SELECT id FROM todos ORDER BY id`)
	require.NoError(t, err)

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, fmt.Sprint(row["id"]))
	}
	return ids
}
