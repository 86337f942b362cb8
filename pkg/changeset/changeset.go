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

// Package changeset provides the invertible record of the row changes made by
// materializing one event.
package changeset

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Op is the kind of change made to a row.
type Op int

const (
	// Insert means the row did not exist before.
	Insert Op = iota

	// Update means some columns of the row changed.
	Update

	// Delete means the row does not exist anymore.
	Delete
)

// String returns the name of the op.
func (o Op) String() string {
	switch o {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// RowChange is the before and after image of a row. A nil image means the
// row is absent on that side.
type RowChange struct {
	RowID  int64         `bson:"rowid"`
	Before []interface{} `bson:"before,omitempty"`
	After  []interface{} `bson:"after,omitempty"`
}

// Op returns the kind of the change.
func (c RowChange) Op() Op {
	switch {
	case c.Before == nil:
		return Insert
	case c.After == nil:
		return Delete
	}
	return Update
}

// TableChanges holds the row changes of one table. Images list their values
// in the order of Columns.
type TableChanges struct {
	Table   string      `bson:"table"`
	Columns []string    `bson:"columns"`
	Rows    []RowChange `bson:"rows"`
}

// Changeset is the set of row changes made by a single materialization.
type Changeset struct {
	Tables []TableChanges `bson:"tables"`
}

// IsEmpty returns whether the changeset changes nothing.
func (cs *Changeset) IsEmpty() bool {
	for _, t := range cs.Tables {
		if len(t.Rows) > 0 {
			return false
		}
	}
	return true
}

// Len returns the number of changed rows.
func (cs *Changeset) Len() int {
	n := 0
	for _, t := range cs.Tables {
		n += len(t.Rows)
	}
	return n
}

// Invert returns the changeset that undoes this one. Changes are reversed so
// that applying the inversion walks the original changes newest first.
func (cs *Changeset) Invert() *Changeset {
	inverted := &Changeset{Tables: make([]TableChanges, 0, len(cs.Tables))}
	for i := len(cs.Tables) - 1; i >= 0; i-- {
		t := cs.Tables[i]
		rows := make([]RowChange, 0, len(t.Rows))
		for j := len(t.Rows) - 1; j >= 0; j-- {
			r := t.Rows[j]
			rows = append(rows, RowChange{RowID: r.RowID, Before: r.After, After: r.Before})
		}
		inverted.Tables = append(inverted.Tables, TableChanges{
			Table:   t.Table,
			Columns: t.Columns,
			Rows:    rows,
		})
	}
	return inverted
}

// Encode encodes the changeset into bytes.
func (cs *Changeset) Encode() ([]byte, error) {
	b, err := bson.Marshal(cs)
	if err != nil {
		return nil, fmt.Errorf("encode changeset: %w", err)
	}
	return b, nil
}

// Decode decodes the given bytes into a changeset.
func Decode(b []byte) (*Changeset, error) {
	cs := &Changeset{}
	if err := bson.Unmarshal(b, cs); err != nil {
		return nil, fmt.Errorf("decode changeset: %w", err)
	}

	for i := range cs.Tables {
		for j := range cs.Tables[i].Rows {
			row := &cs.Tables[i].Rows[j]
			normalize(row.Before)
			normalize(row.After)
		}
	}
	return cs, nil
}

// normalize converts decoded BSON values back into the values SQLite scans.
func normalize(values []interface{}) {
	for i, v := range values {
		switch val := v.(type) {
		case primitive.Binary:
			values[i] = val.Data
		case int32:
			values[i] = int64(val)
		case primitive.DateTime:
			values[i] = val.Time().UTC()
		case primitive.Null, primitive.Undefined:
			values[i] = nil
		}
	}
}

// Collapse folds the changes made to one table, in the order they were made,
// into a single change per row. A row keeps the before image of its first
// change and the after image of its last one. Rows that end as they started
// are dropped. Rows are sorted by rowid.
func Collapse(table string, columns []string, changes []RowChange) TableChanges {
	folded := make(map[int64]*RowChange, len(changes))
	for _, c := range changes {
		if f, ok := folded[c.RowID]; ok {
			f.After = c.After
			continue
		}
		folded[c.RowID] = &RowChange{RowID: c.RowID, Before: c.Before, After: c.After}
	}

	sorted := make([]int64, 0, len(folded))
	for id := range folded {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	result := TableChanges{Table: table, Columns: columns}
	for _, id := range sorted {
		c := folded[id]
		if c.Before == nil && c.After == nil {
			continue
		}
		if c.Before != nil && c.After != nil && valuesEqual(c.Before, c.After) {
			continue
		}
		result.Rows = append(result.Rows, *c)
	}
	return result
}

func valuesEqual(a, b []interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		left, okLeft := a[i].([]byte)
		right, okRight := b[i].([]byte)
		if okLeft || okRight {
			if !okLeft || !okRight || !bytes.Equal(left, right) {
				return false
			}
			continue
		}

		if lt, ok := a[i].(time.Time); ok {
			rt, ok := b[i].(time.Time)
			if !ok || !lt.Equal(rt) {
				return false
			}
			continue
		}

		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
