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

package main

import (
	"context"
	"errors"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/yorkie-team/livesync/api/converter"
	"github.com/yorkie-team/livesync/api/types"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/pkg/syncbackend"
)

var (
	eventsAfter string
	eventsLimit int
)

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events [store id]",
		Short: "Show the confirmed events of a store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("store id is required")
			}

			var cursor *syncbackend.Cursor
			if eventsAfter != "" {
				seq, err := eventseq.FromString(eventsAfter)
				if err != nil {
					return err
				}
				cursor = &syncbackend.Cursor{Seq: seq}
			}

			b, err := dial(args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = b.Close()
			}()

			items, err := pullEvents(context.Background(), b, cursor, eventsLimit)
			if err != nil {
				return err
			}

			return printOutput(cmd, items, func() table.Writer {
				tw := newTable()
				tw.AppendHeader(table.Row{
					"SEQ",
					"PARENT",
					"NAME",
					"CLIENT",
					"SESSION",
					"ARGS",
				})
				for _, item := range items {
					tw.AppendRow(table.Row{
						item.Event.Seq,
						item.Event.Parent,
						item.Event.Name,
						item.Event.ClientID,
						item.Event.SessionID,
						string(item.Event.Args),
					})
				}
				return tw
			})
		},
	}
}

// pullEvents pages through the history after the cursor, up to limit events
// when limit is positive.
func pullEvents(
	ctx context.Context,
	b syncbackend.Backend,
	cursor *syncbackend.Cursor,
	limit int,
) ([]types.Item, error) {
	stream, err := b.Pull(ctx, cursor, syncbackend.PullOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = stream.Close()
	}()

	var items []types.Item
	for limit <= 0 || len(items) < limit {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Batch {
			items = append(items, types.Item{Event: converter.ToEvent(item.Event), Metadata: item.Metadata})
		}
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func init() {
	cmd := newEventsCmd()
	cmd.Flags().StringVar(
		&eventsAfter,
		"after",
		"",
		"The global event to start after, e.g. e10",
	)
	cmd.Flags().IntVar(
		&eventsLimit,
		"limit",
		0,
		"The maximum number of events to show, 0 for all",
	)
	rootCmd.AddCommand(cmd)
}
