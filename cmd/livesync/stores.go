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

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newStoresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List the stores of the sync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := dial("")
			if err != nil {
				return err
			}
			defer func() {
				_ = b.Close()
			}()

			summaries, err := b.ListStores(context.Background())
			if err != nil {
				return err
			}

			return printOutput(cmd, summaries, func() table.Writer {
				tw := newTable()
				tw.AppendHeader(table.Row{
					"ID",
					"HEAD",
					"EPOCH",
					"BACKEND ID",
					"UPDATED AT",
				})
				for _, s := range summaries {
					tw.AppendRow(table.Row{
						s.ID,
						s.Head,
						s.Epoch,
						s.BackendID,
						s.UpdatedAt.Format("2006-01-02 15:04:05"),
					})
				}
				return tw
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(newStoresCmd())
}
