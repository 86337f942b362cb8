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
	"runtime"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/yorkie-team/livesync/internal/version"
)

// VersionInfo describes the build of the CLI.
type VersionInfo struct {
	Version         string `json:"version" yaml:"version"`
	ProtocolVersion string `json:"protocol_version" yaml:"protocol_version"`
	GoVersion       string `json:"go_version" yaml:"go_version"`
	BuildDate       string `json:"build_date" yaml:"build_date"`
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of livesync",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{
				Version:         version.Version,
				ProtocolVersion: version.ProtocolVersion,
				GoVersion:       runtime.Version(),
				BuildDate:       version.BuildDate,
			}

			return printOutput(cmd, info, func() table.Writer {
				tw := newTable()
				tw.AppendRows([]table.Row{
					{"livesync:", info.Version},
					{"Protocol:", info.ProtocolVersion},
					{"Go:", info.GoVersion},
					{"Build Date:", info.BuildDate},
				})
				return tw
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
