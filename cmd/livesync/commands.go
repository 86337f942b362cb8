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

// Package main is the entry point of the livesync CLI.
package main

import (
	"github.com/spf13/cobra"

	"github.com/yorkie-team/livesync/pkg/syncbackend/rpc"
)

var (
	rpcAddr      string
	rpcToken     string
	rpcCertFile  string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:           "livesync",
	Short:         "Sync server for local-first applications built on event logs",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Run executes CLI.
func Run() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}

	return 0
}

// dial connects to the given store of the server configured by the
// persistent flags.
func dial(storeID string) (*rpc.Backend, error) {
	opts := []rpc.Option{rpc.WithUserAgent("livesync-cli")}
	if rpcToken != "" {
		opts = append(opts, rpc.WithToken(rpcToken))
	}
	if rpcCertFile != "" {
		opts = append(opts, rpc.WithCertFile(rpcCertFile))
	}
	return rpc.Dial(rpcAddr, storeID, opts...)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rpcAddr, "rpc-addr", "localhost:11101", "Address of the sync server")
	rootCmd.PersistentFlags().StringVar(&rpcToken, "token", "", "Token granting access to the stores")
	rootCmd.PersistentFlags().StringVar(&rpcCertFile, "cert-file", "", "Certificate of the sync server")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "One of 'yaml' or 'json'.")
}
