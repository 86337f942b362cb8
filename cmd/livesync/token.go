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
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/yorkie-team/livesync/server"
	"github.com/yorkie-team/livesync/server/rpc/auth"
)

var (
	tokenSecretKey string
	tokenDuration  time.Duration
)

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token [subject] [store id...]",
		Short: "Generate a token granting access to stores",
		Long: "Generate a token signed with the secret key of the sync server. " +
			"Without store ids, or with '" + auth.AllStores + "', the token grants access to every store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("subject is required")
			}
			if tokenSecretKey == "" {
				return errors.New("secret key is required")
			}

			stores := args[1:]
			if len(stores) == 0 {
				stores = []string{auth.AllStores}
			}

			token, err := auth.NewTokenManager(tokenSecretKey, tokenDuration).Generate(args[0], stores...)
			if err != nil {
				return err
			}

			cmd.Println(token)
			return nil
		},
	}
}

func init() {
	cmd := newTokenCmd()
	cmd.Flags().StringVar(
		&tokenSecretKey,
		"secret-key",
		"",
		"The secret key of the sync server",
	)
	cmd.Flags().DurationVar(
		&tokenDuration,
		"duration",
		server.DefaultRPCTokenDuration,
		"The duration of the token",
	)
	rootCmd.AddCommand(cmd)
}
