// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package auth manages the stored session credential.
package auth

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/preflight/internal/credentials"
	"github.com/tombee/preflight/internal/log"
)

// NewAuthCommand creates the auth command group.
func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored session credential",
		Long: `Store, inspect, or clear the session cookie preload requests authenticate
with. The cookie is kept in the system keychain and treated as an opaque
value.`,
	}

	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newClearCommand())

	return cmd
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <cookie>",
		Short: "Store the session cookie in the keychain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credentials.NewStore().Set(args[0]); err != nil {
				return err
			}
			cmd.Println("Session cookie stored.")
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session cookie is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			cookie, ok, err := credentials.NewStore().Get()
			if err != nil {
				return fmt.Errorf("keychain unavailable: %w", err)
			}
			if !ok {
				cmd.Println("No session cookie stored.")
				return nil
			}
			cmd.Printf("Session cookie stored (%s).\n", log.SanitizeCookie(cookie))
			return nil
		},
	}
}

func newClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored session cookie",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credentials.NewStore().Clear(); err != nil {
				return err
			}
			cmd.Println("Session cookie cleared.")
			return nil
		},
	}
}
