// Copyright 2018-2021 CERN
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
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package cli assembles the revfsutil command tree with cobra.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cs3org/revfs/internal/applog"
)

// Root builds the revfsutil command tree.
func Root() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:   "revfsutil",
		Short: "Operate an append-only revision storage repository",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			l := zerolog.New(cmd.ErrOrStderr()).Level(lvl).With().Timestamp().Logger()
			cmd.SetContext(applog.WithLogger(cmd.Context(), l))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log verbosity (trace, debug, info, warn, error)")
	root.AddCommand(
		newCreateRepoCmd(),
		newCommitCmd(),
		newCatCmd(),
		newDiffCmd(),
		newMerge3Cmd(),
	)
	return root
}
