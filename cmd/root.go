/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package cmd implements the command line commands treelog and server.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var Root *cobra.Command = &cobra.Command{
	Use:   "treelog",
	Short: "Treelog system",
	Long: `Treelog implements an append-only merkle tree over content digests.
This command exposes the treelog components: the log server and a thin
API client.`,
	// SilenceUsage is set to true -> https://github.com/spf13/cobra/issues/340
	SilenceUsage: true,
}

var (
	releaseVersion = "dev"
	releaseCommit  = "none"
	releaseDate    = "unknown"
)

// SetReleaseInfo stores the build stamp shown by the version command.
func SetReleaseInfo(version, commit, date string) {
	releaseVersion = version
	releaseCommit = commit
	releaseDate = date
}

var versionCmd *cobra.Command = &cobra.Command{
	Use:   "version",
	Short: "Shows the treelog version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("treelog version %s (commit %s, built %s)\n",
			releaseVersion, releaseCommit, releaseDate)
	},
}

func init() {
	Root.AddCommand(versionCmd)
}
