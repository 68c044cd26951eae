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

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bbva/treelog/log"
	"github.com/bbva/treelog/server"
	"github.com/bbva/treelog/util"
)

var serverStart *cobra.Command = &cobra.Command{
	Use:   "start",
	Short: "Starts the treelog service",
	Run:   runServerStart,
}

func init() {
	serverCmd.AddCommand(serverStart)
}

func runServerStart(cmd *cobra.Command, args []string) {

	conf := serverPreRun()
	log.SetLogger("Treelog", conf.Log)

	srv, err := server.NewServer(conf)
	if err != nil {
		log.Fatalf("Can't start treelog server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Can't start treelog server: %v", err)
	}

	util.AwaitTermSignal(srv.Stop)

	log.Debug("Stopping server, about to exit...")
}
