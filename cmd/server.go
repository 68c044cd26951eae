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
	"fmt"

	"github.com/spf13/cobra"
	v "github.com/spf13/viper"

	"github.com/bbva/treelog/server"
)

var serverCmd *cobra.Command = &cobra.Command{
	Use:   "server",
	Short: "Provides access to the treelog server commands",
	Long: `Treelog server provides a REST API to both merkle tree backends:
the volatile in-memory tree and the durable on-disk tree.`,
	TraverseChildren: true,
}

var serverConf *server.Config = server.DefaultConfig()

func init() {
	f := serverCmd.PersistentFlags()
	f.StringVar(&serverConf.HTTPAddr, "http-addr", serverConf.HTTPAddr, "API bind address (host:port)")
	f.StringVar(&serverConf.MetricsAddr, "metrics-addr", serverConf.MetricsAddr, "Metrics bind address (host:port)")
	f.StringVar(&serverConf.DBPath, "db-path", serverConf.DBPath, "Path to the durable tree storage")
	f.StringVar(&serverConf.Engine, "engine", serverConf.Engine, "Durable storage engine: bolt or badger")
	f.StringVarP(&serverConf.Log, "log", "l", serverConf.Log, "Choose between log levels: silent, error, info and debug")

	// Lookups
	_ = v.BindPFlag("server.http_addr", f.Lookup("http-addr"))
	_ = v.BindPFlag("server.metrics_addr", f.Lookup("metrics-addr"))
	_ = v.BindPFlag("server.db_path", f.Lookup("db-path"))
	_ = v.BindPFlag("server.engine", f.Lookup("engine"))
	_ = v.BindPFlag("server.log", f.Lookup("log"))

	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("server.db_path", "STORAGE_PATH")

	Root.AddCommand(serverCmd)
}

// serverPreRun folds the viper lookups back into the config so that
// environment variables win over flag defaults.
func serverPreRun() *server.Config {
	serverConf.HTTPAddr = v.GetString("server.http_addr")
	serverConf.MetricsAddr = v.GetString("server.metrics_addr")
	serverConf.DBPath = v.GetString("server.db_path")
	serverConf.Engine = v.GetString("server.engine")
	serverConf.Log = v.GetString("server.log")

	if port := v.GetString("server.port"); port != "" {
		serverConf.HTTPAddr = fmt.Sprintf("0.0.0.0:%s", port)
	}

	return serverConf
}
