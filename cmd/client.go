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

	"github.com/bbva/treelog/client"
	"github.com/bbva/treelog/codec"
	"github.com/bbva/treelog/crypto/hashing"
	"github.com/bbva/treelog/log"
)

var clientCmd *cobra.Command = &cobra.Command{
	Use:              "client",
	Short:            "Provides access to the treelog API client commands",
	TraverseChildren: true,
}

var (
	clientEndpoint string
	clientDurable  bool
)

func init() {
	f := clientCmd.PersistentFlags()
	f.StringVarP(&clientEndpoint, "endpoint", "e", "http://localhost:8080", "Treelog server endpoint")
	f.BoolVar(&clientDurable, "durable", false, "Target the durable tree backend instead of the in-memory one")

	_ = v.BindPFlag("client.endpoint", f.Lookup("endpoint"))
	_ = v.BindEnv("client.endpoint", "TREELOG_ENDPOINT")

	clientCmd.AddCommand(clientAdd, clientNumLeaves, clientRoot, clientProof)
	Root.AddCommand(clientCmd)
}

func newClient() *client.HttpClient {
	prefix := ""
	if clientDurable {
		prefix = "/lmdb"
	}
	return client.NewHttpClient(v.GetString("client.endpoint"), prefix)
}

var clientAdd *cobra.Command = &cobra.Command{
	Use:   "add <hex-digest> [hex-digest...]",
	Short: "Appends leaf digests to the tree",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := newClient()

		leaves := make([]hashing.Digest, 0, len(args))
		for _, arg := range args {
			leaf, err := codec.DecodeDigest(arg, 32)
			if err != nil {
				log.Fatalf("Invalid leaf digest %q: %v", arg, err)
			}
			leaves = append(leaves, leaf)
		}

		var count uint64
		var err error
		if len(leaves) == 1 {
			count, err = c.AddLeaf(leaves[0])
		} else {
			count, err = c.AddLeaves(leaves)
		}
		if err != nil {
			log.Fatalf("Can't append leaves: %v", err)
		}
		fmt.Printf("num_leaves: %d\n", count)
	},
}

var clientNumLeaves *cobra.Command = &cobra.Command{
	Use:   "num-leaves",
	Short: "Shows the current leaf count",
	Run: func(cmd *cobra.Command, args []string) {
		count, err := newClient().NumLeaves()
		if err != nil {
			log.Fatalf("Can't get leaf count: %v", err)
		}
		fmt.Printf("num_leaves: %d\n", count)
	},
}

var clientRoot *cobra.Command = &cobra.Command{
	Use:   "root",
	Short: "Shows the current root digest",
	Run: func(cmd *cobra.Command, args []string) {
		root, err := newClient().Root()
		if err != nil {
			log.Fatalf("Can't get root: %v", err)
		}
		fmt.Printf("root: %s\n", codec.EncodeDigest(root))
	},
}

var clientProof *cobra.Command = &cobra.Command{
	Use:   "proof <leaf-index>",
	Short: "Fetches a membership proof and prints its audit path without verifying it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var index uint64
		if _, err := fmt.Sscanf(args[0], "%d", &index); err != nil {
			log.Fatalf("Invalid leaf index %q: %v", args[0], err)
		}

		c := newClient()
		proof, err := c.Proof(index)
		if err != nil {
			log.Fatalf("Can't get proof: %v", err)
		}
		for _, node := range proof.AuditPath {
			fmt.Printf("sibling: %s %s\n", codec.EncodeDigest(node.Hash), node.Side)
		}
	},
}
