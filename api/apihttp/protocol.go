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

package apihttp

import (
	"github.com/bbva/treelog/codec"
	"github.com/bbva/treelog/merkle"
)

type HealthCheckResponse struct {
	Version int    `json:"version"`
	Status  string `json:"status"`
}

type AddLeafRequest struct {
	Leaf string `json:"leaf"`
}

type AddLeavesRequest struct {
	Leaves []string `json:"leaves"`
}

type AddResponse struct {
	Status    string `json:"status"`
	NumLeaves uint64 `json:"num_leaves"`
}

type NumLeavesResponse struct {
	NumLeaves uint64 `json:"num_leaves"`
}

type RootResponse struct {
	Root string `json:"root"`
}

type ProofRequest struct {
	Index *uint64 `json:"index"`
}

type Sibling struct {
	Hash string `json:"hash"`
	Side string `json:"side"`
}

type Proof struct {
	LeafIndex uint64    `json:"leaf_index"`
	Siblings  []Sibling `json:"siblings"`
}

type ProofResponse struct {
	Proof Proof `json:"proof"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ToProofResponse converts a membership proof into its wire shape, with
// the audit path ordered leaf level first.
func ToProofResponse(proof *merkle.MembershipProof) ProofResponse {
	siblings := make([]Sibling, 0, len(proof.AuditPath))
	for _, node := range proof.AuditPath {
		siblings = append(siblings, Sibling{
			Hash: codec.EncodeDigest(node.Hash),
			Side: string(node.Side),
		})
	}
	return ProofResponse{
		Proof: Proof{
			LeafIndex: proof.LeafIndex,
			Siblings:  siblings,
		},
	}
}
