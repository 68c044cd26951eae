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

// Package client implements a Go HTTP client for the treelog API.
package client

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/pkg/errors"

	"github.com/bbva/treelog/api/apihttp"
	"github.com/bbva/treelog/codec"
	"github.com/bbva/treelog/crypto/hashing"
	"github.com/bbva/treelog/merkle"
)

// HttpClient talks to one tree backend of a treelog server. The prefix
// selects the backend: "" for the in-memory tree, "/lmdb" for the
// durable one.
type HttpClient struct {
	endpoint string
	prefix   string
	http.Client
}

func NewHttpClient(endpoint, prefix string) *HttpClient {
	return &HttpClient{
		endpoint,
		prefix,
		*http.DefaultClient,
	}
}

func (c *HttpClient) doReq(method, path string, data []byte) ([]byte, error) {
	req, err := http.NewRequest(method, c.endpoint+c.prefix+path, bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apihttp.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, errors.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, errors.Errorf("server returned %d", resp.StatusCode)
	}

	return body, nil
}

// HealthCheck asks the server whether it is alive. The health check is
// global, not per backend, so the prefix is not applied.
func (c *HttpClient) HealthCheck() error {
	req, err := http.NewRequest("GET", c.endpoint+"/health-check", nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// AddLeaf appends a single leaf digest and returns the new leaf count.
func (c *HttpClient) AddLeaf(leaf hashing.Digest) (uint64, error) {
	data, _ := json.Marshal(apihttp.AddLeafRequest{Leaf: codec.EncodeDigest(leaf)})

	body, err := c.doReq("POST", "/add-leaf", data)
	if err != nil {
		return 0, err
	}

	var response apihttp.AddResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, err
	}
	return response.NumLeaves, nil
}

// AddLeaves appends a batch of leaf digests atomically and returns the
// new leaf count.
func (c *HttpClient) AddLeaves(leaves []hashing.Digest) (uint64, error) {
	encoded := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		encoded = append(encoded, codec.EncodeDigest(leaf))
	}
	data, _ := json.Marshal(apihttp.AddLeavesRequest{Leaves: encoded})

	body, err := c.doReq("POST", "/add-leaves", data)
	if err != nil {
		return 0, err
	}

	var response apihttp.AddResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, err
	}
	return response.NumLeaves, nil
}

// NumLeaves returns the current leaf count.
func (c *HttpClient) NumLeaves() (uint64, error) {
	body, err := c.doReq("GET", "/get-num-leaves", nil)
	if err != nil {
		return 0, err
	}

	var response apihttp.NumLeavesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, err
	}
	return response.NumLeaves, nil
}

// Root returns the current root digest.
func (c *HttpClient) Root() (hashing.Digest, error) {
	body, err := c.doReq("GET", "/get-root", nil)
	if err != nil {
		return nil, err
	}

	var response apihttp.RootResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	return codec.DecodeDigest(response.Root, len(response.Root)/2)
}

// Proof fetches a membership proof for the given leaf index.
func (c *HttpClient) Proof(index uint64) (*merkle.MembershipProof, error) {
	data, _ := json.Marshal(apihttp.ProofRequest{Index: &index})

	body, err := c.doReq("POST", "/get-proof", data)
	if err != nil {
		return nil, err
	}

	var response apihttp.ProofResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	return toMembershipProof(&response)
}

// Verify checks a fetched proof against a leaf and an expected root.
func (c *HttpClient) Verify(proof *merkle.MembershipProof, leaf, expectedRoot hashing.Digest) bool {
	return proof.Verify(leaf, expectedRoot)
}

func toMembershipProof(response *apihttp.ProofResponse) (*merkle.MembershipProof, error) {
	auditPath := make([]merkle.AuditNode, 0, len(response.Proof.Siblings))
	for _, sibling := range response.Proof.Siblings {
		hash, err := codec.DecodeDigest(sibling.Hash, len(sibling.Hash)/2)
		if err != nil {
			return nil, errors.Wrap(err, "decoding proof sibling")
		}
		auditPath = append(auditPath, merkle.AuditNode{
			Hash: hash,
			Side: merkle.Side(sibling.Side),
		})
	}
	return merkle.NewMembershipProof(response.Proof.LeafIndex, auditPath, hashing.NewKeccak256Hasher()), nil
}
