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

package client

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bbva/treelog/api/apihttp"
	"github.com/bbva/treelog/crypto/hashing"
	"github.com/bbva/treelog/merkle"
)

var hasher = hashing.NewKeccak256Hasher()

func leaf(input string) hashing.Digest {
	return hasher.Do([]byte(input))
}

func setupServer() (*httptest.Server, func()) {
	memory := merkle.NewMemoryTree(hashing.NewKeccak256Hasher())
	durable := merkle.NewMemoryTree(hashing.NewKeccak256Hasher())
	server := httptest.NewServer(apihttp.NewApiHttp(memory, durable))
	return server, server.Close
}

func TestHealthCheck(t *testing.T) {
	server, closeF := setupServer()
	defer closeF()

	client := NewHttpClient(server.URL, "")
	require.NoError(t, client.HealthCheck())
}

func TestAddLeafAndQuery(t *testing.T) {
	server, closeF := setupServer()
	defer closeF()

	client := NewHttpClient(server.URL, "")

	count, err := client.AddLeaf(leaf("a"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	count, err = client.AddLeaves([]hashing.Digest{leaf("b"), leaf("c")})
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	count, err = client.NumLeaves()
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	root, err := client.Root()
	require.NoError(t, err)
	require.Equal(t,
		hasher.Do(hasher.Do(leaf("a"), leaf("b")), hasher.Do(leaf("c"), leaf("c"))),
		root)
}

func TestProofRoundTrip(t *testing.T) {
	server, closeF := setupServer()
	defer closeF()

	client := NewHttpClient(server.URL, "")
	_, err := client.AddLeaves([]hashing.Digest{leaf("a"), leaf("b"), leaf("c")})
	require.NoError(t, err)

	root, err := client.Root()
	require.NoError(t, err)

	for index, input := range []string{"a", "b", "c"} {
		proof, err := client.Proof(uint64(index))
		require.NoError(t, err)
		require.True(t, client.Verify(proof, leaf(input), root))
		require.False(t, client.Verify(proof, leaf("x"), root))
	}
}

func TestPrefixSelectsBackend(t *testing.T) {
	server, closeF := setupServer()
	defer closeF()

	memoryClient := NewHttpClient(server.URL, "")
	durableClient := NewHttpClient(server.URL, "/lmdb")

	_, err := memoryClient.AddLeaf(leaf("a"))
	require.NoError(t, err)
	_, err = durableClient.AddLeaves([]hashing.Digest{leaf("b"), leaf("c")})
	require.NoError(t, err)

	memoryCount, err := memoryClient.NumLeaves()
	require.NoError(t, err)
	require.Equal(t, uint64(1), memoryCount)

	durableCount, err := durableClient.NumLeaves()
	require.NoError(t, err)
	require.Equal(t, uint64(2), durableCount)
}

func TestServerErrorsSurfaceTheirMessage(t *testing.T) {
	server, closeF := setupServer()
	defer closeF()

	client := NewHttpClient(server.URL, "")

	_, err := client.Root()
	require.Error(t, err)
	require.Contains(t, err.Error(), "merkle tree is empty")

	_, err = client.Proof(42)
	require.Error(t, err)
	require.Contains(t, err.Error(), "merkle tree is empty")
}
