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

package merkle

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bbva/treelog/crypto/hashing"
	"github.com/bbva/treelog/storage"
	"github.com/bbva/treelog/storage/bolt"
	"github.com/bbva/treelog/storage/bplus"
)

func TestDurableTreeSurvivesReopen(t *testing.T) {
	dir, err := ioutil.TempDir("", "treelog-durable-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "tree.db")

	store, err := bolt.NewBoltStore(path)
	require.NoError(t, err)

	tree := NewDurableTree(store, hashing.NewKeccak256Hasher())
	_, err = tree.AddLeaves([]hashing.Digest{leaf("a"), leaf("b"), leaf("c")})
	require.NoError(t, err)

	rootBefore, err := tree.Root()
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = bolt.NewBoltStore(path)
	require.NoError(t, err)
	defer store.Close()

	reopened := NewDurableTree(store, hashing.NewKeccak256Hasher())

	count, err := reopened.NumLeaves()
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	rootAfter, err := reopened.Root()
	require.NoError(t, err)
	require.Equal(t, rootBefore, rootAfter)

	for index := uint64(0); index < 3; index++ {
		proof, err := reopened.ProveMembership(index)
		require.NoError(t, err)
		require.True(t, proof.Verify([]hashing.Digest{leaf("a"), leaf("b"), leaf("c")}[index], rootAfter))
	}
}

func TestDurableTreeReopenBeforeWarmup(t *testing.T) {
	dir, err := ioutil.TempDir("", "treelog-warmup-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "tree.db")

	store, err := bolt.NewBoltStore(path)
	require.NoError(t, err)

	// Append without ever asking for the root, so the levels stay stale
	// on disk.
	tree := NewDurableTree(store, hashing.NewKeccak256Hasher())
	_, err = tree.AddLeaves([]hashing.Digest{leaf("a"), leaf("b"), leaf("c")})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = bolt.NewBoltStore(path)
	require.NoError(t, err)
	defer store.Close()

	reopened := NewDurableTree(store, hashing.NewKeccak256Hasher())
	proof, err := reopened.ProveMembership(2)
	require.NoError(t, err)

	root, err := reopened.Root()
	require.NoError(t, err)
	require.True(t, proof.Verify(leaf("c"), root))
}

func TestDurableTreeDiscardedWritesLeaveNoTrace(t *testing.T) {
	store := bplus.NewBPlusTreeStore()
	tree := NewDurableTree(store, hashing.NewKeccak256Hasher())

	_, err := tree.AddLeaves([]hashing.Digest{leaf("a"), leaf("b")})
	require.NoError(t, err)
	rootBefore, err := tree.Root()
	require.NoError(t, err)

	// An interrupted write transaction must not be visible afterwards.
	txn, err := store.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Put(storage.LeavesTable, leafKey(2), leaf("x")))
	require.NoError(t, txn.Put(storage.MetaTable, metaNumLeavesKey, []byte{3, 0, 0, 0, 0, 0, 0, 0}))
	txn.Discard()

	count, err := tree.NumLeaves()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	rootAfter, err := tree.Root()
	require.NoError(t, err)
	require.Equal(t, rootBefore, rootAfter)
}

func TestDurableTreeRootInvalidationOnAppend(t *testing.T) {
	tree := NewDurableTree(bplus.NewBPlusTreeStore(), hashing.NewKeccak256Hasher())

	_, err := tree.AddLeaf(leaf("a"))
	require.NoError(t, err)
	first, err := tree.Root()
	require.NoError(t, err)
	require.Equal(t, leaf("a"), first)

	// The next append must retire the cached root and levels.
	_, err = tree.AddLeaf(leaf("b"))
	require.NoError(t, err)
	second, err := tree.Root()
	require.NoError(t, err)
	require.Equal(t, hasher.Do(leaf("a"), leaf("b")), second)
	require.NotEqual(t, first, second)
}
