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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bbva/treelog/crypto/hashing"
	"github.com/bbva/treelog/storage/bplus"
)

var hasher = hashing.NewKeccak256Hasher()

func leaf(input string) hashing.Digest {
	return hasher.Do([]byte(input))
}

// backends builds one tree per implementation so that every contract
// test runs against both.
func backends() map[string]Tree {
	return map[string]Tree{
		"memory":  NewMemoryTree(hashing.NewKeccak256Hasher()),
		"durable": NewDurableTree(bplus.NewBPlusTreeStore(), hashing.NewKeccak256Hasher()),
	}
}

func boundedBackends(maxLeaves uint64) map[string]Tree {
	return map[string]Tree{
		"memory":  NewMemoryTreeWithCapacity(hashing.NewKeccak256Hasher(), maxLeaves),
		"durable": NewDurableTreeWithCapacity(bplus.NewBPlusTreeStore(), hashing.NewKeccak256Hasher(), maxLeaves),
	}
}

func TestEmptyTree(t *testing.T) {
	for name, tree := range backends() {
		t.Run(name, func(t *testing.T) {
			count, err := tree.NumLeaves()
			require.NoError(t, err)
			require.Equal(t, uint64(0), count)

			_, err = tree.Root()
			require.Equal(t, ErrEmptyTree, err)

			_, err = tree.ProveMembership(0)
			require.Equal(t, ErrEmptyTree, err)
		})
	}
}

func TestSingleLeafRootIsTheLeaf(t *testing.T) {
	for name, tree := range backends() {
		t.Run(name, func(t *testing.T) {
			count, err := tree.AddLeaf(leaf("a"))
			require.NoError(t, err)
			require.Equal(t, uint64(1), count)

			root, err := tree.Root()
			require.NoError(t, err)
			require.Equal(t, leaf("a"), root)
		})
	}
}

func TestTwoLeavesRoot(t *testing.T) {
	for name, tree := range backends() {
		t.Run(name, func(t *testing.T) {
			_, err := tree.AddLeaves([]hashing.Digest{leaf("a"), leaf("b")})
			require.NoError(t, err)

			root, err := tree.Root()
			require.NoError(t, err)
			require.Equal(t, hasher.Do(leaf("a"), leaf("b")), root)
		})
	}
}

func TestOddLevelPromotesLastNode(t *testing.T) {
	// With three leaves the tail of every odd level pairs with itself.
	expected := hasher.Do(
		hasher.Do(leaf("a"), leaf("b")),
		hasher.Do(leaf("c"), leaf("c")),
	)

	for name, tree := range backends() {
		t.Run(name, func(t *testing.T) {
			_, err := tree.AddLeaves([]hashing.Digest{leaf("a"), leaf("b"), leaf("c")})
			require.NoError(t, err)

			root, err := tree.Root()
			require.NoError(t, err)
			require.Equal(t, expected, root)
		})
	}
}

func TestFiveLeavesRoot(t *testing.T) {
	l01 := hasher.Do(leaf("a"), leaf("b"))
	l11 := hasher.Do(leaf("c"), leaf("d"))
	l21 := hasher.Do(leaf("e"), leaf("e"))
	l02 := hasher.Do(l01, l11)
	l12 := hasher.Do(l21, l21)
	expected := hasher.Do(l02, l12)

	for name, tree := range backends() {
		t.Run(name, func(t *testing.T) {
			_, err := tree.AddLeaves([]hashing.Digest{
				leaf("a"), leaf("b"), leaf("c"), leaf("d"), leaf("e"),
			})
			require.NoError(t, err)

			root, err := tree.Root()
			require.NoError(t, err)
			require.Equal(t, expected, root)
		})
	}
}

func TestBatchMatchesSequentialAppends(t *testing.T) {
	leaves := []hashing.Digest{leaf("a"), leaf("b"), leaf("c"), leaf("d"), leaf("e")}

	for name := range backends() {
		t.Run(name, func(t *testing.T) {
			batched := backends()[name]
			sequential := backends()[name]

			_, err := batched.AddLeaves(leaves)
			require.NoError(t, err)
			for _, l := range leaves {
				_, err := sequential.AddLeaf(l)
				require.NoError(t, err)
			}

			batchedRoot, err := batched.Root()
			require.NoError(t, err)
			sequentialRoot, err := sequential.Root()
			require.NoError(t, err)
			require.Equal(t, batchedRoot, sequentialRoot)
		})
	}
}

func TestEmptyBatchIsANoOp(t *testing.T) {
	for name, tree := range backends() {
		t.Run(name, func(t *testing.T) {
			_, err := tree.AddLeaf(leaf("a"))
			require.NoError(t, err)
			rootBefore, err := tree.Root()
			require.NoError(t, err)

			count, err := tree.AddLeaves([]hashing.Digest{})
			require.NoError(t, err)
			require.Equal(t, uint64(1), count)

			rootAfter, err := tree.Root()
			require.NoError(t, err)
			require.Equal(t, rootBefore, rootAfter)
		})
	}
}

func TestProofsVerifyForEverySize(t *testing.T) {
	for name := range backends() {
		t.Run(name, func(t *testing.T) {
			tree := backends()[name]
			var leaves []hashing.Digest

			for n := 1; n <= 9; n++ {
				l := leaf(fmt.Sprintf("leaf-%d", n))
				leaves = append(leaves, l)
				_, err := tree.AddLeaf(l)
				require.NoError(t, err)

				root, err := tree.Root()
				require.NoError(t, err)

				for index := uint64(0); index < uint64(n); index++ {
					proof, err := tree.ProveMembership(index)
					require.NoError(t, err)
					require.Equal(t, index, proof.LeafIndex)
					require.Truef(t, proof.Verify(leaves[index], root),
						"Proof for index %d of %d leaves must verify", index, n)
				}
			}
		})
	}
}

func TestProofRejectsTamperedLeaf(t *testing.T) {
	for name, tree := range backends() {
		t.Run(name, func(t *testing.T) {
			_, err := tree.AddLeaves([]hashing.Digest{leaf("a"), leaf("b"), leaf("c")})
			require.NoError(t, err)

			root, err := tree.Root()
			require.NoError(t, err)

			proof, err := tree.ProveMembership(1)
			require.NoError(t, err)

			require.True(t, proof.Verify(leaf("b"), root))
			require.False(t, proof.Verify(leaf("x"), root))
			require.False(t, proof.Verify(leaf("b"), leaf("a")))
		})
	}
}

func TestProofSidesAndSelfSibling(t *testing.T) {
	for name, tree := range backends() {
		t.Run(name, func(t *testing.T) {
			_, err := tree.AddLeaves([]hashing.Digest{leaf("a"), leaf("b"), leaf("c")})
			require.NoError(t, err)

			// Index 2 sits alone at the tail: its leaf-level sibling is
			// itself on the right, then H(a|b) joins from the left.
			proof, err := tree.ProveMembership(2)
			require.NoError(t, err)
			require.Len(t, proof.AuditPath, 2)

			require.Equal(t, leaf("c"), proof.AuditPath[0].Hash)
			require.Equal(t, Right, proof.AuditPath[0].Side)

			require.Equal(t, hasher.Do(leaf("a"), leaf("b")), proof.AuditPath[1].Hash)
			require.Equal(t, Left, proof.AuditPath[1].Side)

			// Index 1 pairs with index 0 on the left.
			proof, err = tree.ProveMembership(1)
			require.NoError(t, err)
			require.Equal(t, leaf("a"), proof.AuditPath[0].Hash)
			require.Equal(t, Left, proof.AuditPath[0].Side)
		})
	}
}

func TestProveMembershipIndexOutOfRange(t *testing.T) {
	for name, tree := range backends() {
		t.Run(name, func(t *testing.T) {
			_, err := tree.AddLeaves([]hashing.Digest{leaf("a"), leaf("b"), leaf("c")})
			require.NoError(t, err)

			_, err = tree.ProveMembership(3)
			require.Equal(t, ErrIndexOutOfRange, err)

			_, err = tree.ProveMembership(1 << 40)
			require.Equal(t, ErrIndexOutOfRange, err)
		})
	}
}

func TestTreeFullRejectsWholeBatch(t *testing.T) {
	for name, tree := range boundedBackends(4) {
		t.Run(name, func(t *testing.T) {
			_, err := tree.AddLeaves([]hashing.Digest{leaf("a"), leaf("b"), leaf("c")})
			require.NoError(t, err)
			rootBefore, err := tree.Root()
			require.NoError(t, err)

			// Two more leaves exceed the capacity: nothing is appended.
			_, err = tree.AddLeaves([]hashing.Digest{leaf("d"), leaf("e")})
			require.Equal(t, ErrTreeFull, err)

			count, err := tree.NumLeaves()
			require.NoError(t, err)
			require.Equal(t, uint64(3), count)

			rootAfter, err := tree.Root()
			require.NoError(t, err)
			require.Equal(t, rootBefore, rootAfter)

			// The remaining slot still accepts a single leaf.
			count, err = tree.AddLeaf(leaf("d"))
			require.NoError(t, err)
			require.Equal(t, uint64(4), count)

			_, err = tree.AddLeaf(leaf("e"))
			require.Equal(t, ErrTreeFull, err)
		})
	}
}

func TestBackendsComputeIdenticalRootsAndProofs(t *testing.T) {
	memory := NewMemoryTree(hashing.NewKeccak256Hasher())
	durable := NewDurableTree(bplus.NewBPlusTreeStore(), hashing.NewKeccak256Hasher())

	var leaves []hashing.Digest
	for i := 0; i < 20; i++ {
		leaves = append(leaves, leaf(fmt.Sprintf("event-%d", i)))
	}

	_, err := memory.AddLeaves(leaves)
	require.NoError(t, err)
	_, err = durable.AddLeaves(leaves)
	require.NoError(t, err)

	memoryRoot, err := memory.Root()
	require.NoError(t, err)
	durableRoot, err := durable.Root()
	require.NoError(t, err)
	require.Equal(t, memoryRoot, durableRoot)

	for index := uint64(0); index < uint64(len(leaves)); index++ {
		memoryProof, err := memory.ProveMembership(index)
		require.NoError(t, err)
		durableProof, err := durable.ProveMembership(index)
		require.NoError(t, err)

		require.Equal(t, memoryProof.LeafIndex, durableProof.LeafIndex)
		require.Equal(t, memoryProof.AuditPath, durableProof.AuditPath)
	}
}

func TestConcurrentAppendsAndQueries(t *testing.T) {
	for name, tree := range backends() {
		t.Run(name, func(t *testing.T) {
			const writers = 4
			const perWriter = 25

			var wg sync.WaitGroup
			wg.Add(writers * 2)

			for w := 0; w < writers; w++ {
				go func(w int) {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						_, err := tree.AddLeaf(leaf(fmt.Sprintf("w%d-%d", w, i)))
						require.NoError(t, err)
					}
				}(w)

				go func() {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						count, err := tree.NumLeaves()
						require.NoError(t, err)
						if count == 0 {
							continue
						}
						root, err := tree.Root()
						require.NoError(t, err)
						require.NotEmpty(t, root)
					}
				}()
			}
			wg.Wait()

			count, err := tree.NumLeaves()
			require.NoError(t, err)
			require.Equal(t, uint64(writers*perWriter), count)
		})
	}
}
