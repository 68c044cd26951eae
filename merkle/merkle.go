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

// Package merkle implements an append-only binary Merkle tree with
// incremental roots and membership proofs. Two implementations share
// the same contract: a volatile in-memory tree and a durable tree
// persisted through a storage engine.
package merkle

import (
	"errors"

	"github.com/bbva/treelog/crypto/hashing"
)

var (
	// ErrEmptyTree is returned when a root or a proof is requested
	// from a tree without leaves.
	ErrEmptyTree = errors.New("merkle tree is empty")

	// ErrIndexOutOfRange is returned when a proof is requested for a
	// leaf index beyond the current leaf count.
	ErrIndexOutOfRange = errors.New("leaf index out of range")

	// ErrTreeFull is returned when an append would exceed the leaf
	// capacity of the tree. Nothing is appended.
	ErrTreeFull = errors.New("merkle tree is full")
)

// DefaultMaxLeaves caps the number of leaves a tree accepts.
const DefaultMaxLeaves = uint64(1) << 32

// Tree is the contract shared by every backend. All methods are safe
// for concurrent use.
type Tree interface {

	// AddLeaf appends a single leaf digest and returns the new number
	// of leaves.
	AddLeaf(leaf hashing.Digest) (uint64, error)

	// AddLeaves appends a batch of leaf digests atomically, in order,
	// and returns the new number of leaves. An empty batch is a no-op.
	AddLeaves(leaves []hashing.Digest) (uint64, error)

	// NumLeaves returns the current number of leaves.
	NumLeaves() (uint64, error)

	// Root returns the current root digest, or ErrEmptyTree.
	Root() (hashing.Digest, error)

	// ProveMembership returns a membership proof for the leaf at the
	// given index against the current root.
	ProveMembership(index uint64) (*MembershipProof, error)
}

// levelLengths returns the node count of every level of a tree with
// numLeaves leaves, bottom-up, ending with the root level of length 1.
func levelLengths(numLeaves uint64) []uint64 {
	lengths := []uint64{numLeaves}
	for l := numLeaves; l > 1; l = (l + 1) / 2 {
		lengths = append(lengths, (l+1)/2)
	}
	return lengths
}

// buildLevels materializes every level of the tree bottom-up. Odd levels
// promote their last node by pairing it with itself.
func buildLevels(hasher hashing.Hasher, leaves []hashing.Digest) [][]hashing.Digest {
	levels := [][]hashing.Digest{leaves}
	current := leaves
	for len(current) > 1 {
		next := make([]hashing.Digest, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := left
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, hasher.Do(left, right))
		}
		levels = append(levels, next)
		current = next
	}
	return levels
}

// auditPath walks the materialized levels collecting the sibling of the
// leaf's ancestor at every level below the root. A node without sibling
// pairs with itself.
func auditPath(levels [][]hashing.Digest, index uint64) []AuditNode {
	path := make([]AuditNode, 0, len(levels)-1)
	pos := index
	for _, level := range levels[:len(levels)-1] {
		sibling := pos ^ 1
		if sibling >= uint64(len(level)) {
			sibling = pos
		}
		side := Left
		if pos%2 == 0 {
			side = Right
		}
		path = append(path, AuditNode{Hash: level[sibling], Side: side})
		pos >>= 1
	}
	return path
}
