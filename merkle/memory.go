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
	"sync"

	"github.com/bbva/treelog/crypto/hashing"
)

// MemoryTree is the volatile backend: leaves live in a slice and every
// level is cached in memory. Appends only mark the cache dirty, the
// levels are rebuilt lazily on the next root or proof request.
type MemoryTree struct {
	mu        sync.RWMutex
	hasher    hashing.Hasher
	maxLeaves uint64
	leaves    []hashing.Digest
	levels    [][]hashing.Digest
	dirty     bool
}

func NewMemoryTree(hasher hashing.Hasher) *MemoryTree {
	return &MemoryTree{
		hasher:    hasher,
		maxLeaves: DefaultMaxLeaves,
	}
}

// NewMemoryTreeWithCapacity builds a tree that refuses to grow beyond
// maxLeaves leaves.
func NewMemoryTreeWithCapacity(hasher hashing.Hasher, maxLeaves uint64) *MemoryTree {
	return &MemoryTree{
		hasher:    hasher,
		maxLeaves: maxLeaves,
	}
}

func (t *MemoryTree) AddLeaf(leaf hashing.Digest) (uint64, error) {
	return t.AddLeaves([]hashing.Digest{leaf})
}

func (t *MemoryTree) AddLeaves(leaves []hashing.Digest) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if uint64(len(t.leaves))+uint64(len(leaves)) > t.maxLeaves {
		return 0, ErrTreeFull
	}
	for _, leaf := range leaves {
		stored := make(hashing.Digest, len(leaf))
		copy(stored, leaf)
		t.leaves = append(t.leaves, stored)
	}
	if len(leaves) > 0 {
		t.dirty = true
	}
	return uint64(len(t.leaves)), nil
}

func (t *MemoryTree) NumLeaves() (uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return uint64(len(t.leaves)), nil
}

func (t *MemoryTree) Root() (hashing.Digest, error) {
	t.mu.RLock()
	if len(t.leaves) == 0 {
		t.mu.RUnlock()
		return nil, ErrEmptyTree
	}
	if !t.dirty {
		root := t.root()
		t.mu.RUnlock()
		return root, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.leaves) == 0 {
		return nil, ErrEmptyTree
	}
	t.rebuild()
	return t.root(), nil
}

func (t *MemoryTree) ProveMembership(index uint64) (*MembershipProof, error) {
	t.mu.RLock()
	if err := t.checkIndex(index); err != nil {
		t.mu.RUnlock()
		return nil, err
	}
	if !t.dirty {
		proof := NewMembershipProof(index, auditPath(t.levels, index), t.hasher)
		t.mu.RUnlock()
		return proof, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkIndex(index); err != nil {
		return nil, err
	}
	t.rebuild()
	return NewMembershipProof(index, auditPath(t.levels, index), t.hasher), nil
}

func (t *MemoryTree) checkIndex(index uint64) error {
	if len(t.leaves) == 0 {
		return ErrEmptyTree
	}
	if index >= uint64(len(t.leaves)) {
		return ErrIndexOutOfRange
	}
	return nil
}

// rebuild recomputes every level from the leaves. Callers must hold the
// write lock.
func (t *MemoryTree) rebuild() {
	if !t.dirty {
		return
	}
	t.levels = buildLevels(t.hasher, t.leaves)
	t.dirty = false
}

func (t *MemoryTree) root() hashing.Digest {
	top := t.levels[len(t.levels)-1]
	root := make(hashing.Digest, len(top[0]))
	copy(root, top[0])
	return root
}
