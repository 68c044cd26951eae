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

	"github.com/pkg/errors"

	"github.com/bbva/treelog/crypto/hashing"
	"github.com/bbva/treelog/storage"
	"github.com/bbva/treelog/util"
)

var (
	metaNumLeavesKey = []byte("num_leaves")
	metaRootKey      = []byte("root")
)

func leafKey(index uint64) []byte {
	return util.Uint64AsBytes(index)
}

func levelNodeKey(level uint32, index uint64) []byte {
	return append(util.Uint32AsBytes(level), util.Uint64AsBytes(index)...)
}

// DurableTree is the durable backend: leaves, inner levels and
// bookkeeping live in a transactional store, so every committed append
// survives a crash. The presence of the root entry in the meta table
// marks the levels table as fresh; appends delete it and clear the
// levels in the same transaction that writes the new leaves.
type DurableTree struct {
	mu        sync.RWMutex
	store     storage.Store
	hasher    hashing.Hasher
	maxLeaves uint64
}

func NewDurableTree(store storage.Store, hasher hashing.Hasher) *DurableTree {
	return &DurableTree{
		store:     store,
		hasher:    hasher,
		maxLeaves: DefaultMaxLeaves,
	}
}

// NewDurableTreeWithCapacity builds a tree that refuses to grow beyond
// maxLeaves leaves.
func NewDurableTreeWithCapacity(store storage.Store, hasher hashing.Hasher, maxLeaves uint64) *DurableTree {
	return &DurableTree{
		store:     store,
		hasher:    hasher,
		maxLeaves: maxLeaves,
	}
}

func (t *DurableTree) AddLeaf(leaf hashing.Digest) (uint64, error) {
	return t.AddLeaves([]hashing.Digest{leaf})
}

func (t *DurableTree) AddLeaves(leaves []hashing.Digest) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	txn, err := t.store.Begin(len(leaves) > 0)
	if err != nil {
		return 0, errors.Wrap(err, "beginning append transaction")
	}
	defer txn.Discard()

	size, err := treeSize(txn)
	if err != nil {
		return 0, errors.Wrap(err, "reading leaf count")
	}
	if len(leaves) == 0 {
		return size, nil
	}
	if size+uint64(len(leaves)) > t.maxLeaves {
		return 0, ErrTreeFull
	}

	for i, leaf := range leaves {
		if err := txn.Put(storage.LeavesTable, leafKey(size+uint64(i)), leaf); err != nil {
			return 0, errors.Wrap(err, "storing leaf")
		}
	}
	size += uint64(len(leaves))
	if err := txn.Put(storage.MetaTable, metaNumLeavesKey, util.Uint64AsBytes(size)); err != nil {
		return 0, errors.Wrap(err, "storing leaf count")
	}

	// The cached levels no longer match the leaves.
	if err := txn.Delete(storage.MetaTable, metaRootKey); err != nil {
		return 0, errors.Wrap(err, "invalidating root")
	}
	if err := txn.Clear(storage.LevelsTable); err != nil {
		return 0, errors.Wrap(err, "clearing levels")
	}

	if err := txn.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing append transaction")
	}
	return size, nil
}

func (t *DurableTree) NumLeaves() (uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	txn, err := t.store.Begin(false)
	if err != nil {
		return 0, errors.Wrap(err, "beginning read transaction")
	}
	defer txn.Discard()

	size, err := treeSize(txn)
	if err != nil {
		return 0, errors.Wrap(err, "reading leaf count")
	}
	return size, nil
}

func (t *DurableTree) Root() (hashing.Digest, error) {
	t.mu.RLock()
	root, err := t.freshRoot()
	t.mu.RUnlock()
	if err == nil || errors.Cause(err) != storage.ErrKeyNotFound {
		return root, err
	}

	// The levels are stale. Upgrade to the write lock and rebuild.
	t.mu.Lock()
	defer t.mu.Unlock()

	levels, _, err := t.warmup()
	if err != nil {
		return nil, err
	}
	if levels != nil {
		return levels[len(levels)-1][0], nil
	}
	// Someone else rebuilt while we waited for the lock.
	root, err = t.freshRoot()
	if err != nil {
		return nil, errors.Wrap(err, "reading root after warmup")
	}
	return root, nil
}

func (t *DurableTree) ProveMembership(index uint64) (*MembershipProof, error) {
	t.mu.RLock()
	proof, err := t.freshProof(index)
	t.mu.RUnlock()
	if err == nil || errors.Cause(err) != storage.ErrKeyNotFound {
		return proof, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	levels, size, err := t.warmup()
	if err != nil {
		return nil, err
	}
	if index >= size {
		return nil, ErrIndexOutOfRange
	}
	if levels != nil {
		return NewMembershipProof(index, auditPath(levels, index), t.hasher), nil
	}
	proof, err = t.freshProof(index)
	if err != nil {
		return nil, errors.Wrap(err, "reading proof after warmup")
	}
	return proof, nil
}

// freshRoot returns the cached root, ErrEmptyTree, or an error whose
// cause is storage.ErrKeyNotFound when the levels are stale. Callers
// must hold at least the read lock.
func (t *DurableTree) freshRoot() (hashing.Digest, error) {
	txn, err := t.store.Begin(false)
	if err != nil {
		return nil, errors.Wrap(err, "beginning read transaction")
	}
	defer txn.Discard()

	size, err := treeSize(txn)
	if err != nil {
		return nil, errors.Wrap(err, "reading leaf count")
	}
	if size == 0 {
		return nil, ErrEmptyTree
	}
	root, err := txn.Get(storage.MetaTable, metaRootKey)
	if err != nil {
		return nil, errors.Wrap(err, "reading cached root")
	}
	return root, nil
}

// freshProof builds a proof from the persisted levels. It fails with a
// storage.ErrKeyNotFound cause when the levels are stale. Callers must
// hold at least the read lock.
func (t *DurableTree) freshProof(index uint64) (*MembershipProof, error) {
	txn, err := t.store.Begin(false)
	if err != nil {
		return nil, errors.Wrap(err, "beginning read transaction")
	}
	defer txn.Discard()

	size, err := treeSize(txn)
	if err != nil {
		return nil, errors.Wrap(err, "reading leaf count")
	}
	if size == 0 {
		return nil, ErrEmptyTree
	}
	if index >= size {
		return nil, ErrIndexOutOfRange
	}
	if _, err := txn.Get(storage.MetaTable, metaRootKey); err != nil {
		return nil, errors.Wrap(err, "checking levels freshness")
	}

	lengths := levelLengths(size)
	path := make([]AuditNode, 0, len(lengths)-1)
	pos := index
	for level, length := range lengths[:len(lengths)-1] {
		sibling := pos ^ 1
		if sibling >= length {
			sibling = pos
		}
		var hash []byte
		if level == 0 {
			hash, err = txn.Get(storage.LeavesTable, leafKey(sibling))
		} else {
			hash, err = txn.Get(storage.LevelsTable, levelNodeKey(uint32(level), sibling))
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading sibling at level %d", level)
		}
		side := Left
		if pos%2 == 0 {
			side = Right
		}
		path = append(path, AuditNode{Hash: hash, Side: side})
		pos >>= 1
	}
	return NewMembershipProof(index, path, t.hasher), nil
}

// warmup rebuilds and persists every level when the cache is stale. It
// returns the materialized levels, or nil levels when another writer
// already rebuilt them. Callers must hold the write lock.
func (t *DurableTree) warmup() ([][]hashing.Digest, uint64, error) {
	txn, err := t.store.Begin(true)
	if err != nil {
		return nil, 0, errors.Wrap(err, "beginning warmup transaction")
	}
	defer txn.Discard()

	size, err := treeSize(txn)
	if err != nil {
		return nil, 0, errors.Wrap(err, "reading leaf count")
	}
	if size == 0 {
		return nil, 0, ErrEmptyTree
	}
	if _, err := txn.Get(storage.MetaTable, metaRootKey); err == nil {
		return nil, size, nil
	} else if errors.Cause(err) != storage.ErrKeyNotFound {
		return nil, 0, errors.Wrap(err, "checking levels freshness")
	}

	leaves := make([]hashing.Digest, size)
	for i := uint64(0); i < size; i++ {
		leaf, err := txn.Get(storage.LeavesTable, leafKey(i))
		if err != nil {
			return nil, 0, errors.Wrapf(err, "reading leaf %d", i)
		}
		leaves[i] = leaf
	}

	levels := buildLevels(t.hasher, leaves)
	for level := 1; level < len(levels); level++ {
		for index, hash := range levels[level] {
			if err := txn.Put(storage.LevelsTable, levelNodeKey(uint32(level), uint64(index)), hash); err != nil {
				return nil, 0, errors.Wrap(err, "storing level node")
			}
		}
	}
	root := levels[len(levels)-1][0]
	if err := txn.Put(storage.MetaTable, metaRootKey, root); err != nil {
		return nil, 0, errors.Wrap(err, "storing root")
	}
	if err := txn.Commit(); err != nil {
		return nil, 0, errors.Wrap(err, "committing warmup transaction")
	}
	return levels, size, nil
}

func treeSize(txn storage.Txn) (uint64, error) {
	value, err := txn.Get(storage.MetaTable, metaNumLeavesKey)
	if err == storage.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return util.BytesAsUint64(value), nil
}
