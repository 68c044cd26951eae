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

// Package bplus implements the storage contract on an in-memory B+tree.
// Nothing survives a close, so it serves tests and volatile deployments.
package bplus

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/bbva/treelog/storage"
)

type BPlusTreeStore struct {
	writer sync.Mutex   // serializes writable transactions
	mu     sync.RWMutex // guards db swaps on commit
	db     *btree.BTree
}

func NewBPlusTreeStore() *BPlusTreeStore {
	return &BPlusTreeStore{db: btree.New(2)}
}

// Begin relies on btree.Clone copy-on-write snapshots: writers mutate a
// private clone that replaces the visible tree on Commit, readers keep
// iterating their own clone untouched.
func (s *BPlusTreeStore) Begin(writable bool) (storage.Txn, error) {
	if writable {
		s.writer.Lock()
		s.mu.RLock()
		snapshot := s.db.Clone()
		s.mu.RUnlock()
		return &bplusTxn{store: s, db: snapshot, writable: true}, nil
	}
	s.mu.RLock()
	snapshot := s.db.Clone()
	s.mu.RUnlock()
	return &bplusTxn{store: s, db: snapshot}, nil
}

func (s *BPlusTreeStore) Close() error {
	s.mu.Lock()
	s.db.Clear(false)
	s.mu.Unlock()
	return nil
}

type KVItem struct {
	Key, Value []byte
}

func (p KVItem) Less(b btree.Item) bool {
	return bytes.Compare(p.Key, b.(KVItem).Key) < 0
}

type bplusTxn struct {
	store    *BPlusTreeStore
	db       *btree.BTree
	writable bool
	done     bool
}

func (t *bplusTxn) Get(table storage.Table, key []byte) ([]byte, error) {
	k := append([]byte{table.Prefix()}, key...)
	item := t.db.Get(KVItem{k, nil})
	if item == nil {
		return nil, storage.ErrKeyNotFound
	}
	return item.(KVItem).Value, nil
}

func (t *bplusTxn) Put(table storage.Table, key, value []byte) error {
	if !t.writable {
		return storage.ErrTxNotWritable
	}
	k := append([]byte{table.Prefix()}, key...)
	t.db.ReplaceOrInsert(KVItem{k, value})
	return nil
}

func (t *bplusTxn) Delete(table storage.Table, key []byte) error {
	if !t.writable {
		return storage.ErrTxNotWritable
	}
	k := append([]byte{table.Prefix()}, key...)
	t.db.Delete(KVItem{k, nil})
	return nil
}

func (t *bplusTxn) Clear(table storage.Table) error {
	if !t.writable {
		return storage.ErrTxNotWritable
	}
	var keys [][]byte
	t.ascend(table, func(i KVItem) bool {
		keys = append(keys, i.Key)
		return true
	})
	for _, k := range keys {
		t.db.Delete(KVItem{k, nil})
	}
	return nil
}

func (t *bplusTxn) ForEach(table storage.Table, fn func(key, value []byte) error) error {
	var ferr error
	t.ascend(table, func(i KVItem) bool {
		if err := fn(i.Key[1:], i.Value); err != nil {
			ferr = err
			return false
		}
		return true
	})
	return ferr
}

func (t *bplusTxn) ascend(table storage.Table, fn func(i KVItem) bool) {
	prefix := table.Prefix()
	t.db.AscendGreaterOrEqual(KVItem{[]byte{prefix}, nil}, func(i btree.Item) bool {
		item := i.(KVItem)
		if len(item.Key) == 0 || item.Key[0] != prefix {
			return false
		}
		return fn(item)
	})
}

func (t *bplusTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if !t.writable {
		return nil
	}
	t.store.mu.Lock()
	t.store.db = t.db
	t.store.mu.Unlock()
	t.store.writer.Unlock()
	return nil
}

func (t *bplusTxn) Discard() {
	if t.done {
		return
	}
	t.done = true
	if t.writable {
		t.store.writer.Unlock()
	}
}
