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

// Package bolt implements the storage contract on top of bbolt, a
// memory-mapped B+tree database with serializable ACID transactions.
// It is the default durable engine.
package bolt

import (
	b "github.com/coreos/bbolt"
	"github.com/pkg/errors"

	"github.com/bbva/treelog/storage"
)

type BoltStore struct {
	db *b.DB
}

// NewBoltStore opens or creates the database file at path and provisions
// one bucket per table.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := b.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt database %s", path)
	}

	err = db.Update(func(tx *b.Tx) error {
		for _, table := range storage.Tables {
			if _, err := tx.CreateBucketIfNotExists([]byte(table.String())); err != nil {
				return errors.Wrapf(err, "creating bucket %s", table)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Begin(writable bool) (storage.Txn, error) {
	tx, err := s.db.Begin(writable)
	if err != nil {
		return nil, errors.Wrap(err, "beginning bolt transaction")
	}
	return &boltTxn{tx: tx, writable: writable}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltTxn struct {
	tx       *b.Tx
	writable bool
	done     bool
}

func (t *boltTxn) Get(table storage.Table, key []byte) ([]byte, error) {
	v := t.tx.Bucket([]byte(table.String())).Get(key)
	if v == nil {
		return nil, storage.ErrKeyNotFound
	}
	value := make([]byte, len(v))
	copy(value, v)
	return value, nil
}

func (t *boltTxn) Put(table storage.Table, key, value []byte) error {
	if !t.writable {
		return storage.ErrTxNotWritable
	}
	return t.tx.Bucket([]byte(table.String())).Put(key, value)
}

func (t *boltTxn) Delete(table storage.Table, key []byte) error {
	if !t.writable {
		return storage.ErrTxNotWritable
	}
	return t.tx.Bucket([]byte(table.String())).Delete(key)
}

func (t *boltTxn) Clear(table storage.Table) error {
	if !t.writable {
		return storage.ErrTxNotWritable
	}
	name := []byte(table.String())
	if err := t.tx.DeleteBucket(name); err != nil {
		return err
	}
	_, err := t.tx.CreateBucket(name)
	return err
}

func (t *boltTxn) ForEach(table storage.Table, fn func(key, value []byte) error) error {
	return t.tx.Bucket([]byte(table.String())).ForEach(fn)
}

func (t *boltTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if !t.writable {
		return t.tx.Rollback()
	}
	return t.tx.Commit()
}

func (t *boltTxn) Discard() {
	if t.done {
		return
	}
	t.done = true
	_ = t.tx.Rollback()
}
