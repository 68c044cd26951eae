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

// Package badger implements the storage contract on top of the Badger
// LSM database. It is the alternative durable engine.
package badger

import (
	"time"

	b "github.com/dgraph-io/badger"
	bo "github.com/dgraph-io/badger/options"
	"github.com/pkg/errors"

	"github.com/bbva/treelog/log"
	"github.com/bbva/treelog/storage"
)

type BadgerStore struct {
	db                  *b.DB
	vlogTicker          *time.Ticker // runs every 1m, check size of vlog and run GC conditionally.
	mandatoryVlogTicker *time.Ticker // runs every 10m, we always run vlog GC.
}

// Options contains all the configuration used to open the Badger db
type Options struct {
	// Path is the directory path to the Badger db to use.
	Path string

	// BadgerOptions contains any specific Badger options you might
	// want to specify.
	BadgerOptions *b.Options

	// ValueLogGC enables a periodic goroutine that does a garbage
	// collection of the value log while the underlying Badger is online.
	ValueLogGC bool

	// GCInterval is the interval between conditionally running the garbage
	// collection process, based on the size of the vlog. By default, runs every 1m.
	GCInterval time.Duration

	// MandatoryGCInterval is the interval between mandatory runs of the
	// garbage collection process. By default, runs every 10m.
	MandatoryGCInterval time.Duration

	// GCThreshold sets threshold in bytes for the vlog size to be included in the
	// garbage collection cycle. By default, 1GB.
	GCThreshold int64
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	return NewBadgerStoreOpts(&Options{Path: path})
}

func NewBadgerStoreOpts(opts *Options) (*BadgerStore, error) {

	var bOpts b.Options
	if bOpts = b.DefaultOptions; opts.BadgerOptions != nil {
		bOpts = *opts.BadgerOptions
	}

	bOpts.TableLoadingMode = bo.MemoryMap
	bOpts.ValueLogLoadingMode = bo.FileIO
	bOpts.Dir = opts.Path
	bOpts.ValueDir = opts.Path
	bOpts.SyncWrites = true

	db, err := b.Open(bOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger database %s", opts.Path)
	}

	store := &BadgerStore{db: db}
	if opts.ValueLogGC {

		var gcInterval time.Duration
		var mandatoryGCInterval time.Duration
		var threshold int64

		if gcInterval = 1 * time.Minute; opts.GCInterval != 0 {
			gcInterval = opts.GCInterval
		}
		if mandatoryGCInterval = 10 * time.Minute; opts.MandatoryGCInterval != 0 {
			mandatoryGCInterval = opts.MandatoryGCInterval
		}
		if threshold = int64(1 << 30); opts.GCThreshold != 0 {
			threshold = opts.GCThreshold
		}

		store.vlogTicker = time.NewTicker(gcInterval)
		store.mandatoryVlogTicker = time.NewTicker(mandatoryGCInterval)
		go store.runVlogGC(db, threshold)
	}

	return store, nil
}

// Begin opens a Badger transaction. Writable transactions are not
// serialized; a conflicting one fails on Commit.
func (s *BadgerStore) Begin(writable bool) (storage.Txn, error) {
	return &badgerTxn{txn: s.db.NewTransaction(writable), writable: writable}, nil
}

func (s *BadgerStore) Close() error {
	if s.vlogTicker != nil {
		s.vlogTicker.Stop()
	}
	if s.mandatoryVlogTicker != nil {
		s.mandatoryVlogTicker.Stop()
	}
	return s.db.Close()
}

func (s *BadgerStore) runVlogGC(db *b.DB, threshold int64) {
	// Get initial size on start.
	_, lastVlogSize := db.Size()

	runGC := func() {
		var err error
		for err == nil {
			// If a GC is successful, immediately run it again.
			log.Debug("VlogGC task: running...")
			err = db.RunValueLogGC(0.7)
		}
		log.Debug("VlogGC task: done.")
		_, lastVlogSize = db.Size()
	}

	for {
		select {
		case <-s.vlogTicker.C:
			_, currentVlogSize := db.Size()
			if currentVlogSize < lastVlogSize+threshold {
				continue
			}
			runGC()
		case <-s.mandatoryVlogTicker.C:
			runGC()
		}
	}
}

type badgerTxn struct {
	txn      *b.Txn
	writable bool
	done     bool
}

func (t *badgerTxn) Get(table storage.Table, key []byte) ([]byte, error) {
	k := append([]byte{table.Prefix()}, key...)
	item, err := t.txn.Get(k)
	switch err {
	case nil:
	case b.ErrKeyNotFound:
		return nil, storage.ErrKeyNotFound
	default:
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *badgerTxn) Put(table storage.Table, key, value []byte) error {
	if !t.writable {
		return storage.ErrTxNotWritable
	}
	k := append([]byte{table.Prefix()}, key...)
	return t.txn.Set(k, value)
}

func (t *badgerTxn) Delete(table storage.Table, key []byte) error {
	if !t.writable {
		return storage.ErrTxNotWritable
	}
	k := append([]byte{table.Prefix()}, key...)
	err := t.txn.Delete(k)
	if err == b.ErrKeyNotFound {
		return nil
	}
	return err
}

func (t *badgerTxn) Clear(table storage.Table) error {
	if !t.writable {
		return storage.ErrTxNotWritable
	}
	keys, err := t.collectKeys(table)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := t.txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (t *badgerTxn) collectKeys(table storage.Table) ([][]byte, error) {
	prefix := []byte{table.Prefix()}
	opts := b.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := t.txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

func (t *badgerTxn) ForEach(table storage.Table, fn func(key, value []byte) error) error {
	prefix := []byte{table.Prefix()}
	it := t.txn.NewIterator(b.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(key[1:], value); err != nil {
			return err
		}
	}
	return nil
}

func (t *badgerTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if !t.writable {
		t.txn.Discard()
		return nil
	}
	return t.txn.Commit(nil)
}

func (t *badgerTxn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.txn.Discard()
}
