// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package badgerdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/dgraph-io/badger/v3"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/rewind/kv"
)

// walkBatch is how many entries ForEach reads before it closes its iterator and
// hands them to the walker. badger allows one open iterator per read-write txn,
// so walkers that read or write the same txn must not run under an open iterator.
const walkBatch = 256

type Opts struct {
	path           string
	inMem          bool
	syncWrites     bool
	memTableSize   datasize.ByteSize
	blockCacheSize datasize.ByteSize
	log            log.Logger
}

func New(log log.Logger) Opts {
	return Opts{log: log}
}

func (opts Opts) Path(path string) Opts {
	opts.path = path
	return opts
}

func (opts Opts) InMem() Opts {
	opts.inMem = true
	opts.memTableSize = 16 * datasize.MB
	opts.blockCacheSize = 16 * datasize.MB
	return opts
}

func (opts Opts) SyncWrites(v bool) Opts {
	opts.syncWrites = v
	return opts
}

func (opts Opts) MemTableSize(sz datasize.ByteSize) Opts {
	opts.memTableSize = sz
	return opts
}

func (opts Opts) BlockCacheSize(sz datasize.ByteSize) Opts {
	opts.blockCacheSize = sz
	return opts
}

func (opts Opts) Open() (kv.RwDB, error) {
	var bopts badger.Options
	if opts.inMem {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.path)
	}
	bopts = bopts.WithLogger(badgerLogger{opts.log}).WithSyncWrites(opts.syncWrites)
	if opts.memTableSize > 0 {
		bopts = bopts.WithMemTableSize(int64(opts.memTableSize.Bytes()))
	}
	if opts.blockCacheSize > 0 {
		bopts = bopts.WithBlockCacheSize(int64(opts.blockCacheSize.Bytes()))
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger.Open %q: %w", opts.path, err)
	}
	prefixes := make(map[string][]byte, len(kv.ChaindataTables))
	for _, name := range kv.ChaindataTables {
		prefixes[name] = append([]byte(name), 0)
	}
	return &badgerDB{opts: opts, badger: db, prefixes: prefixes, log: opts.log}, nil
}

func (opts Opts) MustOpen() kv.RwDB {
	db, err := opts.Open()
	if err != nil {
		panic(err)
	}
	return db
}

type badgerDB struct {
	opts     Opts
	badger   *badger.DB
	prefixes map[string][]byte
	log      log.Logger
}

// Close closes the database.
// All transactions must be closed before closing the database.
func (db *badgerDB) Close() {
	if err := db.badger.Close(); err != nil {
		db.log.Warn("failed to close badger", "path", db.opts.path, "err", err)
	}
}

func (db *badgerDB) View(ctx context.Context, f func(tx kv.Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (db *badgerDB) Update(ctx context.Context, f func(tx kv.RwTx) error) error {
	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err = f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *badgerDB) BeginRo(ctx context.Context) (kv.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &badgerTx{ctx: ctx, db: db, badger: db.badger.NewTransaction(false)}, nil
}

func (db *badgerDB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &badgerTx{ctx: ctx, db: db, badger: db.badger.NewTransaction(true)}, nil
}

type badgerTx struct {
	ctx    context.Context
	db     *badgerDB
	badger *badger.Txn
	done   bool
}

func (tx *badgerTx) Context() context.Context { return tx.ctx }

func (tx *badgerTx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	tx.badger.Discard()
}

func (tx *badgerTx) Commit() error {
	if tx.done {
		return errors.New("badger: commit of finished transaction")
	}
	tx.done = true
	return tx.badger.Commit()
}

func (tx *badgerTx) key(table string, k []byte) ([]byte, error) {
	prefix, ok := tx.db.prefixes[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", kv.ErrUnknownTable, table)
	}
	full := make([]byte, len(prefix)+len(k))
	copy(full, prefix)
	copy(full[len(prefix):], k)
	return full, nil
}

func (tx *badgerTx) GetOne(table string, k []byte) ([]byte, error) {
	select {
	case <-tx.ctx.Done():
		return nil, tx.ctx.Err()
	default:
	}

	key, err := tx.key(table, k)
	if err != nil {
		return nil, err
	}
	item, err := tx.badger.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (tx *badgerTx) Has(table string, k []byte) (bool, error) {
	key, err := tx.key(table, k)
	if err != nil {
		return false, err
	}
	if _, err = tx.badger.Get(key); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (tx *badgerTx) Put(table string, k, v []byte) error {
	select {
	case <-tx.ctx.Done():
		return tx.ctx.Err()
	default:
	}

	key, err := tx.key(table, k)
	if err != nil {
		return err
	}
	// badger keeps the slices until commit
	return tx.badger.Set(key, bytes.Clone(v))
}

func (tx *badgerTx) Delete(table string, k []byte) error {
	select {
	case <-tx.ctx.Done():
		return tx.ctx.Err()
	default:
	}

	key, err := tx.key(table, k)
	if err != nil {
		return err
	}
	return tx.badger.Delete(key)
}

func (tx *badgerTx) ForEach(table string, fromPrefix []byte, walker func(k, v []byte) error) error {
	seek, err := tx.key(table, fromPrefix)
	if err != nil {
		return err
	}
	return tx.walk(tx.db.prefixes[table], seek, seek[:len(tx.db.prefixes[table])], walker)
}

func (tx *badgerTx) ForPrefix(table string, prefix []byte, walker func(k, v []byte) error) error {
	seek, err := tx.key(table, prefix)
	if err != nil {
		return err
	}
	return tx.walk(tx.db.prefixes[table], seek, seek, walker)
}

type entry struct{ k, v []byte }

// walk visits keys >= seek that start with bound. Keys passed to walker have
// the table prefix stripped.
func (tx *badgerTx) walk(tablePrefix, seek, bound []byte, walker func(k, v []byte) error) error {
	batch := make([]entry, 0, walkBatch)
	for {
		select {
		case <-tx.ctx.Done():
			return tx.ctx.Err()
		default:
		}

		var err error
		batch, err = tx.readBatch(seek, bound, batch[:0])
		if err != nil {
			return err
		}
		for _, e := range batch {
			if err := walker(e.k[len(tablePrefix):], e.v); err != nil {
				return err
			}
		}
		if len(batch) < walkBatch {
			return nil
		}
		last := batch[len(batch)-1].k
		seek = append(bytes.Clone(last), 0)
	}
}

func (tx *badgerTx) readBatch(seek, bound []byte, batch []entry) ([]entry, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = bound
	opts.PrefetchSize = walkBatch
	it := tx.badger.NewIterator(opts)
	defer it.Close()

	for it.Seek(seek); it.ValidForPrefix(bound); it.Next() {
		item := it.Item()
		v, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		batch = append(batch, entry{k: item.KeyCopy(nil), v: v})
		if len(batch) == walkBatch {
			break
		}
	}
	return batch, nil
}

var maxKeySuffix = bytes.Repeat([]byte{0xff}, 256)

func (tx *badgerTx) Last(table string) ([]byte, []byte, error) {
	prefix, ok := tx.db.prefixes[table]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", kv.ErrUnknownTable, table)
	}
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = true
	opts.PrefetchValues = false
	it := tx.badger.NewIterator(opts)
	defer it.Close()

	it.Seek(append(bytes.Clone(prefix), maxKeySuffix...))
	if !it.ValidForPrefix(prefix) {
		return nil, nil, nil
	}
	item := it.Item()
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}
	return item.KeyCopy(nil)[len(prefix):], v, nil
}

// badgerLogger routes badger's printf-style logging into the structured logger.
type badgerLogger struct {
	log.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.Error("[badger] " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warn("[badger] " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.Debug("[badger] " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.Trace("[badger] " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}
