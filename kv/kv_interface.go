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

package kv

import (
	"context"
	"errors"
)

// Naming:
//  table - named part of the keyspace, see tables.go
//  tx - a read or read-write transaction. A read-write transaction sees its own writes.
//
// Invariants:
//  1. A read-write transaction is the unit of atomicity: either Commit makes every write of
//     the transaction visible or none of them become visible.
//  2. Rollback after Commit is a no-op, so `defer tx.Rollback()` is always safe.
//  3. Transactions are not thread-safe. Use one per goroutine.

var (
	ErrUnknownTable = errors.New("unknown table")
)

type Has interface {
	// Has indicates whether a key exists in the database.
	Has(table string, key []byte) (bool, error)
}

type Getter interface {
	Has

	// GetOne references a readonly section of memory that must not be accessed after txn has terminated.
	// Returns nil, nil when the key is absent.
	GetOne(table string, key []byte) (val []byte, err error)

	// ForEach iterates over entries with keys greater or equal to fromPrefix.
	// walker is called for each eligible entry.
	// If walker returns an error:
	//   - implementations do not have to guarantee consistency of returned data.
	//   - implementation doesn't have to continue iterations.
	// The walker may write to and delete from the transaction, including the visited key.
	ForEach(table string, fromPrefix []byte, walker func(k, v []byte) error) error
	ForPrefix(table string, prefix []byte, walker func(k, v []byte) error) error

	// Last returns the greatest key of the table, nil when the table is empty.
	Last(table string) (k, v []byte, err error)
}

type Putter interface {
	// Put inserts or updates a single entry.
	Put(table string, k, v []byte) error
}

type Deleter interface {
	// Delete removes a single entry.
	Delete(table string, k []byte) error
}

type Closer interface {
	Close()
}

// Tx is a read-only transaction.
type Tx interface {
	Getter

	// Rollback - abandon all the operations of the transaction instead of saving them.
	//
	// ATTENTION:
	//   - Tx never allowed to be used after Rollback/Commit.
	Rollback()

	Context() context.Context
}

// RwTx is a read-write transaction.
type RwTx interface {
	Tx
	Putter
	Deleter

	// Commit - apply all the operations of the transaction atomically.
	Commit() error
}

// RoDB - Read-only version of KV.
type RoDB interface {
	Closer

	// View like BeginRo, but for short-living transactions. Example:
	//  if err := db.View(ctx, func(tx kv.Tx) error {
	//    ...code which uses database in transaction
	//  }); err != nil {
	//		return err
	// }
	View(ctx context.Context, f func(tx Tx) error) error

	// BeginRo - creates transaction, must not be moved between gorotines
	BeginRo(ctx context.Context) (Tx, error)
}

// RwDB low-level database interface - main target is - to provide common abstraction over top of badger
// and in-memory instances used by tests.
//
// Common pattern for short-living transactions:
//
//	 if err := db.Update(ctx, func(tx kv.RwTx) error {
//	    ... code which uses database in transaction
//	 }); err != nil {
//			return err
//	}
//
// Common pattern for long-living transactions:
//
//	tx, err := db.BeginRw(ctx)
//	if err != nil {
//		return err
//	}
//	defer tx.Rollback()
//
//	... code which uses database in transaction
//
//	err := tx.Commit()
//	if err != nil {
//		return err
//	}
type RwDB interface {
	RoDB

	Update(ctx context.Context, f func(tx RwTx) error) error
	BeginRw(ctx context.Context) (RwTx, error)
}
