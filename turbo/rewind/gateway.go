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

package rewind

import (
	"context"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/core/rawdb/blockio"
	"github.com/erigontech/rewind/kv"
)

// Gateway removes blocks that live only in the mutable store, in a single transaction.
type Gateway struct {
	db          kv.RwDB
	blockWriter *blockio.BlockWriter
	logger      log.Logger
}

func NewGateway(db kv.RwDB, blockWriter *blockio.BlockWriter, logger log.Logger) *Gateway {
	return &Gateway{db: db, blockWriter: blockWriter, logger: logger}
}

// UnwindRange deletes the blocks of r with their execution results, moves the head to
// r.Start-1 and lowers a finalized pointer inside r to r.Start-1. Either all of it is
// committed or nothing, any failure is returned as *TransactionError.
func (g *Gateway) UnwindRange(ctx context.Context, r BlockRange) error {
	// not interruptible once started
	ctx = context.WithoutCancel(ctx)

	tx, err := g.db.BeginRw(ctx)
	if err != nil {
		return &TransactionError{Err: err}
	}
	defer tx.Rollback()

	taken, err := g.blockWriter.TakeBlockAndExecutionRange(ctx, tx, r.Start, r.End)
	if err != nil {
		return &TransactionError{Err: err}
	}
	// no-op when the head move already lowered it
	if _, err = rawdb.ClampFinalizedBlockNumber(tx, r.Start-1); err != nil {
		return &TransactionError{Err: err}
	}
	if err = tx.Commit(); err != nil {
		return &TransactionError{Err: err}
	}
	g.logger.Info("[rewind] Removed blocks from the database", "range", r.String(),
		"txs", taken.Transactions, "accounts", taken.RevertedAccount, "log_addresses", taken.LogAddresses)
	return nil
}
