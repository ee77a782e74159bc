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

package stagedsync

import (
	"context"
	"fmt"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/turbo/services"
)

type TxLookupCfg struct {
	db          kv.RwDB
	blockReader services.FullBlockReader
}

func StageTxLookupCfg(db kv.RwDB, blockReader services.FullBlockReader) TxLookupCfg {
	return TxLookupCfg{db: db, blockReader: blockReader}
}

func SpawnTxLookup(ctx context.Context, s *StageState, tx kv.RwTx, cfg TxLookupCfg, logger log.Logger) (err error) {
	useExternalTx := tx != nil
	if !useExternalTx {
		tx, err = cfg.db.BeginRw(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	endBlock, err := s.ExecutionAt(tx)
	if err != nil {
		return err
	}
	if endBlock <= s.BlockNumber {
		return nil
	}
	for blockNum := s.BlockNumber + 1; blockNum <= endBlock; blockNum++ {
		block, err := cfg.blockReader.BlockByNumber(ctx, tx, blockNum)
		if err != nil {
			return err
		}
		if block == nil {
			return fmt.Errorf("empty block %d", blockNum)
		}
		if err = rawdb.WriteTxLookupEntries(tx, block); err != nil {
			return err
		}
	}
	if err = s.Update(tx, endBlock); err != nil {
		return err
	}

	if !useExternalTx {
		if err = tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// UnwindTxLookup removes lookup entries for all blocks above the unwind point.
func UnwindTxLookup(ctx context.Context, u *UnwindState, tx kv.RwTx, cfg TxLookupCfg, logger log.Logger) (err error) {
	useExternalTx := tx != nil
	if !useExternalTx {
		tx, err = cfg.db.BeginRw(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	var removed int
	for blockNum := u.UnwindPoint + 1; blockNum <= u.CurrentBlockNumber; blockNum++ {
		hash, err := cfg.blockReader.CanonicalHash(ctx, tx, blockNum)
		if err != nil {
			return err
		}
		body, err := cfg.blockReader.BodyWithTransactions(ctx, tx, hash, blockNum)
		if err != nil {
			return err
		}
		if body == nil {
			return fmt.Errorf("body of block %d %x not found", blockNum, hash)
		}
		for _, txn := range body.Transactions {
			if err = rawdb.DeleteTxLookupEntry(tx, txn.Hash()); err != nil {
				return err
			}
		}
		removed += len(body.Transactions)
	}
	if err = u.Done(tx); err != nil {
		return fmt.Errorf("unwind TxLookup: %w", err)
	}
	logger.Debug(fmt.Sprintf("[%s] Unwound tx lookup", u.LogPrefix()), "txs", removed, "to", u.UnwindPoint)

	if !useExternalTx {
		if err = tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
