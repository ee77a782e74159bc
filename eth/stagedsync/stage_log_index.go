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
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/kv/bitmapdb"
	"github.com/erigontech/rewind/turbo/services"
)

type LogIndexCfg struct {
	db          kv.RwDB
	blockReader services.FullBlockReader
}

func StageLogIndexCfg(db kv.RwDB, blockReader services.FullBlockReader) LogIndexCfg {
	return LogIndexCfg{db: db, blockReader: blockReader}
}

func (cfg LogIndexCfg) receipts(ctx context.Context, tx kv.Getter, blockNum uint64) (types.Receipts, error) {
	hash, err := cfg.blockReader.CanonicalHash(ctx, tx, blockNum)
	if err != nil {
		return nil, err
	}
	receipts, err := cfg.blockReader.Receipts(ctx, tx, hash, blockNum)
	if err != nil {
		return nil, err
	}
	if receipts == nil {
		return nil, fmt.Errorf("receipts of block %d %x not found", blockNum, hash)
	}
	return receipts, nil
}

// SpawnLogIndex indexes the addresses of emitted logs up to the execution progress.
func SpawnLogIndex(ctx context.Context, s *StageState, tx kv.RwTx, cfg LogIndexCfg, logger log.Logger) (err error) {
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
		return fmt.Errorf("getting last executed block: %w", err)
	}
	if endBlock <= s.BlockNumber {
		return nil
	}
	logPrefix := s.LogPrefix()
	logEvery := time.NewTicker(logInterval)
	defer logEvery.Stop()

	addresses := map[common.Address]*roaring64.Bitmap{}
	for blockNum := s.BlockNumber + 1; blockNum <= endBlock; blockNum++ {
		receipts, err := cfg.receipts(ctx, tx, blockNum)
		if err != nil {
			return err
		}
		for _, receipt := range receipts {
			for _, l := range receipt.Logs {
				m, ok := addresses[l.Address]
				if !ok {
					m = bitmapdb.NewBitmap64()
					addresses[l.Address] = m
				}
				m.Add(blockNum)
			}
		}

		select {
		case <-logEvery.C:
			logger.Info(fmt.Sprintf("[%s] Progress", logPrefix), "number", blockNum, "to", endBlock)
		default:
		}
	}
	for addr, delta := range addresses {
		if err = bitmapdb.AppendMergeByOr(tx, kv.LogAddressIndex, addr[:], delta); err != nil {
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

// UnwindLogIndex removes the unwound blocks from the index of every address their logs touched.
func UnwindLogIndex(ctx context.Context, u *UnwindState, tx kv.RwTx, cfg LogIndexCfg, logger log.Logger) (err error) {
	useExternalTx := tx != nil
	if !useExternalTx {
		tx, err = cfg.db.BeginRw(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	addresses := map[common.Address]struct{}{}
	for blockNum := u.UnwindPoint + 1; blockNum <= u.CurrentBlockNumber; blockNum++ {
		receipts, err := cfg.receipts(ctx, tx, blockNum)
		if err != nil {
			return err
		}
		for _, receipt := range receipts {
			for _, l := range receipt.Logs {
				addresses[l.Address] = struct{}{}
			}
		}
	}
	for addr := range addresses {
		if err = bitmapdb.TruncateRange(tx, kv.LogAddressIndex, addr[:], u.UnwindPoint+1); err != nil {
			return err
		}
	}
	if err = u.Done(tx); err != nil {
		return err
	}
	logger.Debug(fmt.Sprintf("[%s] Unwound log index", u.LogPrefix()), "addresses", len(addresses), "to", u.UnwindPoint)

	if !useExternalTx {
		if err = tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
