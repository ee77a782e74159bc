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

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/rewind/chain"
	"github.com/erigontech/rewind/core"
	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/core/state"
	"github.com/erigontech/rewind/eth/stagedsync/stages"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/turbo/services"
)

const logInterval = 20 * time.Second

type ExecuteBlockCfg struct {
	db          kv.RwDB
	chainConfig *chain.Config
	blockReader services.FullBlockReader
}

func StageExecuteBlocksCfg(db kv.RwDB, chainConfig *chain.Config, blockReader services.FullBlockReader) ExecuteBlockCfg {
	return ExecuteBlockCfg{db: db, chainConfig: chainConfig, blockReader: blockReader}
}

// SpawnExecuteBlocksStage executes blocks up to the bodies progress. Execution writes the
// plain state, the account changesets and the receipts of every block.
func SpawnExecuteBlocksStage(ctx context.Context, s *StageState, tx kv.RwTx, cfg ExecuteBlockCfg, logger log.Logger) (err error) {
	useExternalTx := tx != nil
	if !useExternalTx {
		tx, err = cfg.db.BeginRw(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	to, err := stages.GetStageProgress(tx, stages.Bodies)
	if err != nil {
		return err
	}
	if to <= s.BlockNumber {
		return nil
	}
	logPrefix := s.LogPrefix()
	logEvery := time.NewTicker(logInterval)
	defer logEvery.Stop()

	for blockNum := s.BlockNumber + 1; blockNum <= to; blockNum++ {
		block, err := cfg.blockReader.BlockByNumber(ctx, tx, blockNum)
		if err != nil {
			return err
		}
		if block == nil {
			return fmt.Errorf("block %d not found", blockNum)
		}
		receipts, err := core.ExecuteBlock(tx, cfg.chainConfig, block)
		if err != nil {
			return fmt.Errorf("execute block %d: %w", blockNum, err)
		}
		if err = rawdb.WriteReceipts(tx, blockNum, receipts); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-logEvery.C:
			logger.Info(fmt.Sprintf("[%s] Executed blocks", logPrefix), "blk", blockNum, "to", to)
		default:
		}
	}
	if err = s.Update(tx, to); err != nil {
		return err
	}
	logger.Debug(fmt.Sprintf("[%s] Completed on", logPrefix), "block", to)

	if !useExternalTx {
		if err = tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// UnwindExecutionStage restores the plain state from the changesets and removes the receipts
// of the unwound blocks.
func UnwindExecutionStage(ctx context.Context, u *UnwindState, tx kv.RwTx, cfg ExecuteBlockCfg, logger log.Logger) (err error) {
	useExternalTx := tx != nil
	if !useExternalTx {
		tx, err = cfg.db.BeginRw(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	reverted, err := state.RevertChangeSets(ctx, tx, u.UnwindPoint+1)
	if err != nil {
		return err
	}
	if err = rawdb.TruncateReceipts(tx, u.UnwindPoint+1); err != nil {
		return err
	}
	if err = u.Done(tx); err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("[%s] Unwind Execution", u.LogPrefix()), "from", u.CurrentBlockNumber, "to", u.UnwindPoint, "accounts", reverted)

	if !useExternalTx {
		if err = tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
