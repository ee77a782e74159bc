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

	"github.com/erigontech/rewind/core/rawdb/blockio"
	"github.com/erigontech/rewind/eth/stagedsync/stages"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/turbo/services"
	"github.com/erigontech/rewind/turbo/snapshotsync/freezeblocks"
)

type BodiesCfg struct {
	db          kv.RwDB
	blockReader services.FullBlockReader
	blockWriter *blockio.BlockWriter
	blockRetire *freezeblocks.BlockRetire
	pruneLimit  int
}

func StageBodiesCfg(db kv.RwDB, blockReader services.FullBlockReader, blockWriter *blockio.BlockWriter, blockRetire *freezeblocks.BlockRetire, pruneLimit int) BodiesCfg {
	return BodiesCfg{db: db, blockReader: blockReader, blockWriter: blockWriter, blockRetire: blockRetire, pruneLimit: pruneLimit}
}

// BodiesForward checks that a body is stored for every header the headers stage processed.
func BodiesForward(ctx context.Context, s *StageState, tx kv.RwTx, cfg BodiesCfg, logger log.Logger) (err error) {
	useExternalTx := tx != nil
	if !useExternalTx {
		tx, err = cfg.db.BeginRw(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	headerProgress, err := stages.GetStageProgress(tx, stages.Headers)
	if err != nil {
		return err
	}
	if headerProgress <= s.BlockNumber {
		return nil
	}
	for n := s.BlockNumber + 1; n <= headerProgress; n++ {
		hash, err := cfg.blockReader.CanonicalHash(ctx, tx, n)
		if err != nil {
			return err
		}
		body, err := cfg.blockReader.BodyWithTransactions(ctx, tx, hash, n)
		if err != nil {
			return err
		}
		if body == nil {
			return fmt.Errorf("body of block %d %x not found", n, hash)
		}
	}
	if err = s.Update(tx, headerProgress); err != nil {
		return err
	}
	logger.Debug(fmt.Sprintf("[%s] Processed bodies", s.LogPrefix()), "from", s.BlockNumber, "to", headerProgress)

	if !useExternalTx {
		if err = tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// UnwindBodiesStage removes bodies and L1 origins above the unwind point.
func UnwindBodiesStage(ctx context.Context, u *UnwindState, tx kv.RwTx, cfg BodiesCfg, logger log.Logger) (err error) {
	useExternalTx := tx != nil
	if !useExternalTx {
		tx, err = cfg.db.BeginRw(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	if err = cfg.blockWriter.TruncateBodies(tx, u.UnwindPoint+1); err != nil {
		return err
	}
	if err = u.Done(tx); err != nil {
		return err
	}
	logger.Debug(fmt.Sprintf("[%s] Unwound bodies", u.LogPrefix()), "from", u.CurrentBlockNumber, "to", u.UnwindPoint)

	if !useExternalTx {
		if err = tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// PruneBodies deletes blocks which are already readable from segment files.
func PruneBodies(ctx context.Context, p *PruneState, tx kv.RwTx, cfg BodiesCfg, logger log.Logger) (err error) {
	if cfg.blockRetire == nil {
		return nil
	}
	useExternalTx := tx != nil
	if !useExternalTx {
		tx, err = cfg.db.BeginRw(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	deleted, err := cfg.blockRetire.PruneAncientBlocks(tx, cfg.pruneLimit)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.Info(fmt.Sprintf("[%s] Pruned frozen blocks", p.LogPrefix()), "deleted", deleted)
	}

	if !useExternalTx {
		if err = tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
