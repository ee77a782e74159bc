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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/rewind/common/dbutils"
	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/core/rawdb/blockio"
	"github.com/erigontech/rewind/kv"
)

type HeadersCfg struct {
	db          kv.RwDB
	blockWriter *blockio.BlockWriter
}

func StageHeadersCfg(db kv.RwDB, blockWriter *blockio.BlockWriter) HeadersCfg {
	return HeadersCfg{db: db, blockWriter: blockWriter}
}

// SpawnStageHeaders advances the stage to the highest canonical header connected to its progress
// and moves the head header marker there. Headers are inserted and validated by the caller.
func SpawnStageHeaders(ctx context.Context, s *StageState, tx kv.RwTx, cfg HeadersCfg, logger log.Logger) (err error) {
	useExternalTx := tx != nil
	if !useExternalTx {
		tx, err = cfg.db.BeginRw(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	progress := s.BlockNumber
	var headHash common.Hash
	for n := s.BlockNumber + 1; ; n++ {
		hash, err := rawdb.ReadCanonicalHash(tx, n)
		if err != nil {
			return err
		}
		if hash == (common.Hash{}) {
			break
		}
		ok, err := tx.Has(kv.Headers, dbutils.HeaderKey(n, hash))
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		progress, headHash = n, hash
	}
	if progress == s.BlockNumber {
		return nil
	}

	if err = rawdb.WriteHeadHeaderHash(tx, headHash); err != nil {
		return err
	}
	if err = s.Update(tx, progress); err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("[%s] Processed headers", s.LogPrefix()), "from", s.BlockNumber, "to", progress)

	if !useExternalTx {
		if err = tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// HeadersUnwind removes the unwound headers with their canonical markers and points the head
// markers at the unwind point. A finalized pointer above the unwind point is lowered to it.
func HeadersUnwind(ctx context.Context, u *UnwindState, s *StageState, tx kv.RwTx, cfg HeadersCfg, logger log.Logger) (err error) {
	useExternalTx := tx != nil
	if !useExternalTx {
		tx, err = cfg.db.BeginRw(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	if err = cfg.blockWriter.UnwindHead(tx, u.UnwindPoint, u.LogPrefix()); err != nil {
		return err
	}
	if err = cfg.blockWriter.TruncateHeaders(tx, u.UnwindPoint+1); err != nil {
		return err
	}
	if err = u.Done(tx); err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("[%s] Unwound headers", u.LogPrefix()), "from", u.CurrentBlockNumber, "to", u.UnwindPoint)

	if !useExternalTx {
		if err = tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
