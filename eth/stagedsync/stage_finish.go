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

	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/kv"
)

type FinishCfg struct {
	db kv.RwDB
}

func StageFinishCfg(db kv.RwDB) FinishCfg {
	return FinishCfg{db: db}
}

// FinishForward moves the head block marker to the executed block, making it the chain head.
func FinishForward(ctx context.Context, s *StageState, tx kv.RwTx, cfg FinishCfg, logger log.Logger) (err error) {
	useExternalTx := tx != nil
	if !useExternalTx {
		tx, err = cfg.db.BeginRw(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	executionAt, err := s.ExecutionAt(tx)
	if err != nil {
		return err
	}
	if executionAt <= s.BlockNumber {
		return nil
	}
	if err = writeHeadBlock(tx, executionAt); err != nil {
		return err
	}
	if err = s.Update(tx, executionAt); err != nil {
		return err
	}
	logger.Debug(fmt.Sprintf("[%s] Head block", s.LogPrefix()), "number", executionAt)

	if !useExternalTx {
		if err = tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func UnwindFinish(ctx context.Context, u *UnwindState, tx kv.RwTx, cfg FinishCfg, logger log.Logger) (err error) {
	useExternalTx := tx != nil
	if !useExternalTx {
		tx, err = cfg.db.BeginRw(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	if err = writeHeadBlock(tx, u.UnwindPoint); err != nil {
		return err
	}
	if err = u.Done(tx); err != nil {
		return err
	}
	if !useExternalTx {
		if err = tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func writeHeadBlock(tx kv.RwTx, number uint64) error {
	hash, err := rawdb.ReadCanonicalHash(tx, number)
	if err != nil {
		return err
	}
	if hash == (common.Hash{}) {
		return fmt.Errorf("canonical hash of block %d not found", number)
	}
	return rawdb.WriteHeadBlockHash(tx, hash)
}
