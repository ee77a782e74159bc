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

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/rewind/eth/stagedsync/stages"
	"github.com/erigontech/rewind/kv"
)

func DefaultStages(headers HeadersCfg, bodies BodiesCfg, exec ExecuteBlockCfg, logIndex LogIndexCfg, txLookup TxLookupCfg, finish FinishCfg) []*Stage {
	return []*Stage{
		{
			ID:          stages.Headers,
			Description: "Chain canonical headers",
			Forward: func(ctx context.Context, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return SpawnStageHeaders(ctx, s, tx, headers, logger)
			},
			Unwind: func(ctx context.Context, u *UnwindState, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return HeadersUnwind(ctx, u, s, tx, headers, logger)
			},
		},
		{
			ID:          stages.Bodies,
			Description: "Check block bodies",
			Forward: func(ctx context.Context, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return BodiesForward(ctx, s, tx, bodies, logger)
			},
			Unwind: func(ctx context.Context, u *UnwindState, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return UnwindBodiesStage(ctx, u, tx, bodies, logger)
			},
			Prune: func(ctx context.Context, p *PruneState, tx kv.RwTx, logger log.Logger) error {
				return PruneBodies(ctx, p, tx, bodies, logger)
			},
		},
		{
			ID:          stages.Execution,
			Description: "Execute blocks w/o hash checks",
			Forward: func(ctx context.Context, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return SpawnExecuteBlocksStage(ctx, s, tx, exec, logger)
			},
			Unwind: func(ctx context.Context, u *UnwindState, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return UnwindExecutionStage(ctx, u, tx, exec, logger)
			},
		},
		{
			ID:          stages.LogIndex,
			Description: "Generate receipt logs index",
			Forward: func(ctx context.Context, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return SpawnLogIndex(ctx, s, tx, logIndex, logger)
			},
			Unwind: func(ctx context.Context, u *UnwindState, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return UnwindLogIndex(ctx, u, tx, logIndex, logger)
			},
		},
		{
			ID:          stages.TxLookup,
			Description: "Generate tx lookup index",
			Forward: func(ctx context.Context, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return SpawnTxLookup(ctx, s, tx, txLookup, logger)
			},
			Unwind: func(ctx context.Context, u *UnwindState, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return UnwindTxLookup(ctx, u, tx, txLookup, logger)
			},
		},
		{
			ID:          stages.Finish,
			Description: "Final: update current block for the RPC API",
			Forward: func(ctx context.Context, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return FinishForward(ctx, s, tx, finish, logger)
			},
			Unwind: func(ctx context.Context, u *UnwindState, s *StageState, tx kv.RwTx, logger log.Logger) error {
				return UnwindFinish(ctx, u, tx, finish, logger)
			},
		},
	}
}

// DefaultUnwindOrder is the reverse of the forward order: a stage is unwound only after
// every stage consuming its data.
var DefaultUnwindOrder = UnwindOrder{
	stages.Finish,
	stages.TxLookup,
	stages.LogIndex,
	stages.Execution,
	stages.Bodies,
	stages.Headers,
}

var DefaultPruneOrder = PruneOrder{
	stages.Finish,
	stages.TxLookup,
	stages.LogIndex,
	stages.Execution,
	stages.Bodies,
	stages.Headers,
}
