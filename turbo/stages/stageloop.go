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

package stages

import (
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/rewind/chain"
	"github.com/erigontech/rewind/core/rawdb/blockio"
	"github.com/erigontech/rewind/eth/ethconfig"
	"github.com/erigontech/rewind/eth/stagedsync"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/turbo/shards"
	"github.com/erigontech/rewind/turbo/snapshotsync/freezeblocks"
)

// BlocksIO bundles the block readers and writers the stages share.
type BlocksIO struct {
	Snapshots   *freezeblocks.RoSnapshots
	BlockReader *freezeblocks.BlockReader
	BlockWriter *blockio.BlockWriter
	BlockRetire *freezeblocks.BlockRetire
}

func NewBlocksIO(db kv.RwDB, snapshots *freezeblocks.RoSnapshots, logger log.Logger) BlocksIO {
	blockWriter := blockio.NewBlockWriter(logger)
	return BlocksIO{
		Snapshots:   snapshots,
		BlockReader: freezeblocks.NewBlockReader(snapshots),
		BlockWriter: blockWriter,
		BlockRetire: freezeblocks.NewBlockRetire(db, snapshots, blockWriter, logger),
	}
}

func NewDefaultStages(db kv.RwDB, chainConfig *chain.Config, cfg ethconfig.Config, blocks BlocksIO) []*stagedsync.Stage {
	return stagedsync.DefaultStages(
		stagedsync.StageHeadersCfg(db, blocks.BlockWriter),
		stagedsync.StageBodiesCfg(db, blocks.BlockReader, blocks.BlockWriter, blocks.BlockRetire, cfg.PruneLimit),
		stagedsync.StageExecuteBlocksCfg(db, chainConfig, blocks.BlockReader),
		stagedsync.StageLogIndexCfg(db, blocks.BlockReader),
		stagedsync.StageTxLookupCfg(db, blocks.BlockReader),
		stagedsync.StageFinishCfg(db),
	)
}

func NewStagedSync(db kv.RwDB, chainConfig *chain.Config, cfg ethconfig.Config, blocks BlocksIO, logger log.Logger) *stagedsync.Sync {
	return stagedsync.New(
		NewDefaultStages(db, chainConfig, cfg, blocks),
		stagedsync.DefaultUnwindOrder,
		stagedsync.DefaultPruneOrder,
		logger,
	)
}

// NewPipeline assembles the default stage set, block retirement and the tip broadcast over db.
func NewPipeline(db kv.RwDB, chainConfig *chain.Config, cfg ethconfig.Config, blocks BlocksIO, tipEvents *shards.TipEvents, logger log.Logger) *stagedsync.Pipeline {
	sync := NewStagedSync(db, chainConfig, cfg, blocks, logger)
	return stagedsync.NewPipeline(db, sync, blocks.BlockRetire, tipEvents, logger)
}
