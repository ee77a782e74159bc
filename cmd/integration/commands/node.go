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

package commands

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"

	"github.com/erigontech/rewind/chain"
	"github.com/erigontech/rewind/common/datadir"
	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/eth/stagedsync"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/kv/badgerdb"
	"github.com/erigontech/rewind/params"
	"github.com/erigontech/rewind/turbo/rewind"
	"github.com/erigontech/rewind/turbo/shards"
	"github.com/erigontech/rewind/turbo/snapshotsync/freezeblocks"
	"github.com/erigontech/rewind/turbo/stages"
)

// node is everything a command needs to work on one data dir. The data dir stays locked
// until Close.
type node struct {
	db          kv.RwDB
	unlock      func()
	chainConfig *chain.Config
	snapshots   *freezeblocks.RoSnapshots
	blocks      stages.BlocksIO
	pipeline    *stagedsync.Pipeline
}

// openDB locks the data dir and opens the database in it.
func (a *app) openDB() (kv.RwDB, func(), error) {
	a.cfg.Dirs = datadir.New(a.datadir)
	unlock, err := datadir.Flock(a.cfg.Dirs)
	if err != nil {
		return nil, nil, err
	}
	opts := badgerdb.New(a.logger).
		Path(a.cfg.Dirs.Chaindata).
		SyncWrites(a.cfg.DB.SyncWrites).
		MemTableSize(a.cfg.DB.MemTableSize).
		BlockCacheSize(a.cfg.DB.BlockCacheSize)
	if a.cfg.DB.InMemory {
		opts = opts.InMem()
	}
	db, err := opts.Open()
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return db, unlock, nil
}

func (a *app) openNode(ctx context.Context) (*node, error) {
	db, unlock, err := a.openDB()
	if err != nil {
		return nil, err
	}
	n := &node{db: db, unlock: unlock}

	if err = db.View(ctx, func(tx kv.Tx) error {
		genesisHash, err := rawdb.ReadCanonicalHash(tx, 0)
		if err != nil {
			return err
		}
		if genesisHash == (common.Hash{}) {
			return fmt.Errorf("no genesis in %s, run init first", a.cfg.Dirs.DataDir)
		}
		n.chainConfig, err = rawdb.ReadChainConfig(tx, genesisHash)
		return err
	}); err != nil {
		n.Close()
		return nil, err
	}
	if n.chainConfig == nil {
		n.Close()
		return nil, fmt.Errorf("no chain config stored in %s", a.cfg.Dirs.DataDir)
	}

	n.snapshots = freezeblocks.NewRoSnapshots(a.cfg.Snapshot, afero.NewOsFs(), a.cfg.Dirs.Snap, a.logger)
	if err = n.snapshots.ReopenFolder(); err != nil {
		n.Close()
		return nil, err
	}
	n.blocks = stages.NewBlocksIO(db, n.snapshots, a.logger)
	n.pipeline = stages.NewPipeline(db, n.chainConfig, a.cfg, n.blocks, shards.NewTipEvents(), a.logger)
	return n, nil
}

func (n *node) orchestrator(a *app) *rewind.Orchestrator {
	return rewind.NewOrchestrator(
		rewind.NewResolver(n.db),
		n.blocks.BlockReader,
		n.pipeline,
		rewind.NewGateway(n.db, n.blocks.BlockWriter, a.logger),
		a.logger,
	)
}

// markFinished records the version of the tool that wrote to the database last.
func (n *node) markFinished(ctx context.Context) error {
	return n.db.Update(ctx, params.SetToolVersionFinished)
}

func (n *node) Close() {
	if n.db != nil {
		n.db.Close()
	}
	if n.unlock != nil {
		n.unlock()
	}
}
