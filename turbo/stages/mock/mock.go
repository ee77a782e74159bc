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

package mock

import (
	"context"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/afero"

	"github.com/erigontech/rewind/chain"
	"github.com/erigontech/rewind/common/datadir"
	"github.com/erigontech/rewind/core"
	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/eth/ethconfig"
	"github.com/erigontech/rewind/eth/stagedsync"
	"github.com/erigontech/rewind/eth/stagedsync/stages"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/kv/badgerdb"
	"github.com/erigontech/rewind/turbo/shards"
	"github.com/erigontech/rewind/turbo/snapshotsync/freezeblocks"
	stages2 "github.com/erigontech/rewind/turbo/stages"
)

// MockNode is an in-memory node: badger store, segment files on a memory filesystem and
// the default pipeline on top of them.
type MockNode struct {
	Ctx         context.Context
	Log         log.Logger
	tb          testing.TB
	cancel      context.CancelFunc
	DB          kv.RwDB
	Dirs        datadir.Dirs
	Fs          afero.Fs
	Cfg         ethconfig.Config
	ChainConfig *chain.Config
	Genesis     *types.Block
	Address     common.Address

	Sync      *stagedsync.Sync
	Pipeline  *stagedsync.Pipeline
	TipEvents *shards.TipEvents

	BlockSnapshots *freezeblocks.RoSnapshots
	stages2.BlocksIO
}

func (ms *MockNode) Close() {
	ms.cancel()
	if ms.DB != nil {
		ms.DB.Close()
	}
}

// Mock is convenience function to create a mock with some pre-set values
func Mock(tb testing.TB) *MockNode {
	cfg := ethconfig.Defaults
	cfg.Snapshot.BlocksPerFile = 10
	return MockWithConfig(tb, cfg)
}

func MockWithConfig(tb testing.TB, cfg ethconfig.Config) *MockNode {
	key, _ := crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	address := crypto.PubkeyToAddress(key.PublicKey)
	gspec := core.DeveloperGenesisBlock(core.GenesisAlloc{
		address: {Balance: uint256.NewInt(1_000_000_000_000_000_000)},
	})
	ms := MockWithGenesis(tb, gspec, cfg)
	ms.Address = address
	return ms
}

func MockWithGenesis(tb testing.TB, gspec *core.Genesis, cfg ethconfig.Config) *MockNode {
	tb.Helper()
	logger := log.New()
	logger.SetHandler(log.LvlFilterHandler(log.LvlWarn, log.StderrHandler))

	ctx, cancel := context.WithCancel(context.Background())
	dirs := datadir.New(tb.TempDir())
	cfg.Dirs = dirs
	db := badgerdb.New(logger).InMem().MustOpen()

	ms := &MockNode{
		Ctx:    ctx,
		Log:    logger,
		tb:     tb,
		cancel: cancel,
		DB:     db,
		Dirs:   dirs,
		Fs:     afero.NewMemMapFs(),
		Cfg:    cfg,
	}
	tb.Cleanup(ms.Close)

	chainConfig, genesis, err := core.CommitGenesisBlock(db, gspec, logger)
	if err != nil {
		tb.Fatal(err)
	}
	ms.ChainConfig, ms.Genesis = chainConfig, genesis

	ms.BlockSnapshots = freezeblocks.NewRoSnapshots(cfg.Snapshot, ms.Fs, dirs.Snap, logger)
	if err = ms.BlockSnapshots.ReopenFolder(); err != nil {
		tb.Fatal(err)
	}
	ms.BlocksIO = stages2.NewBlocksIO(db, ms.BlockSnapshots, logger)
	ms.TipEvents = shards.NewTipEvents()
	ms.Pipeline = stages2.NewPipeline(db, chainConfig, cfg, ms.BlocksIO, ms.TipEvents, logger)
	ms.Sync = ms.Pipeline.Sync()
	return ms
}

// GenerateChain builds n blocks on top of parent, or on top of the current head when parent is nil.
func (ms *MockNode) GenerateChain(parent *types.Block, n int, gen func(int, *core.BlockGen)) *core.ChainPack {
	ms.tb.Helper()
	if parent == nil {
		var err error
		if parent, err = ms.HeadBlock(); err != nil {
			ms.tb.Fatal(err)
		}
	}
	return core.GenerateChain(ms.ChainConfig, parent, n, gen)
}

// InsertChain writes the blocks as the canonical chain and runs all stages forward. A chain
// forking below the current head first unwinds the pipeline to the fork point.
func (ms *MockNode) InsertChain(chain *core.ChainPack) error {
	first := chain.Blocks[0]
	forkPoint := first.Number() - 1
	head, err := ms.Head()
	if err != nil {
		return err
	}
	if forkPoint < head {
		if err = ms.Pipeline.Unwind(ms.Ctx, forkPoint, nil); err != nil {
			return err
		}
	}

	if err = ms.DB.Update(ms.Ctx, func(tx kv.RwTx) error {
		parentHash, err := rawdb.ReadCanonicalHash(tx, forkPoint)
		if err != nil {
			return err
		}
		if parentHash != first.ParentHash() {
			return fmt.Errorf("block %d does not extend the canonical chain: parent %x, canonical %x", first.Number(), first.ParentHash(), parentHash)
		}
		for _, block := range chain.Blocks {
			n := block.Number()
			origin := &types.L1Origin{BlockID: &n, L2BlockHash: block.Hash()}
			if err := ms.BlockWriter.WriteBlock(tx, block, origin); err != nil {
				return err
			}
			if err := rawdb.WriteCanonicalHash(tx, block.Hash(), n); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err = ms.Pipeline.Forward(ms.Ctx); err != nil {
		return err
	}
	return ms.DB.View(ms.Ctx, func(tx kv.Tx) error {
		execAt, err := stages.GetStageProgress(tx, stages.Execution)
		if err != nil {
			return err
		}
		if execAt < chain.TopBlock.Number() {
			return fmt.Errorf("mock.InsertChain end up with Execution stage progress: %d < %d", execAt, chain.TopBlock.Number())
		}
		return nil
	})
}

// Head returns the head block number of the mutable store.
func (ms *MockNode) Head() (head uint64, err error) {
	err = ms.DB.View(ms.Ctx, func(tx kv.Tx) error {
		n, err := rawdb.ReadHeadBlockNumber(tx)
		if err != nil {
			return err
		}
		if n != nil {
			head = *n
		}
		return nil
	})
	return head, err
}

func (ms *MockNode) HeadBlock() (block *types.Block, err error) {
	head, err := ms.Head()
	if err != nil {
		return nil, err
	}
	err = ms.DB.View(ms.Ctx, func(tx kv.Tx) error {
		block, err = ms.BlockReader.BlockByNumber(ms.Ctx, tx, head)
		return err
	})
	if err == nil && block == nil {
		err = fmt.Errorf("head block %d not found", head)
	}
	return block, err
}

// Finalize sets the finalized block pointer.
func (ms *MockNode) Finalize(n uint64) error {
	return ms.DB.Update(ms.Ctx, func(tx kv.RwTx) error {
		return rawdb.WriteFinalizedBlockNumber(tx, n)
	})
}

// Finalized returns the finalized block pointer, nil when unset.
func (ms *MockNode) Finalized() (n *uint64, err error) {
	err = ms.DB.View(ms.Ctx, func(tx kv.Tx) error {
		n, err = rawdb.ReadFinalizedBlockNumber(tx)
		return err
	})
	return n, err
}
