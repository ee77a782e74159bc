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

package freezeblocks_test

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/rewind/core"
	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/turbo/snapshotsync/freezeblocks"
	"github.com/erigontech/rewind/turbo/snapshotsync/snap"
	"github.com/erigontech/rewind/turbo/stages/mock"
)

func newChain(t *testing.T, m *mock.MockNode, n int) *core.ChainPack {
	t.Helper()
	to := common.Address{1}
	chain := m.GenerateChain(nil, n, func(i int, b *core.BlockGen) {
		b.AddTransfer(m.Address, to, uint64(i+1))
	})
	require.NoError(t, m.InsertChain(chain))
	return chain
}

func TestMigrationIsIdempotent(t *testing.T) {
	require := require.New(t)
	m := mock.Mock(t)
	newChain(t, m, 25)

	_, ok := m.BlockSnapshots.FrozenBlocks()
	require.False(ok)

	require.NoError(m.Pipeline.MigrateToImmutable(m.Ctx))
	frozen, ok := m.BlockSnapshots.FrozenBlocks()
	require.True(ok)
	require.Equal(uint64(25), frozen)
	require.Equal([]string{"0-10", "10-20", "20-26"}, rangeNames(m.BlockSnapshots.Ranges()))
	files := m.BlockSnapshots.Files()
	require.Len(files, 9)

	require.NoError(m.Pipeline.MigrateToImmutable(m.Ctx))
	require.Equal(files, m.BlockSnapshots.Files())

	// a fresh view of the same folder sees the same tier
	reopened := freezeblocks.NewRoSnapshots(m.Cfg.Snapshot, m.Fs, m.Dirs.Snap, m.Log)
	require.NoError(reopened.ReopenFolder())
	require.Equal(files, reopened.Files())
}

func TestMigrationResumesAfterInterruption(t *testing.T) {
	require := require.New(t)
	m := mock.Mock(t)
	newChain(t, m, 25)

	// first 20 blocks were frozen before an interruption
	require.NoError(freezeblocks.DumpBlocks(m.Ctx, m.DB, m.BlockSnapshots, 20, log.LvlInfo, m.Log))
	headersMax, ok := m.BlockSnapshots.SegmentsMax(snap.Headers)
	require.True(ok)
	require.Equal(uint64(19), headersMax)
	files := m.BlockSnapshots.Files()
	require.Len(files, 6)

	require.NoError(m.Pipeline.MigrateToImmutable(m.Ctx))
	for _, kind := range snap.AllSnapshotTypes {
		n, ok := m.BlockSnapshots.SegmentsMax(kind)
		require.True(ok)
		require.Equal(uint64(25), n, kind)
	}
	require.Equal([]string{"0-10", "10-20", "20-26"}, rangeNames(m.BlockSnapshots.Ranges()))
	require.Subset(m.BlockSnapshots.Files(), files)
}

func TestReopenFolderDropsLeftovers(t *testing.T) {
	require := require.New(t)
	m := mock.Mock(t)
	newChain(t, m, 12)
	require.NoError(m.Pipeline.MigrateToImmutable(m.Ctx))

	tmp := filepath.Join(m.Dirs.Snap, snap.SegmentFileName(13, 20, snap.Headers)+".tmp")
	require.NoError(afero.WriteFile(m.Fs, tmp, []byte("partial"), 0o644))
	gap := filepath.Join(m.Dirs.Snap, snap.SegmentFileName(30, 40, snap.Headers))
	require.NoError(afero.WriteFile(m.Fs, gap, []byte("unreachable"), 0o644))

	require.NoError(m.BlockSnapshots.ReopenFolder())
	exists, err := afero.Exists(m.Fs, tmp)
	require.NoError(err)
	require.False(exists)

	frozen, ok := m.BlockSnapshots.FrozenBlocks()
	require.True(ok)
	require.Equal(uint64(12), frozen)
	require.NotContains(m.BlockSnapshots.Files(), filepath.Base(gap))
}

func TestFrozenBoundaryNeverRetreats(t *testing.T) {
	require := require.New(t)
	m := mock.Mock(t)
	newChain(t, m, 25)
	require.NoError(m.Pipeline.MigrateToImmutable(m.Ctx))

	require.NoError(m.Pipeline.Unwind(m.Ctx, 15, nil))
	head, err := m.Head()
	require.NoError(err)
	require.Equal(uint64(15), head)

	frozen, ok := m.BlockSnapshots.FrozenBlocks()
	require.True(ok)
	require.Equal(uint64(25), frozen)

	require.NoError(m.Pipeline.MigrateToImmutable(m.Ctx))
	frozen, _ = m.BlockSnapshots.FrozenBlocks()
	require.Equal(uint64(25), frozen)
}

func TestReaderFallsBackToSegmentsAfterPrune(t *testing.T) {
	require := require.New(t)
	m := mock.Mock(t)
	chain := newChain(t, m, 25)
	require.NoError(m.Pipeline.MigrateToImmutable(m.Ctx))
	require.NoError(m.Pipeline.Prune(m.Ctx))

	block := chain.Blocks[4]
	require.NoError(m.DB.View(m.Ctx, func(tx kv.Tx) error {
		h, err := rawdb.ReadHeader(tx, block.Hash(), block.Number())
		require.NoError(err)
		require.Nil(h)
		has, err := rawdb.HasReceipts(tx, block.Number())
		require.NoError(err)
		require.False(has)

		// genesis stays in the mutable store
		genesis, err := rawdb.ReadHeaderByNumber(tx, 0)
		require.NoError(err)
		require.NotNil(genesis)

		fromSegments, err := m.BlockReader.BlockByNumber(m.Ctx, tx, block.Number())
		require.NoError(err)
		require.NotNil(fromSegments)
		require.Equal(block.Hash(), fromSegments.Hash())
		require.Len(fromSegments.Transactions(), 1)

		receipts, err := m.BlockReader.Receipts(m.Ctx, tx, block.Hash(), block.Number())
		require.NoError(err)
		require.Len(receipts, 1)
		require.Equal(block.Transactions()[0].Hash(), receipts[0].TxHash)

		// a hash the block was not frozen under is not served from segments
		h, err = m.BlockReader.Header(m.Ctx, tx, common.Hash{0xff}, block.Number())
		require.NoError(err)
		require.Nil(h)
		return nil
	}))

	head, err := m.Head()
	require.NoError(err)
	require.Equal(uint64(25), head)
}

func TestStaleSegmentsAreIgnored(t *testing.T) {
	require := require.New(t)
	m := mock.Mock(t)
	newChain(t, m, 25)
	require.NoError(m.Pipeline.MigrateToImmutable(m.Ctx))

	parent := rawBlock(t, m, 15)
	fork := m.GenerateChain(parent, 15, func(i int, b *core.BlockGen) {
		b.SetExtra([]byte("fork"))
	})
	require.NoError(m.InsertChain(fork))
	require.NoError(m.Pipeline.MigrateToImmutable(m.Ctx))
	require.NoError(m.Pipeline.Prune(m.Ctx))

	frozen, _ := m.BlockSnapshots.FrozenBlocks()
	require.Equal(uint64(30), frozen)

	require.NoError(m.DB.View(m.Ctx, func(tx kv.Tx) error {
		forked := fork.Blocks[4] // block 20
		require.False(m.BlockSnapshots.Frozen(forked.Number(), forked.Hash()))

		// not confirmed by the segments, so not pruned
		h, err := rawdb.ReadHeader(tx, forked.Hash(), forked.Number())
		require.NoError(err)
		require.NotNil(h)

		got, err := m.BlockReader.HeaderByNumber(m.Ctx, tx, forked.Number())
		require.NoError(err)
		require.Equal(forked.Hash(), got.Hash())

		// blocks frozen after the fork are pruned and served from segments
		top := fork.TopBlock
		h, err = rawdb.ReadHeader(tx, top.Hash(), top.Number())
		require.NoError(err)
		require.Nil(h)
		got, err = m.BlockReader.HeaderByNumber(m.Ctx, tx, top.Number())
		require.NoError(err)
		require.Equal(top.Hash(), got.Hash())
		return nil
	}))
}

func rawBlock(t *testing.T, m *mock.MockNode, n uint64) (block *types.Block) {
	t.Helper()
	require.NoError(t, m.DB.View(m.Ctx, func(tx kv.Tx) (err error) {
		block, err = m.BlockReader.BlockByNumber(m.Ctx, tx, n)
		return err
	}))
	require.NotNil(t, block)
	return block
}

func rangeNames(ranges []freezeblocks.Range) (names []string) {
	for _, r := range ranges {
		names = append(names, r.String())
	}
	return names
}
