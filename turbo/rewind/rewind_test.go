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

package rewind_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/rewind/core"
	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/core/state"
	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/eth/stagedsync/stages"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/turbo/rewind"
	"github.com/erigontech/rewind/turbo/snapshotsync/freezeblocks"
	"github.com/erigontech/rewind/turbo/stages/mock"
)

var recipient = common.Address{0xbb}

func newNode(t *testing.T, blocks int) *mock.MockNode {
	t.Helper()
	m := mock.Mock(t)
	chain := m.GenerateChain(nil, blocks, func(i int, b *core.BlockGen) {
		b.AddTransfer(m.Address, recipient, uint64(i+1))
	})
	require.NoError(t, m.InsertChain(chain))
	return m
}

func newOrchestrator(m *mock.MockNode) *rewind.Orchestrator {
	return rewind.NewOrchestrator(
		rewind.NewResolver(m.DB),
		m.BlockReader,
		m.Pipeline,
		rewind.NewGateway(m.DB, m.BlockWriter, m.Log),
		m.Log,
	)
}

func freezeBelow(t *testing.T, m *mock.MockNode, blockTo uint64) {
	t.Helper()
	require.NoError(t, freezeblocks.DumpBlocks(m.Ctx, m.DB, m.BlockSnapshots, blockTo, log.LvlDebug, m.Log))
	frozen, ok := m.BlockReader.FrozenBlocks()
	require.True(t, ok)
	require.Equal(t, blockTo-1, frozen)
}

func canonicalHash(t *testing.T, m *mock.MockNode, n uint64) (hash common.Hash) {
	t.Helper()
	require.NoError(t, m.DB.View(m.Ctx, func(tx kv.Tx) (err error) {
		hash, err = rawdb.ReadCanonicalHash(tx, n)
		return err
	}))
	return hash
}

func balance(t *testing.T, m *mock.MockNode, addr common.Address) uint64 {
	t.Helper()
	var b uint64
	require.NoError(t, m.DB.View(m.Ctx, func(tx kv.Tx) error {
		acc, err := state.NewPlainStateReader(tx).ReadAccountData(addr)
		if err != nil || acc == nil {
			return err
		}
		b = acc.Balance.Uint64()
		return nil
	}))
	return b
}

// dump copies every table of the mutable store.
func dump(t *testing.T, db kv.RoDB) map[string]map[string]string {
	t.Helper()
	out := map[string]map[string]string{}
	require.NoError(t, db.View(context.Background(), func(tx kv.Tx) error {
		for _, table := range kv.ChaindataTables {
			rows := map[string]string{}
			if err := tx.ForEach(table, nil, func(k, v []byte) error {
				rows[string(k)] = string(v)
				return nil
			}); err != nil {
				return err
			}
			out[table] = rows
		}
		return nil
	}))
	return out
}

func requireHead(t *testing.T, m *mock.MockNode, want uint64) {
	t.Helper()
	head, err := m.Head()
	require.NoError(t, err)
	require.Equal(t, want, head)
	require.NoError(t, m.DB.View(m.Ctx, func(tx kv.Tx) error {
		for _, stage := range stages.AllStages {
			progress, err := stages.GetStageProgress(tx, stage)
			if err != nil {
				return err
			}
			if progress != want {
				return fmt.Errorf("stage %s at %d, want %d", stage, progress, want)
			}
		}
		return nil
	}))
}

func TestDirectUnwind(t *testing.T) {
	require := require.New(t)
	m := newNode(t, 100)
	removedHash := canonicalHash(t, m, 95)
	o := newOrchestrator(m)

	res, err := o.Unwind(m.Ctx, rewind.ToBlock(types.BlockByNumber(90)))
	require.NoError(err)
	require.Equal(rewind.PathDirect, res.Path)
	require.Equal(rewind.BlockRange{Start: 91, End: 100}, res.Range)
	require.Equal(uint64(10), res.Removed)
	requireHead(t, m, 90)

	// 1+2+...+90
	require.Equal(uint64(4095), balance(t, m, recipient))
	require.NoError(m.DB.View(m.Ctx, func(tx kv.Tx) error {
		n, err := rawdb.ReadHeaderNumber(tx, removedHash)
		require.NoError(err)
		require.Nil(n)
		receipts, err := rawdb.ReadReceipts(tx, 95)
		require.NoError(err)
		require.Empty(receipts)
		headerHead, err := rawdb.ReadHeadHeaderNumber(tx)
		require.NoError(err)
		require.Equal(uint64(90), *headerHead)
		return nil
	}))
	_, ok := m.BlockReader.FrozenBlocks()
	require.False(ok)

	// the chain grows again on top of the new head
	require.NoError(m.InsertChain(m.GenerateChain(nil, 3, func(i int, b *core.BlockGen) { b.SetExtra([]byte{1}) })))
	requireHead(t, m, 93)
}

func TestPipelineUnwindOfFrozenRange(t *testing.T) {
	require := require.New(t)
	m := newNode(t, 100)
	freezeBelow(t, m, 96)
	tips, unsubscribe := m.TipEvents.Subscribe()
	defer unsubscribe()
	o := newOrchestrator(m)

	res, err := o.Unwind(m.Ctx, rewind.ToBlock(types.BlockByNumber(90)))
	require.NoError(err)
	require.Equal(rewind.PathPipeline, res.Path)
	require.Equal(uint64(10), res.Removed)
	requireHead(t, m, 90)
	require.Equal(uint64(4095), balance(t, m, recipient))

	// the rest of the chain was migrated before the unwind
	frozen, ok := m.BlockReader.FrozenBlocks()
	require.True(ok)
	require.Equal(uint64(100), frozen)

	tip := <-tips
	require.Equal(uint64(90), tip.Number)
	require.Equal(canonicalHash(t, m, 90), tip.Hash)

	require.NoError(m.DB.View(m.Ctx, func(tx kv.Tx) error {
		block, err := m.BlockReader.BlockByNumber(m.Ctx, tx, 95)
		require.NoError(err)
		require.Nil(block)
		return nil
	}))
}

func TestUnwindRightAboveWatermarkIsDirect(t *testing.T) {
	require := require.New(t)
	m := newNode(t, 100)
	freezeBelow(t, m, 91)

	res, err := newOrchestrator(m).Unwind(m.Ctx, rewind.ToBlock(types.BlockByNumber(90)))
	require.NoError(err)
	require.Equal(rewind.PathDirect, res.Path)
	requireHead(t, m, 90)

	frozen, ok := m.BlockReader.FrozenBlocks()
	require.True(ok)
	require.Equal(uint64(90), frozen)
}

func TestUnwindNumBlocks(t *testing.T) {
	require := require.New(t)
	m := newNode(t, 50)

	res, err := newOrchestrator(m).Unwind(m.Ctx, rewind.NumBlocks(10))
	require.NoError(err)
	require.Equal(rewind.BlockRange{Start: 41, End: 50}, res.Range)
	require.Equal(uint64(10), res.Removed)
	requireHead(t, m, 40)
}

func TestUnwindRejectsBadTargets(t *testing.T) {
	m := newNode(t, 20)
	o := newOrchestrator(m)
	before := dump(t, m.DB)

	for name, tc := range map[string]struct {
		target rewind.Target
		err    error
	}{
		"unknown hash":    {rewind.ToBlock(types.BlockByHash(common.Hash{0xde, 0xad})), rewind.ErrUnknownBlock},
		"genesis":         {rewind.ToBlock(types.BlockByNumber(0)), rewind.ErrGenesisUnwind},
		"head":            {rewind.ToBlock(types.BlockByNumber(20)), rewind.ErrInvalidRange},
		"above head":      {rewind.ToBlock(types.BlockByNumber(200)), rewind.ErrInvalidRange},
		"zero blocks":     {rewind.NumBlocks(0), rewind.ErrInvalidRange},
		"whole chain":     {rewind.NumBlocks(20), rewind.ErrGenesisUnwind},
		"more than chain": {rewind.NumBlocks(1_000), rewind.ErrGenesisUnwind},
		"hash of genesis": {rewind.ToBlock(types.BlockByHash(m.Genesis.Hash())), rewind.ErrGenesisUnwind},
		"hash of head":    {rewind.ToBlock(types.BlockByHash(canonicalHash(t, m, 20))), rewind.ErrInvalidRange},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := o.Unwind(m.Ctx, tc.target)
			require.ErrorIs(t, err, tc.err)
		})
	}
	require.Equal(t, before, dump(t, m.DB))
}

func TestUnwindIsIdempotent(t *testing.T) {
	require := require.New(t)
	m := newNode(t, 30)
	o := newOrchestrator(m)
	target := rewind.ToBlock(types.BlockByNumber(25))

	_, err := o.Unwind(m.Ctx, target)
	require.NoError(err)
	after := dump(t, m.DB)

	_, err = o.Unwind(m.Ctx, target)
	require.ErrorIs(err, rewind.ErrInvalidRange)
	require.Equal(after, dump(t, m.DB))
}

func TestUnwindClampsFinalized(t *testing.T) {
	for name, tc := range map[string]struct {
		freezeBelow uint64
		finalized   uint64
		want        uint64
	}{
		"direct above target":   {0, 95, 90},
		"direct below target":   {0, 80, 80},
		"direct at target":      {0, 90, 90},
		"pipeline above target": {96, 95, 90},
		"pipeline below target": {96, 80, 80},
	} {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			m := newNode(t, 100)
			if tc.freezeBelow > 0 {
				freezeBelow(t, m, tc.freezeBelow)
			}
			require.NoError(m.Finalize(tc.finalized))

			_, err := newOrchestrator(m).Unwind(m.Ctx, rewind.ToBlock(types.BlockByNumber(90)))
			require.NoError(err)
			finalized, err := m.Finalized()
			require.NoError(err)
			require.NotNil(finalized)
			require.Equal(tc.want, *finalized)
		})
	}
}

func TestUnwindKeepsUnsetFinalized(t *testing.T) {
	m := newNode(t, 20)
	_, err := newOrchestrator(m).Unwind(m.Ctx, rewind.NumBlocks(5))
	require.NoError(t, err)
	finalized, err := m.Finalized()
	require.NoError(t, err)
	require.Nil(t, finalized)
}

func TestResolveByHash(t *testing.T) {
	require := require.New(t)
	m := newNode(t, 20)
	r := rewind.NewResolver(m.DB)

	got, err := r.Resolve(m.Ctx, rewind.ToBlock(types.BlockByHash(canonicalHash(t, m, 12))))
	require.NoError(err)
	require.Equal(rewind.BlockRange{Start: 13, End: 20}, got)

	// a side block at height 15 is known but not canonical
	var parent *types.Block
	require.NoError(m.DB.View(m.Ctx, func(tx kv.Tx) (err error) {
		parent, err = m.BlockReader.BlockByNumber(m.Ctx, tx, 14)
		return err
	}))
	side := m.GenerateChain(parent, 1, func(i int, b *core.BlockGen) { b.SetExtra([]byte("side")) })
	require.NoError(m.DB.Update(m.Ctx, func(tx kv.RwTx) error {
		return rawdb.WriteHeader(tx, side.TopBlock.HeaderNoCopy())
	}))
	_, err = r.Resolve(m.Ctx, rewind.ToBlock(types.BlockByHash(side.TopBlock.Hash())))
	require.ErrorIs(err, rewind.ErrUnknownBlock)
}

func TestResolveGenesisOnly(t *testing.T) {
	m := mock.Mock(t)
	_, err := rewind.NewResolver(m.DB).Resolve(m.Ctx, rewind.NumBlocks(1))
	require.ErrorIs(t, err, rewind.ErrInvalidRange)
}

// faultyDB fails the transaction of the direct path at a chosen point.
type faultyDB struct {
	kv.RwDB
	failDeleteAt int
	failCommit   bool
}

var errInjected = errors.New("injected fault")

func (db *faultyDB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	tx, err := db.RwDB.BeginRw(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{RwTx: tx, db: db}, nil
}

type faultyTx struct {
	kv.RwTx
	db      *faultyDB
	deletes int
}

func (tx *faultyTx) Delete(table string, k []byte) error {
	tx.deletes++
	if tx.db.failDeleteAt > 0 && tx.deletes == tx.db.failDeleteAt {
		return errInjected
	}
	return tx.RwTx.Delete(table, k)
}

func (tx *faultyTx) Commit() error {
	if tx.db.failCommit {
		tx.RwTx.Rollback()
		return errInjected
	}
	return tx.RwTx.Commit()
}

func TestDirectUnwindIsAtomic(t *testing.T) {
	for name, fault := range map[string]faultyDB{
		"first delete": {failDeleteAt: 1},
		"late delete":  {failDeleteAt: 40},
		"commit":       {failCommit: true},
	} {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			m := newNode(t, 30)
			require.NoError(m.Finalize(28))
			before := dump(t, m.DB)

			db := fault
			db.RwDB = m.DB
			o := rewind.NewOrchestrator(rewind.NewResolver(m.DB), m.BlockReader, m.Pipeline,
				rewind.NewGateway(&db, m.BlockWriter, m.Log), m.Log)

			_, err := o.Unwind(m.Ctx, rewind.ToBlock(types.BlockByNumber(20)))
			var txErr *rewind.TransactionError
			require.ErrorAs(err, &txErr)
			require.ErrorIs(err, errInjected)
			require.Equal(before, dump(t, m.DB))

			// the same unwind succeeds once the fault is gone
			res, err := newOrchestrator(m).Unwind(m.Ctx, rewind.ToBlock(types.BlockByNumber(20)))
			require.NoError(err)
			require.Equal(uint64(10), res.Removed)
			requireHead(t, m, 20)
		})
	}
}
