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

package stagedsync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/rewind/core"
	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/core/state"
	"github.com/erigontech/rewind/eth/stagedsync"
	"github.com/erigontech/rewind/eth/stagedsync/stages"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/kv/bitmapdb"
	stages2 "github.com/erigontech/rewind/turbo/stages/mock"
)

var recipient = common.Address{0xaa}

// insertTransfers inserts n blocks, block i carrying one transfer of value i to recipient.
func insertTransfers(t *testing.T, m *stages2.MockNode, n int) *core.ChainPack {
	t.Helper()
	chain := m.GenerateChain(nil, n, func(i int, b *core.BlockGen) {
		b.AddTransfer(m.Address, recipient, uint64(i+1))
	})
	require.NoError(t, m.InsertChain(chain))
	return chain
}

func progress(t *testing.T, m *stages2.MockNode) map[stages.SyncStage]uint64 {
	t.Helper()
	res := map[stages.SyncStage]uint64{}
	require.NoError(t, m.DB.View(m.Ctx, func(tx kv.Tx) error {
		for _, s := range stages.AllStages {
			p, err := stages.GetStageProgress(tx, s)
			if err != nil {
				return err
			}
			res[s] = p
		}
		return nil
	}))
	return res
}

func balance(t *testing.T, m *stages2.MockNode, addr common.Address) uint64 {
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

func TestForwardAndUnwind(t *testing.T) {
	require := require.New(t)
	m := stages2.Mock(t)
	chain := insertTransfers(t, m, 10)

	for s, p := range progress(t, m) {
		require.Equal(uint64(10), p, s)
	}
	require.Equal(uint64(55), balance(t, m, recipient))

	require.NoError(m.Pipeline.Unwind(m.Ctx, 5, nil))
	for s, p := range progress(t, m) {
		require.Equal(uint64(5), p, s)
	}
	require.Equal(uint64(15), balance(t, m, recipient))

	head, err := m.Head()
	require.NoError(err)
	require.Equal(uint64(5), head)

	require.NoError(m.DB.View(m.Ctx, func(tx kv.Tx) error {
		kept, removed := chain.Blocks[4], chain.Blocks[6]

		n, err := rawdb.ReadTxLookupEntry(tx, kept.Transactions()[0].Hash())
		require.NoError(err)
		require.NotNil(n)
		n, err = rawdb.ReadTxLookupEntry(tx, removed.Transactions()[0].Hash())
		require.NoError(err)
		require.Nil(n)

		has, err := rawdb.HasReceipts(tx, removed.Number())
		require.NoError(err)
		require.False(has)
		origin, err := rawdb.ReadL1Origin(tx, removed.Number())
		require.NoError(err)
		require.Nil(origin)
		hash, err := rawdb.ReadCanonicalHash(tx, removed.Number())
		require.NoError(err)
		require.Equal(common.Hash{}, hash)
		num, err := rawdb.ReadHeaderNumber(tx, removed.Hash())
		require.NoError(err)
		require.Nil(num)

		bm, err := bitmapdb.Get(tx, kv.LogAddressIndex, recipient[:], 0, 100)
		require.NoError(err)
		require.Equal([]uint64{1, 2, 3, 4, 5}, bm.ToArray())
		return nil
	}))

	// the chain grows again from the unwind point
	grown := m.GenerateChain(nil, 3, func(i int, b *core.BlockGen) { b.SetExtra([]byte("again")) })
	require.NoError(m.InsertChain(grown))
	head, err = m.Head()
	require.NoError(err)
	require.Equal(uint64(8), head)
}

func TestUnwindStageFailureStopsLaterStages(t *testing.T) {
	require := require.New(t)
	m := stages2.Mock(t)
	insertTransfers(t, m, 10)

	var execUnwind stagedsync.UnwindFunc
	for _, s := range m.Sync.Stages() {
		if s.ID == stages.Execution {
			execUnwind = s.Unwind
		}
	}
	boom := errors.New("boom")
	m.Sync.MockUnwindFunc(stages.Execution, func(ctx context.Context, u *stagedsync.UnwindState, s *stagedsync.StageState, tx kv.RwTx, logger log.Logger) error {
		return boom
	})

	err := m.Pipeline.Unwind(m.Ctx, 5, nil)
	var failure *stagedsync.StageFailure
	require.ErrorAs(err, &failure)
	require.Equal(stages.Execution, failure.Stage)
	require.ErrorIs(err, boom)

	p := progress(t, m)
	require.Equal(uint64(5), p[stages.Finish])
	require.Equal(uint64(5), p[stages.TxLookup])
	require.Equal(uint64(5), p[stages.LogIndex])
	require.Equal(uint64(10), p[stages.Execution])
	require.Equal(uint64(10), p[stages.Bodies])
	require.Equal(uint64(10), p[stages.Headers])
	require.Equal(uint64(55), balance(t, m, recipient))

	tip, ok := m.TipEvents.Latest()
	require.True(ok)
	require.Equal(uint64(10), tip.Number)

	// a retry continues with the failed stage, finished stages are skipped
	finishRuns := 0
	m.Sync.MockUnwindFunc(stages.Execution, execUnwind)
	for _, s := range m.Sync.Stages() {
		if s.ID == stages.Finish {
			finishUnwind := s.Unwind
			s.Unwind = func(ctx context.Context, u *stagedsync.UnwindState, st *stagedsync.StageState, tx kv.RwTx, logger log.Logger) error {
				finishRuns++
				return finishUnwind(ctx, u, st, tx, logger)
			}
		}
	}
	require.NoError(m.Pipeline.Unwind(m.Ctx, 5, nil))
	require.Zero(finishRuns)
	for s, p := range progress(t, m) {
		require.Equal(uint64(5), p, s)
	}
	require.Equal(uint64(15), balance(t, m, recipient))
}

func TestUnwindChecksContextBetweenStages(t *testing.T) {
	require := require.New(t)
	m := stages2.Mock(t)
	insertTransfers(t, m, 10)

	ctx, cancel := context.WithCancel(m.Ctx)
	defer cancel()
	for _, s := range m.Sync.Stages() {
		if s.ID == stages.Finish {
			finishUnwind := s.Unwind
			s.Unwind = func(ctx context.Context, u *stagedsync.UnwindState, st *stagedsync.StageState, tx kv.RwTx, logger log.Logger) error {
				cancel()
				// the running stage is not interrupted
				require.NoError(ctx.Err())
				return finishUnwind(ctx, u, st, tx, logger)
			}
		}
	}

	err := m.Pipeline.Unwind(ctx, 5, nil)
	require.ErrorIs(err, context.Canceled)
	p := progress(t, m)
	require.Equal(uint64(5), p[stages.Finish])
	require.Equal(uint64(10), p[stages.TxLookup])
}

func TestLogPrefixes(t *testing.T) {
	require := require.New(t)
	m := stages2.Mock(t)
	require.Equal(6, m.Sync.Len())
	require.NoError(m.Sync.SetCurrentStage(stages.Execution))
	require.Equal("3/6 Execution", m.Sync.LogPrefix())
	require.Error(m.Sync.SetCurrentStage("Unknown"))
}

func TestUnwindTimings(t *testing.T) {
	require := require.New(t)
	m := stages2.Mock(t)
	insertTransfers(t, m, 4)

	for _, s := range m.Sync.Stages() {
		if s.ID == stages.Execution {
			execUnwind := s.Unwind
			s.Unwind = func(ctx context.Context, u *stagedsync.UnwindState, st *stagedsync.StageState, tx kv.RwTx, logger log.Logger) error {
				time.Sleep(60 * time.Millisecond)
				return execUnwind(ctx, u, st, tx, logger)
			}
		}
	}
	require.NoError(m.Pipeline.Unwind(m.Ctx, 2, nil))

	timings := m.Sync.PrintTimings()
	require.Contains(timings, "Unwind Execution")
	require.NotContains(timings, "Execution")

	// a second unwind to the same point skips every stage
	require.NoError(m.Pipeline.Unwind(m.Ctx, 2, nil))
	require.Empty(m.Sync.PrintTimings())
}
