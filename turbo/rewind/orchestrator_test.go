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
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/eth/stagedsync/stages"
	"github.com/erigontech/rewind/turbo/rewind"
)

type mocks struct {
	resolver *rewind.MockRangeResolver
	frozen   *rewind.MockFrozenBlocksReader
	pipeline *rewind.MockPipeline
	direct   *rewind.MockDirectUnwinder
	o        *rewind.Orchestrator
}

func newMocks(t *testing.T) *mocks {
	ctrl := gomock.NewController(t)
	m := &mocks{
		resolver: rewind.NewMockRangeResolver(ctrl),
		frozen:   rewind.NewMockFrozenBlocksReader(ctrl),
		pipeline: rewind.NewMockPipeline(ctrl),
		direct:   rewind.NewMockDirectUnwinder(ctrl),
	}
	m.o = rewind.NewOrchestrator(m.resolver, m.frozen, m.pipeline, m.direct, log.New())
	return m
}

var to90 = rewind.ToBlock(types.BlockByNumber(90))

func TestOrchestratorPipelinePathMigratesFirst(t *testing.T) {
	m := newMocks(t)
	m.resolver.EXPECT().Resolve(gomock.Any(), to90).Return(rewind.BlockRange{Start: 91, End: 100}, nil)
	m.frozen.EXPECT().FrozenBlocks().Return(uint64(95), true)
	gomock.InOrder(
		m.pipeline.EXPECT().MigrateToImmutable(gomock.Any()).Return(nil),
		m.pipeline.EXPECT().Unwind(gomock.Any(), uint64(90), gomock.Nil()).Return(nil),
	)

	res, err := m.o.Unwind(context.Background(), to90)
	require.NoError(t, err)
	require.Equal(t, rewind.PathPipeline, res.Path)
	require.Equal(t, uint64(10), res.Removed)
}

func TestOrchestratorDirectPath(t *testing.T) {
	r := rewind.BlockRange{Start: 91, End: 100}
	for name, frozen := range map[string]struct {
		n  uint64
		ok bool
	}{
		"empty tier":                  {0, false},
		"range above the tier":        {50, true},
		"start right after watermark": {90, true},
	} {
		t.Run(name, func(t *testing.T) {
			m := newMocks(t)
			m.resolver.EXPECT().Resolve(gomock.Any(), to90).Return(r, nil)
			m.frozen.EXPECT().FrozenBlocks().Return(frozen.n, frozen.ok)
			m.direct.EXPECT().UnwindRange(gomock.Any(), r).Return(nil)

			res, err := m.o.Unwind(context.Background(), to90)
			require.NoError(t, err)
			require.Equal(t, rewind.PathDirect, res.Path)
			require.Equal(t, uint64(10), res.Removed)
			require.Equal(t, r, res.Range)
		})
	}
}

func TestOrchestratorSpanningRangeTakesPipeline(t *testing.T) {
	m := newMocks(t)
	m.resolver.EXPECT().Resolve(gomock.Any(), to90).Return(rewind.BlockRange{Start: 91, End: 100}, nil)
	m.frozen.EXPECT().FrozenBlocks().Return(uint64(91), true)
	gomock.InOrder(
		m.pipeline.EXPECT().MigrateToImmutable(gomock.Any()).Return(nil),
		m.pipeline.EXPECT().Unwind(gomock.Any(), uint64(90), gomock.Nil()).Return(nil),
	)
	res, err := m.o.Unwind(context.Background(), to90)
	require.NoError(t, err)
	require.Equal(t, rewind.PathPipeline, res.Path)
}

func TestOrchestratorMigrationFailureSkipsUnwind(t *testing.T) {
	m := newMocks(t)
	m.resolver.EXPECT().Resolve(gomock.Any(), to90).Return(rewind.BlockRange{Start: 91, End: 100}, nil)
	m.frozen.EXPECT().FrozenBlocks().Return(uint64(95), true)
	m.pipeline.EXPECT().MigrateToImmutable(gomock.Any()).Return(&rewind.MigrationError{Err: errors.New("disk full")})

	res, err := m.o.Unwind(context.Background(), to90)
	var migrationErr *rewind.MigrationError
	require.ErrorAs(t, err, &migrationErr)
	require.Zero(t, res.Removed)
}

func TestOrchestratorStageFailure(t *testing.T) {
	m := newMocks(t)
	m.resolver.EXPECT().Resolve(gomock.Any(), to90).Return(rewind.BlockRange{Start: 91, End: 100}, nil)
	m.frozen.EXPECT().FrozenBlocks().Return(uint64(95), true)
	m.pipeline.EXPECT().MigrateToImmutable(gomock.Any()).Return(nil)
	m.pipeline.EXPECT().Unwind(gomock.Any(), uint64(90), gomock.Nil()).
		Return(&rewind.StageFailure{Stage: stages.Execution, Err: errors.New("boom")})

	_, err := m.o.Unwind(context.Background(), to90)
	var failure *rewind.StageFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, stages.Execution, failure.Stage)
}

func TestOrchestratorTransactionError(t *testing.T) {
	m := newMocks(t)
	r := rewind.BlockRange{Start: 91, End: 100}
	m.resolver.EXPECT().Resolve(gomock.Any(), to90).Return(r, nil)
	m.frozen.EXPECT().FrozenBlocks().Return(uint64(0), false)
	m.direct.EXPECT().UnwindRange(gomock.Any(), r).Return(&rewind.TransactionError{Err: errors.New("commit")})

	res, err := m.o.Unwind(context.Background(), to90)
	var txErr *rewind.TransactionError
	require.ErrorAs(t, err, &txErr)
	require.Equal(t, rewind.PathDirect, res.Path)
	require.Zero(t, res.Removed)
}

func TestOrchestratorResolverErrorsFailFast(t *testing.T) {
	for _, want := range []error{rewind.ErrUnknownBlock, rewind.ErrInvalidRange, rewind.ErrGenesisUnwind} {
		m := newMocks(t)
		m.resolver.EXPECT().Resolve(gomock.Any(), to90).Return(rewind.BlockRange{}, want)
		_, err := m.o.Unwind(context.Background(), to90)
		require.ErrorIs(t, err, want)
	}
}

func TestOrchestratorRejectsGenesisRange(t *testing.T) {
	m := newMocks(t)
	m.resolver.EXPECT().Resolve(gomock.Any(), to90).Return(rewind.BlockRange{Start: 0, End: 100}, nil)
	_, err := m.o.Unwind(context.Background(), to90)
	require.ErrorIs(t, err, rewind.ErrGenesisUnwind)
}

func TestOrchestratorCanceledBeforeStart(t *testing.T) {
	m := newMocks(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.o.Unwind(ctx, to90)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOrchestratorCanceledAfterMigration(t *testing.T) {
	m := newMocks(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.resolver.EXPECT().Resolve(gomock.Any(), to90).Return(rewind.BlockRange{Start: 91, End: 100}, nil)
	m.frozen.EXPECT().FrozenBlocks().Return(uint64(95), true)
	m.pipeline.EXPECT().MigrateToImmutable(gomock.Any()).DoAndReturn(func(context.Context) error {
		cancel()
		return nil
	})

	_, err := m.o.Unwind(ctx, to90)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOrchestratorOneUnwindAtATime(t *testing.T) {
	m := newMocks(t)
	entered, release := make(chan struct{}), make(chan struct{})
	m.resolver.EXPECT().Resolve(gomock.Any(), to90).DoAndReturn(func(context.Context, rewind.Target) (rewind.BlockRange, error) {
		close(entered)
		<-release
		return rewind.BlockRange{}, rewind.ErrInvalidRange
	})

	done := make(chan error)
	go func() {
		_, err := m.o.Unwind(context.Background(), to90)
		done <- err
	}()
	<-entered
	_, err := m.o.Unwind(context.Background(), to90)
	require.ErrorIs(t, err, rewind.ErrUnwindInProgress)
	close(release)
	require.ErrorIs(t, <-done, rewind.ErrInvalidRange)
}

func TestBlockRange(t *testing.T) {
	r, err := rewind.NewBlockRange(91, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(10), r.Count())
	require.Equal(t, "[91, 100]", r.String())

	r, err = rewind.NewBlockRange(5, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(1), r.Count())

	_, err = rewind.NewBlockRange(0, 5)
	require.ErrorIs(t, err, rewind.ErrGenesisUnwind)
	_, err = rewind.NewBlockRange(6, 5)
	require.ErrorIs(t, err, rewind.ErrInvalidRange)
}
