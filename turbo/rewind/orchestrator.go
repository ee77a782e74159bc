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

package rewind

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ledgerwatch/log/v3"
)

//go:generate mockgen -destination=./orchestrator_mock.go -package=rewind . RangeResolver,FrozenBlocksReader,Pipeline,DirectUnwinder

type RangeResolver interface {
	Resolve(ctx context.Context, target Target) (BlockRange, error)
}

// FrozenBlocksReader reports the highest block of the immutable tier, false when it is empty.
type FrozenBlocksReader interface {
	FrozenBlocks() (uint64, bool)
}

type Pipeline interface {
	MigrateToImmutable(ctx context.Context) error
	Unwind(ctx context.Context, unwindPoint uint64, tipHint *common.Hash) error
}

type DirectUnwinder interface {
	UnwindRange(ctx context.Context, r BlockRange) error
}

type Path int

const (
	PathNone Path = iota
	PathDirect
	PathPipeline
)

func (p Path) String() string {
	switch p {
	case PathDirect:
		return "direct"
	case PathPipeline:
		return "pipeline"
	default:
		return "none"
	}
}

// Result describes a finished unwind.
type Result struct {
	Range   BlockRange
	Path    Path
	Removed uint64
}

// Orchestrator decides how a range of blocks is removed. Ranges reaching into the immutable
// tier go through the pipeline after everything up to the head was frozen, ranges above it
// are deleted from the mutable store in one transaction.
type Orchestrator struct {
	mu sync.Mutex

	resolver RangeResolver
	frozen   FrozenBlocksReader
	pipeline Pipeline
	direct   DirectUnwinder
	logger   log.Logger
}

func NewOrchestrator(resolver RangeResolver, frozen FrozenBlocksReader, pipeline Pipeline, direct DirectUnwinder, logger log.Logger) *Orchestrator {
	return &Orchestrator{resolver: resolver, frozen: frozen, pipeline: pipeline, direct: direct, logger: logger}
}

// Unwind removes the blocks after target. The context is honoured between steps only:
// a started migration, stage unwind or direct transaction runs to its end.
func (o *Orchestrator) Unwind(ctx context.Context, target Target) (Result, error) {
	if !o.mu.TryLock() {
		failuresTotal.WithLabelValues(errorKind(ErrUnwindInProgress)).Inc()
		return Result{}, ErrUnwindInProgress
	}
	defer o.mu.Unlock()

	start := time.Now()
	res, err := o.unwind(ctx, target)
	if err != nil {
		failuresTotal.WithLabelValues(errorKind(err)).Inc()
		o.logger.Warn("[rewind] Unwind failed", "target", target, "path", res.Path, "kind", errorKind(err), "err", err)
		return res, err
	}
	unwindsTotal.WithLabelValues(res.Path.String()).Inc()
	unwindDuration.WithLabelValues(res.Path.String()).Observe(time.Since(start).Seconds())
	blocksRemovedTotal.Add(float64(res.Removed))
	o.logger.Info("[rewind] Unwind done", "range", res.Range, "path", res.Path, "removed", res.Removed, "in", time.Since(start))
	return res, nil
}

func (o *Orchestrator) unwind(ctx context.Context, target Target) (res Result, err error) {
	if err = ctx.Err(); err != nil {
		return res, err
	}
	if res.Range, err = o.resolver.Resolve(ctx, target); err != nil {
		return res, err
	}
	if res.Range.Start == 0 {
		return res, ErrGenesisUnwind
	}

	watermark, frozen := o.frozen.FrozenBlocks()
	if frozen && watermark >= res.Range.Start {
		res.Path = PathPipeline
		o.logger.Info("[rewind] Executing a pipeline unwind", "range", res.Range, "frozen", watermark)
		if err = ctx.Err(); err != nil {
			return res, err
		}
		if err = o.pipeline.MigrateToImmutable(ctx); err != nil {
			return res, err
		}
		if err = ctx.Err(); err != nil {
			return res, err
		}
		if err = o.pipeline.Unwind(ctx, res.Range.Start-1, nil); err != nil {
			return res, err
		}
	} else {
		res.Path = PathDirect
		o.logger.Info("[rewind] Executing a database unwind", "range", res.Range)
		if err = ctx.Err(); err != nil {
			return res, err
		}
		if err = o.direct.UnwindRange(ctx, res.Range); err != nil {
			return res, err
		}
	}
	res.Removed = res.Range.Count()
	return res, nil
}
