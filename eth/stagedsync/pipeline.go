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
	"github.com/erigontech/rewind/turbo/shards"
	"github.com/erigontech/rewind/turbo/snapshotsync/freezeblocks"
)

// MigrationError reports that blocks could not be copied to segment files.
// Segments written before the failure stay, a later migration continues after them.
type MigrationError struct {
	Err error
}

func (e *MigrationError) Error() string { return fmt.Sprintf("migration to segments failed: %v", e.Err) }
func (e *MigrationError) Unwrap() error { return e.Err }

// Pipeline runs the stages over the mutable store and owns the migration of blocks into
// segment files. Listeners learn about the new chain tip from TipEvents once all stages moved.
type Pipeline struct {
	db          kv.RwDB
	sync        *Sync
	blockRetire *freezeblocks.BlockRetire
	tipEvents   *shards.TipEvents
	logger      log.Logger
}

func NewPipeline(db kv.RwDB, sync *Sync, blockRetire *freezeblocks.BlockRetire, tipEvents *shards.TipEvents, logger log.Logger) *Pipeline {
	return &Pipeline{db: db, sync: sync, blockRetire: blockRetire, tipEvents: tipEvents, logger: logger}
}

func (p *Pipeline) Sync() *Sync                  { return p.sync }
func (p *Pipeline) TipEvents() *shards.TipEvents { return p.tipEvents }

// MigrateToImmutable copies every canonical block up to the chain head which is not frozen yet
// into segment files. It is a no-op when everything is frozen and never removes blocks from
// the mutable store.
func (p *Pipeline) MigrateToImmutable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.blockRetire.RetireBlocks(ctx, log.LvlInfo); err != nil {
		return &MigrationError{Err: err}
	}
	return nil
}

// Forward moves all stages forward and announces the new head.
func (p *Pipeline) Forward(ctx context.Context) error {
	if err := p.sync.RunForward(ctx, p.db, nil); err != nil {
		return err
	}
	var head *uint64
	if err := p.db.View(ctx, func(tx kv.Tx) (err error) {
		head, err = rawdb.ReadHeadBlockNumber(tx)
		return err
	}); err != nil {
		return err
	}
	if head == nil {
		return nil
	}
	return p.announce(ctx, *head, nil)
}

// Unwind unwinds all stages to unwindPoint in unwind order and then announces unwindPoint as
// the new tip, under tipHint when given. Nothing is announced when a stage fails.
func (p *Pipeline) Unwind(ctx context.Context, unwindPoint uint64, tipHint *common.Hash) error {
	if err := p.sync.RunUnwind(ctx, p.db, nil, unwindPoint); err != nil {
		return err
	}
	p.logTimings()
	return p.announce(context.WithoutCancel(ctx), unwindPoint, tipHint)
}

// Prune runs the prune functions of all stages.
func (p *Pipeline) Prune(ctx context.Context) error {
	if err := p.sync.RunPrune(ctx, p.db, nil); err != nil {
		return err
	}
	p.logTimings()
	return nil
}

func (p *Pipeline) logTimings() {
	if timings := p.sync.PrintTimings(); len(timings) > 0 {
		p.logger.Info("[rewind] Timings (slower than 50ms)", timings...)
	}
}

func (p *Pipeline) announce(ctx context.Context, number uint64, hint *common.Hash) error {
	tip := shards.Tip{Number: number}
	if hint != nil {
		tip.Hash = *hint
	} else if err := p.db.View(ctx, func(tx kv.Tx) (err error) {
		tip.Hash, err = rawdb.ReadCanonicalHash(tx, number)
		return err
	}); err != nil {
		return err
	}
	p.tipEvents.Publish(tip)
	p.logger.Debug("[rewind] New tip", "number", tip.Number, "hash", tip.Hash)
	return nil
}
