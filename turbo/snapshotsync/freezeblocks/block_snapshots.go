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

package freezeblocks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ledgerwatch/log/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/erigontech/rewind/common/dbutils"
	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/core/rawdb/blockio"
	"github.com/erigontech/rewind/eth/ethconfig"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/turbo/snapshotsync/snap"
)

var frozenBlocksGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "snapshots_frozen_blocks",
	Help: "Highest block number stored in block segments",
})

type Range struct {
	from, to uint64
}

func (r Range) From() uint64   { return r.from }
func (r Range) To() uint64     { return r.to }
func (r Range) String() string { return fmt.Sprintf("%d-%d", r.from, r.to) }

// RoSnapshots - the immutable tier. Segment files of one kind are contiguous from block 0
// and have [from:to) semantic. Files are only ever added: the highest frozen block never decreases.
type RoSnapshots struct {
	mu       sync.RWMutex
	segments map[snap.Type][]snap.FileInfo

	fs     afero.Fs
	dir    string
	cfg    ethconfig.BlocksFreezing
	cache  *lru.Cache[string, *Segment]
	logger log.Logger
}

func NewRoSnapshots(cfg ethconfig.BlocksFreezing, fs afero.Fs, snapDir string, logger log.Logger) *RoSnapshots {
	cache, err := lru.New[string, *Segment](max(cfg.SegmentCacheSize, 1))
	if err != nil {
		panic(err)
	}
	return &RoSnapshots{
		segments: map[snap.Type][]snap.FileInfo{},
		fs:       fs,
		dir:      snapDir,
		cfg:      cfg,
		cache:    cache,
		logger:   logger,
	}
}

func (s *RoSnapshots) Cfg() ethconfig.BlocksFreezing { return s.cfg }
func (s *RoSnapshots) Dir() string                   { return s.dir }
func (s *RoSnapshots) Fs() afero.Fs                  { return s.fs }

// ReopenFolder drops leftovers of interrupted dumps and rescans the segment files.
func (s *RoSnapshots) ReopenFolder() error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmpFiles, err := snap.TmpFiles(s.fs, s.dir)
	if err != nil {
		return err
	}
	for _, f := range tmpFiles {
		s.logger.Debug("[snapshots] Removing unfinished segment", "file", filepath.Base(f))
		if err := s.fs.Remove(f); err != nil {
			return err
		}
	}
	files, err := snap.Segments(s.fs, s.dir)
	if err != nil {
		return err
	}

	segments := map[snap.Type][]snap.FileInfo{}
	for _, f := range files {
		list := segments[f.T]
		var expected uint64
		if len(list) > 0 {
			expected = list[len(list)-1].To
		}
		if f.From != expected {
			s.logger.Warn("[snapshots] Segment does not continue its kind, skipping", "file", filepath.Base(f.Path), "expected_from", expected)
			continue
		}
		segments[f.T] = append(list, f)
	}

	s.mu.Lock()
	s.segments = segments
	s.mu.Unlock()
	s.cache.Purge()
	s.updateGauge()
	return nil
}

func (s *RoSnapshots) addSegment(f snap.FileInfo) error {
	s.mu.Lock()
	list := s.segments[f.T]
	var expected uint64
	if len(list) > 0 {
		expected = list[len(list)-1].To
	}
	if f.From != expected {
		s.mu.Unlock()
		return fmt.Errorf("segment %s does not continue %s segments at %d", filepath.Base(f.Path), f.T, expected)
	}
	s.segments[f.T] = append(list, f)
	s.mu.Unlock()
	s.updateGauge()
	return nil
}

func (s *RoSnapshots) updateGauge() {
	if frozen, ok := s.FrozenBlocks(); ok {
		frozenBlocksGauge.Set(float64(frozen))
	}
}

// SegmentsMax returns the highest block stored in segments of the given kind.
func (s *RoSnapshots) SegmentsMax(t snap.Type) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.segments[t]
	if len(list) == 0 {
		return 0, false
	}
	return list[len(list)-1].To - 1, true
}

// FrozenBlocks returns the highest block number present in any segment, false when the
// immutable tier is empty.
func (s *RoSnapshots) FrozenBlocks() (uint64, bool) {
	var frozen uint64
	var found bool
	for _, t := range snap.AllSnapshotTypes {
		if n, ok := s.SegmentsMax(t); ok && (!found || n > frozen) {
			frozen, found = n, true
		}
	}
	return frozen, found
}

// Ranges returns block ranges of the headers segments.
func (s *RoSnapshots) Ranges() (ranges []Range) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.segments[snap.Headers] {
		ranges = append(ranges, Range{from: f.From, to: f.To})
	}
	return ranges
}

func (s *RoSnapshots) Files() (list []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range snap.AllSnapshotTypes {
		for _, f := range s.segments[t] {
			list = append(list, filepath.Base(f.Path))
		}
	}
	return list
}

// ViewSegment returns the decoded segment of kind t containing block n, nil when no file has it.
func (s *RoSnapshots) ViewSegment(t snap.Type, n uint64) (*Segment, error) {
	s.mu.RLock()
	var info snap.FileInfo
	var ok bool
	for _, f := range s.segments[t] {
		if f.From <= n && n < f.To {
			info, ok = f, true
			break
		}
	}
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if seg, ok := s.cache.Get(info.Path); ok {
		return seg, nil
	}
	seg, err := OpenSegment(s.fs, info)
	if err != nil {
		return nil, err
	}
	s.cache.Add(info.Path, seg)
	return seg, nil
}

// Frozen reports whether every kind of block n is stored in segments under the given hash.
func (s *RoSnapshots) Frozen(n uint64, hash common.Hash) bool {
	for _, t := range snap.AllSnapshotTypes {
		seg, err := s.ViewSegment(t, n)
		if err != nil {
			s.logger.Warn("[snapshots] Cannot open segment", "type", t, "block", n, "err", err)
			return false
		}
		if seg == nil {
			return false
		}
		frozenHash, _, ok := seg.Block(n)
		if !ok || frozenHash != hash {
			return false
		}
	}
	return true
}

func (s *RoSnapshots) LogStat(lvl log.Lvl) {
	args := []interface{}{"files", len(s.Files())}
	for _, t := range snap.AllSnapshotTypes {
		if n, ok := s.SegmentsMax(t); ok {
			args = append(args, t.String(), n)
		}
	}
	s.logger.Log(lvl, "[snapshots] Blocks Stat", args...)
}

// chooseSegmentEnd ends a segment at the next multiple of blocksPerFile or at `to`, whichever is lower.
func chooseSegmentEnd(from, to, blocksPerFile uint64) uint64 {
	next := (from/blocksPerFile + 1) * blocksPerFile
	return min(next, to)
}

// DumpBlocks freezes canonical blocks below blockTo. Every kind resumes after its own highest
// frozen block, so a dump interrupted half-way continues where it stopped when called again.
func DumpBlocks(ctx context.Context, db kv.RoDB, snaps *RoSnapshots, blockTo uint64, lvl log.Lvl, logger log.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(snaps.Cfg().Workers, 1))
	for _, t := range snap.AllSnapshotTypes {
		t := t // go 1.21 directive: keep per-iteration capture
		g.Go(func() error {
			return dumpKind(gctx, db, snaps, t, blockTo, lvl, logger)
		})
	}
	return g.Wait()
}

func dumpKind(ctx context.Context, db kv.RoDB, snaps *RoSnapshots, t snap.Type, blockTo uint64, lvl log.Lvl, logger log.Logger) error {
	var blockFrom uint64
	if n, ok := snaps.SegmentsMax(t); ok {
		blockFrom = n + 1
	}
	blocksPerFile := snaps.Cfg().BlocksPerFile
	for i := blockFrom; i < blockTo; i = chooseSegmentEnd(i, blockTo, blocksPerFile) {
		if err := dumpRange(ctx, db, snaps, t, i, chooseSegmentEnd(i, blockTo, blocksPerFile), lvl, logger); err != nil {
			return fmt.Errorf("[snapshots] dump %s [%d, %d): %w", t, i, chooseSegmentEnd(i, blockTo, blocksPerFile), err)
		}
	}
	return nil
}

var errPayloadNotFound = errors.New("not found in db")

func dumpRange(ctx context.Context, db kv.RoDB, snaps *RoSnapshots, t snap.Type, blockFrom, blockTo uint64, lvl log.Lvl, logger log.Logger) error {
	fileName := snap.SegmentFileName(blockFrom, blockTo, t)
	c, err := NewCompressor(snaps.Fs(), filepath.Join(snaps.Dir(), fileName))
	if err != nil {
		return err
	}
	defer c.Close()

	logEvery := time.NewTicker(20 * time.Second)
	defer logEvery.Stop()

	if err := db.View(ctx, func(tx kv.Tx) error {
		for n := blockFrom; n < blockTo; n++ {
			hash, err := rawdb.ReadCanonicalHash(tx, n)
			if err != nil {
				return err
			}
			if hash == (common.Hash{}) {
				return fmt.Errorf("canonical hash of block %d: %w", n, errPayloadNotFound)
			}
			payload, err := readPayload(tx, t, hash, n)
			if err != nil {
				return err
			}
			if payload == nil {
				return fmt.Errorf("%s of block %d: %w", t, n, errPayloadNotFound)
			}
			if err := c.AddWord(blockWord(hash, payload)); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-logEvery.C:
				logger.Log(lvl, "[snapshots] Dumping "+t.String(), "block", n, "to", blockTo)
			default:
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if err := c.Compress(); err != nil {
		return err
	}
	info, err := snap.ParseFileName(snaps.Dir(), fileName)
	if err != nil {
		return err
	}
	if err := snaps.addSegment(info); err != nil {
		return err
	}
	logger.Log(lvl, "[snapshots] Segment created", "file", fileName)
	return nil
}

func readPayload(tx kv.Getter, t snap.Type, hash common.Hash, n uint64) ([]byte, error) {
	switch t {
	case snap.Headers:
		return rawdb.ReadHeaderRLP(tx, hash, n)
	case snap.Bodies:
		return rawdb.ReadBodyRLP(tx, hash, n)
	case snap.Receipts:
		return tx.GetOne(kv.Receipts, dbutils.EncodeBlockNumber(n))
	default:
		return nil, fmt.Errorf("unknown segment type %s", t)
	}
}

var ErrRetireInProgress = errors.New("block retirement already in progress")

// BlockRetire moves blocks of the mutable store into segment files and prunes them afterwards.
type BlockRetire struct {
	working atomic.Bool

	db          kv.RwDB
	snapshots   *RoSnapshots
	blockWriter *blockio.BlockWriter
	logger      log.Logger
}

func NewBlockRetire(db kv.RwDB, snapshots *RoSnapshots, blockWriter *blockio.BlockWriter, logger log.Logger) *BlockRetire {
	return &BlockRetire{db: db, snapshots: snapshots, blockWriter: blockWriter, logger: logger}
}

func (br *BlockRetire) Snapshots() *RoSnapshots { return br.snapshots }

// RetireBlocks freezes every canonical block up to the chain head that is not frozen yet.
// Nothing is removed from the mutable store.
func (br *BlockRetire) RetireBlocks(ctx context.Context, lvl log.Lvl) error {
	if !br.working.CompareAndSwap(false, true) {
		return ErrRetireInProgress
	}
	defer br.working.Store(false)

	var head *uint64
	if err := br.db.View(ctx, func(tx kv.Tx) (err error) {
		head, err = rawdb.ReadHeadBlockNumber(tx)
		return err
	}); err != nil {
		return err
	}
	if head == nil {
		return nil
	}
	if err := DumpBlocks(ctx, br.db, br.snapshots, *head+1, lvl, br.logger); err != nil {
		return err
	}
	br.snapshots.LogStat(lvl)
	return nil
}

// PruneAncientBlocks deletes up to limit blocks from the mutable store which are readable
// from segments under their canonical hash.
func (br *BlockRetire) PruneAncientBlocks(tx kv.RwTx, limit int) (int, error) {
	if br.snapshots.Cfg().KeepBlocks {
		return 0, nil
	}
	frozen, ok := br.snapshots.FrozenBlocks()
	if !ok {
		return 0, nil
	}
	deleted, err := br.blockWriter.PruneBlocks(tx, frozen+1, limit, br.snapshots.Frozen)
	if err != nil {
		return deleted, err
	}
	if deleted > 0 {
		br.logger.Debug("[snapshots] Pruned frozen blocks", "deleted", deleted, "frozen", frozen)
	}
	return deleted, nil
}
