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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/eth/ethconfig"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/turbo/services"
	"github.com/erigontech/rewind/turbo/snapshotsync/snap"
)

var _ services.FullBlockReader = &BlockReader{}

// BlockReader can read blocks from the mutable store and from segment files.
// The mutable store is asked first. A segment entry is used only when it was frozen
// under the hash the caller asks for, so blocks of unwound forks are never returned.
type BlockReader struct {
	sn *RoSnapshots
}

func NewBlockReader(snapshots *RoSnapshots) *BlockReader {
	return &BlockReader{sn: snapshots}
}

func (r *BlockReader) Snapshots() *RoSnapshots               { return r.sn }
func (r *BlockReader) FrozenBlocks() (uint64, bool)          { return r.sn.FrozenBlocks() }
func (r *BlockReader) FreezingCfg() ethconfig.BlocksFreezing { return r.sn.Cfg() }

func (r *BlockReader) frozen(t snap.Type, hash common.Hash, blockHeight uint64) ([]byte, error) {
	seg, err := r.sn.ViewSegment(t, blockHeight)
	if err != nil || seg == nil {
		return nil, err
	}
	frozenHash, payload, ok := seg.Block(blockHeight)
	if !ok || frozenHash != hash {
		return nil, nil
	}
	return payload, nil
}

// CanonicalHash - canonical markers are kept in the mutable store even for pruned blocks.
func (r *BlockReader) CanonicalHash(ctx context.Context, tx kv.Getter, blockHeight uint64) (common.Hash, error) {
	return rawdb.ReadCanonicalHash(tx, blockHeight)
}

func (r *BlockReader) Header(ctx context.Context, tx kv.Getter, hash common.Hash, blockHeight uint64) (*types.Header, error) {
	h, err := rawdb.ReadHeader(tx, hash, blockHeight)
	if err != nil || h != nil {
		return h, err
	}
	payload, err := r.frozen(snap.Headers, hash, blockHeight)
	if err != nil || payload == nil {
		return nil, err
	}
	h = new(types.Header)
	if err := rlp.DecodeBytes(payload, h); err != nil {
		return nil, fmt.Errorf("frozen header %d: %w", blockHeight, err)
	}
	return h, nil
}

func (r *BlockReader) HeaderByNumber(ctx context.Context, tx kv.Getter, blockHeight uint64) (*types.Header, error) {
	hash, err := r.CanonicalHash(ctx, tx, blockHeight)
	if err != nil {
		return nil, err
	}
	if hash == (common.Hash{}) {
		return nil, nil
	}
	return r.Header(ctx, tx, hash, blockHeight)
}

func (r *BlockReader) BodyWithTransactions(ctx context.Context, tx kv.Getter, hash common.Hash, blockHeight uint64) (*types.Body, error) {
	body, err := rawdb.ReadBody(tx, hash, blockHeight)
	if err != nil || body != nil {
		return body, err
	}
	payload, err := r.frozen(snap.Bodies, hash, blockHeight)
	if err != nil || payload == nil {
		return nil, err
	}
	body = new(types.Body)
	if err := rlp.DecodeBytes(payload, body); err != nil {
		return nil, fmt.Errorf("frozen body %d: %w", blockHeight, err)
	}
	return body, nil
}

// Receipts of the block, nil when they are neither in the mutable store nor frozen.
// Receipts in the mutable store are keyed by number, so hash must be canonical.
func (r *BlockReader) Receipts(ctx context.Context, tx kv.Getter, hash common.Hash, blockHeight uint64) (types.Receipts, error) {
	ok, err := rawdb.HasReceipts(tx, blockHeight)
	if err != nil {
		return nil, err
	}
	if ok {
		receipts, err := rawdb.ReadReceipts(tx, blockHeight)
		if err != nil {
			return nil, err
		}
		if receipts == nil {
			receipts = types.Receipts{}
		}
		return receipts, nil
	}
	payload, err := r.frozen(snap.Receipts, hash, blockHeight)
	if err != nil || payload == nil {
		return nil, err
	}
	receipts := types.Receipts{}
	if err := rlp.DecodeBytes(payload, &receipts); err != nil {
		return nil, fmt.Errorf("frozen receipts %d: %w", blockHeight, err)
	}
	return receipts, nil
}

func (r *BlockReader) BlockByNumber(ctx context.Context, tx kv.Getter, blockHeight uint64) (*types.Block, error) {
	h, err := r.HeaderByNumber(ctx, tx, blockHeight)
	if err != nil || h == nil {
		return nil, err
	}
	body, err := r.BodyWithTransactions(ctx, tx, h.Hash(), blockHeight)
	if err != nil || body == nil {
		return nil, err
	}
	return types.NewBlockFromStorage(h, body), nil
}
