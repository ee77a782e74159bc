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

package blockio

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/rewind/common/dbutils"
	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/core/state"
	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/eth/stagedsync/stages"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/kv/bitmapdb"
)

// BlockWriter can write blocks to the mutable store and remove them again.
// Every method works inside the caller's transaction and never commits.
type BlockWriter struct {
	logger log.Logger
}

func NewBlockWriter(logger log.Logger) *BlockWriter {
	return &BlockWriter{logger: logger}
}

// WriteBlock stores header, hash->number mapping, body and the optional L1 origin.
// Canonical markers are left to the caller.
func (w *BlockWriter) WriteBlock(tx kv.RwTx, block *types.Block, origin *types.L1Origin) error {
	if err := rawdb.WriteHeader(tx, block.HeaderNoCopy()); err != nil {
		return err
	}
	if err := rawdb.WriteBody(tx, block.Hash(), block.Number(), block.Body()); err != nil {
		return err
	}
	if origin != nil {
		if err := rawdb.WriteL1Origin(tx, block.Number(), origin); err != nil {
			return err
		}
	}
	return nil
}

// TruncateHeaders removes canonical markers, headers and hash->number mappings of `from` and newer.
// Mappings of canonical blocks already pruned to segments are removed too.
func (w *BlockWriter) TruncateHeaders(tx kv.RwTx, from uint64) error {
	if err := tx.ForEach(kv.HeaderCanonical, dbutils.EncodeBlockNumber(from), func(_, v []byte) error {
		return rawdb.DeleteHeaderNumber(tx, common.BytesToHash(v))
	}); err != nil {
		return err
	}
	if err := rawdb.TruncateCanonicalHash(tx, from); err != nil {
		return err
	}
	return tx.ForEach(kv.Headers, dbutils.EncodeBlockNumber(from), func(k, _ []byte) error {
		if err := rawdb.DeleteHeaderNumber(tx, common.BytesToHash(k[8:])); err != nil {
			return err
		}
		return tx.Delete(kv.Headers, k)
	})
}

// TruncateBodies removes bodies and L1 origins of `from` and newer.
func (w *BlockWriter) TruncateBodies(tx kv.RwTx, from uint64) error {
	if err := tx.ForEach(kv.BlockBody, dbutils.EncodeBlockNumber(from), func(k, _ []byte) error {
		return tx.Delete(kv.BlockBody, k)
	}); err != nil {
		return fmt.Errorf("TruncateBodies: %w", err)
	}
	return rawdb.TruncateL1Origins(tx, from)
}

// UnwindHead points the head markers at block `to` and lowers the finalized pointer
// to `to` when it is above it.
func (w *BlockWriter) UnwindHead(tx kv.RwTx, to uint64, logPrefix string) error {
	hash, err := rawdb.ReadCanonicalHash(tx, to)
	if err != nil {
		return err
	}
	if hash == (common.Hash{}) {
		return fmt.Errorf("no canonical block %d to move the head to", to)
	}
	if err = rawdb.WriteHeadMarkers(tx, hash); err != nil {
		return err
	}
	prev, err := rawdb.ClampFinalizedBlockNumber(tx, to)
	if err != nil {
		return err
	}
	if prev != nil {
		w.logger.Info(fmt.Sprintf("[%s] Finalized block moved back", logPrefix), "from", *prev, "to", to)
	}
	return nil
}

// TakenRange describes what TakeBlockAndExecutionRange removed.
type TakenRange struct {
	From, To        uint64
	Transactions    int
	RevertedAccount int
	LogAddresses    int
}

// TakeBlockAndExecutionRange removes blocks [from, to] together with everything derived
// from executing them: state changes are reverted, receipts, tx lookups, log index
// entries and L1 origins are deleted, head markers and every stage's progress are moved
// to from-1. The blocks must be present in the mutable store.
func (w *BlockWriter) TakeBlockAndExecutionRange(ctx context.Context, tx kv.RwTx, from, to uint64) (*TakenRange, error) {
	if from == 0 || from > to {
		return nil, fmt.Errorf("invalid range to take [%d, %d]", from, to)
	}
	logEvery := time.NewTicker(20 * time.Second)
	defer logEvery.Stop()

	taken := &TakenRange{From: from, To: to}
	addresses := map[common.Address]struct{}{}
	for n := from; n <= to; n++ {
		hash, err := rawdb.ReadCanonicalHash(tx, n)
		if err != nil {
			return nil, err
		}
		if hash == (common.Hash{}) {
			return nil, fmt.Errorf("canonical hash of block %d not found", n)
		}
		body, err := rawdb.ReadBody(tx, hash, n)
		if err != nil {
			return nil, err
		}
		if body != nil {
			for _, txn := range body.Transactions {
				if err = rawdb.DeleteTxLookupEntry(tx, txn.Hash()); err != nil {
					return nil, err
				}
			}
			taken.Transactions += len(body.Transactions)
		}
		receipts, err := rawdb.ReadReceipts(tx, n)
		if err != nil {
			return nil, err
		}
		for _, r := range receipts {
			for _, l := range r.Logs {
				addresses[l.Address] = struct{}{}
			}
		}

		select {
		case <-logEvery.C:
			w.logger.Info("[rewind] Collecting block data", "block", n, "to", to)
		default:
		}
	}
	for addr := range addresses {
		if err := bitmapdb.TruncateRange(tx, kv.LogAddressIndex, addr[:], from); err != nil {
			return nil, err
		}
	}
	taken.LogAddresses = len(addresses)

	reverted, err := state.RevertChangeSets(ctx, tx, from)
	if err != nil {
		return nil, err
	}
	taken.RevertedAccount = reverted
	if err = rawdb.TruncateReceipts(tx, from); err != nil {
		return nil, err
	}
	if err = w.TruncateBodies(tx, from); err != nil {
		return nil, err
	}
	if err = w.UnwindHead(tx, from-1, "rewind"); err != nil {
		return nil, err
	}
	if err = w.TruncateHeaders(tx, from); err != nil {
		return nil, err
	}
	for _, stage := range stages.AllStages {
		progress, err := stages.GetStageProgress(tx, stage)
		if err != nil {
			return nil, err
		}
		if progress >= from {
			if err = stages.SaveStageProgress(tx, stage, from-1); err != nil {
				return nil, err
			}
		}
	}
	return taken, nil
}

// PruneBlocks deletes headers, bodies and receipts of canonical blocks below blockTo
// that isFrozen confirms are readable from the immutable tier.
func (w *BlockWriter) PruneBlocks(tx kv.RwTx, blockTo uint64, blocksDeleteLimit int, isFrozen func(n uint64, hash common.Hash) bool) (deleted int, err error) {
	return rawdb.DeleteAncientBlocks(tx, blockTo, blocksDeleteLimit, isFrozen)
}
