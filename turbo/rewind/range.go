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
	"errors"
	"fmt"

	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/eth/stagedsync"
)

var (
	ErrUnknownBlock     = errors.New("block hash not found in database")
	ErrInvalidRange     = errors.New("target block number is not below the latest block number")
	ErrGenesisUnwind    = errors.New("cannot unwind genesis block")
	ErrUnwindInProgress = errors.New("unwind already in progress")
)

// TransactionError reports a failed direct unwind. The transaction was not committed.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string { return fmt.Sprintf("transaction error on unwind: %v", e.Err) }
func (e *TransactionError) Unwrap() error { return e.Err }

type (
	StageFailure   = stagedsync.StageFailure
	MigrationError = stagedsync.MigrationError
)

// Target names how far to unwind. Exactly one field is set.
type Target struct {
	// ToBlock keeps the given block and removes everything after it.
	ToBlock *types.BlockHashOrNumber
	// NumBlocks removes that many blocks from the head.
	NumBlocks *uint64
}

func ToBlock(b types.BlockHashOrNumber) Target { return Target{ToBlock: &b} }
func NumBlocks(n uint64) Target                { return Target{NumBlocks: &n} }

func (t Target) String() string {
	switch {
	case t.ToBlock != nil:
		return "to-block " + t.ToBlock.String()
	case t.NumBlocks != nil:
		return fmt.Sprintf("num-blocks %d", *t.NumBlocks)
	default:
		return "<empty>"
	}
}

// BlockRange is the inclusive range of blocks an unwind removes.
type BlockRange struct {
	Start, End uint64
}

func NewBlockRange(start, end uint64) (BlockRange, error) {
	if start == 0 {
		return BlockRange{}, ErrGenesisUnwind
	}
	if start > end {
		return BlockRange{}, fmt.Errorf("%w: range [%d, %d]", ErrInvalidRange, start, end)
	}
	return BlockRange{Start: start, End: end}, nil
}

func (r BlockRange) Count() uint64  { return r.End - r.Start + 1 }
func (r BlockRange) String() string { return fmt.Sprintf("[%d, %d]", r.Start, r.End) }
