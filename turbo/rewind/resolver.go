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
	"errors"
	"fmt"

	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/kv"
)

// Resolver turns an unwind target into the range of blocks to remove. It only reads.
type Resolver struct {
	db kv.RoDB
}

func NewResolver(db kv.RoDB) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns [target+1, head]. The head is the highest canonical header, so a pipeline
// unwind that stopped half way resolves to the same range again.
func (r *Resolver) Resolve(ctx context.Context, target Target) (res BlockRange, err error) {
	err = r.db.View(ctx, func(tx kv.Tx) error {
		head, err := rawdb.ReadHeadHeaderNumber(tx)
		if err != nil {
			return err
		}
		if head == nil {
			return fmt.Errorf("%w: database has no blocks", ErrInvalidRange)
		}
		last := *head

		number, err := targetNumber(tx, target, last)
		if err != nil {
			return err
		}
		if number >= last {
			return fmt.Errorf("%w: target %d, latest %d", ErrInvalidRange, number, last)
		}
		if number == 0 {
			return ErrGenesisUnwind
		}
		res, err = NewBlockRange(number+1, last)
		return err
	})
	return res, err
}

func targetNumber(tx kv.Getter, target Target, last uint64) (uint64, error) {
	switch {
	case target.NumBlocks != nil:
		if *target.NumBlocks >= last {
			return 0, nil
		}
		return last - *target.NumBlocks, nil
	case target.ToBlock != nil && target.ToBlock.Hash != nil:
		hash := *target.ToBlock.Hash
		number, err := rawdb.ReadHeaderNumber(tx, hash)
		if err != nil {
			return 0, err
		}
		if number == nil {
			return 0, fmt.Errorf("%w: %x", ErrUnknownBlock, hash)
		}
		canonical, err := rawdb.ReadCanonicalHash(tx, *number)
		if err != nil {
			return 0, err
		}
		if canonical != hash {
			return 0, fmt.Errorf("%w: %x is not canonical at %d (canonical %x)", ErrUnknownBlock, hash, *number, canonical)
		}
		return *number, nil
	case target.ToBlock != nil && target.ToBlock.Number != nil:
		return *target.ToBlock.Number, nil
	default:
		return 0, errors.New("empty unwind target")
	}
}
