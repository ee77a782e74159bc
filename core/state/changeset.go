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

package state

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erigontech/rewind/common/dbutils"
	"github.com/erigontech/rewind/kv"
)

// RevertChangeSets restores PlainState to the state after block `from-1` and deletes
// the changesets of `from` and newer. For every account the oldest changeset at or
// above `from` holds the value it had before `from`.
func RevertChangeSets(ctx context.Context, tx kv.RwTx, from uint64) (reverted int, err error) {
	restored := map[common.Address]struct{}{}
	if err := tx.ForEach(kv.AccountChangeSet, dbutils.EncodeBlockNumber(from), func(k, v []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, address, err := dbutils.DecodeChangeSetKey(k)
		if err != nil {
			return err
		}
		if _, ok := restored[address]; !ok {
			restored[address] = struct{}{}
			if len(v) == 0 {
				err = tx.Delete(kv.PlainState, address[:])
			} else {
				err = tx.Put(kv.PlainState, address[:], v)
			}
			if err != nil {
				return err
			}
		}
		return tx.Delete(kv.AccountChangeSet, k)
	}); err != nil {
		return 0, fmt.Errorf("revert changesets from %d: %w", from, err)
	}
	return len(restored), nil
}
