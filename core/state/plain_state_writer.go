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
	"github.com/ethereum/go-ethereum/common"

	"github.com/erigontech/rewind/common/dbutils"
	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/kv"
)

// PlainStateWriter writes the latest state and records, for every account touched by
// the block, its value before the block in AccountChangeSet.
type PlainStateWriter struct {
	tx          kv.RwTx
	blockNumber uint64
	recorded    map[common.Address]struct{}
}

func NewPlainStateWriter(tx kv.RwTx, blockNumber uint64) *PlainStateWriter {
	return &PlainStateWriter{
		tx:          tx,
		blockNumber: blockNumber,
		recorded:    map[common.Address]struct{}{},
	}
}

// UpdateAccountData stores account, original is the value the account had when the
// block started (nil if it did not exist).
func (w *PlainStateWriter) UpdateAccountData(address common.Address, original, account *types.Account) error {
	if err := w.recordChange(address, original); err != nil {
		return err
	}
	value, err := encodeAccount(account)
	if err != nil {
		return err
	}
	return w.tx.Put(kv.PlainState, address[:], value)
}

func (w *PlainStateWriter) recordChange(address common.Address, original *types.Account) error {
	if _, ok := w.recorded[address]; ok {
		return nil
	}
	w.recorded[address] = struct{}{}
	prev, err := encodeAccount(original)
	if err != nil {
		return err
	}
	return w.tx.Put(kv.AccountChangeSet, dbutils.ChangeSetKey(w.blockNumber, address), prev)
}
