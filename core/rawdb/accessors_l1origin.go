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

package rawdb

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/erigontech/rewind/common/dbutils"
	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/kv"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func ReadL1Origin(db kv.Getter, blockNum uint64) (*types.L1Origin, error) {
	data, err := db.GetOne(kv.L1Origin, dbutils.EncodeBlockNumber(blockNum))
	if err != nil {
		return nil, fmt.Errorf("ReadL1Origin: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	origin := new(types.L1Origin)
	if err := json.Unmarshal(data, origin); err != nil {
		return nil, fmt.Errorf("invalid L1 origin JSON, block=%d: %w", blockNum, err)
	}
	return origin, nil
}

func WriteL1Origin(db kv.Putter, blockNum uint64, origin *types.L1Origin) error {
	data, err := json.Marshal(origin)
	if err != nil {
		return fmt.Errorf("WriteL1Origin: %w", err)
	}
	return db.Put(kv.L1Origin, dbutils.EncodeBlockNumber(blockNum), data)
}

// TruncateL1Origins removes L1 origins of blockFrom and newer.
func TruncateL1Origins(tx kv.RwTx, blockFrom uint64) error {
	if err := tx.ForEach(kv.L1Origin, dbutils.EncodeBlockNumber(blockFrom), func(k, _ []byte) error {
		return tx.Delete(kv.L1Origin, k)
	}); err != nil {
		return fmt.Errorf("TruncateL1Origins: %w", err)
	}
	return nil
}
