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

package bitmapdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/c2h5oh/datasize"

	"github.com/erigontech/rewind/common/dbutils"
	"github.com/erigontech/rewind/kv"
)

const ShardLimit = 3 * datasize.KB

// lastShard is the suffix of the hot shard of every key.
const lastShard = math.MaxUint64

func NewBitmap64() *roaring64.Bitmap { return roaring64.New() }

func read(v []byte) (*roaring64.Bitmap, error) {
	bm := roaring64.New()
	if _, err := bm.ReadFrom(bytes.NewReader(v)); err != nil {
		return nil, err
	}
	return bm, nil
}

func write(bm *roaring64.Bitmap) ([]byte, error) {
	bm.RunOptimize()
	return bm.ToBytes()
}

// AppendMergeByOr merges delta into the hot shard of key. When the hot shard grows over
// ShardLimit it is frozen under its maximum and a new hot shard starts.
func AppendMergeByOr(tx kv.RwTx, table string, key []byte, delta *roaring64.Bitmap) error {
	lastShardKey := dbutils.IndexChunkKey(key, lastShard)
	currentLastV, err := tx.GetOne(table, lastShardKey)
	if err != nil {
		return err
	}
	if currentLastV == nil {
		v, err := write(delta)
		if err != nil {
			return err
		}
		return tx.Put(table, lastShardKey, v)
	}

	last, err := read(currentLastV)
	if err != nil {
		return err
	}
	if len(currentLastV) >= int(ShardLimit) {
		// rename existing last shard and create new last shard
		if err = tx.Put(table, dbutils.IndexChunkKey(key, last.Maximum()), currentLastV); err != nil {
			return err
		}
		v, err := write(delta)
		if err != nil {
			return err
		}
		return tx.Put(table, lastShardKey, v)
	}

	last.Or(delta)
	v, err := write(last)
	if err != nil {
		return err
	}
	return tx.Put(table, lastShardKey, v)
}

// Get returns all values of key in [from, to].
func Get(tx kv.Tx, table string, key []byte, from, to uint64) (*roaring64.Bitmap, error) {
	res := roaring64.New()
	err := tx.ForEach(table, dbutils.IndexChunkKey(key, from), func(k, v []byte) error {
		if !bytes.HasPrefix(k, key) || len(k) != len(key)+dbutils.NumberLength {
			return errStop
		}
		bm, err := read(v)
		if err != nil {
			return err
		}
		res.Or(bm)
		if binary.BigEndian.Uint64(k[len(key):]) >= to {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	if to < math.MaxUint64 {
		res.RemoveRange(to+1, math.MaxUint64)
	}
	if from > 0 {
		res.RemoveRange(0, from)
	}
	return res, nil
}

var errStop = errors.New("stop")

// TruncateRange removes every value >= from from the shards of key.
// Empty shards are deleted, and the highest surviving shard becomes the hot shard.
func TruncateRange(tx kv.RwTx, table string, key []byte, from uint64) error {
	var lastK, lastV []byte
	err := tx.ForPrefix(table, key, func(k, v []byte) error {
		if len(k) != len(key)+dbutils.NumberLength {
			return nil
		}
		if binary.BigEndian.Uint64(k[len(key):]) < from {
			lastK, lastV = bytes.Clone(k), bytes.Clone(v)
			return nil
		}
		bm, err := read(v)
		if err != nil {
			return err
		}
		bm.RemoveRange(from, math.MaxUint64)
		if bm.IsEmpty() { // don't store empty bitmaps
			return tx.Delete(table, k)
		}
		newV, err := write(bm)
		if err != nil {
			return err
		}
		lastK, lastV = bytes.Clone(k), newV
		return tx.Put(table, k, newV)
	})
	if err != nil {
		return err
	}
	if lastK == nil || binary.BigEndian.Uint64(lastK[len(key):]) == lastShard {
		return nil
	}
	// rename last shard
	if err = tx.Delete(table, lastK); err != nil {
		return err
	}
	return tx.Put(table, dbutils.IndexChunkKey(key, lastShard), lastV)
}
