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

package bitmapdb_test

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/kv/badgerdb"
	"github.com/erigontech/rewind/kv/bitmapdb"
)

func TestTruncateRange(t *testing.T) {
	require := require.New(t)
	db := badgerdb.New(log.New()).InMem().MustOpen()
	defer db.Close()

	key := []byte("address-0000000000000")
	other := []byte("address-0000000000001")
	tx, err := db.BeginRw(context.Background())
	require.NoError(err)
	defer tx.Rollback()

	// enough values to spill over several shards
	for i := uint64(1); i <= 5000; i++ {
		require.NoError(bitmapdb.AppendMergeByOr(tx, kv.LogAddressIndex, key, roaring64.BitmapOf(i*3)))
	}
	require.NoError(bitmapdb.AppendMergeByOr(tx, kv.LogAddressIndex, other, roaring64.BitmapOf(9000)))

	bm, err := bitmapdb.Get(tx, kv.LogAddressIndex, key, 0, 1<<62)
	require.NoError(err)
	require.Equal(uint64(5000), bm.GetCardinality())

	require.NoError(bitmapdb.TruncateRange(tx, kv.LogAddressIndex, key, 301))

	bm, err = bitmapdb.Get(tx, kv.LogAddressIndex, key, 0, 1<<62)
	require.NoError(err)
	require.Equal(uint64(100), bm.GetCardinality())
	require.Equal(uint64(300), bm.Maximum())

	// appending after a truncate goes to the hot shard again
	require.NoError(bitmapdb.AppendMergeByOr(tx, kv.LogAddressIndex, key, roaring64.BitmapOf(301)))
	bm, err = bitmapdb.Get(tx, kv.LogAddressIndex, key, 290, 400)
	require.NoError(err)
	require.Equal([]uint64{291, 294, 297, 300, 301}, bm.ToArray())

	bm, err = bitmapdb.Get(tx, kv.LogAddressIndex, other, 0, 1<<62)
	require.NoError(err)
	require.Equal([]uint64{9000}, bm.ToArray())
}

func TestTruncateEverything(t *testing.T) {
	require := require.New(t)
	db := badgerdb.New(log.New()).InMem().MustOpen()
	defer db.Close()

	key := []byte("k")
	require.NoError(db.Update(context.Background(), func(tx kv.RwTx) error {
		require.NoError(bitmapdb.AppendMergeByOr(tx, kv.LogAddressIndex, key, roaring64.BitmapOf(5, 6, 7)))
		require.NoError(bitmapdb.TruncateRange(tx, kv.LogAddressIndex, key, 1))
		count := 0
		require.NoError(tx.ForPrefix(kv.LogAddressIndex, key, func(k, v []byte) error {
			count++
			return nil
		}))
		require.Zero(count)
		return nil
	}))
}
