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

package kv

// Buckets of the mutable store. Every table is a key prefix inside one badger
// keyspace, so names must not contain zero bytes.

const (
	// Headers: block_num_u64 + hash -> header (RLP)
	Headers = "Header"

	// HeaderCanonical: block_num_u64 -> header hash
	HeaderCanonical = "CanonicalHeader"

	// HeaderNumber: header_hash -> num_u64
	HeaderNumber = "HeaderNumber"

	// BlockBody: block_num_u64 + hash -> block body (RLP)
	BlockBody = "BlockBody"

	// Receipts: block_num_u64 -> receipts of the block (RLP)
	Receipts = "Receipt"

	// PlainState: address -> account (RLP)
	PlainState = "PlainState"

	// AccountChangeSet: block_num_u64 + address -> account before the block was executed.
	// Empty value means the account did not exist.
	AccountChangeSet = "AccountChangeSet"

	// TxLookup: transaction_hash -> block_num_u64
	TxLookup = "BlockTransactionLookup"

	// LogAddressIndex: address + shard_u64 -> roaring bitmap of block numbers
	LogAddressIndex = "LogAddressIndex"

	// L1Origin: block_num_u64 -> L1 origin of an L2 block (JSON)
	L1Origin = "L1Origin"

	// SyncStageProgress: stage_name -> block_num_u64
	SyncStageProgress = "SyncStage"

	// ConfigTable: genesis_hash -> chain config (JSON)
	ConfigTable = "Config"

	// DatabaseInfo: singleton markers
	DatabaseInfo = "DbInfo"
)

// Keys of DatabaseInfo
var (
	HeadHeaderKey    = []byte("LastHeader")
	HeadBlockKey     = []byte("LastBlock")
	LastFinalizedKey = []byte("LastFinalized")
)

// ChaindataTables lists every table of the mutable store.
var ChaindataTables = []string{
	Headers,
	HeaderCanonical,
	HeaderNumber,
	BlockBody,
	Receipts,
	PlainState,
	AccountChangeSet,
	TxLookup,
	LogAddressIndex,
	L1Origin,
	SyncStageProgress,
	ConfigTable,
	DatabaseInfo,
}
