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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/erigontech/rewind/common/dbutils"
	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/kv"
)

var errStopIteration = errors.New("stop iteration")

// ReadCanonicalHash retrieves the hash assigned to a canonical block number.
func ReadCanonicalHash(db kv.Getter, number uint64) (common.Hash, error) {
	data, err := db.GetOne(kv.HeaderCanonical, dbutils.EncodeBlockNumber(number))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed ReadCanonicalHash: %w, number=%d", err, number)
	}
	if len(data) == 0 {
		return common.Hash{}, nil
	}
	return common.BytesToHash(data), nil
}

// WriteCanonicalHash stores the hash assigned to a canonical block number.
func WriteCanonicalHash(db kv.Putter, hash common.Hash, number uint64) error {
	if err := db.Put(kv.HeaderCanonical, dbutils.EncodeBlockNumber(number), hash.Bytes()); err != nil {
		return fmt.Errorf("failed to store number to hash mapping: %w", err)
	}
	return nil
}

// TruncateCanonicalHash removes all the number to hash canonical mapping from block number N
func TruncateCanonicalHash(tx kv.RwTx, blockFrom uint64) error {
	if err := tx.ForEach(kv.HeaderCanonical, dbutils.EncodeBlockNumber(blockFrom), func(k, _ []byte) error {
		return tx.Delete(kv.HeaderCanonical, k)
	}); err != nil {
		return fmt.Errorf("TruncateCanonicalHash: %w", err)
	}
	return nil
}

// ReadHeaderNumber returns the header number assigned to a hash.
func ReadHeaderNumber(db kv.Getter, hash common.Hash) (*uint64, error) {
	data, err := db.GetOne(kv.HeaderNumber, hash.Bytes())
	if err != nil {
		return nil, fmt.Errorf("ReadHeaderNumber: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) != 8 {
		return nil, fmt.Errorf("ReadHeaderNumber: corrupted value of %d bytes for %x", len(data), hash)
	}
	number := binary.BigEndian.Uint64(data)
	return &number, nil
}

// WriteHeaderNumber stores the hash->number mapping.
func WriteHeaderNumber(db kv.Putter, hash common.Hash, number uint64) error {
	if err := db.Put(kv.HeaderNumber, hash[:], dbutils.EncodeBlockNumber(number)); err != nil {
		return fmt.Errorf("WriteHeaderNumber: %w", err)
	}
	return nil
}

// DeleteHeaderNumber removes hash->number mapping.
func DeleteHeaderNumber(db kv.Deleter, hash common.Hash) error {
	if err := db.Delete(kv.HeaderNumber, hash[:]); err != nil {
		return fmt.Errorf("DeleteHeaderNumber: %w", err)
	}
	return nil
}

func readHash(db kv.Getter, key []byte) (common.Hash, error) {
	data, err := db.GetOne(kv.DatabaseInfo, key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read %s: %w", key, err)
	}
	if len(data) == 0 {
		return common.Hash{}, nil
	}
	return common.BytesToHash(data), nil
}

// WriteHeadHeaderHash stores the hash of the current canonical head header.
func WriteHeadHeaderHash(db kv.Putter, hash common.Hash) error {
	if err := db.Put(kv.DatabaseInfo, kv.HeadHeaderKey, hash.Bytes()); err != nil {
		return fmt.Errorf("failed to store last header's hash: %w", err)
	}
	return nil
}

// WriteHeadBlockHash stores the head block's hash.
func WriteHeadBlockHash(db kv.Putter, hash common.Hash) error {
	if err := db.Put(kv.DatabaseInfo, kv.HeadBlockKey, hash.Bytes()); err != nil {
		return fmt.Errorf("failed to store last block's hash: %w", err)
	}
	return nil
}

// ReadHeadBlockNumber returns the number of the chain head, nil for an empty database.
func ReadHeadBlockNumber(db kv.Getter) (*uint64, error) {
	return readHeadNumber(db, kv.HeadBlockKey)
}

// ReadHeadHeaderNumber returns the number of the highest canonical header. It is ahead of the
// head block while an unwind is half done.
func ReadHeadHeaderNumber(db kv.Getter) (*uint64, error) {
	return readHeadNumber(db, kv.HeadHeaderKey)
}

func readHeadNumber(db kv.Getter, key []byte) (*uint64, error) {
	hash, err := readHash(db, key)
	if err != nil {
		return nil, err
	}
	if hash == (common.Hash{}) {
		return nil, nil
	}
	number, err := ReadHeaderNumber(db, hash)
	if err != nil {
		return nil, err
	}
	if number == nil {
		return nil, fmt.Errorf("head %s %x has no number", key, hash)
	}
	return number, nil
}

// WriteHeadMarkers moves both head markers to hash.
func WriteHeadMarkers(db kv.Putter, hash common.Hash) error {
	if err := WriteHeadHeaderHash(db, hash); err != nil {
		return err
	}
	return WriteHeadBlockHash(db, hash)
}

// ReadFinalizedBlockNumber returns the finalized pointer, nil when nothing is finalized yet.
func ReadFinalizedBlockNumber(db kv.Getter) (*uint64, error) {
	data, err := db.GetOne(kv.DatabaseInfo, kv.LastFinalizedKey)
	if err != nil {
		return nil, fmt.Errorf("ReadFinalizedBlockNumber: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	n, err := dbutils.DecodeBlockNumber(data)
	if err != nil {
		return nil, fmt.Errorf("ReadFinalizedBlockNumber: %w", err)
	}
	return &n, nil
}

func WriteFinalizedBlockNumber(db kv.Putter, number uint64) error {
	if err := db.Put(kv.DatabaseInfo, kv.LastFinalizedKey, dbutils.EncodeBlockNumber(number)); err != nil {
		return fmt.Errorf("WriteFinalizedBlockNumber: %w", err)
	}
	return nil
}

// ClampFinalizedBlockNumber lowers the finalized pointer to limit if it is above it.
// Returns the previous value when it was changed.
func ClampFinalizedBlockNumber(tx kv.RwTx, limit uint64) (*uint64, error) {
	finalized, err := ReadFinalizedBlockNumber(tx)
	if err != nil {
		return nil, err
	}
	if finalized == nil || *finalized <= limit {
		return nil, nil
	}
	if err = WriteFinalizedBlockNumber(tx, limit); err != nil {
		return nil, err
	}
	return finalized, nil
}

// ReadHeaderRLP retrieves a block header in its raw RLP database encoding.
func ReadHeaderRLP(db kv.Getter, hash common.Hash, number uint64) (rlp.RawValue, error) {
	data, err := db.GetOne(kv.Headers, dbutils.HeaderKey(number, hash))
	if err != nil {
		return nil, fmt.Errorf("ReadHeaderRLP failed: %w", err)
	}
	return data, nil
}

// ReadHeader retrieves the block header corresponding to the hash.
func ReadHeader(db kv.Getter, hash common.Hash, number uint64) (*types.Header, error) {
	data, err := ReadHeaderRLP(db, hash, number)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	header := new(types.Header)
	if err := rlp.DecodeBytes(data, header); err != nil {
		return nil, fmt.Errorf("invalid block header RLP, hash=%x: %w", hash, err)
	}
	return header, nil
}

func ReadHeaderByNumber(db kv.Getter, number uint64) (*types.Header, error) {
	hash, err := ReadCanonicalHash(db, number)
	if err != nil {
		return nil, err
	}
	if hash == (common.Hash{}) {
		return nil, nil
	}
	return ReadHeader(db, hash, number)
}

// WriteHeader stores a block header and its hash->number mapping.
func WriteHeader(db kv.Putter, header *types.Header) error {
	var (
		hash    = header.Hash()
		number  = header.Number
		encoded = dbutils.EncodeBlockNumber(number)
	)
	if err := db.Put(kv.HeaderNumber, hash[:], encoded); err != nil {
		return fmt.Errorf("HeaderNumber mapping: %w", err)
	}
	data, err := rlp.EncodeToBytes(header)
	if err != nil {
		return fmt.Errorf("WriteHeader: %w", err)
	}
	if err := db.Put(kv.Headers, dbutils.HeaderKey(number, hash), data); err != nil {
		return fmt.Errorf("WriteHeader: %w", err)
	}
	return nil
}

// ReadBodyRLP retrieves the block body (transactions) in RLP encoding.
func ReadBodyRLP(db kv.Getter, hash common.Hash, number uint64) (rlp.RawValue, error) {
	return db.GetOne(kv.BlockBody, dbutils.BlockBodyKey(number, hash))
}

// ReadBody retrieves the block body corresponding to the hash.
func ReadBody(db kv.Getter, hash common.Hash, number uint64) (*types.Body, error) {
	data, err := ReadBodyRLP(db, hash, number)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	body := new(types.Body)
	if err := rlp.DecodeBytes(data, body); err != nil {
		return nil, fmt.Errorf("invalid block body RLP, hash=%x: %w", hash, err)
	}
	return body, nil
}

// WriteBody stores a block body into the database.
func WriteBody(db kv.Putter, hash common.Hash, number uint64, body *types.Body) error {
	data, err := rlp.EncodeToBytes(body)
	if err != nil {
		return fmt.Errorf("WriteBody: %w", err)
	}
	if err := db.Put(kv.BlockBody, dbutils.BlockBodyKey(number, hash), data); err != nil {
		return fmt.Errorf("WriteBody: %w", err)
	}
	return nil
}

// ReadReceipts retrieves all the transaction receipts belonging to a block.
func ReadReceipts(db kv.Getter, number uint64) (types.Receipts, error) {
	data, err := db.GetOne(kv.Receipts, dbutils.EncodeBlockNumber(number))
	if err != nil {
		return nil, fmt.Errorf("ReadReceipts: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var receipts types.Receipts
	if err := rlp.DecodeBytes(data, &receipts); err != nil {
		return nil, fmt.Errorf("invalid receipt array RLP, block=%d: %w", number, err)
	}
	return receipts, nil
}

func HasReceipts(db kv.Has, number uint64) (bool, error) {
	return db.Has(kv.Receipts, dbutils.EncodeBlockNumber(number))
}

// WriteReceipts stores all the transaction receipts belonging to a block.
func WriteReceipts(db kv.Putter, number uint64, receipts types.Receipts) error {
	data, err := rlp.EncodeToBytes(receipts)
	if err != nil {
		return fmt.Errorf("encode block receipts for block %d: %w", number, err)
	}
	if err = db.Put(kv.Receipts, dbutils.EncodeBlockNumber(number), data); err != nil {
		return fmt.Errorf("writing receipts for block %d: %w", number, err)
	}
	return nil
}

// TruncateReceipts removes all receipt for given block number or newer
func TruncateReceipts(tx kv.RwTx, number uint64) error {
	if err := tx.ForEach(kv.Receipts, dbutils.EncodeBlockNumber(number), func(k, _ []byte) error {
		return tx.Delete(kv.Receipts, k)
	}); err != nil {
		return fmt.Errorf("TruncateReceipts: %w", err)
	}
	return nil
}

// DeleteAncientBlocks - delete [1, blockTo) old blocks after moving it to snapshots.
// keeps genesis in db, canonical markers and hash->number mapping.
// skips blocks isFrozen does not confirm, so unfrozen or non-canonical data stays
func DeleteAncientBlocks(tx kv.RwTx, blockTo uint64, blocksDeleteLimit int, isFrozen func(n uint64, hash common.Hash) bool) (deleted int, err error) {
	err = tx.ForEach(kv.Headers, dbutils.EncodeBlockNumber(1), func(k, _ []byte) error {
		n := binary.BigEndian.Uint64(k)
		if n >= blockTo || deleted >= blocksDeleteLimit { // [from, to)
			return errStopIteration
		}
		canonicalHash, err := ReadCanonicalHash(tx, n)
		if err != nil {
			return err
		}
		if !bytes.Equal(k[8:], canonicalHash[:]) || !isFrozen(n, canonicalHash) {
			return nil
		}
		deleted++
		if err := tx.Delete(kv.Headers, k); err != nil {
			return err
		}
		if err := tx.Delete(kv.BlockBody, k); err != nil {
			return err
		}
		return tx.Delete(kv.Receipts, k[:8])
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return 0, err
	}
	return deleted, nil
}
