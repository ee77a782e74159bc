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

package dbutils

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const NumberLength = 8

// EncodeBlockNumber encodes a block number as big endian uint64
func EncodeBlockNumber(number uint64) []byte {
	enc := make([]byte, NumberLength)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

var ErrInvalidSize = errors.New("bit endian number has an invalid size")

func DecodeBlockNumber(number []byte) (uint64, error) {
	if len(number) != NumberLength {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, len(number))
	}
	return binary.BigEndian.Uint64(number), nil
}

// HeaderKey = num (uint64 big endian) + hash
func HeaderKey(number uint64, hash common.Hash) []byte {
	k := make([]byte, NumberLength+common.HashLength)
	binary.BigEndian.PutUint64(k, number)
	copy(k[NumberLength:], hash[:])
	return k
}

// BlockBodyKey = num (uint64 big endian) + hash
func BlockBodyKey(number uint64, hash common.Hash) []byte {
	return HeaderKey(number, hash)
}

// ChangeSetKey = blockN (uint64 big endian) + address
func ChangeSetKey(blockNumber uint64, addr common.Address) []byte {
	k := make([]byte, NumberLength+common.AddressLength)
	binary.BigEndian.PutUint64(k, blockNumber)
	copy(k[NumberLength:], addr[:])
	return k
}

func DecodeChangeSetKey(k []byte) (uint64, common.Address, error) {
	if len(k) != NumberLength+common.AddressLength {
		return 0, common.Address{}, fmt.Errorf("%w: changeset key of %d bytes", ErrInvalidSize, len(k))
	}
	return binary.BigEndian.Uint64(k), common.BytesToAddress(k[NumberLength:]), nil
}

// IndexChunkKey = address + chunk suffix (uint64 big endian), used by the bitmap indices.
// The last chunk of every key carries ^uint64(0) so a Seek lands on it.
func IndexChunkKey(key []byte, chunkMax uint64) []byte {
	k := make([]byte, len(key)+NumberLength)
	copy(k, key)
	binary.BigEndian.PutUint64(k[len(key):], chunkMax)
	return k
}
