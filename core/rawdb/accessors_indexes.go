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
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/kv"
)

// ReadTxLookupEntry retrieves the positional metadata associated with a transaction
// hash to allow retrieving the transaction or receipt by hash.
func ReadTxLookupEntry(db kv.Getter, txnHash common.Hash) (*uint64, error) {
	v, err := db.GetOne(kv.TxLookup, txnHash.Bytes())
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, nil
	}
	number := new(big.Int).SetBytes(v).Uint64()
	return &number, nil
}

// WriteTxLookupEntries stores a positional metadata for every transaction from
// a block, enabling hash based transaction and receipt lookups.
func WriteTxLookupEntries(db kv.Putter, block *types.Block) error {
	data := new(big.Int).SetUint64(block.Number()).Bytes()
	for _, txn := range block.Transactions() {
		if err := db.Put(kv.TxLookup, txn.Hash().Bytes(), data); err != nil {
			return fmt.Errorf("failed to store transaction lookup entry: %w", err)
		}
	}
	return nil
}

// DeleteTxLookupEntry removes all transaction data associated with a hash.
func DeleteTxLookupEntry(db kv.Deleter, hash common.Hash) error {
	return db.Delete(kv.TxLookup, hash.Bytes())
}
