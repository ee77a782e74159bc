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

package types

import (
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Transaction is a value transfer between accounts. Signatures are verified before
// a transaction reaches storage, so the sender is stored explicitly.
type Transaction struct {
	Nonce uint64
	From  common.Address
	To    *common.Address `rlp:"nil"` // nil means contract creation
	Value *uint256.Int
	Gas   uint64
	Data  []byte

	hash atomic.Pointer[common.Hash]
}

func NewTransaction(nonce uint64, from common.Address, to *common.Address, value *uint256.Int, gas uint64, data []byte) *Transaction {
	return &Transaction{Nonce: nonce, From: from, To: to, Value: value, Gas: gas, Data: data}
}

// Hash returns the transaction hash.
func (tx *Transaction) Hash() common.Hash {
	if hash := tx.hash.Load(); hash != nil {
		return *hash
	}
	h := rlpHash(tx)
	tx.hash.Store(&h)
	return h
}

// Transactions implements DerivableList for transactions.
type Transactions []*Transaction

// Len returns the length of s.
func (s Transactions) Len() int { return len(s) }

func (s Transactions) hashAt(i int) common.Hash { return s[i].Hash() }
