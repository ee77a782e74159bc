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

// Package types contains data types related to blocks stored by the node.
package types

import (
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var EmptyListHash = rlpHash([]common.Hash{})

// Header represents a block header.
type Header struct {
	ParentHash  common.Hash    `json:"parentHash"`
	Coinbase    common.Address `json:"miner"`
	Root        common.Hash    `json:"stateRoot"`
	TxHash      common.Hash    `json:"transactionsRoot"`
	ReceiptHash common.Hash    `json:"receiptsRoot"`
	Number      uint64         `json:"number"`
	GasLimit    uint64         `json:"gasLimit"`
	GasUsed     uint64         `json:"gasUsed"`
	Time        uint64         `json:"timestamp"`
	Extra       []byte         `json:"extraData"`
}

// Hash returns the block hash of the header, which is simply the keccak256 hash of its
// RLP encoding.
func (h *Header) Hash() common.Hash {
	return rlpHash(h)
}

func (h *Header) Copy() *Header {
	cpy := *h
	if len(h.Extra) > 0 {
		cpy.Extra = common.CopyBytes(h.Extra)
	}
	return &cpy
}

// Body is a simple (mutable, non-safe) data container for storing and moving
// a block's data contents (transactions) together.
type Body struct {
	Transactions []*Transaction
}

// Block represents a canonical block: a header and the transactions it carries.
type Block struct {
	header       *Header
	transactions Transactions

	hash atomic.Pointer[common.Hash]
}

// NewBlock creates a new block. The input data is copied, changes to header and to the
// field values will not affect the block.
//
// The values of TxHash and ReceiptHash in header are ignored and set to values derived
// from the given txs and receipts.
func NewBlock(header *Header, txs []*Transaction, receipts []*Receipt) *Block {
	b := &Block{header: header.Copy()}
	b.transactions = make(Transactions, len(txs))
	copy(b.transactions, txs)
	b.header.TxHash = DeriveListHash(b.transactions)
	b.header.ReceiptHash = DeriveListHash(Receipts(receipts))
	return b
}

// NewBlockFromStorage is NewBlock for data that was already validated and stored:
// the header is taken as is.
func NewBlockFromStorage(header *Header, body *Body) *Block {
	b := &Block{header: header}
	if body != nil {
		b.transactions = body.Transactions
	}
	return b
}

func (b *Block) Number() uint64                 { return b.header.Number }
func (b *Block) ParentHash() common.Hash        { return b.header.ParentHash }
func (b *Block) Coinbase() common.Address       { return b.header.Coinbase }
func (b *Block) Header() *Header                { return b.header.Copy() }
func (b *Block) HeaderNoCopy() *Header          { return b.header }
func (b *Block) Transactions() Transactions     { return b.transactions }
func (b *Block) Body() *Body                    { return &Body{Transactions: b.transactions} }
func (b *Block) Transaction(i int) *Transaction { return b.transactions[i] }

// Hash returns the keccak256 hash of b's header.
// The hash is computed on the first call and cached thereafter.
func (b *Block) Hash() common.Hash {
	if hash := b.hash.Load(); hash != nil {
		return *hash
	}
	h := b.header.Hash()
	b.hash.Store(&h)
	return h
}

func (b *Block) String() string {
	return fmt.Sprintf("Block(#%d %x txs=%d)", b.Number(), b.Hash(), len(b.transactions))
}

type hasher interface {
	Len() int
	hashAt(i int) common.Hash
}

// DeriveListHash commits to an ordered list of items by hashing the RLP list of their hashes.
func DeriveListHash(list hasher) common.Hash {
	if list.Len() == 0 {
		return EmptyListHash
	}
	hashes := make([]common.Hash, list.Len())
	for i := range hashes {
		hashes[i] = list.hashAt(i)
	}
	return rlpHash(hashes)
}

func rlpHash(x interface{}) common.Hash {
	enc, err := rlp.EncodeToBytes(x)
	if err != nil {
		panic(fmt.Sprintf("rlp encoding of %T: %v", x, err))
	}
	return crypto.Keccak256Hash(enc)
}
