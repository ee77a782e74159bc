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

package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/erigontech/rewind/chain"
	"github.com/erigontech/rewind/core/types"
)

// BlockGen creates blocks for testing.
// See GenerateChain for a detailed explanation.
type BlockGen struct {
	header *types.Header
	txs    []*types.Transaction
	config *chain.Config
	nonces map[common.Address]uint64
}

// SetCoinbase sets the coinbase of the generated block.
func (b *BlockGen) SetCoinbase(addr common.Address) {
	b.header.Coinbase = addr
}

// SetExtra sets the extra data field of the generated block.
func (b *BlockGen) SetExtra(data []byte) {
	b.header.Extra = data
}

// AddTransfer adds a value transfer from `from` to `to` with the next nonce of `from`.
func (b *BlockGen) AddTransfer(from, to common.Address, value uint64) *types.Transaction {
	nonce := b.nonces[from]
	b.nonces[from] = nonce + 1
	txn := types.NewTransaction(nonce, from, &to, uint256.NewInt(value), b.config.GasPerTransfer, nil)
	b.txs = append(b.txs, txn)
	return txn
}

// Number returns the block number of the block being generated.
func (b *BlockGen) Number() uint64 {
	return b.header.Number
}

// ChainPack is the result of GenerateChain.
type ChainPack struct {
	Headers  []*types.Header
	Blocks   []*types.Block
	TopBlock *types.Block // Convenience field to access the last block
}

// GenerateChain creates a chain of n blocks. The first block's
// parent will be the provided parent.
//
// The generator function is called with a new block generator for
// every block. Any transactions added to the generator
// become part of the block. If gen is nil, the blocks will be empty
// and their coinbase will be the zero address.
//
// Transactions are not executed here, so nonces are tracked per sender
// from the first generated block.
func GenerateChain(config *chain.Config, parent *types.Block, n int, gen func(int, *BlockGen)) *ChainPack {
	nonces := map[common.Address]uint64{}
	headers, blocks := make([]*types.Header, n), make([]*types.Block, n)
	for i := 0; i < n; i++ {
		b := &BlockGen{
			config: config,
			nonces: nonces,
			header: &types.Header{
				ParentHash: parent.Hash(),
				Number:     parent.Number() + 1,
				GasLimit:   parent.HeaderNoCopy().GasLimit,
				Time:       parent.HeaderNoCopy().Time + 12,
			},
		}
		if gen != nil {
			gen(i, b)
		}
		b.header.GasUsed = uint64(len(b.txs)) * config.GasPerTransfer
		block := types.NewBlock(b.header, b.txs, nil)
		headers[i] = block.Header()
		blocks[i] = block
		parent = block
	}
	return &ChainPack{Headers: headers, Blocks: blocks, TopBlock: blocks[n-1]}
}
