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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/erigontech/rewind/chain"
	"github.com/erigontech/rewind/core/state"
	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/kv"
)

// TransferTopic is the topic of the log every value transfer emits.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// ExecuteBlock applies the transfers of block on top of the latest state, writes the
// account changesets of the block and returns the receipts.
// Block validity is established before a block is stored, execution only fails on
// state that does not allow the transfers.
func ExecuteBlock(tx kv.RwTx, config *chain.Config, block *types.Block) (types.Receipts, error) {
	ibs := state.New(state.NewPlainStateReader(tx))
	receipts := make(types.Receipts, 0, len(block.Transactions()))
	var usedGas uint64
	for i, txn := range block.Transactions() {
		receipt, err := applyTransaction(config, ibs, block, i, txn, &usedGas)
		if err != nil {
			return nil, fmt.Errorf("could not apply tx %d [%x]: %w", i, txn.Hash(), err)
		}
		receipts = append(receipts, receipt)
	}
	if block.Number() > 0 {
		if err := ibs.AddBalance(block.Coinbase(), config.Reward()); err != nil {
			return nil, err
		}
	}
	if err := ibs.CommitBlock(state.NewPlainStateWriter(tx, block.Number())); err != nil {
		return nil, fmt.Errorf("commit block %d: %w", block.Number(), err)
	}
	return receipts, nil
}

func applyTransaction(config *chain.Config, ibs *state.IntraBlockState, block *types.Block, index int, txn *types.Transaction, usedGas *uint64) (*types.Receipt, error) {
	nonce, err := ibs.GetNonce(txn.From)
	if err != nil {
		return nil, err
	}
	if nonce != txn.Nonce {
		return nil, fmt.Errorf("nonce mismatch: address %x, tx: %d state: %d", txn.From, txn.Nonce, nonce)
	}
	if err = ibs.SubBalance(txn.From, txn.Value); err != nil {
		return nil, err
	}
	if err = ibs.SetNonce(txn.From, nonce+1); err != nil {
		return nil, err
	}
	to := txn.From
	if txn.To != nil {
		to = *txn.To
	}
	if err = ibs.AddBalance(to, txn.Value); err != nil {
		return nil, err
	}
	*usedGas += config.GasPerTransfer

	return &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: *usedGas,
		Logs: []*types.Log{{
			Address: to,
			Topics:  []common.Hash{TransferTopic, common.BytesToHash(txn.From[:]), common.BytesToHash(to[:])},
			Data:    txn.Value.PaddedBytes(32),
		}},
		TxHash:           txn.Hash(),
		BlockNumber:      block.Number(),
		TransactionIndex: uint(index),
	}, nil
}
