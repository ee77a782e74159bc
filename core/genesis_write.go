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
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/rewind/chain"
	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/params"
	"github.com/erigontech/rewind/params/networkname"
)

var ErrGenesisNoConfig = errors.New("genesis has no chain configuration")

// GenesisMismatchError is raised when trying to overwrite an existing
// genesis block with an incompatible one.
type GenesisMismatchError struct {
	Stored, New common.Hash
}

func (e *GenesisMismatchError) Error() string {
	return fmt.Sprintf("database contains incompatible genesis (have %x, new %x)", e.Stored, e.New)
}

// GenesisAccount is an account in the state of the genesis block.
type GenesisAccount struct {
	Balance *uint256.Int `json:"balance"`
	Nonce   uint64       `json:"nonce,omitempty"`
}

// GenesisAlloc specifies the initial state that is part of the genesis block.
type GenesisAlloc map[common.Address]GenesisAccount

// Genesis specifies the header fields, state of a genesis block.
type Genesis struct {
	Config    *chain.Config  `json:"config"`
	Timestamp uint64         `json:"timestamp"`
	ExtraData hexutil.Bytes  `json:"extraData"`
	GasLimit  uint64         `json:"gasLimit"`
	Coinbase  common.Address `json:"coinbase"`
	Alloc     GenesisAlloc   `json:"alloc"`
}

// ReadGenesis decodes a genesis JSON document.
func ReadGenesis(r io.Reader) (*Genesis, error) {
	genesis := new(Genesis)
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(r).Decode(genesis); err != nil {
		return nil, fmt.Errorf("invalid genesis file: %w", err)
	}
	if genesis.Config == nil {
		return nil, ErrGenesisNoConfig
	}
	return genesis, nil
}

// GenesisBlockByChainName returns the genesis of an embedded chain spec, nil for unknown chains.
func GenesisBlockByChainName(name string) *Genesis {
	switch name {
	case networkname.Dev:
		return DeveloperGenesisBlock(nil)
	default:
		return nil
	}
}

// DeveloperGenesisBlock returns the genesis of a dev chain funding the given accounts.
func DeveloperGenesisBlock(alloc GenesisAlloc) *Genesis {
	return &Genesis{
		Config:    params.DevChainConfig,
		GasLimit:  30_000_000,
		ExtraData: hexutil.Bytes("dev"),
		Alloc:     alloc,
	}
}

func (ga GenesisAlloc) sortedAddresses() []common.Address {
	addrs := make([]common.Address, 0, len(ga))
	for addr := range ga {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Cmp(addrs[j]) < 0 })
	return addrs
}

func (ga GenesisAlloc) account(addr common.Address) *types.Account {
	acc := types.NewAccount()
	acc.Nonce = ga[addr].Nonce
	if ga[addr].Balance != nil {
		acc.Balance.Set(ga[addr].Balance)
	}
	return acc
}

// stateRoot commits to the allocation: keccak of the RLP list of (address, account) pairs.
func (ga GenesisAlloc) stateRoot() (common.Hash, error) {
	type entry struct {
		Address common.Address
		Account *types.Account
	}
	entries := make([]entry, 0, len(ga))
	for _, addr := range ga.sortedAddresses() {
		entries = append(entries, entry{addr, ga.account(addr)})
	}
	enc, err := rlp.EncodeToBytes(entries)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(enc), nil
}

// ToBlock returns the genesis block.
func (g *Genesis) ToBlock() (*types.Block, error) {
	root, err := g.Alloc.stateRoot()
	if err != nil {
		return nil, err
	}
	head := &types.Header{
		Number:   0,
		Time:     g.Timestamp,
		Extra:    g.ExtraData,
		GasLimit: g.GasLimit,
		Coinbase: g.Coinbase,
		Root:     root,
	}
	return types.NewBlock(head, nil, nil), nil
}

// CommitGenesisBlock writes or updates the genesis block in db.
func CommitGenesisBlock(db kv.RwDB, genesis *Genesis, logger log.Logger) (*chain.Config, *types.Block, error) {
	tx, err := db.BeginRw(context.Background())
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()
	c, b, err := WriteGenesisBlock(tx, genesis, logger)
	if err != nil {
		return c, b, err
	}
	if err = tx.Commit(); err != nil {
		return c, b, err
	}
	return c, b, nil
}

// WriteGenesisBlock writes block 0, its state and the chain config, and points the
// head markers at it. If the database already holds the same genesis the stored
// config is returned and nothing is written.
func WriteGenesisBlock(tx kv.RwTx, genesis *Genesis, logger log.Logger) (*chain.Config, *types.Block, error) {
	if genesis == nil || genesis.Config == nil {
		return nil, nil, ErrGenesisNoConfig
	}
	block, err := genesis.ToBlock()
	if err != nil {
		return nil, nil, err
	}
	storedHash, err := rawdb.ReadCanonicalHash(tx, 0)
	if err != nil {
		return nil, nil, err
	}
	if storedHash != (common.Hash{}) {
		if storedHash != block.Hash() {
			return nil, nil, &GenesisMismatchError{Stored: storedHash, New: block.Hash()}
		}
		storedCfg, err := rawdb.ReadChainConfig(tx, storedHash)
		if err != nil {
			return nil, nil, err
		}
		return storedCfg, block, nil
	}

	logger.Info("Writing genesis block", "hash", block.Hash(), "chain", genesis.Config.ChainName, "accounts", len(genesis.Alloc))
	for _, addr := range genesis.Alloc.sortedAddresses() {
		enc, err := rlp.EncodeToBytes(genesis.Alloc.account(addr))
		if err != nil {
			return nil, nil, err
		}
		if err := tx.Put(kv.PlainState, addr[:], enc); err != nil {
			return nil, nil, err
		}
	}
	if err := rawdb.WriteHeader(tx, block.HeaderNoCopy()); err != nil {
		return nil, nil, err
	}
	if err := rawdb.WriteBody(tx, block.Hash(), 0, block.Body()); err != nil {
		return nil, nil, err
	}
	if err := rawdb.WriteReceipts(tx, 0, nil); err != nil {
		return nil, nil, err
	}
	if err := rawdb.WriteCanonicalHash(tx, block.Hash(), 0); err != nil {
		return nil, nil, err
	}
	if err := rawdb.WriteHeadMarkers(tx, block.Hash()); err != nil {
		return nil, nil, err
	}
	if err := rawdb.WriteChainConfig(tx, block.Hash(), genesis.Config); err != nil {
		return nil, nil, err
	}
	return genesis.Config, block, nil
}
