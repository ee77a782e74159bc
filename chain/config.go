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

package chain

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Config is the core config which determines the blockchain settings.
//
// Config is stored in the database on a per block basis. This means
// that any network, identified by its genesis block, can have its own
// set of configuration options.
type Config struct {
	ChainName string `json:"chainName"`
	ChainID   uint64 `json:"chainId"`

	// BlockReward is credited to the coinbase of every non-genesis block.
	BlockReward *uint256.Int `json:"blockReward,omitempty"`

	// GasPerTransfer is charged to the sender of every transaction.
	GasPerTransfer uint64 `json:"gasPerTransfer,omitempty"`
}

func (c *Config) String() string {
	return fmt.Sprintf("{ChainID: %d, Name: %s, BlockReward: %v}", c.ChainID, c.ChainName, c.BlockReward)
}

// Reward returns the coinbase reward of a block, zero when not configured.
func (c *Config) Reward() *uint256.Int {
	if c == nil || c.BlockReward == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(c.BlockReward)
}
