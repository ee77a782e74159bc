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
	"github.com/ethereum/go-ethereum/common"
)

// L1Origin records which L1 block an L2 block was derived from. It is auxiliary
// per-block data and lives and dies with its L2 block.
type L1Origin struct {
	BlockID       *uint64     `json:"blockId,omitempty"`
	L2BlockHash   common.Hash `json:"l2BlockHash"`
	L1BlockHeight *uint64     `json:"l1BlockHeight,omitempty"`
	L1BlockHash   common.Hash `json:"l1BlockHash"`
}
