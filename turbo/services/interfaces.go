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

package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/eth/ethconfig"
	"github.com/erigontech/rewind/kv"
)

type HeaderReader interface {
	Header(ctx context.Context, tx kv.Getter, hash common.Hash, blockNum uint64) (*types.Header, error)
	HeaderByNumber(ctx context.Context, tx kv.Getter, blockNum uint64) (*types.Header, error)
}

type CanonicalReader interface {
	CanonicalHash(ctx context.Context, tx kv.Getter, blockNum uint64) (common.Hash, error)
}

type BodyReader interface {
	BodyWithTransactions(ctx context.Context, tx kv.Getter, hash common.Hash, blockNum uint64) (*types.Body, error)
}

type ReceiptsReader interface {
	Receipts(ctx context.Context, tx kv.Getter, hash common.Hash, blockNum uint64) (types.Receipts, error)
}

type BlockReader interface {
	BlockByNumber(ctx context.Context, tx kv.Getter, blockNum uint64) (*types.Block, error)
}

type FullBlockReader interface {
	BlockReader
	HeaderReader
	CanonicalReader
	BodyReader
	ReceiptsReader

	FrozenBlocks() (uint64, bool)
	FreezingCfg() ethconfig.BlocksFreezing
}
