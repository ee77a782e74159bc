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
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BlockHashOrNumber identifies a block either by its hash or by its number.
// Exactly one of the fields is set.
type BlockHashOrNumber struct {
	Hash   *common.Hash
	Number *uint64
}

func BlockByNumber(n uint64) BlockHashOrNumber    { return BlockHashOrNumber{Number: &n} }
func BlockByHash(h common.Hash) BlockHashOrNumber { return BlockHashOrNumber{Hash: &h} }

// ParseBlockHashOrNumber accepts a decimal block number or a 32 byte hex hash,
// with or without the 0x prefix.
func ParseBlockHashOrNumber(s string) (BlockHashOrNumber, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return BlockByNumber(n), nil
	}
	hexStr := s
	if !strings.HasPrefix(hexStr, "0x") && !strings.HasPrefix(hexStr, "0X") {
		hexStr = "0x" + hexStr
	}
	b, err := hexutil.Decode(hexStr)
	if err != nil || len(b) != common.HashLength {
		return BlockHashOrNumber{}, fmt.Errorf("%q is neither a block number nor a block hash", s)
	}
	return BlockByHash(common.BytesToHash(b)), nil
}

func (b BlockHashOrNumber) String() string {
	if b.Hash != nil {
		return b.Hash.Hex()
	}
	if b.Number != nil {
		return strconv.FormatUint(*b.Number, 10)
	}
	return "<nil>"
}
