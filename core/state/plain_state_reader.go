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

package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/kv"
)

// PlainStateReader reads the latest state, keys are not hashed.
type PlainStateReader struct {
	db kv.Getter
}

func NewPlainStateReader(db kv.Getter) *PlainStateReader {
	return &PlainStateReader{db: db}
}

// ReadAccountData returns nil for an account that does not exist.
func (r *PlainStateReader) ReadAccountData(address common.Address) (*types.Account, error) {
	enc, err := r.db.GetOne(kv.PlainState, address[:])
	if err != nil {
		return nil, err
	}
	return decodeAccount(enc)
}

func decodeAccount(enc []byte) (*types.Account, error) {
	if len(enc) == 0 {
		return nil, nil
	}
	acc := types.NewAccount()
	if err := rlp.DecodeBytes(enc, acc); err != nil {
		return nil, fmt.Errorf("invalid account encoding: %w", err)
	}
	return acc, nil
}

func encodeAccount(acc *types.Account) ([]byte, error) {
	if acc == nil {
		return nil, nil
	}
	return rlp.EncodeToBytes(acc)
}
