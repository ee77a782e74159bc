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
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/erigontech/rewind/core/types"
)

var ErrInsufficientBalance = errors.New("insufficient balance for transfer")

type stateObject struct {
	original *types.Account // nil if the account did not exist before the block
	data     *types.Account
}

// IntraBlockState caches the accounts touched by one block and writes them out,
// together with their changesets, on CommitBlock.
type IntraBlockState struct {
	reader  *PlainStateReader
	objects map[common.Address]*stateObject
}

func New(reader *PlainStateReader) *IntraBlockState {
	return &IntraBlockState{reader: reader, objects: map[common.Address]*stateObject{}}
}

func (s *IntraBlockState) get(addr common.Address) (*stateObject, error) {
	if obj, ok := s.objects[addr]; ok {
		return obj, nil
	}
	acc, err := s.reader.ReadAccountData(addr)
	if err != nil {
		return nil, fmt.Errorf("read account %x: %w", addr, err)
	}
	obj := &stateObject{original: acc}
	if acc == nil {
		obj.data = types.NewAccount()
	} else {
		obj.data = acc.Copy()
	}
	s.objects[addr] = obj
	return obj, nil
}

func (s *IntraBlockState) GetNonce(addr common.Address) (uint64, error) {
	obj, err := s.get(addr)
	if err != nil {
		return 0, err
	}
	return obj.data.Nonce, nil
}

func (s *IntraBlockState) SetNonce(addr common.Address, nonce uint64) error {
	obj, err := s.get(addr)
	if err != nil {
		return err
	}
	obj.data.Nonce = nonce
	return nil
}

func (s *IntraBlockState) AddBalance(addr common.Address, amount *uint256.Int) error {
	obj, err := s.get(addr)
	if err != nil {
		return err
	}
	obj.data.Balance.Add(obj.data.Balance, amount)
	return nil
}

func (s *IntraBlockState) SubBalance(addr common.Address, amount *uint256.Int) error {
	obj, err := s.get(addr)
	if err != nil {
		return err
	}
	if obj.data.Balance.Lt(amount) {
		return fmt.Errorf("%w: address %x have %s want %s", ErrInsufficientBalance, addr, obj.data.Balance, amount)
	}
	obj.data.Balance.Sub(obj.data.Balance, amount)
	return nil
}

// CommitBlock writes every touched account through w in address order.
func (s *IntraBlockState) CommitBlock(w *PlainStateWriter) error {
	addrs := make([]common.Address, 0, len(s.objects))
	for addr := range s.objects {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Cmp(addrs[j]) < 0 })
	for _, addr := range addrs {
		obj := s.objects[addr]
		if err := w.UpdateAccountData(addr, obj.original, obj.data); err != nil {
			return err
		}
	}
	return nil
}
