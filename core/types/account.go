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
	"github.com/holiman/uint256"
)

// Account is the state of an externally owned account as kept in PlainState.
type Account struct {
	Nonce   uint64
	Balance *uint256.Int
}

func NewAccount() *Account {
	return &Account{Balance: new(uint256.Int)}
}

func (a *Account) Copy() *Account {
	cpy := &Account{Nonce: a.Nonce, Balance: new(uint256.Int)}
	if a.Balance != nil {
		cpy.Balance.Set(a.Balance)
	}
	return cpy
}
