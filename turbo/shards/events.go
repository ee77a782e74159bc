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

package shards

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Tip is the canonical chain head announced after the chain moved.
type Tip struct {
	Number uint64
	Hash   common.Hash
}

// TipEvents broadcasts the latest tip. Subscribers only ever see the newest value:
// an undelivered tip is replaced when a newer one is published, so Publish never blocks.
type TipEvents struct {
	id            int
	subscriptions map[int]chan Tip
	latest        *Tip
	lock          sync.Mutex
}

func NewTipEvents() *TipEvents {
	return &TipEvents{subscriptions: map[int]chan Tip{}}
}

// Subscribe returns a channel receiving new tips and a func to stop receiving them.
func (e *TipEvents) Subscribe() (<-chan Tip, func()) {
	e.lock.Lock()
	defer e.lock.Unlock()
	ch := make(chan Tip, 1)
	e.id++
	id := e.id
	e.subscriptions[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.lock.Lock()
			defer e.lock.Unlock()
			delete(e.subscriptions, id)
			close(ch)
		})
	}
}

func (e *TipEvents) Publish(tip Tip) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.latest = &tip
	for _, ch := range e.subscriptions {
		select {
		case ch <- tip:
		default: // slow consumer, replace the stale tip
			select {
			case <-ch:
			default:
			}
			ch <- tip
		}
	}
}

func (e *TipEvents) Latest() (Tip, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.latest == nil {
		return Tip{}, false
	}
	return *e.latest, true
}
