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

package shards_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/rewind/turbo/shards"
)

func TestTipEventsKeepsNewest(t *testing.T) {
	events := shards.NewTipEvents()
	_, ok := events.Latest()
	require.False(t, ok)

	ch, unsubscribe := events.Subscribe()
	defer unsubscribe()

	// nobody reads: both publishes must return and only the newest stays buffered
	events.Publish(shards.Tip{Number: 10, Hash: common.HexToHash("0x0a")})
	events.Publish(shards.Tip{Number: 9, Hash: common.HexToHash("0x09")})

	tip := <-ch
	require.Equal(t, uint64(9), tip.Number)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected tip %d", extra.Number)
	default:
	}

	latest, ok := events.Latest()
	require.True(t, ok)
	require.Equal(t, common.HexToHash("0x09"), latest.Hash)
}

func TestTipEventsFanOut(t *testing.T) {
	events := shards.NewTipEvents()
	ch1, unsubscribe1 := events.Subscribe()
	ch2, unsubscribe2 := events.Subscribe()
	defer unsubscribe2()

	events.Publish(shards.Tip{Number: 5})
	require.Equal(t, uint64(5), (<-ch1).Number)
	require.Equal(t, uint64(5), (<-ch2).Number)

	unsubscribe1()
	unsubscribe1()
	_, open := <-ch1
	require.False(t, open)

	events.Publish(shards.Tip{Number: 6})
	require.Equal(t, uint64(6), (<-ch2).Number)
}

func TestTipEventsWithoutSubscribers(t *testing.T) {
	events := shards.NewTipEvents()
	events.Publish(shards.Tip{Number: 1})
	latest, ok := events.Latest()
	require.True(t, ok)
	require.Equal(t, uint64(1), latest.Number)
}
