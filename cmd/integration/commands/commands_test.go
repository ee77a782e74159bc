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

package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/rewind/common/datadir"
	"github.com/erigontech/rewind/core"
	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/eth/ethconfig"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/turbo/rewind"
)

const genesisJSON = `{"config":{"chainName":"dev","chainId":1337},"extraData":"0x","alloc":{}}`

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := RootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append(args, "--datadir="+dir, "--verbosity=warn", "--log.dir.verbosity=warn"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func newDatadir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	genesis := filepath.Join(dir, "genesis.json")
	require.NoError(t, os.WriteFile(genesis, []byte(genesisJSON), 0644))
	out, err := run(t, dir, "init", genesis)
	require.NoError(t, err)
	require.Contains(t, out, "Genesis")
	return dir
}

// growChain appends n empty blocks to the chain in dir and runs the stages over them.
func growChain(t *testing.T, dir string, n int) {
	t.Helper()
	ctx := context.Background()
	a := &app{logger: log.New(), cfg: ethconfig.Defaults}
	a.datadir = dir
	node, err := a.openNode(ctx)
	require.NoError(t, err)
	defer node.Close()

	var parent *types.Block
	require.NoError(t, node.db.View(ctx, func(tx kv.Tx) error {
		head, err := rawdb.ReadHeadBlockNumber(tx)
		if err != nil {
			return err
		}
		parent, err = node.blocks.BlockReader.BlockByNumber(ctx, tx, *head)
		return err
	}))
	chain := core.GenerateChain(node.chainConfig, parent, n, func(i int, b *core.BlockGen) {
		b.SetCoinbase(common.Address{1})
	})
	require.NoError(t, node.db.Update(ctx, func(tx kv.RwTx) error {
		for _, block := range chain.Blocks {
			if err := node.blocks.BlockWriter.WriteBlock(tx, block, nil); err != nil {
				return err
			}
			if err := rawdb.WriteCanonicalHash(tx, block.Hash(), block.Number()); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, node.pipeline.Forward(ctx))
}

func TestStageUnwind(t *testing.T) {
	require := require.New(t)
	dir := newDatadir(t)
	growChain(t, dir, 20)

	out, err := run(t, dir, "stage_unwind", "to-block", "15")
	require.NoError(err)
	require.Equal("Unwound 5 blocks\n", out)

	out, err = run(t, dir, "stage_unwind", "to-block", "15")
	require.ErrorIs(err, rewind.ErrInvalidRange)
	require.Empty(out)

	out, err = run(t, dir, "stage_unwind", "num-blocks", "15")
	require.ErrorIs(err, rewind.ErrGenesisUnwind)
	require.Empty(out)

	out, err = run(t, dir, "stage_unwind", "to-block", "0x"+strings.Repeat("ab", 32))
	require.ErrorIs(err, rewind.ErrUnknownBlock)
	require.Empty(out)

	out, err = run(t, dir, "stage_unwind", "num-blocks", "5")
	require.NoError(err)
	require.Equal("Unwound 5 blocks\n", out)

	out, err = run(t, dir, "print_stages")
	require.NoError(err)
	require.Contains(out, "Execution")
	require.Regexp(`head block\s*\|\s*10\s`, out)
	require.Regexp(`frozen\s*\|\s*-\s`, out)
}

func TestStageUnwindBadArguments(t *testing.T) {
	dir := newDatadir(t)
	for _, args := range [][]string{
		{"stage_unwind", "num-blocks", "many"},
		{"stage_unwind", "to-block", "0xabc"},
		{"stage_unwind", "to-block"},
	} {
		out, err := run(t, dir, args...)
		require.Error(t, err, args)
		require.Empty(t, out)
	}
}

func TestUnwindOfRetiredBlocks(t *testing.T) {
	require := require.New(t)
	dir := newDatadir(t)
	growChain(t, dir, 20)
	config := filepath.Join(dir, "rewind.toml")
	require.NoError(os.WriteFile(config, []byte("[Snapshot]\nBlocksPerFile = 10\n"), 0644))

	out, err := run(t, dir, "retire", "--config="+config)
	require.NoError(err)
	require.Equal("Frozen up to block 20\n", out)

	out, err = run(t, dir, "stage_unwind", "to-block", "12", "--config="+config)
	require.NoError(err)
	require.Equal("Unwound 8 blocks\n", out)

	out, err = run(t, dir, "print_stages", "--config="+config)
	require.NoError(err)
	require.Regexp(`head block\s*\|\s*12\s`, out)
	require.Regexp(`frozen\s*\|\s*20\s`, out)
	require.Contains(out, "segments: 9")

	growChain(t, dir, 3)
	out, err = run(t, dir, "print_stages")
	require.NoError(err)
	require.Regexp(`head block\s*\|\s*15\s`, out)
}

func TestRetireKeepBlocks(t *testing.T) {
	dir := newDatadir(t)
	growChain(t, dir, 5)
	_, err := run(t, dir, "retire", "--snap.keepblocks")
	require.NoError(t, err)

	dirs := datadir.New(dir)
	a := &app{logger: log.New(), cfg: ethconfig.Defaults}
	a.datadir = dirs.DataDir
	db, unlock, err := a.openDB()
	require.NoError(t, err)
	defer unlock()
	defer db.Close()
	require.NoError(t, db.View(context.Background(), func(tx kv.Tx) error {
		header, err := rawdb.ReadHeaderByNumber(tx, 3)
		require.NotNil(t, header)
		return err
	}))
}

func TestDatadirLocked(t *testing.T) {
	dir := newDatadir(t)
	unlock, err := datadir.Flock(datadir.New(dir))
	require.NoError(t, err)
	defer unlock()

	_, err = run(t, dir, "print_stages")
	require.ErrorIs(t, err, datadir.ErrDataDirLocked)
}

func TestMissingGenesis(t *testing.T) {
	_, err := run(t, t.TempDir(), "print_stages")
	require.ErrorContains(t, err, "run init first")
}

func TestDatadirRequired(t *testing.T) {
	cmd := RootCommand()
	cmd.SetArgs([]string{"print_stages"})
	require.ErrorContains(t, cmd.Execute(), "--datadir is required")
}

func TestInitFromChainSpec(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	out, err := run(t, dir, "init")
	require.NoError(err)
	require.Contains(out, "Genesis")

	growChain(t, dir, 4)
	out, err = run(t, dir, "stage_unwind", "num-blocks", "1")
	require.NoError(err)
	require.Equal("Unwound 1 blocks\n", out)
}
