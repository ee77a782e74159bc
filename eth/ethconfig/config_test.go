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

package ethconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/rewind/eth/ethconfig"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rewind.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
ChainName = "dev"

[DB]
InMemory = true
MemTableSize = "32MB"

[Snapshot]
BlocksPerFile = 500
KeepBlocks = true
`)
	cfg, err := ethconfig.LoadFile(path)
	require.NoError(t, err)
	require.True(t, cfg.DB.InMemory)
	require.Equal(t, 32*datasize.MB, cfg.DB.MemTableSize)
	require.Equal(t, ethconfig.Defaults.DB.BlockCacheSize, cfg.DB.BlockCacheSize)
	require.Equal(t, uint64(500), cfg.Snapshot.BlocksPerFile)
	require.True(t, cfg.Snapshot.KeepBlocks)
	require.Equal(t, ethconfig.Defaults.PruneLimit, cfg.PruneLimit)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "NoSuchOption = 1\n")
	_, err := ethconfig.LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileRejectsZeroBlocksPerFile(t *testing.T) {
	path := writeConfig(t, "[Snapshot]\nBlocksPerFile = 0\n")
	_, err := ethconfig.LoadFile(path)
	require.ErrorContains(t, err, "BlocksPerFile")
}

func TestNewSnapCfg(t *testing.T) {
	cfg := ethconfig.NewSnapCfg(true, 0)
	require.True(t, cfg.KeepBlocks)
	require.Equal(t, ethconfig.Defaults.Snapshot.BlocksPerFile, cfg.BlocksPerFile)
	require.Equal(t, "--snap.blocksperfile=1000 --snap.keepblocks=true", cfg.String())
}
