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

package ethconfig

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"

	"github.com/erigontech/rewind/common/datadir"
	"github.com/erigontech/rewind/params/networkname"
)

// BlocksFreezing configures the immutable tier.
type BlocksFreezing struct {
	// BlocksPerFile is the alignment of segment boundaries. Segments never cross a multiple of it.
	BlocksPerFile uint64
	// KeepBlocks disables pruning of frozen blocks from the mutable store.
	KeepBlocks bool
	// Workers bounds how many segment kinds are dumped concurrently.
	Workers int
	// SegmentCacheSize is the number of decoded segments kept in memory by readers.
	SegmentCacheSize int
}

func (s BlocksFreezing) String() string {
	var out []string
	out = append(out, fmt.Sprintf("--%s=%d", FlagSnapshotBlocksPerFile, s.BlocksPerFile))
	if s.KeepBlocks {
		out = append(out, "--"+FlagSnapshotKeepBlocks+"=true")
	}
	return strings.Join(out, " ")
}

var (
	FlagSnapshotKeepBlocks    = "snap.keepblocks"
	FlagSnapshotBlocksPerFile = "snap.blocksperfile"
)

func NewSnapCfg(keepBlocks bool, blocksPerFile uint64) BlocksFreezing {
	cfg := Defaults.Snapshot
	cfg.KeepBlocks = keepBlocks
	if blocksPerFile > 0 {
		cfg.BlocksPerFile = blocksPerFile
	}
	return cfg
}

type DBConfig struct {
	InMemory       bool `toml:",omitempty"`
	SyncWrites     bool
	MemTableSize   datasize.ByteSize
	BlockCacheSize datasize.ByteSize
}

// Config contains configuration options of the unwind tooling.
type Config struct {
	Dirs datadir.Dirs `toml:"-"`

	// ChainName selects the embedded chain spec used when no genesis is stored yet.
	ChainName string

	DB       DBConfig
	Snapshot BlocksFreezing

	// PruneLimit bounds how many blocks a single prune pass deletes.
	PruneLimit int
}

var Defaults = Config{
	ChainName: networkname.Dev,
	DB: DBConfig{
		SyncWrites:     true,
		MemTableSize:   64 * datasize.MB,
		BlockCacheSize: 256 * datasize.MB,
	},
	Snapshot: BlocksFreezing{
		BlocksPerFile:    1_000,
		Workers:          min(runtime.NumCPU(), 3),
		SegmentCacheSize: 16,
	},
	PruneLimit: 1_000,
}

// LoadFile reads a TOML config over the defaults. Unknown keys are rejected.
func LoadFile(path string) (Config, error) {
	cfg := Defaults
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	if cfg.Snapshot.BlocksPerFile == 0 {
		return cfg, fmt.Errorf("config file %s: Snapshot.BlocksPerFile must be positive", path)
	}
	if cfg.Snapshot.Workers < 1 {
		cfg.Snapshot.Workers = 1
	}
	return cfg, nil
}
