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
	"github.com/spf13/cobra"

	"github.com/erigontech/rewind/eth/ethconfig"
	"github.com/erigontech/rewind/turbo/logging"
)

const (
	flagDatadir     = "datadir"
	flagConfig      = "config"
	flagMetricsPush = "metrics.push"
)

// flags holds the persistent flags of one root command.
type flags struct {
	datadir     string
	configPath  string
	keepBlocks  bool
	metricsPush string
}

func (f *flags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.datadir, flagDatadir, "", "data directory holding chaindata and snapshots")
	pf.StringVar(&f.configPath, flagConfig, "", "TOML config file, flags take precedence over its values")
	pf.BoolVar(&f.keepBlocks, ethconfig.FlagSnapshotKeepBlocks, false, "keep frozen blocks in the database")
	pf.StringVar(&f.metricsPush, flagMetricsPush, "", "Prometheus Pushgateway URL to push metrics to when a command ends")
	must(cmd.MarkPersistentFlagDirname(flagDatadir))
	must(cmd.MarkPersistentFlagFilename(flagConfig, "toml"))
	logging.AddFlags(cmd)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
