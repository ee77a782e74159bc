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
	"fmt"

	"github.com/ledgerwatch/log/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"

	"github.com/erigontech/rewind/eth/ethconfig"
	"github.com/erigontech/rewind/params"
	"github.com/erigontech/rewind/turbo/logging"
)

// app is the state shared by the commands of one root command.
type app struct {
	flags
	cfg    ethconfig.Config
	logger log.Logger
}

// RootCommand returns a fresh command tree. Errors are returned to the caller, not printed.
func RootCommand() *cobra.Command {
	a := &app{logger: log.New()}
	rootCmd := &cobra.Command{
		Use:           "integration",
		Short:         "offline maintenance of the chain database: unwind, inspect, freeze",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       params.VersionWithCommit(params.GitCommit),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	a.register(rootCmd)
	rootCmd.AddCommand(
		stageUnwindCommand(a),
		printStagesCommand(a),
		initCommand(a),
		retireCommand(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.datadir == "" {
		return fmt.Errorf("--%s is required", flagDatadir)
	}
	a.logger = logging.SetupLoggerCmd("integration", cmd)

	a.cfg = ethconfig.Defaults
	if a.configPath != "" {
		cfg, err := ethconfig.LoadFile(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if cmd.Flags().Changed(ethconfig.FlagSnapshotKeepBlocks) {
		a.cfg.Snapshot.KeepBlocks = a.keepBlocks
	}
	return nil
}

// pushMetrics sends the default registry to the configured Pushgateway, if any.
func (a *app) pushMetrics() {
	if a.metricsPush == "" {
		return
	}
	if err := push.New(a.metricsPush, "rewind").Gatherer(prometheus.DefaultGatherer).Push(); err != nil {
		a.logger.Warn("Pushing metrics", "url", a.metricsPush, "err", err)
	}
}
