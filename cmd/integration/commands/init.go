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
	"os"

	"github.com/spf13/cobra"

	"github.com/erigontech/rewind/core"
	"github.com/erigontech/rewind/kv"
	"github.com/erigontech/rewind/params"
)

func initCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init [genesis.json]",
		Short: "Write the genesis block of a new data dir, from a file or the spec of the configured chain",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			genesis := core.GenesisBlockByChainName(a.cfg.ChainName)
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				if genesis, err = core.ReadGenesis(f); err != nil {
					return err
				}
			}
			if genesis == nil {
				return fmt.Errorf("no genesis file given and no embedded spec for chain %q", a.cfg.ChainName)
			}

			db, unlock, err := a.openDB()
			if err != nil {
				return err
			}
			defer unlock()
			defer db.Close()

			_, block, err := core.CommitGenesisBlock(db, genesis, a.logger)
			if err != nil {
				return err
			}
			if err = db.Update(cmd.Context(), func(tx kv.RwTx) error {
				return params.SetToolVersion(tx, params.VersionKeyCreated)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Genesis %x written to %s\n", block.Hash(), a.cfg.Dirs.DataDir)
			return nil
		},
	}
}
