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

	"github.com/spf13/cobra"
)

func retireCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retire",
		Short: "Freeze all blocks into segment files and prune them from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.pushMetrics()
			ctx := cmd.Context()
			n, err := a.openNode(ctx)
			if err != nil {
				return err
			}
			defer n.Close()

			if err = n.pipeline.MigrateToImmutable(ctx); err != nil {
				return err
			}
			if err = n.pipeline.Prune(ctx); err != nil {
				return err
			}
			if err = n.markFinished(ctx); err != nil {
				return err
			}
			frozen, _ := n.snapshots.FrozenBlocks()
			fmt.Fprintf(cmd.OutOrStdout(), "Frozen up to block %d\n", frozen)
			return nil
		},
	}
}
