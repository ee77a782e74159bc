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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/erigontech/rewind/core/types"
	"github.com/erigontech/rewind/turbo/rewind"
)

func stageUnwindCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage_unwind",
		Short: "Unwind the chain to a block, removing it from the database and the pipeline",
		Example: `integration stage_unwind to-block 1000000 --datadir=...
integration stage_unwind num-blocks 100 --datadir=...`,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "to-block <hash|number>",
		Short: "Unwind so that the given block becomes the chain head",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := types.ParseBlockHashOrNumber(args[0])
			if err != nil {
				return err
			}
			return a.unwind(cmd, rewind.ToBlock(b))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "num-blocks <n>",
		Short: "Unwind the last n blocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid number of blocks %q: %w", args[0], err)
			}
			return a.unwind(cmd, rewind.NumBlocks(n))
		},
	})
	return cmd
}

func (a *app) unwind(cmd *cobra.Command, target rewind.Target) error {
	defer a.pushMetrics()
	ctx := cmd.Context()
	n, err := a.openNode(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	res, err := n.orchestrator(a).Unwind(ctx, target)
	if err != nil {
		return err
	}
	if err = n.markFinished(ctx); err != nil {
		a.logger.Warn("Recording tool version", "err", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Unwound %d blocks\n", res.Removed)
	return nil
}
