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

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/erigontech/rewind/core/rawdb"
	"github.com/erigontech/rewind/eth/stagedsync/stages"
	"github.com/erigontech/rewind/kv"
)

func printStagesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "print_stages",
		Short: "Print the chain head, the finalized block, the frozen blocks and the progress of every stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			n, err := a.openNode(ctx)
			if err != nil {
				return err
			}
			defer n.Close()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"", "block"})
			if err := n.db.View(ctx, func(tx kv.Tx) error {
				headHeader, err := rawdb.ReadHeadHeaderNumber(tx)
				if err != nil {
					return err
				}
				headBlock, err := rawdb.ReadHeadBlockNumber(tx)
				if err != nil {
					return err
				}
				finalized, err := rawdb.ReadFinalizedBlockNumber(tx)
				if err != nil {
					return err
				}
				frozen, ok := n.snapshots.FrozenBlocks()
				t.AppendRows([]table.Row{
					{"head header", optional(headHeader)},
					{"head block", optional(headBlock)},
					{"finalized", optional(finalized)},
					{"frozen", optional(ifOk(frozen, ok))},
				})
				t.AppendSeparator()
				for _, stage := range stages.AllStages {
					progress, err := stages.GetStageProgress(tx, stage)
					if err != nil {
						return err
					}
					t.AppendRow(table.Row{string(stage), progress})
				}
				return nil
			}); err != nil {
				return err
			}
			t.Render()
			fmt.Fprintln(cmd.OutOrStdout(), "segments:", len(n.snapshots.Files()))
			return nil
		},
	}
}

func optional(n *uint64) string {
	if n == nil {
		return "-"
	}
	return strconv.FormatUint(*n, 10)
}

func ifOk(n uint64, ok bool) *uint64 {
	if !ok {
		return nil
	}
	return &n
}
