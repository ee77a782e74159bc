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

package rewind

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	unwindsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewind_unwinds_total",
		Help: "Successful unwinds by path",
	}, []string{"path"})
	blocksRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewind_blocks_removed_total",
		Help: "Blocks removed by unwinds",
	})
	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewind_failures_total",
		Help: "Failed unwinds by error kind",
	}, []string{"kind"})
	unwindDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rewind_unwind_duration_seconds",
		Help:    "Duration of successful unwinds by path",
		Buckets: prometheus.ExponentialBuckets(0.005, 4, 10),
	}, []string{"path"})
)

// errorKind names the error category of err for metrics and logs.
func errorKind(err error) string {
	var (
		stageFailure   *StageFailure
		migrationError *MigrationError
		txError        *TransactionError
	)
	switch {
	case errors.Is(err, ErrUnknownBlock):
		return "unknown_block"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrGenesisUnwind):
		return "genesis_unwind"
	case errors.As(err, &stageFailure):
		return "stage_failure"
	case errors.As(err, &migrationError):
		return "migration"
	case errors.As(err, &txError):
		return "transaction"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrUnwindInProgress):
		return "in_progress"
	default:
		return "other"
	}
}
