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

package stagedsync

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/rewind/eth/stagedsync/stages"
	"github.com/erigontech/rewind/kv"
)

type UnwindOrder []stages.SyncStage
type PruneOrder []stages.SyncStage

type Sync struct {
	stages       []*Stage
	unwindOrder  []*Stage
	pruningOrder []*Stage
	currentStage uint
	timings      []Timing
	logPrefixes  []string
	logger       log.Logger
}

type Timing struct {
	isUnwind bool
	isPrune  bool
	stage    stages.SyncStage
	took     time.Duration
}

func New(stagesList []*Stage, unwindOrder UnwindOrder, pruneOrder PruneOrder, logger log.Logger) *Sync {
	unwindStages := make([]*Stage, len(stagesList))
	for i, stageIndex := range unwindOrder {
		for _, s := range stagesList {
			if s.ID == stageIndex {
				unwindStages[i] = s
				break
			}
		}
	}
	pruneStages := make([]*Stage, len(stagesList))
	for i, stageIndex := range pruneOrder {
		for _, s := range stagesList {
			if s.ID == stageIndex {
				pruneStages[i] = s
				break
			}
		}
	}
	logPrefixes := make([]string, len(stagesList))
	for i := range stagesList {
		logPrefixes[i] = fmt.Sprintf("%d/%d %s", i+1, len(stagesList), stagesList[i].ID)
	}

	return &Sync{
		stages:       stagesList,
		currentStage: 0,
		unwindOrder:  unwindStages,
		pruningOrder: pruneStages,
		logPrefixes:  logPrefixes,
		logger:       logger,
	}
}

func (s *Sync) Len() int         { return len(s.stages) }
func (s *Sync) Stages() []*Stage { return s.stages }

func (s *Sync) LogPrefix() string {
	if s == nil {
		return ""
	}
	return s.logPrefixes[s.currentStage]
}

func (s *Sync) SetCurrentStage(id stages.SyncStage) error {
	for i, stage := range s.stages {
		if stage.ID == id {
			s.currentStage = uint(i)
			return nil
		}
	}
	return fmt.Errorf("stage not found with id: %v", id)
}

func (s *Sync) NewUnwindState(id stages.SyncStage, unwindPoint, currentProgress uint64) *UnwindState {
	return &UnwindState{ID: id, UnwindPoint: unwindPoint, CurrentBlockNumber: currentProgress, state: s}
}

func (s *Sync) StageState(ctx context.Context, stage stages.SyncStage, tx kv.Tx, db kv.RoDB) (*StageState, error) {
	var blockNum uint64
	var err error
	useExternalTx := tx != nil
	if useExternalTx {
		blockNum, err = stages.GetStageProgress(tx, stage)
		if err != nil {
			return nil, err
		}
	} else {
		if err = db.View(ctx, func(tx kv.Tx) error {
			blockNum, err = stages.GetStageProgress(tx, stage)
			return err
		}); err != nil {
			return nil, err
		}
	}

	return &StageState{s, stage, blockNum}, nil
}

// RunForward moves every enabled stage forward in stage order.
func (s *Sync) RunForward(ctx context.Context, db kv.RwDB, tx kv.RwTx) error {
	s.timings = s.timings[:0]
	for _, stage := range s.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if stage.Disabled || stage.Forward == nil {
			s.logger.Trace(fmt.Sprintf("%s disabled. %s", stage.ID, stage.DisabledDescription))
			continue
		}
		if err := s.runStage(ctx, stage, db, tx); err != nil {
			return err
		}
	}
	return s.SetCurrentStage(s.stages[0].ID)
}

// RunUnwind unwinds every enabled stage to unwindPoint in unwind order. Stages already at or
// below unwindPoint are skipped, so running it again after a failure continues with the stage
// that failed. The context is checked between stages only: a started stage unwind always
// runs to its end.
func (s *Sync) RunUnwind(ctx context.Context, db kv.RwDB, tx kv.RwTx, unwindPoint uint64) error {
	s.timings = s.timings[:0]
	for _, stage := range s.unwindOrder {
		if stage == nil || stage.Disabled || stage.Unwind == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.unwindStage(context.WithoutCancel(ctx), stage, db, tx, unwindPoint); err != nil {
			return err
		}
	}
	return s.SetCurrentStage(s.stages[0].ID)
}

func (s *Sync) RunPrune(ctx context.Context, db kv.RwDB, tx kv.RwTx) error {
	s.timings = s.timings[:0]
	for _, stage := range s.pruningOrder {
		if stage == nil || stage.Disabled || stage.Prune == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.pruneStage(ctx, stage, db, tx); err != nil {
			return err
		}
	}
	return s.SetCurrentStage(s.stages[0].ID)
}

func (s *Sync) PrintTimings() []interface{} {
	var logCtx []interface{}
	for i := range s.timings {
		if s.timings[i].took < 50*time.Millisecond {
			continue
		}
		took := s.timings[i].took.Truncate(time.Millisecond).String()
		if s.timings[i].isUnwind {
			logCtx = append(logCtx, "Unwind "+string(s.timings[i].stage), took)
		} else if s.timings[i].isPrune {
			logCtx = append(logCtx, "Prune "+string(s.timings[i].stage), took)
		} else {
			logCtx = append(logCtx, string(s.timings[i].stage), took)
		}
	}
	return logCtx
}

func (s *Sync) runStage(ctx context.Context, stage *Stage, db kv.RwDB, tx kv.RwTx) (err error) {
	start := time.Now()
	stageState, err := s.StageState(ctx, stage.ID, tx, db)
	if err != nil {
		return err
	}
	if err = s.SetCurrentStage(stage.ID); err != nil {
		return err
	}

	if err = stage.Forward(ctx, stageState, tx, s.logger); err != nil {
		wrappedError := fmt.Errorf("[%s] %w", s.LogPrefix(), err)
		s.logger.Debug("Error while executing stage", "err", wrappedError)
		return wrappedError
	}

	took := time.Since(start)
	logPrefix := s.LogPrefix()
	if took > 60*time.Second {
		s.logger.Info(fmt.Sprintf("[%s] DONE", logPrefix), "in", took)
	} else {
		s.logger.Debug(fmt.Sprintf("[%s] DONE", logPrefix), "in", took)
	}
	s.timings = append(s.timings, Timing{stage: stage.ID, took: took})
	return nil
}

func (s *Sync) unwindStage(ctx context.Context, stage *Stage, db kv.RwDB, tx kv.RwTx, unwindPoint uint64) error {
	start := time.Now()
	s.logger.Trace("Unwind...", "stage", stage.ID)
	stageState, err := s.StageState(ctx, stage.ID, tx, db)
	if err != nil {
		return &StageFailure{Stage: stage.ID, Err: err}
	}

	unwind := s.NewUnwindState(stage.ID, unwindPoint, stageState.BlockNumber)
	if stageState.BlockNumber <= unwind.UnwindPoint {
		return nil
	}

	if err = s.SetCurrentStage(stage.ID); err != nil {
		return err
	}

	if err = stage.Unwind(ctx, unwind, stageState, tx, s.logger); err != nil {
		return &StageFailure{Stage: stage.ID, Err: fmt.Errorf("[%s] %w", s.LogPrefix(), err)}
	}

	took := time.Since(start)
	logPrefix := s.LogPrefix()
	if took > 60*time.Second {
		s.logger.Info(fmt.Sprintf("[%s] Unwind done", logPrefix), "in", took)
	} else {
		s.logger.Debug(fmt.Sprintf("[%s] Unwind done", logPrefix), "from", unwind.CurrentBlockNumber, "to", unwind.UnwindPoint, "in", took)
	}
	s.timings = append(s.timings, Timing{isUnwind: true, stage: stage.ID, took: took})
	return nil
}

func (s *Sync) pruneStage(ctx context.Context, stage *Stage, db kv.RwDB, tx kv.RwTx) error {
	start := time.Now()
	s.logger.Trace("Prune...", "stage", stage.ID)

	stageState, err := s.StageState(ctx, stage.ID, tx, db)
	if err != nil {
		return err
	}
	prune := &PruneState{ID: stage.ID, ForwardProgress: stageState.BlockNumber, state: s}
	if err = s.SetCurrentStage(stage.ID); err != nil {
		return err
	}

	if err = stage.Prune(ctx, prune, tx, s.logger); err != nil {
		return fmt.Errorf("[%s] %w", s.LogPrefix(), err)
	}

	took := time.Since(start)
	if took > 60*time.Second {
		logPrefix := s.LogPrefix()
		s.logger.Info(fmt.Sprintf("[%s] Prune done", logPrefix), "in", took)
	}
	s.timings = append(s.timings, Timing{isPrune: true, stage: stage.ID, took: took})
	return nil
}

func (s *Sync) MockUnwindFunc(id stages.SyncStage, f UnwindFunc) {
	for i := range s.stages {
		if s.stages[i].ID == id {
			s.stages[i].Unwind = f
		}
	}
}
