// Package scheduler implements NAAb's polyglot scheduler (spec.md §4.C13):
// given the analyzer's wave grouping of inline-code blocks, it runs each
// group's blocks concurrently on the worker pool, waits for the group to
// finish, commits assigned results back into the interpreter's
// environment, and surfaces the first failure without starting any later
// group.
package scheduler

import (
	"context"

	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/value"
	"github.com/naab-lang/naab/runtime/analyzer"
	"github.com/naab-lang/naab/runtime/pool"
)

// BlockEvaluator runs one inline-code block's foreign source against env
// (which provides its read bindings) and returns the block's value. The
// interpreter supplies this — the scheduler has no opinion on how a block
// is actually executed (that's C9's executor dispatch).
type BlockEvaluator func(ctx context.Context, block analyzer.Block, env *value.Environment) (value.Value, error)

// blockOutcome pairs a block with the result of evaluating it, so a
// group's results can be committed in a stable, deterministic order once
// every block in the group has finished.
type blockOutcome struct {
	block analyzer.Block
	val   value.Value
	err   error
}

// Scheduler drives groups of polyglot blocks across a worker pool.
type Scheduler struct {
	pool *pool.Pool
}

// New builds a Scheduler that submits block evaluations to p.
func New(p *pool.Pool) *Scheduler {
	return &Scheduler{pool: p}
}

// Run executes groups in order against env, invoking eval for each block.
// Per spec.md §4.C13: within a group, every block is submitted before any
// is awaited (so intra-group blocks genuinely run concurrently); writes
// are committed back into env only after the whole group completes, in
// group order (commit order within a group doesn't matter — the analyzer
// guarantees no intra-group write collides with another). On the first
// failing block, blocks already submitted in that group are still allowed
// to finish, but no later group runs; the first failure (by block order
// within the group) is returned.
func (s *Scheduler) Run(ctx context.Context, groups []analyzer.Group, env *value.Environment, eval BlockEvaluator) error {
	for _, group := range groups {
		if err := s.runGroup(ctx, group, env, eval); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) runGroup(ctx context.Context, group analyzer.Group, env *value.Environment, eval BlockEvaluator) error {
	futures := make([]*pool.Future, len(group.Blocks))
	for i, block := range group.Blocks {
		block := block
		future, err := s.pool.Submit(func() (any, error) {
			v, err := eval(ctx, block, env)
			return blockOutcome{block: block, val: v, err: err}, err
		})
		if err != nil {
			// Submission itself failed (pool already shut down): treat it
			// the same as a block-evaluation failure for the group.
			return wrapSubmitFailure(err)
		}
		futures[i] = future
	}

	var firstErr error
	outcomes := make([]blockOutcome, len(futures))
	for i, future := range futures {
		result, _ := future.Wait()
		outcome, _ := result.(blockOutcome)
		outcomes[i] = outcome
		if outcome.err != nil && firstErr == nil {
			firstErr = outcome.err
		}
	}

	for _, outcome := range outcomes {
		if outcome.err != nil {
			continue
		}
		if outcome.block.Assigned != "" {
			env.Define(outcome.block.Assigned, outcome.val)
		}
	}

	return firstErr
}

// wrapSubmitFailure adapts a pool submission error (e.g. pool_stopped)
// into a Runtime error consistent with the rest of the scheduling path,
// for callers that want a single error kind to match against.
func wrapSubmitFailure(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(errors.Runtime, errors.Location{}, "scheduler: %s", err.Error()).WithCode("E1SCHED")
}
