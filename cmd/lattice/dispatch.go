package main

import (
	"context"
	"errors"
	"time"

	"github.com/kofron/lattice/internal/executor"
	"github.com/kofron/lattice/internal/planner"
	"github.com/kofron/lattice/internal/runner"
)

// runCommand runs a mutating planner.Command through the app's Runner and
// renders whatever terminal state Execute reached. It is the single call
// every mutating subcommand's RunE funnels through.
func runCommand(ac *appContext, cmd planner.Command) error {
	ctx := context.Background()
	result, err := ac.runner.RunCommand(ctx, cmd, time.Now())
	if err != nil {
		var refused *runner.GateRefusedError
		if errors.As(err, &refused) {
			ac.out.RepairBundle(refused.Bundle)
			return nil
		}
		return err
	}
	return renderResult(ac, result)
}

// runQuery runs a planner.ReadOnlyQuery and prints its result.
func runQuery(ac *appContext, q planner.ReadOnlyQuery) error {
	ctx := context.Background()
	out, err := ac.runner.RunQuery(ctx, q)
	if err != nil {
		var refused *runner.GateRefusedError
		if errors.As(err, &refused) {
			ac.out.RepairBundle(refused.Bundle)
			return nil
		}
		return err
	}
	if ac.out.IsStructured() {
		return ac.out.Structured(out)
	}
	ac.out.PrintAny(out)
	return nil
}

// renderResult prints the terminal outcome of an Execute call: success is
// quiet beyond a confirmation, a pause explains how to continue or abort,
// and an abort reports the error that stopped the operation.
func renderResult(ac *appContext, result *executor.Result) error {
	switch result.Outcome {
	case executor.OutcomeSuccess:
		ac.out.Success("done")
	case executor.OutcomePaused:
		ac.out.Warning("paused: " + string(result.Branch) + " hit a conflict during " + string(result.VcsState))
		ac.out.Info("resolve the conflict, then run 'lattice continue' (or 'lattice abort' to give up)")
	case executor.OutcomeAborted:
		ac.out.Error("operation aborted after " + result.Err.Error())
	}
	return nil
}
