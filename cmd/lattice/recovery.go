package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/journal"
	"github.com/kofron/lattice/internal/rollback"
)

var continueCmd = &cobra.Command{
	Use:   "continue",
	Short: "Resume a paused operation after resolving its conflict",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		state, err := requireOpState(ac)
		if err != nil {
			return err
		}
		result, err := ac.runner.Continue(context.Background(), state, time.Now())
		if err != nil {
			return err
		}
		return renderResult(ac, result)
	},
}

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Give up on a paused operation and restore what can be restored",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		state, err := requireOpState(ac)
		if err != nil {
			return err
		}
		result, err := ac.recovery.Abort(context.Background(), state, time.Now())
		if err != nil {
			return err
		}
		renderRecoveryResult(ac, result)
		return nil
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo <op-id>",
	Short: "Force-reverse the committed operation with the given op id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		result, err := ac.recovery.Undo(context.Background(), args[0], time.Now())
		if err != nil {
			return err
		}
		renderRecoveryResult(ac, result)
		return nil
	},
}

func requireOpState(ac *appContext) (*journal.OpState, error) {
	state, err := journal.ReadOpState(ac.paths)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, errs.InvalidInput("no operation is in progress")
	}
	return state, nil
}

func renderRecoveryResult(ac *appContext, result *rollback.Result) {
	for _, ref := range result.RestoredRefs {
		ac.out.Success("restored " + ref)
	}
	for _, failed := range result.Failed {
		ac.out.Warning(string(failed.Kind) + ": " + failed.Detail)
	}
}
