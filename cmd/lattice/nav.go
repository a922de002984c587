package main

import (
	"github.com/spf13/cobra"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/planner"
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout <branch>",
	Short: "Switch the worktree to a branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		branch, err := latticemodel.NewBranchName(args[0])
		if err != nil {
			return errs.InvalidInput(err.Error())
		}
		return runCommand(ac, planner.Checkout{Branch: branch})
	},
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Check out the current branch's child",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		return runCommand(ac, planner.Up{})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Check out the current branch's parent",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		return runCommand(ac, planner.Down{})
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Check out the top of the current stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		return runCommand(ac, planner.Top{})
	},
}

var bottomCmd = &cobra.Command{
	Use:   "bottom",
	Short: "Check out the root of the current stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		return runCommand(ac, planner.Bottom{})
	},
}
