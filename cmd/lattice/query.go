package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/planner"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the branch graph as a tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		snap, err := ac.runner.Scan(context.Background())
		if err != nil {
			return err
		}
		ac.out.StackTree(snap)
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the whole tracked stack, trunk-down",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		return runQuery(ac, planner.Log{})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <branch>",
	Short: "Show a branch's metadata record",
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
		return runQuery(ac, planner.Info{Branch: branch})
	},
}

var parentCmd = &cobra.Command{
	Use:   "parent <branch>",
	Short: "Show a branch's parent",
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
		return runQuery(ac, planner.Parent{Branch: branch})
	},
}

var childrenCmd = &cobra.Command{
	Use:   "children <branch>",
	Short: "Show a branch's direct children",
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
		return runQuery(ac, planner.Children{Branch: branch})
	},
}

var trunkCmd = &cobra.Command{
	Use:   "trunk",
	Short: "Show the resolved trunk branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		return runQuery(ac, planner.Trunk{})
	},
}

var changelogCmd = &cobra.Command{
	Use:   "changelog",
	Short: "Show the stack's PR links, trunk-down",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		return runQuery(ac, planner.Changelog{})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <branch>",
	Short: "Resolve a branch to its metadata summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		return runQuery(ac, planner.Get{Target: args[0]})
	},
}
