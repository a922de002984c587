package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/planner"
)

var trackParent string

var trackCmd = &cobra.Command{
	Use:   "track <branch>",
	Short: "Record metadata for an existing, untracked branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrack,
}

func init() {
	trackCmd.Flags().StringVar(&trackParent, "parent", "", "parent branch (defaults to trunk)")
}

func runTrack(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}

	branch, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}

	parent := latticemodel.Parent{Kind: latticemodel.ParentKindTrunk}
	if trackParent != "" {
		parentName, err := latticemodel.NewBranchName(trackParent)
		if err != nil {
			return errs.InvalidInput(err.Error())
		}
		parent = latticemodel.Parent{Kind: latticemodel.ParentKindBranch, Name: parentName}
	}

	return runCommand(ac, &planner.Track{Branch: branch, Parent: parent, Now: time.Now()})
}

var untrackCmd = &cobra.Command{
	Use:   "untrack <branch>",
	Short: "Stop tracking a branch without touching its ref",
	Args:  cobra.ExactArgs(1),
	RunE:  runUntrack,
}

func runUntrack(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	branch, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	return runCommand(ac, &planner.Untrack{Branch: branch})
}
