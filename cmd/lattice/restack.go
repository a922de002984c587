package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/planner"
)

var (
	restackOnly      string
	restackDownstack bool
)

var restackCmd = &cobra.Command{
	Use:   "restack",
	Short: "Rebase every out-of-date branch onto its parent's current tip",
	RunE:  runRestack,
}

func init() {
	restackCmd.Flags().StringVar(&restackOnly, "only", "", "restack only this branch's subtree")
	restackCmd.Flags().BoolVar(&restackDownstack, "downstack", false, "restack --only plus everything it depends on")
}

func runRestack(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	var only latticemodel.BranchName
	if restackOnly != "" {
		only, err = latticemodel.NewBranchName(restackOnly)
		if err != nil {
			return errs.InvalidInput(err.Error())
		}
	}
	return runCommand(ac, &planner.Restack{Only: only, Downstack: restackDownstack, Now: time.Now()})
}

var moveCmd = &cobra.Command{
	Use:   "move <branch> --onto <parent>",
	Short: "Reparent a branch onto a different parent",
	Args:  cobra.ExactArgs(1),
	RunE:  runMove,
}

var moveOnto string

func init() {
	moveCmd.Flags().StringVar(&moveOnto, "onto", "", "new parent branch")
	moveCmd.MarkFlagRequired("onto")
}

func runMove(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	branch, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	onto, err := latticemodel.NewBranchName(moveOnto)
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	return runCommand(ac, &planner.Move{Branch: branch, Onto: onto, Now: time.Now()})
}

var reorderCmd = &cobra.Command{
	Use:   "reorder <branch> <new-order...>",
	Short: "Permute a contiguous single-child run of branches",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runReorder,
}

func runReorder(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	top, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	order := make([]latticemodel.BranchName, 0, len(args)-1)
	for _, a := range args[1:] {
		name, err := latticemodel.NewBranchName(a)
		if err != nil {
			return errs.InvalidInput(err.Error())
		}
		order = append(order, name)
	}
	return runCommand(ac, &planner.Reorder{Top: top, NewOrder: order, Now: time.Now()})
}

var popCmd = &cobra.Command{
	Use:   "pop <branch>",
	Short: "Remove a branch from the middle of a stack, reparenting its children",
	Args:  cobra.ExactArgs(1),
	RunE:  runPop,
}

func runPop(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	branch, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	return runCommand(ac, &planner.Pop{Branch: branch, Now: time.Now()})
}

var renameCmd = &cobra.Command{
	Use:   "rename <from> <to>",
	Short: "Rename a tracked branch and update its children's parent pointers",
	Args:  cobra.ExactArgs(2),
	RunE:  runRename,
}

func runRename(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	from, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	to, err := latticemodel.NewBranchName(args[1])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	return runCommand(ac, &planner.Rename{From: from, To: to, Now: time.Now()})
}

var (
	freezeScope  string
	freezeReason string
)

var freezeCmd = &cobra.Command{
	Use:   "freeze <branch>",
	Short: "Mark a branch frozen, blocking further mutation",
	Args:  cobra.ExactArgs(1),
	RunE:  runFreeze,
}

func init() {
	freezeCmd.Flags().StringVar(&freezeScope, "scope", "", "scope the freeze applies to")
	freezeCmd.Flags().StringVar(&freezeReason, "reason", "", "why the branch is frozen")
}

func runFreeze(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	branch, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	return runCommand(ac, &planner.Freeze{Branch: branch, Scope: freezeScope, Reason: freezeReason, Now: time.Now()})
}

var unfreezeCmd = &cobra.Command{
	Use:   "unfreeze <branch>",
	Short: "Clear a branch's frozen state",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnfreeze,
}

func runUnfreeze(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	branch, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	return runCommand(ac, &planner.Unfreeze{Branch: branch, Now: time.Now()})
}
