package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/planner"
)

var (
	submitTitle string
	submitBody  string
	submitDraft bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <branch>",
	Short: "Push a branch and open or update its pull request",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitTitle, "title", "", "pull request title")
	submitCmd.Flags().StringVar(&submitBody, "body", "", "pull request body")
	submitCmd.Flags().BoolVar(&submitDraft, "draft", false, "open as a draft pull request")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	branch, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}

	submit := &planner.Submit{Branch: branch, Title: submitTitle, Body: submitBody, Draft: submitDraft, Now: time.Now()}

	// Submit.Plan is pure and expects ExistingPr pre-populated; the forge
	// lookup is I/O, so it happens here in the dispatch layer, not in Plan.
	if platform := ac.forgePlatform(); platform != nil {
		if pr, err := platform.FindPrByHead(context.Background(), string(branch)); err == nil {
			submit.ExistingPr = pr
		}
	}

	return runCommand(ac, submit)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch trunk and every tracked branch's forge PR state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}
		return runCommand(ac, &planner.Sync{Now: time.Now()})
	},
}

var mergeMethod string

var mergeCmd = &cobra.Command{
	Use:   "merge <branch>",
	Short: "Merge a branch's linked pull request via the forge",
	Args:  cobra.ExactArgs(1),
	RunE:  runMerge,
}

func init() {
	mergeCmd.Flags().StringVar(&mergeMethod, "method", "merge", "merge method: merge, squash, or rebase")
}

func runMerge(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	branch, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	return runCommand(ac, &planner.Merge{Branch: branch, Method: mergeMethod})
}
