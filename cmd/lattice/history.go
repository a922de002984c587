package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/planner"
)

var squashMessage string

var squashCmd = &cobra.Command{
	Use:   "squash <branch>",
	Short: "Collapse a branch's commits since its base into one",
	Args:  cobra.ExactArgs(1),
	RunE:  runSquash,
}

func init() {
	squashCmd.Flags().StringVarP(&squashMessage, "message", "m", "", "commit message for the squashed commit")
	squashCmd.MarkFlagRequired("message")
}

func runSquash(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	branch, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	return runCommand(ac, &planner.Squash{Branch: branch, Message: squashMessage, Now: time.Now()})
}

var foldKeep bool

var foldCmd = &cobra.Command{
	Use:   "fold <branch>",
	Short: "Merge a branch's commits into its parent and remove it",
	Args:  cobra.ExactArgs(1),
	RunE:  runFold,
}

func init() {
	foldCmd.Flags().BoolVar(&foldKeep, "keep", false, "keep the branch ref as an alias instead of deleting it")
}

func runFold(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	branch, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	return runCommand(ac, &planner.Fold{Branch: branch, Keep: foldKeep, Now: time.Now()})
}

// splitAt holds one "<branch>=<oid>" piece from --at, trunk-most first.
var splitAt []string
var splitByCommit bool
var splitByFile []string

var splitCmd = &cobra.Command{
	Use:   "split <branch> [--by-commit | --by-file path... | --at name=oid...]",
	Short: "Split a branch into an ordered chain of new branches",
	Args:  cobra.ExactArgs(1),
	RunE:  runSplit,
}

func init() {
	splitCmd.Flags().StringArrayVar(&splitAt, "at", nil, "a piece as name=oid, trunk-most first")
	splitCmd.Flags().BoolVar(&splitByCommit, "by-commit", false, "split each commit since the branch's base into its own branch")
	splitCmd.Flags().StringArrayVar(&splitByFile, "by-file", nil, "extract changes to this path into a new branch (repeatable)")
}

func runSplit(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	source, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}

	modes := 0
	if splitByCommit {
		modes++
	}
	if len(splitByFile) > 0 {
		modes++
	}
	if len(splitAt) > 0 {
		modes++
	}
	if modes == 0 {
		return errs.InvalidInput("split requires one of --by-commit, --by-file, or --at")
	}
	if modes > 1 {
		return errs.InvalidInput("--by-commit, --by-file, and --at are mutually exclusive")
	}

	now := time.Now()
	switch {
	case splitByCommit:
		return runSplitByCommit(ac, cmd, source, now)
	case len(splitByFile) > 0:
		return runSplitByFile(ac, cmd, source, splitByFile, now)
	default:
		return runSplitAt(ac, source, now)
	}
}

// sourceTip looks up the oid and recorded base of a tracked branch,
// failing the way the planner's own requireTracked/requireBranch helpers
// do, for the pre-Plan reads --by-commit and --by-file need before they
// can even construct a planner.Command.
func sourceTip(ac *appContext, cmd *cobra.Command, source latticemodel.BranchName) (baseOid, tipOid string, err error) {
	snap, err := ac.runner.Scan(cmd.Context())
	if err != nil {
		return "", "", err
	}
	tracked, ok := snap.Tracked[source]
	if !ok {
		return "", "", errs.InvalidInput(fmt.Sprintf("branch %q is not tracked; run 'lattice track %s' first", source, source))
	}
	tip, ok := snap.Branches[source]
	if !ok {
		return "", "", errs.InvalidInput(fmt.Sprintf("branch %q does not exist", source))
	}
	return string(tracked.Record.Base.Oid), string(tip), nil
}

// runSplitByCommit turns every commit between source's base and tip into
// its own branch, trunk-most commit first, each becoming the parent of
// the next — the partitioning `lattice split --by-commit` promises.
func runSplitByCommit(ac *appContext, cmd *cobra.Command, source latticemodel.BranchName, now time.Time) error {
	baseOid, tipOid, err := sourceTip(ac, cmd, source)
	if err != nil {
		return err
	}
	commits, err := ac.gw.CommitsInRange(cmd.Context(), baseOid, tipOid)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		return errs.InvalidInput(fmt.Sprintf("%q has no commits past its base to split", source))
	}

	pieces := make([]planner.SplitPiece, 0, len(commits))
	for i, oid := range commits {
		name, err := latticemodel.NewBranchName(fmt.Sprintf("%s-%d", source, i+1))
		if err != nil {
			return errs.InvalidInput(err.Error())
		}
		pieceOid, err := latticemodel.NewOid(oid)
		if err != nil {
			return errs.InvalidInput(err.Error())
		}
		pieces = append(pieces, planner.SplitPiece{Name: name, TipOid: pieceOid})
	}

	return runCommand(ac, &planner.Split{Source: source, Pieces: pieces, Now: now})
}

// runSplitByFile extracts the diff touching files out of source into a new
// "<source>-files" branch forked at source's base, leaving source with
// only whatever diff remains. The two diffs are read here, pre-Plan,
// since extracting them is I/O that a pure Plan function can't perform.
func runSplitByFile(ac *appContext, cmd *cobra.Command, source latticemodel.BranchName, files []string, now time.Time) error {
	baseOid, tipOid, err := sourceTip(ac, cmd, source)
	if err != nil {
		return err
	}

	fileDiff, err := ac.gw.Diff(cmd.Context(), baseOid, tipOid, files...)
	if err != nil {
		return err
	}

	excludes := make([]string, len(files))
	for i, f := range files {
		excludes[i] = ":!" + f
	}
	remainingDiff, err := ac.gw.Diff(cmd.Context(), baseOid, tipOid, excludes...)
	if err != nil {
		return err
	}

	newBranch, err := latticemodel.NewBranchName(fmt.Sprintf("%s-files", source))
	if err != nil {
		return errs.InvalidInput(err.Error())
	}

	return runCommand(ac, &planner.SplitByFile{
		Source:        source,
		NewBranch:     newBranch,
		Files:         files,
		FileDiff:      []byte(fileDiff),
		RemainingDiff: []byte(remainingDiff),
		Now:           now,
	})
}

func runSplitAt(ac *appContext, source latticemodel.BranchName, now time.Time) error {
	pieces := make([]planner.SplitPiece, 0, len(splitAt))
	for _, spec := range splitAt {
		name, oid, ok := splitPieceSpec(spec)
		if !ok {
			return errs.InvalidInput("--at must be formatted as name=oid, got " + spec)
		}
		branchName, err := latticemodel.NewBranchName(name)
		if err != nil {
			return errs.InvalidInput(err.Error())
		}
		pieceOid, err := latticemodel.NewOid(oid)
		if err != nil {
			return errs.InvalidInput(err.Error())
		}
		pieces = append(pieces, planner.SplitPiece{Name: branchName, TipOid: pieceOid})
	}

	return runCommand(ac, &planner.Split{Source: source, Pieces: pieces, Now: now})
}

func splitPieceSpec(spec string) (name, oid string, ok bool) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '=' {
			return spec[:i], spec[i+1:], true
		}
	}
	return "", "", false
}

var revertCmd = &cobra.Command{
	Use:   "revert <sha>",
	Short: "Revert a commit on the current branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runRevert,
}

func runRevert(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	return runCommand(ac, &planner.Revert{Sha: args[0], Now: time.Now()})
}
