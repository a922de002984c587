package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/planner"
)

var (
	createOnto   string
	createInsert bool
)

var createCmd = &cobra.Command{
	Use:   "create <branch>",
	Short: "Create a new branch stacked on the current branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createOnto, "onto", "", "parent branch (defaults to the current branch)")
	createCmd.Flags().BoolVar(&createInsert, "insert", false, "reparent the current branch's children onto the new branch")
}

func runCreate(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	name, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	var onto latticemodel.BranchName
	if createOnto != "" {
		onto, err = latticemodel.NewBranchName(createOnto)
		if err != nil {
			return errs.InvalidInput(err.Error())
		}
	}
	return runCommand(ac, &planner.Create{Name: name, Onto: onto, Insert: createInsert, Now: time.Now()})
}

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <branch>",
	Short: "Delete a tracked branch's ref and metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "reparent dependent branches instead of refusing")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	name, err := latticemodel.NewBranchName(args[0])
	if err != nil {
		return errs.InvalidInput(err.Error())
	}
	return runCommand(ac, &planner.Delete{Name: name, Force: deleteForce, Now: time.Now()})
}
