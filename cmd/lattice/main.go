package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kofron/lattice/internal/vcsgw"
)

var (
	format  string
	noColor bool
	quiet   bool
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "lattice",
		Short: "Manage stacks of dependent git branches",
		Long: `Lattice tracks chains of dependent branches, restacks them as their
bases move, and submits or merges their pull requests in dependency order.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := vcsgw.CheckGitVersion(); err != nil {
				return fmt.Errorf("git check failed: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&format, "format", "", "output format (human|json|yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(trackCmd, untrackCmd)
	rootCmd.AddCommand(createCmd, deleteCmd)
	rootCmd.AddCommand(restackCmd, moveCmd, reorderCmd, popCmd, renameCmd, freezeCmd, unfreezeCmd)
	rootCmd.AddCommand(squashCmd, foldCmd, splitCmd, revertCmd)
	rootCmd.AddCommand(checkoutCmd, upCmd, downCmd, topCmd, bottomCmd)
	rootCmd.AddCommand(logCmd, infoCmd, parentCmd, childrenCmd, trunkCmd, changelogCmd, getCmd, statusCmd)
	rootCmd.AddCommand(submitCmd, syncCmd, mergeCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(continueCmd, abortCmd, undoCmd)
	rootCmd.AddCommand(authCmd)
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code := exitCodeOf(err); code != 1 {
			os.Exit(code)
		}
		os.Exit(1)
	}
}
