package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kofron/lattice/internal/doctor"
	"github.com/kofron/lattice/internal/gate"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose repository health and optionally apply fixes",
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "apply every proposed fix")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()

	snap, err := ac.runner.Scan(ctx)
	if err != nil {
		return err
	}

	report, err := doctor.Diagnose(ctx, snap, ac.forgePlatform())
	if err != nil {
		return err
	}

	if !doctorFix {
		ac.out.DoctorReport(report)
		return nil
	}

	now := time.Now()
	for _, fix := range report.Fixes {
		p, err := doctor.Render(snap, fix, now)
		if err != nil {
			ac.out.Warning(fix.ID + ": " + err.Error())
			continue
		}
		if _, err := ac.runner.RunPlan(ctx, gate.MutatingMetadataOnly, p, now); err != nil {
			ac.out.Warning(fix.ID + " failed: " + err.Error())
			continue
		}
		ac.out.Success("applied " + fix.ID)
	}

	if len(report.Unfixable) > 0 {
		ac.out.DoctorReport(&doctor.Report{Unfixable: report.Unfixable})
	}
	return nil
}
