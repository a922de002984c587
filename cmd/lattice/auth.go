package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kofron/lattice/internal/authstore"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Report whether Lattice can reach the configured forge's credential store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, err := newAppContext(cmd)
		if err != nil {
			return err
		}

		if ac.cfg.Repo.Forge == "" {
			ac.out.Info("no forge configured; set [repo].forge in config.toml")
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		client, err := authstore.NewClient(ctx)
		if err != nil {
			ac.out.Error("vault client: " + err.Error())
			return nil
		}
		if !client.IsReachable() {
			ac.out.Error("vault is not reachable")
			return nil
		}

		if ac.forgePlatform() != nil {
			ac.out.Success("authenticated with " + ac.cfg.Repo.Forge)
		} else {
			ac.out.Warning("vault is reachable but no token could be retrieved for " + ac.cfg.Repo.Forge)
		}
		return nil
	},
}
