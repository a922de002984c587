package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kofron/lattice/internal/authstore"
	"github.com/kofron/lattice/internal/config"
	"github.com/kofron/lattice/internal/constants"
	"github.com/kofron/lattice/internal/errs"
	"github.com/kofron/lattice/internal/forge"
	"github.com/kofron/lattice/internal/forge/github"
	"github.com/kofron/lattice/internal/ledger"
	"github.com/kofron/lattice/internal/metadata"
	"github.com/kofron/lattice/internal/paths"
	"github.com/kofron/lattice/internal/rollback"
	"github.com/kofron/lattice/internal/runner"
	"github.com/kofron/lattice/internal/ui"
	"github.com/kofron/lattice/internal/vcsgw"
)

// appContext bundles the collaborators every subcommand needs: the runner
// that drives Scan→Gate→Plan→Execute→Verify, the recovery helper abort
// and undo use directly (they bypass the runner's gate entirely), the
// output renderer, and the paths a few commands read op-state from.
type appContext struct {
	runner   *runner.Runner
	recovery *rollback.Recovery
	gw       *vcsgw.Gateway
	paths    paths.LatticePaths
	cfg      *config.Config
	out      *ui.Output
	remote   string
	platform forge.Platform
}

// forgePlatform returns the forge client built at startup, or nil if no
// forge is configured or authentication failed. Commands that need a
// pre-Plan forge lookup (submit's FindPrByHead) use this directly instead
// of going through the gate, since Plan itself performs no I/O.
func (ac *appContext) forgePlatform() forge.Platform {
	return ac.platform
}

// newAppContext opens the repository rooted at the working directory,
// loads config, and wires a Runner. forge auth is attempted but never
// fatal here: commands requiring gate.Remote surface the missing
// capability through the normal RepairBundle path if it's unavailable.
func newAppContext(cmd *cobra.Command) (*appContext, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, errs.Wrap(errs.KindInternalBug, "resolving working directory", err)
	}

	gw, err := vcsgw.Open(wd)
	if err != nil {
		return nil, err
	}

	p := paths.New(gw.CommonDir())
	cfg, err := config.Load(p)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "loading config.toml", err)
	}

	store := metadata.New(gw)
	led := ledger.New(gw)

	remote := cfg.Repo.Remote
	if remote == "" {
		remote = constants.DefaultCoreRemote
	}

	var platform forge.Platform
	if cfg.Repo.Forge != "" && remote != "" {
		if client, err := buildForgeClient(cmd.Context(), gw, cfg.Repo.Forge, remote); err == nil {
			platform = client
		}
	}

	r := runner.New(gw, store, led, p, cfg, platform, remote)
	rec := rollback.New(gw, store, led, p)

	out := ui.NewOutput(cmd.OutOrStdout())
	if format != "" {
		out.SetFormat(ui.OutputFormat(format))
	}
	if noColor {
		out.SetColorEnabled(false)
	}
	out.SetQuiet(quiet)
	out.SetVerbose(verbose)
	for _, key := range cfg.UnknownKeys {
		out.Warning("config.toml: unknown key " + key)
	}

	return &appContext{runner: r, recovery: rec, gw: gw, paths: p, cfg: cfg, out: out, remote: remote, platform: platform}, nil
}

// buildForgeClient resolves the remote URL via git and a PAT via Vault,
// then constructs a forge/github.Client. Any failure here is treated as
// "forge unavailable", not fatal; the caller falls back to platform=nil.
func buildForgeClient(ctx context.Context, gw *vcsgw.Gateway, forgeName, remote string) (forge.Platform, error) {
	remoteURL, err := gw.RunGit(ctx, "remote", "get-url", remote)
	if err != nil {
		return nil, err
	}

	authCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	client, err := authstore.NewClient(authCtx)
	if err != nil {
		return nil, err
	}
	token, err := client.GetPAT(forgeName, "")
	if err != nil {
		return nil, err
	}

	return github.NewClient(ctx, remoteURL, token)
}

// exitCodeOf maps an error into the process exit code spec.md section 6
// specifies, defaulting to 1 for anything not a *errs.LatticeError.
func exitCodeOf(err error) int {
	var lerr *errs.LatticeError
	if errors.As(err, &lerr) {
		return lerr.Kind.ExitCode()
	}
	var refused *runner.GateRefusedError
	if errors.As(err, &refused) {
		return 2
	}
	return 1
}
