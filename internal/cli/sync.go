package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/glorpus-work/pkgcatalog/internal/logger"
	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
	"github.com/glorpus-work/pkgcatalog/pkg/fsutil"
	"github.com/glorpus-work/pkgcatalog/pkg/reconcile"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the package catalog with the mirror",
		Long: `Synchronize the package catalog by importing every configured
repository whose metadata archive changed since the last run. All
repositories are applied in one transaction.`,
		RunE: runSync,
	}

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lock, err := fsutil.AcquireLock(cfg.LockFile)
	if errors.Is(err, os.ErrExist) {
		return errutils.ErrLockedWithPath(cfg.LockFile)
	}
	if err != nil {
		return err
	}
	logger.Debug("Acquired lock file", logger.Fields{"path": cfg.LockFile})
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("Failed to release lock file", logger.Fields{"path": cfg.LockFile, "error": err})
		}
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	fetcher, err := newFetcher(ctx, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	progress := newProgress(out, isTerminal(out))
	rec := reconcile.New(store, reconcile.FetcherOpener{Fetcher: fetcher}, cfg.Targets(), reconcile.Options{
		Hooks: reconcile.Hooks{OnEvent: progress.OnEvent},
	})

	res, err := rec.Run(ctx)
	if err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}

	if !res.Changed {
		_, _ = fmt.Fprintln(out, "Catalog is up to date")
		return nil
	}
	_, _ = fmt.Fprintf(out, "Catalog updated: %d added, %d updated, %d removed, %d repositories purged\n",
		res.Added, res.Updated, res.Removed, res.PurgedRepositories)
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// progress renders reconciler events as status lines on a terminal.
type progress struct {
	w       io.Writer
	enabled bool
}

func newProgress(w io.Writer, enabled bool) *progress {
	return &progress{w: w, enabled: enabled}
}

func (p *progress) OnEvent(ev reconcile.Event) {
	if !p.enabled {
		return
	}
	switch ev.Phase {
	case reconcile.PhaseUpToDate:
		_, _ = fmt.Fprintf(p.w, "%s up to date\n", ev.Target)
	case reconcile.PhasePackage:
		_, _ = fmt.Fprintf(p.w, "\r%s %d/%d %s\x1b[K", ev.Target, ev.Current, ev.Total, ev.Msg)
	case reconcile.PhaseDone:
		_, _ = fmt.Fprintf(p.w, "\r%s synced\x1b[K\n", ev.Target)
	case reconcile.PhasePurge:
		_, _ = fmt.Fprintf(p.w, "%s removed\n", ev.Target)
	}
}
