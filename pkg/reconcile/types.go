//go:generate mockgen -destination=./mocks/reconcile.go -package=mocks . SnapshotOpener,Snapshot

package reconcile

import (
	"context"
	"iter"

	"github.com/glorpus-work/pkgcatalog/pkg/config"
	"github.com/glorpus-work/pkgcatalog/pkg/model"
	"github.com/glorpus-work/pkgcatalog/pkg/snapshot"
)

// SnapshotOpener opens the metadata snapshot of one repository/architecture.
type SnapshotOpener interface {
	Open(ctx context.Context, repository, architecture string, repoWatermark, packageWatermark int64) (Snapshot, error)
}

// Snapshot is the subset of *snapshot.Snapshot the reconciler reads.
type Snapshot interface {
	URL() string
	MTime() int64
	Extracted() bool
	Size() int64
	Packages() iter.Seq2[string, error]
	Package(name string) (*model.Package, error)
	NewPackageCount() (int, error)
	OldPackageNames() ([]string, error)
	Close() error
}

// FetcherOpener adapts a *snapshot.Fetcher to SnapshotOpener.
type FetcherOpener struct {
	Fetcher *snapshot.Fetcher
}

// Open implements SnapshotOpener.
func (o FetcherOpener) Open(ctx context.Context, repository, architecture string, repoWatermark, packageWatermark int64) (Snapshot, error) {
	snap, err := o.Fetcher.Open(ctx, repository, architecture, repoWatermark, packageWatermark)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Phases reported through Hooks.
const (
	PhaseCheckFreshness  = "check-freshness"
	PhaseUpToDate        = "up-to-date"
	PhaseSyncing         = "syncing"
	PhasePackage         = "package"
	PhaseCleanupObsolete = "cleanup-obsolete"
	PhaseDone            = "done"
	PhasePurge           = "purge-repository"
	PhaseFinalize        = "finalize"
)

// Event represents a simple progress notification.
type Event struct {
	Phase  string
	Target config.Target
	Msg    string
	// Current and Total are set for PhasePackage events.
	Current int
	Total   int
}

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
}

// Options control a reconciliation run.
type Options struct {
	Hooks Hooks
}

// Outcome is the result of one target.
type Outcome struct {
	Target   config.Target
	UpToDate bool
	Added    int
	Updated  int
	Removed  int
	// MTime is the repository watermark after the run.
	MTime int64
}

// Result summarizes a run.
type Result struct {
	RunID   string
	Changed bool
	Added   int
	Updated int
	Removed int
	// PurgedRepositories counts repositories dropped from the configuration.
	PurgedRepositories int
	Targets            []Outcome
}
