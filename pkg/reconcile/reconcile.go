// Package reconcile brings the package catalog in line with the mirror's
// repository snapshots. A run processes every configured target inside a
// single catalog transaction: either all targets are applied or none is.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/glorpus-work/pkgcatalog/internal/logger"
	"github.com/glorpus-work/pkgcatalog/pkg/catalog"
	"github.com/glorpus-work/pkgcatalog/pkg/config"
	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
	"github.com/glorpus-work/pkgcatalog/pkg/model"
	"github.com/google/uuid"
)

// Column limits of the files and file index tables, in code points.
const (
	MaxPathLength     = 255
	MaxBasenameLength = 100
	minBasenameBytes  = 3
)

// Reconciler synchronizes the catalog with a set of targets.
type Reconciler struct {
	store   catalog.Store
	opener  SnapshotOpener
	targets []config.Target
	hooks   Hooks
}

// New creates a Reconciler. targets are processed in order; repositories of
// the same name should be adjacent so per-repository caches are reused.
func New(store catalog.Store, opener SnapshotOpener, targets []config.Target, opts Options) *Reconciler {
	return &Reconciler{
		store:   store,
		opener:  opener,
		targets: targets,
		hooks:   opts.Hooks,
	}
}

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

// Run performs one synchronization. On error the transaction is rolled back
// and the catalog is left untouched.
func (r *Reconciler) Run(ctx context.Context) (res *Result, err error) {
	res = &Result{RunID: uuid.NewString()}
	log := logger.With(logger.Fields{"run": res.RunID})

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("rollback failed", "error", rbErr)
			}
			res = nil
		}
	}()

	st := newRunState(tx)
	for _, target := range r.targets {
		st.enterRepository(target.Repository)

		out, err := r.syncTarget(ctx, st, log, target)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", target, err)
		}
		res.Targets = append(res.Targets, out)
		res.Added += out.Added
		res.Updated += out.Updated
		res.Removed += out.Removed
	}

	purged, err := r.purgeObsoleteRepositories(ctx, tx, log)
	if err != nil {
		return nil, err
	}
	res.PurgedRepositories = purged
	res.Changed = res.Added+res.Updated+res.Removed+res.PurgedRepositories > 0

	if res.Changed {
		emit(r.hooks, Event{Phase: PhaseFinalize})
		if err := tx.CleanupOrphans(ctx); err != nil {
			return nil, errutils.Wrap(err, "failed to clean up catalog")
		}
		if err := tx.ResolveRelations(ctx); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errutils.Wrap(err, "failed to commit catalog")
	}

	log.Info("synchronization finished",
		"changed", res.Changed,
		"added", res.Added,
		"updated", res.Updated,
		"removed", res.Removed,
		"purged_repositories", res.PurgedRepositories)
	return res, nil
}

func (r *Reconciler) syncTarget(ctx context.Context, st *runState, log *slog.Logger, target config.Target) (Outcome, error) {
	out := Outcome{Target: target}
	log = log.With("repo", target.Repository, "arch", target.Architecture)

	emit(r.hooks, Event{Phase: PhaseCheckFreshness, Target: target})

	archID, err := st.architectureID(ctx, target.Architecture)
	if err != nil {
		return out, err
	}
	repo, err := st.repositoryFor(ctx, target.Repository, archID)
	if err != nil {
		return out, err
	}
	packageWatermark, err := st.tx.MaxPackageMTime(ctx, repo.ID)
	if err != nil {
		return out, err
	}

	snap, err := r.opener.Open(ctx, target.Repository, target.Architecture, repo.MTime, packageWatermark)
	if err != nil {
		return out, err
	}
	defer func() {
		if cerr := snap.Close(); cerr != nil {
			log.Warn("failed to remove snapshot", "error", cerr)
		}
	}()

	out.MTime = repo.MTime
	if !snap.Extracted() || snap.MTime() <= repo.MTime {
		out.UpToDate = true
		emit(r.hooks, Event{Phase: PhaseUpToDate, Target: target})
		log.Debug("repository is up to date", "mtime", repo.MTime)
		return out, nil
	}

	total, err := snap.NewPackageCount()
	if err != nil {
		return out, err
	}
	log.Info("syncing repository",
		"url", snap.URL(),
		"size", datasize.ByteSize(snap.Size()).HumanReadable(),
		"packages", total)
	emit(r.hooks, Event{Phase: PhaseSyncing, Target: target, Msg: snap.URL(), Total: total})

	current := 0
	for name, err := range snap.Packages() {
		if err != nil {
			return out, err
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		pkg, err := snap.Package(name)
		if err != nil {
			return out, err
		}
		added, err := r.updatePackage(ctx, st, log, repo, target.Architecture, pkg)
		if err != nil {
			return out, errutils.Wrapf(err, "package %s", name)
		}
		if added {
			out.Added++
		} else {
			out.Updated++
		}
		current++
		emit(r.hooks, Event{Phase: PhasePackage, Target: target, Msg: pkg.Name(), Current: current, Total: total})
	}

	emit(r.hooks, Event{Phase: PhaseCleanupObsolete, Target: target})
	oldNames, err := snap.OldPackageNames()
	if err != nil {
		return out, err
	}
	out.Removed, err = cleanupObsoletePackages(ctx, st.tx, repo.ID, packageWatermark, oldNames)
	if err != nil {
		return out, err
	}

	if err := st.tx.SetRepositoryMTime(ctx, repo.ID, snap.MTime()); err != nil {
		return out, err
	}
	out.MTime = snap.MTime()

	log.Info("repository synced", "added", out.Added, "updated", out.Updated, "removed", out.Removed)
	emit(r.hooks, Event{Phase: PhaseDone, Target: target})
	return out, nil
}

// updatePackage upserts one package and replaces its dependent rows. It
// reports whether the package was new.
func (r *Reconciler) updatePackage(
	ctx context.Context,
	st *runState,
	log *slog.Logger,
	repo catalog.Repository,
	repoArch string,
	pkg *model.Package,
) (bool, error) {
	tx := st.tx

	archName := pkg.Arch()
	if archName == "" {
		archName = repoArch
	}
	archID, err := st.architectureID(ctx, archName)
	if err != nil {
		return false, err
	}

	row := catalog.Package{
		RepositoryID:   repo.ID,
		ArchitectureID: archID,
		FileName:       pkg.FileName(),
		Name:           pkg.Name(),
		Base:           pkg.Base(),
		Version:        pkg.Version(),
		Description:    pkg.Description(),
		URL:            pkg.URL(),
		CompressedSize: pkg.CompressedSize(),
		InstalledSize:  pkg.InstalledSize(),
		MD5Sum:         pkg.MD5Sum(),
		SHA256Sum:      pkg.SHA256Sum(),
		PGPSignature:   pkg.PGPSignature(),
		BuildDate:      pkg.BuildDate(),
		MTime:          pkg.MTime(),
	}
	if packager := pkg.Packager(); packager != "" {
		id, err := st.packagerID(ctx, model.ParsePackager(packager))
		if err != nil {
			return false, err
		}
		row.PackagerID = &id
	}

	existing, err := tx.FindPackage(ctx, repo.ID, archID, row.Name)
	added := errutils.IsNotFound(err)
	if err != nil && !added {
		return false, err
	}

	var id int64
	if added {
		if id, err = tx.InsertPackage(ctx, row); err != nil {
			return false, err
		}
	} else {
		id = existing.ID
		if err := tx.UpdatePackage(ctx, id, row); err != nil {
			return false, err
		}
		if change := model.CompareVersions(existing.Version, row.Version); change != model.VersionSame {
			log.Debug("package version changed",
				"package", row.Name, "from", existing.Version, "to", row.Version, "change", change.String())
		}
	}

	if err := replaceGroups(ctx, st, id, pkg.Groups()); err != nil {
		return false, err
	}
	if err := replaceLicenses(ctx, st, id, pkg.Licenses()); err != nil {
		return false, err
	}
	if err := replaceRelations(ctx, tx, id, pkg.Relations()); err != nil {
		return false, err
	}
	if err := replaceFiles(ctx, st, id, pkg.Files()); err != nil {
		return false, err
	}
	return added, nil
}

func replaceGroups(ctx context.Context, st *runState, packageID int64, groups []string) error {
	if err := st.tx.DeletePackageGroups(ctx, packageID); err != nil {
		return err
	}
	for _, name := range groups {
		groupID, err := st.groupID(ctx, name)
		if err != nil {
			return err
		}
		if err := st.tx.InsertPackageGroup(ctx, packageID, groupID); err != nil {
			return err
		}
	}
	return nil
}

func replaceLicenses(ctx context.Context, st *runState, packageID int64, licenses []string) error {
	if err := st.tx.DeletePackageLicenses(ctx, packageID); err != nil {
		return err
	}
	for _, name := range licenses {
		licenseID, err := st.licenseID(ctx, name)
		if err != nil {
			return err
		}
		if err := st.tx.InsertPackageLicense(ctx, packageID, licenseID); err != nil {
			return err
		}
	}
	return nil
}

func replaceRelations(ctx context.Context, tx catalog.Tx, packageID int64, relations map[model.RelationKind][]model.Relation) error {
	for _, kind := range model.RelationKinds {
		if err := tx.DeletePackageRelations(ctx, packageID, string(kind)); err != nil {
			return err
		}
		for _, rel := range relations[kind] {
			if err := tx.InsertRelation(ctx, packageID, string(kind), rel.Name, rel.Version); err != nil {
				return err
			}
		}
	}
	return nil
}

// replaceFiles stores the file list. Directory entries end in "/" and are not
// indexed; neither are basenames shorter than three bytes.
func replaceFiles(ctx context.Context, st *runState, packageID int64, files []string) error {
	if err := st.tx.DeletePackageFiles(ctx, packageID); err != nil {
		return err
	}
	for _, file := range files {
		if err := st.tx.InsertFile(ctx, packageID, model.Truncate(file, MaxPathLength)); err != nil {
			return err
		}
		if strings.HasSuffix(file, "/") {
			continue
		}
		base := model.Truncate(path.Base(file), MaxBasenameLength)
		if len(base) < minBasenameBytes {
			continue
		}
		indexID, err := st.fileIndexID(ctx, base)
		if err != nil {
			return err
		}
		if err := st.tx.InsertPackageFileIndex(ctx, packageID, indexID); err != nil {
			return err
		}
	}
	return nil
}

// cleanupObsoletePackages deletes the packages of a repository that were
// already imported (mtime <= watermark) but are no longer in the snapshot.
func cleanupObsoletePackages(ctx context.Context, tx catalog.Tx, repositoryID, watermark int64, keep []string) (int, error) {
	stored, err := tx.ListPackages(ctx, repositoryID, watermark)
	if err != nil {
		return 0, err
	}
	keepSet := make(map[string]struct{}, len(keep))
	for _, name := range keep {
		keepSet[name] = struct{}{}
	}

	removed := 0
	for _, ref := range stored {
		if _, ok := keepSet[ref.Name]; ok {
			continue
		}
		if err := tx.DeletePackage(ctx, ref.ID); err != nil {
			return removed, errutils.Wrapf(err, "failed to delete package %s", ref.Name)
		}
		removed++
	}
	return removed, nil
}

// purgeObsoleteRepositories drops repositories that are no longer targets.
func (r *Reconciler) purgeObsoleteRepositories(ctx context.Context, tx catalog.Tx, log *slog.Logger) (int, error) {
	wanted := make(map[config.Target]struct{}, len(r.targets))
	for _, t := range r.targets {
		wanted[t] = struct{}{}
	}

	repos, err := tx.ListRepositories(ctx)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, repo := range repos {
		target := config.Target{Repository: repo.Name, Architecture: repo.Architecture}
		if _, ok := wanted[target]; ok {
			continue
		}
		emit(r.hooks, Event{Phase: PhasePurge, Target: target})
		if err := tx.DeleteRepository(ctx, repo.ID); err != nil {
			return purged, fmt.Errorf("%s: %w", target, err)
		}
		log.Info("purged obsolete repository", "repo", repo.Name, "arch", repo.Architecture)
		purged++
	}
	return purged, nil
}
