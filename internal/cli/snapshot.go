package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/c2h5oh/datasize"
	"github.com/glorpus-work/pkgcatalog/pkg/model"
	"github.com/spf13/cobra"
)

const snapshotCommandArgs = 2

// NewSnapshotCmd creates the snapshot command.
func NewSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot REPOSITORY ARCH",
		Short: "List the packages of a repository snapshot",
		Long: `Download the metadata archive of one repository and architecture
and list its packages without touching the catalog.`,
		Args: cobra.ExactArgs(snapshotCommandArgs),
		RunE: runSnapshot,
	}

	return cmd
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repository, architecture := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fetcher, err := newFetcher(ctx, cfg)
	if err != nil {
		return err
	}

	snap, err := fetcher.Open(ctx, repository, architecture, 0, 0)
	if err != nil {
		return err
	}
	defer func() { _ = snap.Close() }()

	out := cmd.OutOrStdout()
	if !snap.Extracted() {
		_, _ = fmt.Fprintf(out, "%s is younger than the configured delay, not extracted\n", snap.URL())
		return nil
	}

	var packages []*model.Package
	for name, err := range snap.Packages() {
		if err != nil {
			return err
		}
		pkg, err := snap.Package(name)
		if err != nil {
			return err
		}
		packages = append(packages, pkg)
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].Name() < packages[j].Name() })

	_, _ = fmt.Fprintf(out, "%s (%s, %d packages)\n\n",
		snap.URL(), datasize.ByteSize(snap.Size()).HumanReadable(), len(packages))

	tw := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tVERSION\tARCH\tDESCRIPTION")
	for _, pkg := range packages {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			pkg.Name(), pkg.Version(), pkg.Arch(), model.Truncate(pkg.Description(), MaxDescriptionLength))
	}
	return tw.Flush()
}
