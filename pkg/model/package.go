// Package model provides the read-only package descriptor built from a
// repository snapshot's desc, depends and files records, together with
// the relation and packager value types derived from it.
package model

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
	"github.com/glorpus-work/pkgcatalog/pkg/record"
)

// Record file names inside a package directory.
const (
	DescFile    = "desc"
	DependsFile = "depends"
	FilesFile   = "files"
)

// MaxDescriptionLength is the number of code points kept from DESC.
const MaxDescriptionLength = 255

// Package is an immutable view over the records of one package directory.
type Package struct {
	desc    record.Record
	depends record.Record
	files   record.Record
	mtime   int64
}

// NewPackage builds a descriptor from already parsed records.
// mtime is the modification time of the desc file in Unix seconds.
func NewPackage(desc, depends, files record.Record, mtime int64) *Package {
	return &Package{desc: desc, depends: depends, files: files, mtime: mtime}
}

// Load reads a package directory. The desc and depends files are mandatory;
// files is only read when withFiles is set.
func Load(dir string, withFiles bool) (*Package, error) {
	descPath := filepath.Join(dir, DescFile)
	info, err := os.Stat(descPath)
	if err != nil {
		return nil, errutils.NewDataError(dir, err)
	}

	desc, err := record.ReadFile(descPath)
	if err != nil {
		return nil, errutils.NewDataError(dir, err)
	}
	depends, err := record.ReadFile(filepath.Join(dir, DependsFile))
	if err != nil {
		return nil, errutils.NewDataError(dir, err)
	}

	var files record.Record
	if withFiles {
		files, err = record.ReadFile(filepath.Join(dir, FilesFile))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, errutils.NewDataError(dir, err)
		}
	}

	return NewPackage(desc, depends, files, info.ModTime().Unix()), nil
}

func (p *Package) first(key string) string {
	v, _ := p.desc.First(key)
	return v
}

func (p *Package) integer(key string) int64 {
	v, ok := p.desc.First(key)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// FileName returns the package archive file name.
func (p *Package) FileName() string { return p.first("FILENAME") }

// Name returns the package name.
func (p *Package) Name() string { return p.first("NAME") }

// Base returns the package base, falling back to the name.
func (p *Package) Base() string {
	if base, ok := p.desc.First("BASE"); ok {
		return base
	}
	return p.Name()
}

// Version returns the full version string (epoch:pkgver-pkgrel).
func (p *Package) Version() string { return p.first("VERSION") }

// Description returns DESC truncated to MaxDescriptionLength code points.
func (p *Package) Description() string {
	return Truncate(p.first("DESC"), MaxDescriptionLength)
}

// CompressedSize returns CSIZE, or 0.
func (p *Package) CompressedSize() int64 { return p.integer("CSIZE") }

// InstalledSize returns ISIZE, or 0.
func (p *Package) InstalledSize() int64 { return p.integer("ISIZE") }

// MD5Sum returns the MD5 checksum.
func (p *Package) MD5Sum() string { return p.first("MD5SUM") }

// SHA256Sum returns the SHA-256 checksum.
func (p *Package) SHA256Sum() string { return p.first("SHA256SUM") }

// PGPSignature returns the base64 detached signature.
func (p *Package) PGPSignature() string { return p.first("PGPSIG") }

// URL returns the upstream URL. Bare host/path values get an http:// scheme.
func (p *Package) URL() string {
	u, ok := p.desc.First("URL")
	if !ok {
		return ""
	}
	for _, scheme := range []string{"http://", "https://", "ftp://"} {
		if strings.HasPrefix(u, scheme) {
			return u
		}
	}
	return "http://" + u
}

// Arch returns the package architecture.
func (p *Package) Arch() string { return p.first("ARCH") }

// BuildDate returns BUILDDATE as Unix seconds, or 0.
func (p *Package) BuildDate() int64 { return p.integer("BUILDDATE") }

// Packager returns the raw PACKAGER string.
func (p *Package) Packager() string { return p.first("PACKAGER") }

// Groups returns GROUPS.
func (p *Package) Groups() []string { return p.desc.Values("GROUPS") }

// Licenses returns LICENSE.
func (p *Package) Licenses() []string { return p.desc.Values("LICENSE") }

// Replaces returns REPLACES.
func (p *Package) Replaces() []string { return p.desc.Values("REPLACES") }

// Depends returns DEPENDS.
func (p *Package) Depends() []string { return p.depends.Values("DEPENDS") }

// Conflicts returns CONFLICTS.
func (p *Package) Conflicts() []string { return p.depends.Values("CONFLICTS") }

// Provides returns PROVIDES.
func (p *Package) Provides() []string { return p.depends.Values("PROVIDES") }

// OptDepends returns OPTDEPENDS.
func (p *Package) OptDepends() []string { return p.depends.Values("OPTDEPENDS") }

// MakeDepends returns MAKEDEPENDS.
func (p *Package) MakeDepends() []string { return p.depends.Values("MAKEDEPENDS") }

// CheckDepends returns CHECKDEPENDS.
func (p *Package) CheckDepends() []string { return p.depends.Values("CHECKDEPENDS") }

// Files returns the FILES list, empty unless a files record was loaded.
func (p *Package) Files() []string { return p.files.Values("FILES") }

// MTime returns the modification time of the desc file in Unix seconds.
func (p *Package) MTime() int64 { return p.mtime }

// Relations returns the relation strings of every stored kind, parsed.
func (p *Package) Relations() map[RelationKind][]Relation {
	raw := map[RelationKind][]string{
		RelationReplaces:   p.Replaces(),
		RelationDepends:    p.Depends(),
		RelationOptDepends: p.OptDepends(),
		RelationConflicts:  p.Conflicts(),
		RelationProvides:   p.Provides(),
	}
	out := make(map[RelationKind][]Relation, len(raw))
	for kind, values := range raw {
		rels := make([]Relation, 0, len(values))
		for _, v := range values {
			rels = append(rels, ParseRelation(v))
		}
		out[kind] = rels
	}
	return out
}

// Truncate cuts s to at most n code points.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
