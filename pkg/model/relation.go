package model

import (
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"
)

// RelationKind is the type of an edge between packages.
type RelationKind string

// Stored relation kinds.
const (
	RelationReplaces   RelationKind = "replaces"
	RelationDepends    RelationKind = "depends"
	RelationOptDepends RelationKind = "optdepends"
	RelationConflicts  RelationKind = "conflicts"
	RelationProvides   RelationKind = "provides"
)

// RelationKinds lists the stored kinds in the order they are written.
var RelationKinds = []RelationKind{
	RelationReplaces,
	RelationDepends,
	RelationOptDepends,
	RelationConflicts,
	RelationProvides,
}

// Relation is a parsed relation string such as "glibc>=2.35" or "bash-completion: for completion".
type Relation struct {
	Name    string
	Version string // operator and version, e.g. ">=2.35"; empty when unconstrained
}

var (
	versionedRelation = regexp.MustCompile(`^([\w@.+-]+?)((?:<|<=|=|>=|>)+[\w.:+~-]+)`)
	plainRelation     = regexp.MustCompile(`^([\w@.+-]+)`)
	packagerPattern   = regexp.MustCompile(`([^<>]+)(?:<(.+?)>)?`)
)

// ParseRelation splits a relation string into name and version constraint.
// Strings matching neither form are kept whole as the name.
func ParseRelation(s string) Relation {
	if m := versionedRelation.FindStringSubmatch(s); m != nil {
		return Relation{Name: m[1], Version: m[2]}
	}
	if m := plainRelation.FindStringSubmatch(s); m != nil {
		return Relation{Name: m[1]}
	}
	return Relation{Name: s}
}

// Packager is a deduplicated "Name <email>" identity.
type Packager struct {
	Name  string
	Email string
}

// ParsePackager splits a PACKAGER value into name and email.
func ParsePackager(s string) Packager {
	m := packagerPattern.FindStringSubmatch(s)
	if m == nil {
		return Packager{Name: strings.TrimSpace(s)}
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		name = strings.TrimSpace(s)
	}
	return Packager{Name: name, Email: strings.TrimSpace(m[2])}
}

// VersionChange classifies the move from one version string to another.
type VersionChange int

const (
	// VersionUnknown means at least one side could not be parsed.
	VersionUnknown VersionChange = iota
	VersionSame
	VersionUpgrade
	VersionDowngrade
)

func (c VersionChange) String() string {
	switch c {
	case VersionSame:
		return "same"
	case VersionUpgrade:
		return "upgrade"
	case VersionDowngrade:
		return "downgrade"
	default:
		return "unknown"
	}
}

// CompareVersions classifies old -> new. The pkgrel suffix is compared as a
// separate number; versions with an epoch prefix compare by epoch first.
func CompareVersions(oldVersion, newVersion string) VersionChange {
	if oldVersion == newVersion {
		return VersionSame
	}
	oldEpoch, oldVer, oldRel, ok := splitVersion(oldVersion)
	if !ok {
		return VersionUnknown
	}
	newEpoch, newVer, newRel, ok := splitVersion(newVersion)
	if !ok {
		return VersionUnknown
	}

	if c := oldEpoch.Compare(newEpoch); c != 0 {
		return classify(c)
	}
	if c := oldVer.Compare(newVer); c != 0 {
		return classify(c)
	}
	return classify(oldRel.Compare(newRel))
}

func classify(c int) VersionChange {
	switch {
	case c < 0:
		return VersionUpgrade
	case c > 0:
		return VersionDowngrade
	default:
		return VersionSame
	}
}

func splitVersion(s string) (epoch, ver, rel *version.Version, ok bool) {
	epochStr := "0"
	if i := strings.Index(s, ":"); i >= 0 {
		epochStr, s = s[:i], s[i+1:]
	}
	relStr := "0"
	if i := strings.LastIndex(s, "-"); i >= 0 {
		s, relStr = s[:i], s[i+1:]
	}

	var err error
	if epoch, err = version.NewVersion(epochStr); err != nil {
		return nil, nil, nil, false
	}
	if ver, err = version.NewVersion(s); err != nil {
		return nil, nil, nil, false
	}
	if rel, err = version.NewVersion(relStr); err != nil {
		return nil, nil, nil, false
	}
	return epoch, ver, rel, true
}
