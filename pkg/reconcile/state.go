package reconcile

import (
	"context"
	"regexp"

	"github.com/glorpus-work/pkgcatalog/pkg/catalog"
	"github.com/glorpus-work/pkgcatalog/pkg/errutils"
	"github.com/glorpus-work/pkgcatalog/pkg/model"
)

var testingRepository = regexp.MustCompile(`(-|^)testing$`)

type repositoryKey struct {
	name           string
	architectureID int64
}

// runState owns the transaction and id caches of one run. Group, license and
// file index caches are scoped to the current repository name.
type runState struct {
	tx catalog.Tx

	architectures map[string]int64
	repositories  map[repositoryKey]catalog.Repository
	packagers     map[model.Packager]int64

	repository string
	groups     map[string]int64
	licenses   map[string]int64
	fileIndex  map[string]int64
}

func newRunState(tx catalog.Tx) *runState {
	return &runState{
		tx:            tx,
		architectures: map[string]int64{},
		repositories:  map[repositoryKey]catalog.Repository{},
		packagers:     map[model.Packager]int64{},
		groups:        map[string]int64{},
		licenses:      map[string]int64{},
		fileIndex:     map[string]int64{},
	}
}

func (s *runState) enterRepository(name string) {
	if name == s.repository {
		return
	}
	s.repository = name
	s.groups = map[string]int64{}
	s.licenses = map[string]int64{}
	s.fileIndex = map[string]int64{}
}

// findOrInsert returns the cached id of key, looking it up and inserting it
// on a miss.
func findOrInsert(
	ctx context.Context,
	cache map[string]int64,
	key string,
	find, insert func(context.Context, string) (int64, error),
) (int64, error) {
	if id, ok := cache[key]; ok {
		return id, nil
	}
	id, err := find(ctx, key)
	if errutils.IsNotFound(err) {
		id, err = insert(ctx, key)
	}
	if err != nil {
		return 0, err
	}
	cache[key] = id
	return id, nil
}

func (s *runState) architectureID(ctx context.Context, name string) (int64, error) {
	return findOrInsert(ctx, s.architectures, name, s.tx.FindArchitecture, s.tx.InsertArchitecture)
}

func (s *runState) groupID(ctx context.Context, name string) (int64, error) {
	return findOrInsert(ctx, s.groups, name, s.tx.FindGroup, s.tx.InsertGroup)
}

func (s *runState) licenseID(ctx context.Context, name string) (int64, error) {
	return findOrInsert(ctx, s.licenses, name, s.tx.FindLicense, s.tx.InsertLicense)
}

func (s *runState) fileIndexID(ctx context.Context, name string) (int64, error) {
	return findOrInsert(ctx, s.fileIndex, name, s.tx.FindFileIndex, s.tx.InsertFileIndex)
}

func (s *runState) packagerID(ctx context.Context, p model.Packager) (int64, error) {
	if id, ok := s.packagers[p]; ok {
		return id, nil
	}
	id, err := s.tx.FindPackager(ctx, p.Name, p.Email)
	if errutils.IsNotFound(err) {
		id, err = s.tx.InsertPackager(ctx, p.Name, p.Email)
	}
	if err != nil {
		return 0, err
	}
	s.packagers[p] = id
	return id, nil
}

// repositoryFor returns the stored repository, creating it with a zero
// watermark when it does not exist yet.
func (s *runState) repositoryFor(ctx context.Context, name string, architectureID int64) (catalog.Repository, error) {
	key := repositoryKey{name: name, architectureID: architectureID}
	if repo, ok := s.repositories[key]; ok {
		return repo, nil
	}
	repo, err := s.tx.FindRepository(ctx, name, architectureID)
	if errutils.IsNotFound(err) {
		testing := testingRepository.MatchString(name)
		var id int64
		id, err = s.tx.InsertRepository(ctx, name, architectureID, testing)
		repo = catalog.Repository{ID: id, Name: name, ArchitectureID: architectureID, Testing: testing}
	}
	if err != nil {
		return catalog.Repository{}, err
	}
	s.repositories[key] = repo
	return repo, nil
}
