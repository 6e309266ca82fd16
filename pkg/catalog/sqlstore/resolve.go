package sqlstore

import (
	"context"
	"fmt"
)

// Relation resolution runs in three passes. Among several candidates the
// engine's first row wins.
var resolveQueries = []struct {
	name  string
	query string
}{
	{
		name:  "reset",
		query: `UPDATE package_relation SET target_id = NULL`,
	},
	{
		name: "same repository",
		query: `
		UPDATE package_relation SET target_id = (
			SELECT dep.id
			FROM packages src
			JOIN packages dep
				ON dep.repository_id = src.repository_id
				AND dep.name = package_relation.name
			WHERE src.id = package_relation.package_id
			LIMIT 1
		)`,
	},
	{
		name: "same architecture",
		query: `
		UPDATE package_relation SET target_id = (
			SELECT dep.id
			FROM packages src
			JOIN repositories src_repo ON src_repo.id = src.repository_id
			JOIN repositories dep_repo
				ON dep_repo.arch_id = src_repo.arch_id
				AND NOT dep_repo.testing
			JOIN packages dep
				ON dep.repository_id = dep_repo.id
				AND dep.name = package_relation.name
			WHERE src.id = package_relation.package_id
			LIMIT 1
		)
		WHERE target_id IS NULL`,
	},
}

// ResolveRelations links every relation to a package of the same name,
// preferring the relation's own repository and falling back to any
// non-testing repository of the same architecture.
func (t *Tx) ResolveRelations(ctx context.Context) error {
	for _, step := range resolveQueries {
		if err := t.exec(ctx, step.query); err != nil {
			return fmt.Errorf("resolve relations (%s): %w", step.name, err)
		}
	}
	return nil
}
