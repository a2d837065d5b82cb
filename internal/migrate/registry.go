package migrate

import "fmt"

// Registry holds the version and migrations for a single schema target
// (config TOML, shard result JSON). Each target gets its own instance so
// that version numbers and migration lists are fully independent.
type Registry struct {
	// CurrentVersion is the latest schema version that this registry targets.
	CurrentVersion int
	// Migrations is the list of versioned upgrades. Exported so tests can
	// override the migration list for a given registry instance.
	Migrations []Migration
}

// Register appends a migration to the registry. It panics if a migration
// with the same version is already registered.
func (r *Registry) Register(m Migration) {
	for _, existing := range r.Migrations {
		if existing.Version == m.Version {
			panic(fmt.Sprintf("migrate: duplicate migration version %d (description: %q)", m.Version, m.Description))
		}
	}
	r.Migrations = append(r.Migrations, m)
}

// NeedsMigration reports whether data at fileVersion needs upgrading.
func (r *Registry) NeedsMigration(fileVersion int) bool {
	return NeedsMigration(fileVersion, r.CurrentVersion, r.Migrations)
}

// Run applies registered migrations sequentially where fromVersion < m.Version.
func (r *Registry) Run(data []byte, fromVersion int) ([]byte, int, error) {
	return Run(data, fromVersion, r.Migrations)
}

// Config is the migration registry for wordsynth.toml files.
var Config = &Registry{CurrentVersion: 1}

// Shard is the migration registry for per-worker result files.
var Shard = &Registry{CurrentVersion: 2}

func init() {
	Shard.Register(Migration{
		Version:     2,
		Description: "wrap flat path->label mapping in a versioned envelope",
		Upgrade:     wrapFlatMapping,
	})
}
