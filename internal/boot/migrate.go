package boot

import (
	"fmt"

	"swarm/internal/logging"
	"swarm/internal/types"
)

// MigrateProfile upgrades a loaded profile to the current schema version
// in place and stamps a provenance note when anything changed. Version
// drift is a SchemaMismatch: it triggers migration, never an error.
func MigrateProfile(profile *types.ProjectProfile) bool {
	if profile.SchemaVersion == types.SchemaVersion {
		return false
	}

	from := profile.SchemaVersion
	if from == "" {
		from = "pre-3.0"
	}
	logging.Boot("migrating profile schema %s -> %s", from, types.SchemaVersion)

	// Forward-fill structures older versions did not carry. EnsureDefaults
	// covers the nil maps; the base branch default landed in 3.4.
	profile.EnsureDefaults()
	for _, task := range profile.Tasks {
		if task.Git.Base == "" {
			task.Git.Base = "dev"
		}
	}

	profile.SchemaVersion = types.SchemaVersion
	profile.AppendProvenance(types.NewSignature(
		"system", types.RoleSystem, "schema_migrated",
		fmt.Sprintf("%s -> %s", from, types.SchemaVersion),
	))
	return true
}
