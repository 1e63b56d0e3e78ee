package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var migrationsDir = filepath.Join("..", "..", "db", "migrations")

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	ups, err := listMigrations(migrationsDir, "up")
	require.NoError(t, err)
	downs, err := listMigrations(migrationsDir, "down")
	require.NoError(t, err)
	require.NotEmpty(t, ups, "no migrations discovered")

	upVersions := map[string]bool{}
	for _, m := range ups {
		assert.False(t, upVersions[m.version], "duplicate up migration for version %s", m.version)
		upVersions[m.version] = true
	}
	downVersions := map[string]bool{}
	for _, m := range downs {
		assert.False(t, downVersions[m.version], "duplicate down migration for version %s", m.version)
		downVersions[m.version] = true
	}
	assert.Equal(t, upVersions, downVersions)
}

func TestListMigrationsSortsByVersion(t *testing.T) {
	ups, err := listMigrations(migrationsDir, "up")
	require.NoError(t, err)
	for i := 1; i < len(ups); i++ {
		assert.Less(t, ups[i-1].version, ups[i].version)
	}
}
