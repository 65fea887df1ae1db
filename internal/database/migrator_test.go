package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000002_stale.up.sql":  {Data: []byte("SELECT 1;")},
		"migrations/000001_init.up.sql":   {Data: []byte("SELECT 1;")},
		"migrations/000001_init.down.sql": {Data: []byte("SELECT 1;")},
		"migrations/README.md":            {Data: []byte("notes")},
		"migrations/archive/old.up.sql":   {Data: []byte("SELECT 1;")},
	}

	names, err := ListMigrations(fsys, "migrations")
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init.up.sql", "000002_stale.up.sql"}, names)
}

func TestListMigrations_MissingRoot(t *testing.T) {
	_, err := ListMigrations(fstest.MapFS{}, "migrations")
	require.Error(t, err)
}
