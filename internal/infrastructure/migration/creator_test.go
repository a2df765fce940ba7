package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/staffhub/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add sync runs", "add_sync_runs"},
		{"Add-Sync-Runs", "add_sync_runs"},
		{"ADD__SYNC__RUNS", "add_sync_runs"},
		{"   spaces   ", "spaces"},
		{"index!@#records", "indexrecords"},
		{"_leading and trailing_", "leading_and_trailing"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(dir, "Add record checksum", "Store a checksum of external_data")
	require.NoError(t, err)

	assert.Len(t, mf.Version, 14)
	assert.Equal(t, "add_record_checksum", mf.Name)
	assert.Equal(t,
		strings.TrimSuffix(filepath.Base(mf.UpPath), ".up.sql"),
		strings.TrimSuffix(filepath.Base(mf.DownPath), ".down.sql"))

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add_record_checksum")
	assert.Contains(t, string(up), "Store a checksum of external_data")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")

	listed, err := ListMigrations(os.DirFS(dir))
	require.NoError(t, err)
	assert.Equal(t, []string{mf.Version + "_add_record_checksum"}, listed)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_add_runs.up.sql":   {Data: []byte("--")},
		"000002_add_runs.down.sql": {Data: []byte("--")},
		"000001_init.up.sql":       {Data: []byte("--")},
		"000001_init.down.sql":     {Data: []byte("--")},
		"README.md":                {Data: []byte("docs")},
		"nested.up.sql/keep":       {Data: []byte("")},
	}

	listed, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init", "000002_add_runs"}, listed)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	listed, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestEmbeddedMigrations(t *testing.T) {
	listed, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"20260901090000_create_integration_sources",
		"20260901090100_create_field_mappings",
		"20260901090200_create_integration_records",
		"20260901090300_create_sync_runs",
	}, listed)

	for _, name := range listed {
		_, err := migrations.FS.Open(name + ".down.sql")
		assert.NoError(t, err, "every up migration has a rollback")
	}
}
