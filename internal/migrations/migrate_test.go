package migrations

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindLatestMigrationVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_create_simulation_runs.up.sql",
		"000001_create_simulation_runs.down.sql",
		"000012_add_index.up.sql",
		"README.md",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("-- test"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "000099_dir"), 0o755); err != nil {
		t.Fatal(err)
	}

	if got := findLatestMigrationVersion(dir); got != 12 {
		t.Errorf("latest = %d, want 12", got)
	}
}

func TestFindLatestMigrationVersionMissingDir(t *testing.T) {
	if got := findLatestMigrationVersion(filepath.Join(t.TempDir(), "nope")); got != 0 {
		t.Errorf("latest = %d, want 0", got)
	}
}

func TestShippedMigrationsArePaired(t *testing.T) {
	dir := filepath.Join("..", "..", "migrations")
	ups, _ := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if len(ups) == 0 {
		t.Fatalf("no migrations found in %s", dir)
	}
	for _, up := range ups {
		down := up[:len(up)-len(".up.sql")] + ".down.sql"
		if _, err := os.Stat(down); err != nil {
			t.Errorf("%s has no matching down migration", filepath.Base(up))
		}
	}
}

func TestRunMigrationsRequiresURL(t *testing.T) {
	if err := RunMigrations("", "migrations"); err == nil {
		t.Error("expected error for empty database URL")
	}
}
