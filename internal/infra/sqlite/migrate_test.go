package sqlite_test

import (
	"database/sql"
	"testing"

	"github.com/matiasleandrokruk/solidstate/internal/infra/sqlite"
)

func TestMigrate_RunsAllMigrations(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v; want nil", err)
	}

	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 2 {
		t.Errorf("MigrationVersion() = %d; want 2", version)
	}
	assertTableExists(t, db, "response_cache")
}

// TestMigrate_Idempotent verifies that re-running MigrateUp on a migrated DB is a no-op.
func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	for i := 0; i < 2; i++ {
		if err := sqlite.MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() run %d error = %v; want nil", i+1, err)
		}
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("schema_migrations rows = %d; want 2", count)
	}
}

func TestMigrate_VersionZeroOnFreshDB(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("MigrationVersion() = %d; want 0", version)
	}
}

// TestMigrate_CacheKeyUnique verifies the UNIQUE (op, request_hash) constraint.
func TestMigrate_CacheKeyUnique(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	insert := `INSERT INTO response_cache (id, op, request_hash, body) VALUES (?, ?, ?, ?)`
	if _, err := db.Exec(insert, "row-1", "crystal", "abc", []byte("{}")); err != nil {
		t.Fatalf("first insert error = %v", err)
	}
	if _, err := db.Exec(insert, "row-2", "crystal", "abc", []byte("{}")); err == nil {
		t.Error("duplicate (op, request_hash) insert succeeded; want UNIQUE constraint error")
	}
	if _, err := db.Exec(insert, "row-3", "tb", "abc", []byte("{}")); err != nil {
		t.Errorf("same hash under another op must be allowed: %v", err)
	}
}

func TestMigrate_OpCheckConstraint(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	_, err := db.Exec(`INSERT INTO response_cache (id, op, request_hash, body) VALUES ('x', 'dft', 'h', x'00')`)
	if err == nil {
		t.Error("insert with unknown op succeeded; want CHECK constraint error")
	}
}

func TestOpen_MigratesInMemory(t *testing.T) {
	t.Parallel()

	db, err := sqlite.Open(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	defer db.Close()
	assertTableExists(t, db, "response_cache")
}

func assertTableExists(t *testing.T, db *sql.DB, tableName string) {
	t.Helper()

	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		tableName,
	).Scan(&name)

	if err == sql.ErrNoRows {
		t.Errorf("table %q not found in sqlite_master after MigrateUp", tableName)
		return
	}
	if err != nil {
		t.Fatalf("assertTableExists(%q) query error = %v", tableName, err)
	}
}
