package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openMemory(t *testing.T) Config {
	t.Helper()
	return Config{Driver: DriverSQLite, DSN: ":memory:"}
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	if _, err := Connect(Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestMigrateStatusRollback(t *testing.T) {
	ctx := context.Background()
	cfg := openMemory(t)
	db, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	applied, err := Migrate(ctx, db, cfg.Driver)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(applied) != 1 || applied[0] != 1 {
		t.Fatalf("applied = %v, want [1]", applied)
	}

	// second run is a no-op
	applied, err = Migrate(ctx, db, cfg.Driver)
	if err != nil {
		t.Fatalf("Migrate again: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected nothing to apply, got %v", applied)
	}

	st, err := Status(ctx, db, cfg.Driver)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(st) != 1 || !st[0].Applied {
		t.Fatalf("status = %+v", st)
	}

	v, err := Rollback(ctx, db, cfg.Driver)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if v != 1 {
		t.Fatalf("rolled back version %d, want 1", v)
	}
}

func TestIsUniqueViolationSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := openMemory(t)
	db, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
	if _, err := Migrate(ctx, db, cfg.Driver); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	const q = `INSERT INTO users (name, username, password) VALUES (?, ?, ?)`
	if _, err := db.ExecContext(ctx, q, "John Smith", "john@x.com", "h"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err = db.ExecContext(ctx, q, "John Again", "john@x.com", "h")
	if err == nil {
		t.Fatal("expected unique violation")
	}
	if !IsUniqueViolation(err) {
		t.Fatalf("IsUniqueViolation(%v) = false", err)
	}
	if IsUniqueViolation(errors.New("other")) || IsUniqueViolation(nil) {
		t.Fatal("non-constraint errors must not match")
	}
}

func TestQuoteLiteral(t *testing.T) {
	if got := quoteLiteral("Europe/Minsk"); got != "'Europe/Minsk'" {
		t.Fatalf("got %s", got)
	}
	if got := quoteLiteral("a'b"); got != "'a''b'" {
		t.Fatalf("got %s", got)
	}
}

func TestSQLiteDSN(t *testing.T) {
	cases := map[string]string{
		":memory:":                       ":memory:?_pragma=foreign_keys(1)",
		"file:app.db?cache=shared":       "file:app.db?cache=shared&_pragma=foreign_keys(1)",
		"app.db?_pragma=foreign_keys(0)": "app.db?_pragma=foreign_keys(0)",
	}
	for in, want := range cases {
		if got := sqliteDSN(in); got != want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSQLiteForeignKeysSurviveReconnect(t *testing.T) {
	ctx := context.Background()
	db, err := Connect(Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "tasklist.db")})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	var on int
	if err := db.GetContext(ctx, &on, "PRAGMA foreign_keys"); err != nil || on != 1 {
		t.Fatalf("foreign_keys = %d, %v", on, err)
	}

	// expire the pooled connection so the next query opens a fresh one
	db.SetConnMaxLifetime(time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if err := db.GetContext(ctx, &on, "PRAGMA foreign_keys"); err != nil {
		t.Fatalf("PRAGMA after reconnect: %v", err)
	}
	if db.Stats().MaxLifetimeClosed == 0 {
		t.Fatal("connection was not recycled")
	}
	if on != 1 {
		t.Fatalf("foreign_keys after reconnect = %d, want 1", on)
	}
}
