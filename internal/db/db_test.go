package db

import (
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestNormalizeDSN(t *testing.T) {
	cases := map[string]string{
		"":                                       "",
		`  "postgres://u:p@h/db"  `:              "postgres://u:p@h/db",
		"host=h  user=u dbname=d":                "host=h user=u dbname=d sslmode=disable",
		"host=h user=u dbname=d sslmode=require": "host=h user=u dbname=d sslmode=require",
		"file:dev.db":                            "file:dev.db",
	}
	for in, want := range cases {
		if got := NormalizeDSN(in); got != want {
			t.Errorf("NormalizeDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToURLDSN(t *testing.T) {
	got := ToURLDSN("host=db port=5432 user=briefly password=s3cret dbname=briefly sslmode=disable")
	want := "postgres://briefly:s3cret@db:5432/briefly?sslmode=disable"
	if got != want {
		t.Fatalf("ToURLDSN = %q, want %q", got, want)
	}
	if got := ToURLDSN("host=db"); got != "host=db" {
		t.Fatalf("incomplete DSN should be returned unchanged, got %q", got)
	}
}

func TestMaskDSN(t *testing.T) {
	for _, dsn := range []string{
		"host=db user=u password=s3cret dbname=d",
		"postgres://u:s3cret@db:5432/d",
	} {
		masked := MaskDSN(dsn)
		if strings.Contains(masked, "s3cret") {
			t.Errorf("MaskDSN(%q) = %q leaks the password", dsn, masked)
		}
		if !strings.Contains(masked, "***") {
			t.Errorf("MaskDSN(%q) = %q has no mask", dsn, masked)
		}
	}
}

func TestConnectAndAutoMigrateSQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := Connect(Options{Driver: DriverSQLite, DSN: dsn}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := Migrate(conn, DriverSQLite, dsn, false); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := Migrate(conn, DriverSQLite, dsn, true); err != nil {
		t.Fatal(err)
	}
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	if _, err := Connect(Options{Driver: "oracle", DSN: "x"}, nil); err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
	if _, err := Connect(Options{Driver: DriverSQLite}, nil); err == nil {
		t.Fatal("expected an error for an empty DSN")
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		t.Fatal(err)
	}
	ups, downs := 0, 0
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, ".up.sql"):
			ups++
		case strings.HasSuffix(f, ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Fatalf("expected paired migrations, got %d up and %d down", ups, downs)
	}
	up, _ := fs.ReadFile(migrationsFS, "migrations/000001_init.up.sql")
	for _, table := range requiredTables {
		if !strings.Contains(string(up), "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Errorf("init migration does not create %s", table)
		}
	}
}
