package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestScanSortsByNumericVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/010_tenth.sql":  {Data: []byte("CREATE TABLE ten (id TEXT);")},
		"migrations/002_second.sql": {Data: []byte("-- Description: Add second table\nCREATE TABLE two (id TEXT);")},
		"migrations/001_first.sql":  {Data: []byte("CREATE TABLE one (id TEXT);")},
		"migrations/README.md":      {Data: []byte("ignored")},
	}

	migrations, err := Scan(fsys, "migrations")
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	got := []string{migrations[0].Version, migrations[1].Version, migrations[2].Version}
	want := []string{"001", "002", "010"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: %v", got)
		}
	}
	if migrations[0].Description != "first" {
		t.Fatalf("expected description from file name, got %q", migrations[0].Description)
	}
	if migrations[1].Description != "Add second table" {
		t.Fatalf("expected description from header, got %q", migrations[1].Description)
	}
	if migrations[0].Checksum == "" || migrations[0].Checksum == migrations[1].Checksum {
		t.Fatalf("expected distinct checksums")
	}
}

func TestScanRejectsBadFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fsys fstest.MapFS
		want error
	}{
		{
			name: "bad file name",
			fsys: fstest.MapFS{"m/first.sql": {Data: []byte("SELECT 1;")}},
			want: ErrInvalidMigrationFile,
		},
		{
			name: "comment only",
			fsys: fstest.MapFS{"m/001_empty.sql": {Data: []byte("-- nothing here\n")}},
			want: ErrInvalidMigrationFile,
		},
		{
			name: "duplicate version",
			fsys: fstest.MapFS{
				"m/001_a.sql": {Data: []byte("SELECT 1;")},
				"m/001_b.sql": {Data: []byte("SELECT 2;")},
			},
			want: ErrDuplicateVersion,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Scan(tc.fsys, "m")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSplitStatementsDropsComments(t *testing.T) {
	t.Parallel()

	stmts := splitStatements("-- header\nCREATE TABLE a (id TEXT);\n\n-- trailing\nCREATE INDEX idx ON a(id);\n-- end")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[1] != "CREATE INDEX idx ON a(id)" {
		t.Fatalf("unexpected statement: %q", stmts[1])
	}
}
