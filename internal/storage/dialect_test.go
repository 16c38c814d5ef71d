package storage

import "testing"

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = '?' AND c = ?"
	if got := SQLite.Rebind(q); got != q {
		t.Fatalf("sqlite should not rewrite, got %q", got)
	}
	want := "SELECT * FROM t WHERE a = $1 AND b = '?' AND c = $2"
	if got := Postgres.Rebind(q); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestDriverName(t *testing.T) {
	if SQLite.DriverName() != "sqlite" || Postgres.DriverName() != "pgx" {
		t.Fatalf("unexpected driver names")
	}
}
