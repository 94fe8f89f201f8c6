package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/gwillem/wa-authstore/internal/wire"
)

func tempStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	s := New(db, DialectSQLite)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s, db
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	s, _ := tempStore(t)
	for i := 0; i < 3; i++ {
		if err := s.EnsureSchema(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPutGetDelete(t *testing.T) {
	s, _ := tempStore(t)
	ctx := context.Background()

	in := map[string]any{"public": []byte{1, 2, 3}, "n": float64(7)}
	if err := s.Put(ctx, "sess:pre-key-1", in); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.Get(ctx, "sess:pre-key-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected row")
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("got %#v, want %#v", got, in)
	}

	if err := s.Delete(ctx, "sess:pre-key-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Get(ctx, "sess:pre-key-1"); err != nil || ok {
		t.Errorf("after delete: ok=%v err=%v", ok, err)
	}

	// Deleting an absent key is not an error.
	if err := s.Delete(ctx, "sess:pre-key-1"); err != nil {
		t.Errorf("delete absent: %v", err)
	}
}

func TestGetAbsent(t *testing.T) {
	s, _ := tempStore(t)
	v, ok, err := s.Get(context.Background(), "sess:never-written")
	if err != nil {
		t.Fatalf("absent read must not error: %v", err)
	}
	if ok || v != nil {
		t.Errorf("expected absent, got %#v", v)
	}
}

func TestUpsertLeavesOneRow(t *testing.T) {
	s, db := tempStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "sess:auth_creds", "first"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "sess:auth_creds", "second"); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM auth_state WHERE session_key = ?", "sess:auth_creds").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("row count: got %d, want 1", count)
	}

	got, ok, err := s.Get(ctx, "sess:auth_creds")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got != "second" {
		t.Errorf("got %v, want second", got)
	}
}

func TestClosedPoolUnavailable(t *testing.T) {
	s, db := tempStore(t)
	ctx := context.Background()
	db.Close()

	if err := s.Put(ctx, "sess:k", "v"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("put: expected ErrUnavailable, got %v", err)
	}
	if _, _, err := s.Get(ctx, "sess:k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("get: expected ErrUnavailable, got %v", err)
	}
	var dst any
	if _, err := s.GetInto(ctx, "sess:k", &dst); !errors.Is(err, ErrUnavailable) {
		t.Errorf("get into: expected ErrUnavailable, got %v", err)
	}
	if err := s.Delete(ctx, "sess:k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("delete: expected ErrUnavailable, got %v", err)
	}
	if err := s.DeletePrefix(ctx, "sess:"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("delete prefix: expected ErrUnavailable, got %v", err)
	}
	if err := s.EnsureSchema(ctx); !errors.Is(err, ErrSchemaInit) {
		t.Errorf("ensure schema: expected ErrSchemaInit, got %v", err)
	}
}

func TestDialectForDriver(t *testing.T) {
	cases := map[string]Dialect{
		"sqlite":   DialectSQLite,
		"sqlite3":  DialectSQLite,
		"mysql":    DialectMySQL,
		"postgres": DialectPostgres,
		"pgx":      DialectPostgres,
	}
	for driver, want := range cases {
		if got := DialectForDriver(driver); got != want {
			t.Errorf("DialectForDriver(%q): got %v, want %v", driver, got, want)
		}
	}
}

func TestDialectUpsertFlavors(t *testing.T) {
	if !strings.Contains(dialects[DialectMySQL].upsert, "ON DUPLICATE KEY UPDATE") {
		t.Error("mysql upsert missing ON DUPLICATE KEY UPDATE")
	}
	for _, d := range []Dialect{DialectSQLite, DialectPostgres} {
		if !strings.Contains(dialects[d].upsert, "ON CONFLICT") {
			t.Errorf("dialect %v upsert missing ON CONFLICT", d)
		}
	}
	if !strings.Contains(dialects[DialectPostgres].upsert, "$1") {
		t.Error("postgres upsert missing numbered placeholders")
	}
}

func TestGetCorruptRecord(t *testing.T) {
	s, db := tempStore(t)
	ctx := context.Background()

	if _, err := db.Exec("INSERT INTO auth_state (session_key, data) VALUES (?, ?)", "sess:bad", "{not json"); err != nil {
		t.Fatal(err)
	}

	_, ok, err := s.Get(ctx, "sess:bad")
	if !errors.Is(err, wire.ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got ok=%v err=%v", ok, err)
	}
}

func TestGetInto(t *testing.T) {
	s, _ := tempStore(t)
	ctx := context.Background()

	type rec struct {
		Name string      `json:"name"`
		Blob wire.Buffer `json:"blob"`
	}
	in := rec{Name: "x", Blob: []byte{4, 5, 6}}
	if err := s.Put(ctx, "sess:rec", &in); err != nil {
		t.Fatal(err)
	}

	var out rec
	ok, err := s.GetInto(ctx, "sess:rec", &out)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected row")
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("got %+v, want %+v", out, in)
	}

	ok, err = s.GetInto(ctx, "sess:absent", &out)
	if err != nil || ok {
		t.Errorf("absent: ok=%v err=%v", ok, err)
	}
}

func TestDeletePrefix(t *testing.T) {
	s, _ := tempStore(t)
	ctx := context.Background()

	for _, key := range []string{"a:auth_creds", "a:pre-key-1", "b:auth_creds"} {
		if err := s.Put(ctx, key, "v"); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.DeletePrefix(ctx, "a:"); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"a:auth_creds", "a:pre-key-1"} {
		if _, ok, _ := s.Get(ctx, key); ok {
			t.Errorf("%s survived prefix delete", key)
		}
	}
	if _, ok, _ := s.Get(ctx, "b:auth_creds"); !ok {
		t.Error("other session's row was deleted")
	}
}

func TestDeletePrefixEscapesWildcards(t *testing.T) {
	s, _ := tempStore(t)
	ctx := context.Background()

	// "a%b" would match "aXb" if the wildcard leaked through.
	if err := s.Put(ctx, "a%b:auth_creds", "v"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "aXb:auth_creds", "v"); err != nil {
		t.Fatal(err)
	}

	if err := s.DeletePrefix(ctx, "a%b:"); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := s.Get(ctx, "a%b:auth_creds"); ok {
		t.Error("literal match not deleted")
	}
	if _, ok, _ := s.Get(ctx, "aXb:auth_creds"); !ok {
		t.Error("wildcard leaked: unrelated row deleted")
	}
}
