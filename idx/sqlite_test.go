package idx

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/marinoandrea/brane/dsl"
)

func writeRegistry(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE packages (name TEXT, version TEXT, function TEXT, signature TEXT)`,
		`CREATE TABLE datasets (name TEXT, location TEXT)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}

	sig := func(fn Function) string {
		data, err := json.Marshal(fn)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}
	rows := []struct {
		name, version, function string
		fn                      Function
	}{
		{"testpkg", "1.0.0", "ingest", Function{Name: "ingest", Ret: dsl.IntermediateResult()}},
		{"testpkg", "1.0.0", "double", Function{
			Name:     "double",
			Args:     []dsl.DataType{dsl.Int()},
			ArgNames: []string{"value"},
			Ret:      dsl.Int(),
		}},
		{"testpkg", "1.1.0", "ingest", Function{Name: "ingest", Ret: dsl.IntermediateResult()}},
	}
	for _, r := range rows {
		if _, err := db.Exec(`INSERT INTO packages VALUES (?, ?, ?, ?)`,
			r.name, r.version, r.function, sig(r.fn)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.Exec(`INSERT INTO datasets VALUES (?, ?)`, "st_eligible", "site-a"); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSQLite(t *testing.T) {
	pidx, didx, err := LoadSQLite(context.Background(), writeRegistry(t))
	if err != nil {
		t.Fatal(err)
	}

	p, ok := pidx.Get("testpkg", "1.0.0")
	if !ok {
		t.Fatal("testpkg@1.0.0 not loaded")
	}
	if len(p.Functions) != 2 {
		t.Errorf("testpkg@1.0.0 has %d functions, want 2", len(p.Functions))
	}
	double, ok := p.Functions["double"]
	if !ok {
		t.Fatal("testpkg@1.0.0 has no double")
	}
	if len(double.Args) != 1 || !double.Args[0].Equal(dsl.Int()) || !double.Ret.Equal(dsl.Int()) {
		t.Errorf("double signature = %+v, want (int) -> int", double)
	}
	if len(double.ArgNames) != 1 || double.ArgNames[0] != "value" {
		t.Errorf("double arg names = %v, want [value]", double.ArgNames)
	}

	// both versions load; latest resolves to the newer one
	if p, ok := pidx.Get("testpkg", ""); !ok || p.Version != "1.1.0" {
		t.Errorf("latest testpkg = %s, %v; want 1.1.0", p.Version, ok)
	}

	d, ok := didx.Get("st_eligible")
	if !ok || d.Location != "site-a" {
		t.Errorf("st_eligible = %+v, %v; want site-a", d, ok)
	}
}

func TestLoadSQLiteMissingSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE other (x TEXT)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, _, err := LoadSQLite(context.Background(), path); err == nil {
		t.Error("loading a database without the registry tables succeeded")
	}
}
