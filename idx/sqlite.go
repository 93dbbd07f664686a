package idx

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"
)

// LoadSQLite reads both indices from a local SQLite registry file, as
// written by a registry node. The expected schema is
//
//	CREATE TABLE packages (name TEXT, version TEXT, function TEXT, signature TEXT);
//	CREATE TABLE datasets (name TEXT, location TEXT);
//
// where signature holds the JSON encoding of a Function.
func LoadSQLite(ctx context.Context, path string) (*PackageIndex, *DataIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open index %s: %w", path, err)
	}
	defer db.Close()

	pidx := NewPackageIndex()
	didx := NewDataIndex()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loadPackages(ctx, db, pidx) })
	g.Go(func() error { return loadDatasets(ctx, db, didx) })
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return pidx, didx, nil
}

func loadPackages(ctx context.Context, db *sql.DB, pidx *PackageIndex) error {
	rows, err := db.QueryContext(ctx, `SELECT name, version, function, signature FROM packages ORDER BY name, version`)
	if err != nil {
		return fmt.Errorf("query packages: %w", err)
	}
	defer rows.Close()

	pending := make(map[string]Package) // keyed by name@version
	for rows.Next() {
		var name, version, function, signature string
		if err := rows.Scan(&name, &version, &function, &signature); err != nil {
			return fmt.Errorf("scan package row: %w", err)
		}
		var fn Function
		if err := json.Unmarshal([]byte(signature), &fn); err != nil {
			return fmt.Errorf("package %s@%s: bad signature for %s: %w", name, version, function, err)
		}
		key := name + "@" + version
		p, ok := pending[key]
		if !ok {
			p = Package{Name: name, Version: version, Functions: make(map[string]Function)}
		}
		p.Functions[function] = fn
		pending[key] = p
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read packages: %w", err)
	}
	for _, p := range pending {
		if err := pidx.Insert(p); err != nil {
			return err
		}
	}
	return nil
}

func loadDatasets(ctx context.Context, db *sql.DB, didx *DataIndex) error {
	rows, err := db.QueryContext(ctx, `SELECT name, location FROM datasets`)
	if err != nil {
		return fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d Dataset
		if err := rows.Scan(&d.Name, &d.Location); err != nil {
			return fmt.Errorf("scan dataset row: %w", err)
		}
		didx.Insert(d)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read datasets: %w", err)
	}
	return nil
}
