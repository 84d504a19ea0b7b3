// Package pkgdb manages the SQLite package database pkgcat resolves
// targets against.
//
// The database records every package known to the configured
// repositories together with its file manifest; packages present on
// the local system carry the installed flag. pkgcat only reads this
// database -- populating it is the sync tooling's job.
package pkgdb

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/pkgcat/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a package name does not resolve. Target
// classification treats it as "not a package" and falls through to the
// URL and file checks.
var ErrNotFound = errors.New("package not found")

// Package is one package record.
type Package struct {
	ID        int64
	Repo      string
	Name      string
	Version   string
	Filename  string
	Installed bool
}

// DB is a read handle on the package database.
type DB struct {
	db  *sql.DB
	cfg *config.Config
}

// Open opens the package database described by cfg and ensures the
// schema exists.
func Open(cfg *config.Config) (*DB, error) {
	path := cfg.DatabasePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// busy_timeout first so later statements wait on locks held by a
	// concurrent sync.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &DB{db: db, cfg: cfg}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// ListInstalled returns every package installed on the local system.
func (d *DB) ListInstalled() ([]Package, error) {
	return d.list(`SELECT id, repo, name, version, filename, installed
		FROM packages WHERE installed = 1 ORDER BY repo, name`)
}

// ListSync returns every package known to any configured repository.
func (d *DB) ListSync() ([]Package, error) {
	return d.list(`SELECT id, repo, name, version, filename, installed
		FROM packages ORDER BY repo, name`)
}

func (d *DB) list(query string, args ...interface{}) ([]Package, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	var pkgs []Package
	for rows.Next() {
		var p Package
		if err := rows.Scan(&p.ID, &p.Repo, &p.Name, &p.Version, &p.Filename, &p.Installed); err != nil {
			return nil, fmt.Errorf("scan package row: %w", err)
		}
		pkgs = append(pkgs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}

	return pkgs, nil
}

// Resolve looks up a package by name or by repo/name qualified form.
// An unqualified name resolves against repositories in configuration
// order. Returns ErrNotFound when no repository knows the name.
func (d *DB) Resolve(target string) (Package, error) {
	var row *sql.Row
	if repo, name, ok := strings.Cut(target, "/"); ok {
		row = d.db.QueryRow(`SELECT id, repo, name, version, filename, installed
			FROM packages WHERE repo = ? AND name = ?`, repo, name)
	} else {
		row = d.db.QueryRow(`SELECT id, repo, name, version, filename, installed
			FROM packages WHERE name = ? ORDER BY id LIMIT 1`, target)
	}

	var p Package
	err := row.Scan(&p.ID, &p.Repo, &p.Name, &p.Version, &p.Filename, &p.Installed)
	if err == sql.ErrNoRows {
		return Package{}, fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	if err != nil {
		return Package{}, fmt.Errorf("resolve %s: %w", target, err)
	}

	return p, nil
}

// Manifest returns every file path the package installs.
func (d *DB) Manifest(pkg Package) ([]string, error) {
	rows, err := d.db.Query(`SELECT path FROM files WHERE package_id = ?`, pkg.ID)
	if err != nil {
		return nil, fmt.Errorf("load manifest for %s: %w", pkg.Name, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan manifest row: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load manifest for %s: %w", pkg.Name, err)
	}

	return paths, nil
}

// DownloadURL builds the package's download URL from its repository's
// configured server.
func (d *DB) DownloadURL(pkg Package) (string, error) {
	server := d.cfg.Server(pkg.Repo)
	if server == "" {
		return "", fmt.Errorf("repository %s has no configured server", pkg.Repo)
	}
	return strings.TrimSuffix(server, "/") + "/" + pkg.Filename, nil
}
