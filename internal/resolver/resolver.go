// Package resolver classifies user-supplied targets and turns them
// into local archive paths ready for scanning.
//
// A target may name a package (plain or repo-qualified), a remote URL,
// or an existing local file; classification tries those in that fixed
// order and fails the whole run on the first string that is none of
// them. With no targets at all, every installed package (or every
// repository package with --sync) whose manifest contains a matching
// file is queued instead, so only archives that can possibly satisfy
// the patterns get downloaded.
package resolver

import (
	"fmt"
	"os"
	"strings"

	"github.com/harrison/pkgcat/internal/matcher"
	"github.com/harrison/pkgcat/internal/pkgdb"
)

// PackageDB is the package-database surface the resolver consumes.
type PackageDB interface {
	ListInstalled() ([]pkgdb.Package, error)
	ListSync() ([]pkgdb.Package, error)
	Resolve(target string) (pkgdb.Package, error)
	Manifest(pkg pkgdb.Package) ([]string, error)
	DownloadURL(pkg pkgdb.Package) (string, error)
}

// Fetcher is the download surface the resolver consumes.
type Fetcher interface {
	FetchAll(urls []string) ([]string, error)
}

// Resolver maps targets to local archive files.
type Resolver struct {
	db      PackageDB
	fetcher Fetcher
}

// New creates a Resolver over the given collaborators.
func New(db PackageDB, fetcher Fetcher) *Resolver {
	return &Resolver{db: db, fetcher: fetcher}
}

// Resolve classifies every target and returns the local archive paths
// to scan: literal local files first, then fetched downloads. With an
// empty target list it queues the manifest-filtered whole database,
// installed packages by default or every repository package when
// syncDB is set.
func (r *Resolver) Resolve(targets []string, m *matcher.Matcher, syncDB bool) ([]string, error) {
	var (
		repoPkgs  []pkgdb.Package
		downloads []string
		files     []string
	)

	if len(targets) == 0 {
		pkgs, err := r.wantedPackages(m, syncDB)
		if err != nil {
			return nil, err
		}
		repoPkgs = pkgs
	} else {
		for _, target := range targets {
			if pkg, err := r.db.Resolve(target); err == nil {
				want, err := r.wantPkg(pkg, m)
				if err != nil {
					return nil, err
				}
				if want {
					repoPkgs = append(repoPkgs, pkg)
				}
				// A resolved package that cannot satisfy the patterns is
				// dropped rather than downloaded for nothing.
				continue
			}
			if strings.Contains(target, "://") {
				downloads = append(downloads, target)
				continue
			}
			if _, err := os.Stat(target); err == nil {
				files = append(files, target)
				continue
			}
			return nil, fmt.Errorf("'%s' is not a package, file or url", target)
		}
	}

	for _, pkg := range repoPkgs {
		url, err := r.db.DownloadURL(pkg)
		if err != nil {
			return nil, err
		}
		downloads = append(downloads, url)
	}

	fetched, err := r.fetcher.FetchAll(downloads)
	if err != nil {
		return nil, err
	}

	return append(files, fetched...), nil
}

// wantedPackages enumerates the chosen database and keeps only
// packages whose manifest already shows a matching filename.
func (r *Resolver) wantedPackages(m *matcher.Matcher, syncDB bool) ([]pkgdb.Package, error) {
	var (
		pkgs []pkgdb.Package
		err  error
	)
	if syncDB {
		pkgs, err = r.db.ListSync()
	} else {
		pkgs, err = r.db.ListInstalled()
	}
	if err != nil {
		return nil, err
	}

	var wanted []pkgdb.Package
	for _, pkg := range pkgs {
		want, err := r.wantPkg(pkg, m)
		if err != nil {
			return nil, err
		}
		if want {
			wanted = append(wanted, pkg)
		}
	}

	return wanted, nil
}

// wantPkg reports whether any manifest entry of pkg satisfies the
// matcher.
func (r *Resolver) wantPkg(pkg pkgdb.Package, m *matcher.Matcher) (bool, error) {
	manifest, err := r.db.Manifest(pkg)
	if err != nil {
		return false, err
	}
	for _, path := range manifest {
		if m.Match(path) {
			return true, nil
		}
	}
	return false, nil
}
