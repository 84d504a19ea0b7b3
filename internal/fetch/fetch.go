// Package fetch downloads package archives into the cache directory.
//
// Fetches are batched: the whole URL list is resolved under one cache
// lock, and any failure aborts the batch. Archives already present in
// the cache are reused without touching the network.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Fetcher resolves remote package URLs to local files in a cache
// directory.
type Fetcher struct {
	cacheDir string
	client   *http.Client
}

// New creates a Fetcher using the given cache directory, creating it
// if necessary.
func New(cacheDir string) (*Fetcher, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Fetcher{
		cacheDir: cacheDir,
		client:   http.DefaultClient,
	}, nil
}

// FetchAll resolves every URL to a local file path, downloading cache
// misses. The cache directory is locked for the duration of the batch
// so concurrent runs do not collide on partial downloads. The first
// failure aborts the whole batch.
func (f *Fetcher) FetchAll(urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	lock := flock.New(filepath.Join(f.cacheDir, ".lock"))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock cache directory: %w", err)
	}
	defer lock.Unlock()

	paths := make([]string, 0, len(urls))
	for _, u := range urls {
		p, err := f.fetch(u)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}

	return paths, nil
}

// fetch returns the cached file for u, downloading it on a miss.
func (f *Fetcher) fetch(rawURL string) (string, error) {
	name, err := archiveName(rawURL)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(f.cacheDir, name)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	resp, err := f.client.Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", rawURL, resp.Status)
	}

	// Download into a uniquely named part file and rename into place so
	// the cache never holds a truncated archive under its final name.
	part := dest + "." + uuid.NewString() + ".part"
	out, err := os.Create(part)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", part, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(part)
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(part)
		return "", fmt.Errorf("write %s: %w", part, err)
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return "", fmt.Errorf("store %s: %w", dest, err)
	}

	return dest, nil
}

// archiveName extracts the cache filename from a download URL.
func archiveName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %s: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("invalid url %s: no filename", rawURL)
	}
	return name, nil
}
