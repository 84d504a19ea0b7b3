package scanner

import (
	"archive/tar"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/pkgcat/internal/archive"
	"github.com/harrison/pkgcat/internal/logger"
	"github.com/harrison/pkgcat/internal/matcher"
)

func buildArchive(t *testing.T, entries map[string][]byte, order []string) *archive.Iterator {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range order {
		body := entries[name]
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(body)),
		}))
		_, err := tw.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())

	it, err := archive.NewIterator(&buf)
	require.NoError(t, err)
	return it
}

func newMatcher(t *testing.T, regex bool, patterns ...string) *matcher.Matcher {
	t.Helper()
	m, err := matcher.New(regex, patterns)
	require.NoError(t, err)
	return m
}

func TestScanPrintsMatchedContent(t *testing.T) {
	it := buildArchive(t, map[string][]byte{
		"usr/bin/foo": []byte("#!/bin/sh\necho foo\n"),
		"usr/bin/bar": []byte("#!/bin/sh\necho bar\n"),
	}, []string{"usr/bin/foo", "usr/bin/bar"})

	var out, diag bytes.Buffer
	found, err := Scan(it, newMatcher(t, false, "foo"), Options{}, &out, logger.New(&diag))
	require.NoError(t, err)

	assert.Equal(t, 1, found)
	assert.Equal(t, "#!/bin/sh\necho foo\n", out.String())
	assert.Empty(t, diag.String())
}

func TestQuietPrintsNamesOnly(t *testing.T) {
	// Binary content: quiet mode must never inspect or print it.
	it := buildArchive(t, map[string][]byte{
		"usr/bin/foo": {0x7f, 'E', 'L', 'F', 0x00, 0x01},
	}, []string{"usr/bin/foo"})

	var out, diag bytes.Buffer
	found, err := Scan(it, newMatcher(t, false, "foo"), Options{Quiet: true}, &out, logger.New(&diag))
	require.NoError(t, err)

	assert.Equal(t, 1, found)
	assert.Equal(t, "usr/bin/foo\n", out.String())
	assert.Empty(t, diag.String())
}

func TestBinaryGuardSkipsEntry(t *testing.T) {
	it := buildArchive(t, map[string][]byte{
		"usr/bin/foo": {'E', 'L', 'F', 0x00, 0x01, 0x02},
	}, []string{"usr/bin/foo"})

	var out, diag bytes.Buffer
	found, err := Scan(it, newMatcher(t, false, "foo"), Options{}, &out, logger.New(&diag))
	require.NoError(t, err)

	// The entry still counts as found even though nothing was printed.
	assert.Equal(t, 1, found)
	assert.Empty(t, out.String())
	assert.Contains(t, diag.String(), "usr/bin/foo is a binary file")
}

func TestBinaryFlagPrintsBinaryEntry(t *testing.T) {
	body := []byte{'E', 'L', 'F', 0x00, 0x01, 0x02}
	it := buildArchive(t, map[string][]byte{"usr/bin/foo": body}, []string{"usr/bin/foo"})

	var out, diag bytes.Buffer
	found, err := Scan(it, newMatcher(t, false, "foo"), Options{Binary: true}, &out, logger.New(&diag))
	require.NoError(t, err)

	assert.Equal(t, 1, found)
	assert.Equal(t, body, out.Bytes())
	assert.Empty(t, diag.String())
}

func TestBinaryGuardBoundaryAt512(t *testing.T) {
	// Zero byte at offset 511: inside the inspected window, flagged.
	flagged := bytes.Repeat([]byte{'a'}, 512)
	flagged[511] = 0

	// Zero byte at offset 512: outside the window, passes as text.
	passed := bytes.Repeat([]byte{'b'}, 513)
	passed[512] = 0

	it := buildArchive(t, map[string][]byte{
		"flagged": flagged,
		"passed":  passed,
	}, []string{"flagged", "passed"})

	var out, diag bytes.Buffer
	found, err := Scan(it, newMatcher(t, false, "flagged", "passed"), Options{}, &out, logger.New(&diag))
	require.NoError(t, err)

	assert.Equal(t, 2, found)
	assert.Equal(t, passed, out.Bytes())
	assert.Contains(t, diag.String(), "flagged is a binary file")
	assert.NotContains(t, diag.String(), "passed is a binary file")
}

func TestBinaryGuardOnlyInspectsFirstChunk(t *testing.T) {
	// The first 32 KiB chunk is clean text; a zero byte appears only in
	// the second chunk. The heuristic never looks that far.
	body := bytes.Repeat([]byte{'x'}, 40*1024)
	body[36*1024] = 0

	it := buildArchive(t, map[string][]byte{"big.txt": body}, []string{"big.txt"})

	var out, diag bytes.Buffer
	found, err := Scan(it, newMatcher(t, false, "big.txt"), Options{}, &out, logger.New(&diag))
	require.NoError(t, err)

	assert.Equal(t, 1, found)
	assert.Equal(t, body, out.Bytes())
	assert.Empty(t, diag.String())
}

func TestFoundCountsEveryMatch(t *testing.T) {
	it := buildArchive(t, map[string][]byte{
		"usr/bin/ls":  []byte("ls"),
		"usr/sbin/ls": []byte("ls too"),
		"usr/bin/cp":  []byte("cp"),
	}, []string{"usr/bin/ls", "usr/sbin/ls", "usr/bin/cp"})

	var out, diag bytes.Buffer
	found, err := Scan(it, newMatcher(t, false, "ls"), Options{Quiet: true}, &out, logger.New(&diag))
	require.NoError(t, err)

	assert.Equal(t, 2, found)
	assert.Equal(t, "usr/bin/ls\nusr/sbin/ls\n", out.String())
}

func TestStatusLiteralRequiresAllPatterns(t *testing.T) {
	m := newMatcher(t, false, "a", "b")

	assert.Equal(t, 1, Status(m, 0))
	assert.Equal(t, 1, Status(m, 1))
	assert.Equal(t, 0, Status(m, 2))
}

func TestStatusRegexRequiresAnyMatch(t *testing.T) {
	m := newMatcher(t, true, "a.*")

	assert.Equal(t, 1, Status(m, 0))
	assert.Equal(t, 0, Status(m, 1))
	assert.Equal(t, 0, Status(m, 7))
}

func TestAggregatorPerArchive(t *testing.T) {
	m := newMatcher(t, false, "a", "b")
	agg := NewAggregator(m, false)

	// One archive satisfies both patterns, the other only one: the
	// rule is evaluated per archive, so the run fails.
	agg.Add(2)
	agg.Add(1)
	assert.Equal(t, 1, agg.Status())
}

func TestAggregatorCumulative(t *testing.T) {
	m := newMatcher(t, false, "a", "b")
	agg := NewAggregator(m, true)

	// The same counts succeed when the rule spans the whole run...
	agg.Add(1)
	agg.Add(1)
	assert.Equal(t, 0, agg.Status())

	// ...until the total overshoots the distinct pattern count.
	agg.Add(1)
	assert.Equal(t, 1, agg.Status())
}

func TestAggregatorVacuousSuccess(t *testing.T) {
	// Zero archives scanned is a successful run in both modes.
	m := newMatcher(t, false, "missingfile")
	assert.Equal(t, 0, NewAggregator(m, false).Status())
	assert.Equal(t, 0, NewAggregator(m, true).Status())
}
