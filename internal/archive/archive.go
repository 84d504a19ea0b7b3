// Package archive turns a compressed package archive into a forward-only
// stream of entry events.
//
// An Iterator yields, for every entry in the underlying tar stream, one
// Start event carrying the entry name, zero or more Data events carrying
// decoded content chunks, and one End event. A corrupt stream yields a
// single Err event and terminates. The stream is single-pass and
// non-restartable; callers never get random access or look-ahead.
//
// The compression layer is sniffed from the file's magic bytes, so
// .tar, .tar.gz, .tar.bz2, .tar.xz and .tar.lz4 archives all work
// without the caller naming a format.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v3"
	"github.com/ulikunitz/xz"
)

// EventKind tags an Event.
type EventKind int

const (
	// Start opens an entry; Event.Name holds its path within the archive.
	Start EventKind = iota
	// Data carries one decoded chunk of the current entry's content.
	Data
	// End closes the current entry.
	End
	// Err reports a corrupt or unreadable stream and terminates iteration.
	Err
	// EOF marks the end of a fully consumed archive.
	EOF
)

// Event is one step of an archive's entry stream.
type Event struct {
	Kind EventKind
	// Name is set for Start events.
	Name string
	// Chunk is set for Data events. It aliases an internal buffer and
	// is only valid until the next call to Next.
	Chunk []byte
	// Cause is set for Err events.
	Cause error
}

// chunkSize bounds how many decoded bytes a single Data event carries.
// The first chunk is what the scanner's binary heuristic inspects, so
// it must be delivered as read rather than coalesced across reads.
const chunkSize = 32 * 1024

// Magic signatures for the supported compression layers.
var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte{'B', 'Z', 'h'}
	magicXZ    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicLZ4   = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Iterator streams entry events from one archive. It is not safe for
// concurrent use and cannot be rewound.
type Iterator struct {
	tr      *tar.Reader
	closer  io.Closer
	buf     []byte
	inEntry bool
	done    bool
}

// Open opens the archive file at path and prepares an Iterator over its
// entries. The caller must Close the iterator when finished.
func Open(path string) (*Iterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	it, err := NewIterator(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	it.closer = f

	return it, nil
}

// NewIterator prepares an Iterator over the archive read from r. The
// compression layer is detected from the stream's leading magic bytes.
func NewIterator(r io.Reader) (*Iterator, error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(len(magicXZ))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read archive header: %w", err)
	}

	var decoded io.Reader
	switch {
	case bytes.HasPrefix(head, magicGzip):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		decoded = gz
	case bytes.HasPrefix(head, magicBzip2):
		decoded = bzip2.NewReader(br)
	case bytes.HasPrefix(head, magicXZ):
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open xz stream: %w", err)
		}
		decoded = xzr
	case bytes.HasPrefix(head, magicLZ4):
		decoded = lz4.NewReader(br)
	default:
		decoded = br
	}

	return &Iterator{
		tr:  tar.NewReader(decoded),
		buf: make([]byte, chunkSize),
	}, nil
}

// Next returns the next event in the stream. After an Err or EOF event
// every further call returns the same terminal kind.
func (it *Iterator) Next() Event {
	if it.done {
		return Event{Kind: EOF}
	}

	if !it.inEntry {
		return it.nextEntry()
	}

	n, err := it.tr.Read(it.buf)
	if n > 0 {
		return Event{Kind: Data, Chunk: it.buf[:n]}
	}
	if err == io.EOF {
		it.inEntry = false
		return Event{Kind: End}
	}
	if err != nil {
		it.done = true
		return Event{Kind: Err, Cause: fmt.Errorf("read entry content: %w", err)}
	}

	// Zero-byte read without error; treat as end of entry content.
	it.inEntry = false
	return Event{Kind: End}
}

func (it *Iterator) nextEntry() Event {
	for {
		hdr, err := it.tr.Next()
		if err == io.EOF {
			it.done = true
			return Event{Kind: EOF}
		}
		if err != nil {
			it.done = true
			return Event{Kind: Err, Cause: fmt.Errorf("read entry header: %w", err)}
		}

		switch hdr.Typeflag {
		case tar.TypeXGlobalHeader:
			// pax metadata, not an entry
			continue
		default:
			it.inEntry = true
			return Event{Kind: Start, Name: hdr.Name}
		}
	}
}

// Close releases the underlying file, if the Iterator owns one.
func (it *Iterator) Close() error {
	if it.closer == nil {
		return nil
	}
	return it.closer.Close()
}
