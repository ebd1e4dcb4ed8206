package vfs

// Page layout constants (§3 of the design). These are fixed rather than
// configurable: the spec's header carries a page-size field purely so a
// reopen can validate it matches, not so callers can choose a different
// size.
const (
	// PageSize is the fixed size, in bytes, of every page in the store.
	PageSize = 4096

	// RecordSize is the fixed width of a serialized file-table record:
	// 1 (flags) + 5*8 (contents, next, size, creation_time, last_write_time)
	// + 128 (name) = 169 bytes.
	RecordSize = 1 + 5*8 + 128

	// MaxNameLength is the maximum number of UTF-8 bytes a name may occupy.
	MaxNameLength = 128

	// HeaderPage, BitmapPage, JournalPage and InitialTablePage are the four
	// well-known pages every store begins with.
	HeaderPage       = 0
	BitmapPage       = 1
	JournalPage      = 2
	InitialTablePage = 3

	// MaxAddressablePages bounds the store: the allocation bitmap lives in
	// exactly one page, so it can address at most 8*PageSize pages (one bit
	// per page). The source had two different bounds here (PAGE_SIZE for
	// reads, 8*PAGE_SIZE for allocation); this implementation unifies on the
	// wider, physically-correct bound everywhere.
	MaxAddressablePages = 8 * PageSize
)

// pageOffset returns the absolute byte offset of the start of page p.
func pageOffset(p uint64) int64 {
	return int64(p) * PageSize
}

// pageStore is the thin typed wrapper over a HostFile that everything else
// in this package reads and writes through (C1). It performs no caching;
// every call is a direct read or write against the host file.
type pageStore struct {
	host HostFile
}

func newPageStore(host HostFile) *pageStore {
	return &pageStore{host: host}
}

// readPage reads exactly len(buf) bytes starting at the beginning of page p.
func (s *pageStore) readPage(p uint64, buf []byte) error {
	return s.host.ReadExact(pageOffset(p), buf)
}

// writePage writes buf (which may be shorter than a full page) starting at
// the beginning of page p.
func (s *pageStore) writePage(p uint64, buf []byte) error {
	return s.host.WriteAll(pageOffset(p), buf)
}

// readAt reads len(buf) bytes starting at an arbitrary byte offset.
func (s *pageStore) readAt(off int64, buf []byte) error {
	return s.host.ReadExact(off, buf)
}

// writeAt writes buf starting at an arbitrary byte offset.
func (s *pageStore) writeAt(off int64, buf []byte) error {
	return s.host.WriteAll(off, buf)
}

// ensureLengthPages extends the store, if necessary, to cover at least
// nPages pages. It never shrinks the store; callers that need to shrink use
// truncateToPages explicitly (only ever called from journal resolution).
func (s *pageStore) ensureLengthPages(nPages uint64) error {
	want := pageOffset(nPages)
	cur, err := s.host.Length()
	if err != nil {
		return err
	}
	if cur >= want {
		return nil
	}
	return s.host.SetLength(want)
}

// truncateToPages shrinks or grows the store to exactly nPages pages.
func (s *pageStore) truncateToPages(nPages uint64) error {
	return s.host.SetLength(pageOffset(nPages))
}

func (s *pageStore) flush() error {
	return s.host.Flush()
}
