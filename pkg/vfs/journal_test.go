// ABOUTME: Tests for the write-ahead commit journal
// ABOUTME: Verifies schedule+resolve applies bitmap/file-table/header entries idempotently

package vfs

import (
	"path/filepath"
	"testing"
)

func newTestEngine(t *testing.T) (*pageStore, *Bitmap, *Journal, *tableLocation) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.vfs")
	host, err := OpenOSFile(path)
	if err != nil {
		t.Fatalf("OpenOSFile: %v", err)
	}
	store := newPageStore(host)
	if err := store.ensureLengthPages(InitialTablePage + 1); err != nil {
		t.Fatalf("ensureLengthPages: %v", err)
	}
	if err := writeHeader(store, header{PageSize: PageSize, FileTablePage: InitialTablePage, FileTablePageCount: 1}); err != nil {
		t.Fatalf("writeHeader: %v", err)
	}
	bitmap := newBitmap(store)
	if err := bitmap.SetRange(0, InitialTablePage+1, true); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	loc := &tableLocation{Page: InitialTablePage, PageCount: 1}
	return store, bitmap, newJournal(store), loc
}

func resolveTargetsFor(store *pageStore, bitmap *Bitmap, loc *tableLocation) resolveTargets {
	return resolveTargets{
		headerPage:      &loc.Page,
		headerPageCount: &loc.PageCount,
		writeHeaderToDisk: func(page, count uint64) error {
			return writeHeaderTableLocation(store, page, count)
		},
		store:  store,
		bitmap: bitmap,
	}
}

func TestJournalScheduleResolveBitmap(t *testing.T) {
	store, bitmap, j, loc := newTestEngine(t)

	if err := j.schedule([]JournalEntry{journalNewBitmap(10, 14, true)}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := j.resolve(resolveTargetsFor(store, bitmap, loc)); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	for p := uint64(10); p < 14; p++ {
		if allocated, _ := bitmap.IsAllocated(p); !allocated {
			t.Fatalf("page %d should be allocated after resolve", p)
		}
	}
}

func TestJournalResolveIsIdempotent(t *testing.T) {
	store, bitmap, j, loc := newTestEngine(t)
	targets := resolveTargetsFor(store, bitmap, loc)

	if err := j.schedule([]JournalEntry{journalNewBitmap(10, 14, true)}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := j.resolve(targets); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	// Resolving again with nothing pending must be a safe no-op.
	if err := j.resolve(targets); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	for p := uint64(10); p < 14; p++ {
		if allocated, _ := bitmap.IsAllocated(p); !allocated {
			t.Fatalf("page %d should still be allocated", p)
		}
	}
}

func TestJournalScheduleResolveFileTableAndHeader(t *testing.T) {
	store, bitmap, j, loc := newTestEngine(t)

	rec := Record{IsActive: true, IsDirectory: false, Size: 99, Name: "f"}
	entries := []JournalEntry{
		journalNewBitmap(5, 6, true),
		journalNewHeader(5, 1),
		journalNewFileTable(0, rec),
	}
	if err := j.schedule(entries); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := j.resolve(resolveTargetsFor(store, bitmap, loc)); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if loc.Page != 5 || loc.PageCount != 1 {
		t.Fatalf("header not updated in memory: %+v", loc)
	}

	h, err := readHeader(store)
	if err != nil {
		t.Fatalf("readHeader: %v", err)
	}
	if h.FileTablePage != 5 {
		t.Fatalf("header not updated on disk: %+v", h)
	}

	// The FileTable entry comes after the Header entry in this batch, so it
	// must land at the new table location (page 5), not the old one (page 3).
	var buf [RecordSize]byte
	if err := store.readAt(pageOffset(5), buf[:]); err != nil {
		t.Fatalf("readAt: %v", err)
	}
	got, err := decodeRecord(buf[:])
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if got.Name != "f" || got.Size != 99 {
		t.Fatalf("got record %+v", got)
	}
}
