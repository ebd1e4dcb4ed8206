package vfs

// tableLocation is the shared, mutable record of where the file table
// currently lives. It is owned by Vfs and threaded into both the FileTable
// and the journal's resolveTargets so that a Header entry applied earlier in
// a batch is visible to a FileTable entry applied later in the same batch
// (see journal.go's applyJournalEntry).
type tableLocation struct {
	Page      uint64
	PageCount uint64
}

// commitFunc stages and immediately resolves one batch of journal entries.
// Supplied by Vfs so that FileTable.Grow can perform its own commit without
// needing to know about the rest of the engine.
type commitFunc func(entries []JournalEntry) error

// FileTable is the growable array of file-record slots (C4). Slot indices
// are expressed as byte offsets from the start of the table's page run, per
// §3, so 0 (the root) doubles as the sentinel "no such slot" value used by
// Contents/Next fields.
type FileTable struct {
	store  *pageStore
	bitmap *Bitmap
	loc    *tableLocation
	commit commitFunc
}

func newFileTable(store *pageStore, bitmap *Bitmap, loc *tableLocation, commit commitFunc) *FileTable {
	return &FileTable{store: store, bitmap: bitmap, loc: loc, commit: commit}
}

func (t *FileTable) startOffset() int64 {
	return pageOffset(t.loc.Page)
}

func (t *FileTable) totalBytes() uint64 {
	return t.loc.PageCount * PageSize
}

// Read returns the record at slot i. A slot that does not lie entirely
// within the current table run reads as a zeroed (IsActive == false) record, which
// every caller treats as "end of list" rather than an error.
func (t *FileTable) Read(i uint64) (Record, error) {
	if i+RecordSize > t.totalBytes() {
		return zeroRecord(), nil
	}
	buf := make([]byte, RecordSize)
	if err := t.store.readAt(t.startOffset()+int64(i), buf); err != nil {
		return Record{}, err
	}
	return decodeRecord(buf)
}

// FindFreeSlot scans slots in order from offset 0 and returns the first one
// whose record is inactive. ok is false if the scan reaches the last
// aligned slot before the table's end without finding one, meaning the
// caller must Grow the table first.
func (t *FileTable) FindFreeSlot() (slot uint64, ok bool, err error) {
	total := t.totalBytes()
	for i := uint64(0); i+RecordSize <= total; i += RecordSize {
		rec, err := t.Read(i)
		if err != nil {
			return 0, false, err
		}
		if !rec.IsActive {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// Grow relocates the file table into a new, larger contiguous page run one
// page bigger than the current one. It is only ever called after
// FindFreeSlot reports none available. Grounded on pkg/storage/kv.go's
// pageAppend/extendMmap relocate-on-grow pattern (C4, §4.4).
func (t *FileTable) Grow() error {
	oldPage := t.loc.Page
	oldCount := t.loc.PageCount
	newCount := oldCount + 1

	reallocating := PageRange{Start: oldPage, End: oldPage + oldCount}
	newStart, ok, err := t.bitmap.FirstFit(newCount, reallocating)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOutOfMemory
	}

	oldEnd := uint64(oldPage + oldCount)
	newEnd := newStart + newCount
	maxPages := oldEnd
	if newEnd > maxPages {
		maxPages = newEnd
	}
	if err := t.store.ensureLengthPages(maxPages); err != nil {
		return err
	}

	oldBytes := make([]byte, oldCount*PageSize)
	if err := t.store.readAt(pageOffset(oldPage), oldBytes); err != nil {
		return err
	}
	if err := t.store.writeAt(pageOffset(newStart), oldBytes); err != nil {
		return err
	}

	entries := []JournalEntry{
		journalNewBitmap(oldPage, oldPage+oldCount, false),
		journalNewBitmap(newStart, newStart+newCount, true),
		journalNewHeader(newStart, newCount),
	}
	return t.commit(entries)
}
