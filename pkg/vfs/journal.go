package vfs

import (
	"encoding/binary"
	"fmt"
)

// journalEntryKind tags the wire form of a single staged modification.
type journalEntryKind byte

const (
	journalSystemHeader journalEntryKind = 0
	journalFileTable    journalEntryKind = 1
	journalBitmap       journalEntryKind = 2
)

const (
	// journalHeaderEntrySize is tag(1) + page(8) + count(8).
	journalHeaderEntrySize = 1 + 8 + 8
	// journalFileTableEntrySize is tag(1) + slot(8) + record(RecordSize).
	journalFileTableEntrySize = 1 + 8 + RecordSize
	// journalBitmapEntrySize is tag(1) + start(8) + end(8) + flag(1).
	journalBitmapEntrySize = 1 + 8 + 8 + 1
)

// JournalEntry is one logical modification staged into a commit. Exactly one
// group of fields is meaningful, selected by Kind; see the journalNew*
// constructors below for the supported shapes.
type JournalEntry struct {
	Kind journalEntryKind

	// journalSystemHeader
	FileTablePage      uint64
	FileTablePageCount uint64

	// journalFileTable
	Slot   uint64
	Record Record

	// journalBitmap
	RangeStart uint64
	RangeEnd   uint64
	Allocated  bool
}

func journalNewHeader(page, count uint64) JournalEntry {
	return JournalEntry{Kind: journalSystemHeader, FileTablePage: page, FileTablePageCount: count}
}

func journalNewFileTable(slot uint64, rec Record) JournalEntry {
	return JournalEntry{Kind: journalFileTable, Slot: slot, Record: rec}
}

func journalNewBitmap(start, end uint64, allocated bool) JournalEntry {
	return JournalEntry{Kind: journalBitmap, RangeStart: start, RangeEnd: end, Allocated: allocated}
}

func (e JournalEntry) encode() ([]byte, error) {
	switch e.Kind {
	case journalSystemHeader:
		buf := make([]byte, journalHeaderEntrySize)
		buf[0] = byte(journalSystemHeader)
		binary.LittleEndian.PutUint64(buf[1:9], e.FileTablePage)
		binary.LittleEndian.PutUint64(buf[9:17], e.FileTablePageCount)
		return buf, nil
	case journalFileTable:
		buf := make([]byte, journalFileTableEntrySize)
		buf[0] = byte(journalFileTable)
		binary.LittleEndian.PutUint64(buf[1:9], e.Slot)
		recBuf, err := encodeRecord(e.Record)
		if err != nil {
			return nil, err
		}
		copy(buf[9:], recBuf)
		return buf, nil
	case journalBitmap:
		buf := make([]byte, journalBitmapEntrySize)
		buf[0] = byte(journalBitmap)
		binary.LittleEndian.PutUint64(buf[1:9], e.RangeStart)
		binary.LittleEndian.PutUint64(buf[9:17], e.RangeEnd)
		if e.Allocated {
			buf[17] = 1
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("vfs: unknown journal entry kind %d", e.Kind)
	}
}

func decodeJournalEntry(kind journalEntryKind, payload []byte) (JournalEntry, int, error) {
	switch kind {
	case journalSystemHeader:
		if len(payload) < journalHeaderEntrySize-1 {
			return JournalEntry{}, 0, ErrIncompleteRead
		}
		e := journalNewHeader(
			binary.LittleEndian.Uint64(payload[0:8]),
			binary.LittleEndian.Uint64(payload[8:16]),
		)
		return e, journalHeaderEntrySize - 1, nil
	case journalFileTable:
		if len(payload) < journalFileTableEntrySize-1 {
			return JournalEntry{}, 0, ErrIncompleteRead
		}
		slot := binary.LittleEndian.Uint64(payload[0:8])
		rec, err := decodeRecord(payload[8 : 8+RecordSize])
		if err != nil {
			return JournalEntry{}, 0, err
		}
		return journalNewFileTable(slot, rec), journalFileTableEntrySize - 1, nil
	case journalBitmap:
		if len(payload) < journalBitmapEntrySize-1 {
			return JournalEntry{}, 0, ErrIncompleteRead
		}
		start := binary.LittleEndian.Uint64(payload[0:8])
		end := binary.LittleEndian.Uint64(payload[8:16])
		allocated := payload[16] != 0
		return journalNewBitmap(start, end, allocated), journalBitmapEntrySize - 1, nil
	default:
		return JournalEntry{}, 0, fmt.Errorf("vfs: corrupt journal: unknown entry tag %d", kind)
	}
}

// Journal is the write-ahead commit journal living on JournalPage (C6). It
// stages a batch of logical modifications, then applies them idempotently.
// Grounded on pkg/wal/wal.go's Open/Write/Fsync shape, collapsed from a
// rotating append-only log down to a single fixed reserved page holding at
// most one pending batch, since the spec's journal is a commit marker, not a
// history log.
type Journal struct {
	store *pageStore
}

func newJournal(store *pageStore) *Journal {
	return &Journal{store: store}
}

// schedule stages entries onto the journal page and marks them committed.
// Per §4.6: write the entry bytes first and flush, then write the count
// byte and flush. The count byte is the commit marker — a crash before its
// flush leaves the journal looking empty; one after means reopening will
// re-apply, which is safe because every apply is a blind, idempotent,
// deterministic-offset overwrite.
func (j *Journal) schedule(entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if len(entries) > 255 {
		return fmt.Errorf("vfs: too many journal entries in one commit: %d", len(entries))
	}

	var body []byte
	for _, e := range entries {
		enc, err := e.encode()
		if err != nil {
			return err
		}
		body = append(body, enc...)
	}
	if len(body)+1 > PageSize {
		return fmt.Errorf("vfs: journal batch too large for one page: %d bytes", len(body)+1)
	}

	if err := j.store.writeAt(pageOffset(JournalPage)+1, body); err != nil {
		return err
	}
	if err := j.store.flush(); err != nil {
		return err
	}

	if err := j.store.writeAt(pageOffset(JournalPage), []byte{byte(len(entries))}); err != nil {
		return err
	}
	return j.store.flush()
}

// resolveTargets bundles the mutable state a journal apply writes through.
// header is updated both on disk and in memory (through the headerPage and
// headerPageCount pointers) so that a FileTable entry scheduled after a Header entry in
// the same batch lands at the new table location.
type resolveTargets struct {
	headerPage         *uint64
	headerPageCount    *uint64
	writeHeaderToDisk  func(page, count uint64) error
	store              *pageStore
	bitmap             *Bitmap
}

// resolve reads any pending commit, applies its entries in order, then
// truncates the store to its minimal length and clears the marker. Safe to
// call when there is nothing pending (count == 0): it is a no-op other than
// the truncate-to-highest-allocated-page pass, which is itself idempotent.
func (j *Journal) resolve(t resolveTargets) error {
	var countBuf [1]byte
	if err := j.store.readAt(pageOffset(JournalPage), countBuf[:]); err != nil {
		return err
	}
	count := int(countBuf[0])

	if count > 0 {
		var body [PageSize - 1]byte
		if err := j.store.readAt(pageOffset(JournalPage)+1, body[:]); err != nil {
			return err
		}

		offset := 0
		for i := 0; i < count; i++ {
			if offset >= len(body) {
				return fmt.Errorf("vfs: corrupt journal: ran out of bytes at entry %d/%d", i, count)
			}
			kind := journalEntryKind(body[offset])
			entry, consumed, err := decodeJournalEntry(kind, body[offset+1:])
			if err != nil {
				return err
			}
			offset += 1 + consumed

			if err := applyJournalEntry(t, entry); err != nil {
				return err
			}
		}
	}

	highest, ok, err := t.bitmap.HighestAllocatedPage()
	if err != nil {
		return err
	}
	if ok {
		if err := t.store.truncateToPages(highest + 1); err != nil {
			return err
		}
	}

	if err := j.store.writeAt(pageOffset(JournalPage), []byte{0}); err != nil {
		return err
	}
	return j.store.flush()
}

func applyJournalEntry(t resolveTargets, e JournalEntry) error {
	switch e.Kind {
	case journalSystemHeader:
		*t.headerPage = e.FileTablePage
		*t.headerPageCount = e.FileTablePageCount
		return t.writeHeaderToDisk(e.FileTablePage, e.FileTablePageCount)
	case journalFileTable:
		recBuf, err := encodeRecord(e.Record)
		if err != nil {
			return err
		}
		tableStart := pageOffset(*t.headerPage)
		return t.store.writeAt(tableStart+int64(e.Slot), recBuf)
	case journalBitmap:
		return t.bitmap.SetRange(e.RangeStart, e.RangeEnd, e.Allocated)
	default:
		return fmt.Errorf("vfs: corrupt journal: unknown entry kind %d", e.Kind)
	}
}
