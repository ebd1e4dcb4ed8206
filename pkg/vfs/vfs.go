package vfs

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nainya/vfslib/internal/logger"
	"github.com/nainya/vfslib/internal/metrics"
)

// Options configures Open. The zero value is the default: a system clock, a
// discarding metrics recorder, and the global logger from
// logger.GetGlobalLogger (info level and louder, to stdout, unless it was
// initialized otherwise).
type Options struct {
	Clock   Clock
	Metrics metrics.Recorder
	Logger  *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = systemClock{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Noop()
	}
	if o.Logger == nil {
		o.Logger = logger.GetGlobalLogger()
	}
	return o
}

// engine holds every piece of mutable state for one open store. It is never
// exposed directly; Vfs, File and DirIterator all reach it only through an
// engineHandle, so that closing the Vfs can invalidate every outstanding
// handle at once (§5's "weak reference" contract, adapted to Go: the
// original used Weak<RefCell<Engine>> so a handle would find its engine
// gone once the last strong Rc dropped; Go has no refcounting, so Vfs.Close
// explicitly flips engineHandle.alive instead).
type engine struct {
	host     HostFile
	store    *pageStore
	bitmap   *Bitmap
	journal  *Journal
	table    *FileTable
	resolver *resolver
	loc      *tableLocation
	clock    Clock

	logger  *logger.Logger
	metrics metrics.Recorder
}

// commit stages entries and immediately resolves them: schedule (stage +
// flush, count-byte + flush) then resolve (apply + truncate + clear +
// flush), per §4.6. There is no window in which a caller observes a
// half-applied commit: resolve runs synchronously, in the same call that
// scheduled it, unlike a crash-recovery resolve which runs at Open time
// against whatever a previous process left behind.
func (e *engine) commit(entries []JournalEntry) error {
	start := time.Now()
	err := e.journal.schedule(entries)
	if err == nil {
		err = e.journal.resolve(e.resolveTargets())
	}
	e.logger.LogCommit(len(entries), time.Since(start), err)
	if err == nil {
		e.metrics.RecordCommit(commitKind(entries), time.Since(start))
		e.recordBitmapDeltas(entries)
	}
	return err
}

// recordBitmapDeltas updates the pages-allocated/freed counters and the
// bitmap-pages-in-use gauge for every Bitmap entry in a just-applied commit.
func (e *engine) recordBitmapDeltas(entries []JournalEntry) {
	for _, entry := range entries {
		if entry.Kind != journalBitmap {
			continue
		}
		n := int(entry.RangeEnd - entry.RangeStart)
		if entry.Allocated {
			e.metrics.RecordPagesAllocated(n)
		} else {
			e.metrics.RecordPagesFreed(n)
		}
	}
	if highest, ok, err := e.bitmap.HighestAllocatedPage(); err == nil && ok {
		e.metrics.SetBitmapPagesInUse(int(highest) + 1)
	}
}

// commitKind summarizes a batch for the metrics label: the kind of its last
// entry, since a batch's purpose is defined by what it ultimately changes
// (a relocation batch ends with the Header or FileTable entry that commits
// the move; a plain metadata update is just a single FileTable entry).
func commitKind(entries []JournalEntry) string {
	if len(entries) == 0 {
		return "empty"
	}
	switch entries[len(entries)-1].Kind {
	case journalSystemHeader:
		return "table_relocate"
	case journalFileTable:
		return "file_table"
	case journalBitmap:
		return "bitmap"
	default:
		return "unknown"
	}
}

func (e *engine) resolveTargets() resolveTargets {
	return resolveTargets{
		headerPage:      &e.loc.Page,
		headerPageCount: &e.loc.PageCount,
		writeHeaderToDisk: func(page, count uint64) error {
			return writeHeaderTableLocation(e.store, page, count)
		},
		store:  e.store,
		bitmap: e.bitmap,
	}
}

func (e *engine) close() error {
	e.logger.LogClose()
	return e.host.Close()
}

// engineHandle is the weak reference every File and DirIterator carries.
// upgrade fails with ErrFileNotFound once the owning Vfs has been closed,
// mirroring the source's Weak::upgrade() returning None.
type engineHandle struct {
	eng   *engine
	alive bool
}

func (h *engineHandle) upgrade() (*engine, error) {
	if !h.alive {
		return nil, ErrFileNotFound
	}
	return h.eng, nil
}

// Vfs is a single open store (C7): the hierarchical, single-file virtual
// filesystem described by the package doc comment. A Vfs is not safe for
// concurrent use.
type Vfs struct {
	handle *engineHandle
	path   string
}

// Open opens name as a vfs store, creating and initializing it if it
// doesn't already exist or is empty, and replaying any pending journal
// commit left behind by a prior crash otherwise.
func Open(name string) (*Vfs, error) {
	return OpenWithOptions(name, Options{})
}

// OpenWithMetrics is Open with a real Prometheus recorder attached, for
// callers that have a registry standing up and want vfs_* series populated
// instead of the package's default no-op Recorder.
func OpenWithMetrics(name string, m *metrics.Metrics) (*Vfs, error) {
	return OpenWithOptions(name, Options{Metrics: m})
}

// OpenWithOptions is Open with explicit Clock/Metrics/Logger overrides,
// primarily for tests.
func OpenWithOptions(name string, opts Options) (*Vfs, error) {
	opts = opts.withDefaults()

	host, err := OpenOSFile(name)
	if err != nil {
		return nil, err
	}
	store := newPageStore(host)

	length, err := host.Length()
	if err != nil {
		return nil, err
	}

	vlog := opts.Logger.VfsLogger(name)

	var loc tableLocation
	initialized := length == 0
	if initialized {
		if err := initializeStore(store); err != nil {
			return nil, err
		}
		loc = tableLocation{Page: InitialTablePage, PageCount: 1}
	} else {
		h, err := readHeader(store)
		if err != nil {
			return nil, err
		}
		if h.PageSize != PageSize {
			return nil, ErrBadSignature
		}
		loc = tableLocation{Page: h.FileTablePage, PageCount: h.FileTablePageCount}
	}

	bitmap := newBitmap(store)
	journal := newJournal(store)

	eng := &engine{
		host:    host,
		store:   store,
		bitmap:  bitmap,
		journal: journal,
		loc:     &loc,
		clock:   opts.Clock,
		logger:  vlog,
		metrics: opts.Metrics,
	}
	eng.table = newFileTable(store, bitmap, &loc, eng.commit)
	eng.resolver = newResolver(eng.table)

	if !initialized {
		if err := journal.resolve(eng.resolveTargets()); err != nil {
			return nil, err
		}
	}

	vlog.LogOpen(name, initialized)

	return &Vfs{handle: &engineHandle{eng: eng, alive: true}, path: name}, nil
}

// initializeStore lays out a brand-new store: header + bitmap + journal +
// a one-page file table, pages 0-3 marked allocated, and an active root
// directory record at slot 0.
func initializeStore(store *pageStore) error {
	if err := store.ensureLengthPages(InitialTablePage + 1); err != nil {
		return err
	}
	if err := writeHeader(store, header{
		PageSize:           PageSize,
		FileTablePage:      InitialTablePage,
		FileTablePageCount: 1,
	}); err != nil {
		return err
	}

	bitmap := newBitmap(store)
	if err := bitmap.SetRange(0, InitialTablePage+1, true); err != nil {
		return err
	}

	root := Record{IsRoot: true, IsActive: true, IsDirectory: true, Name: "root"}
	recBuf, err := encodeRecord(root)
	if err != nil {
		return err
	}
	if err := store.writeAt(pageOffset(InitialTablePage), recBuf); err != nil {
		return err
	}

	return store.flush()
}

// Close closes the underlying host file and invalidates every File and
// DirIterator still referring to this Vfs: any further operation on them
// returns ErrFileNotFound, per §5.
func (v *Vfs) Close() error {
	eng, err := v.handle.upgrade()
	if err != nil {
		return nil
	}
	v.handle.alive = false
	return eng.close()
}

// validateName rejects names that are empty, contain a path separator, or
// exceed MaxNameLength UTF-8 bytes.
func validateName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return ErrFileNameTooBig
	}
	if len(name) > MaxNameLength {
		return ErrFileNameTooBig
	}
	return nil
}

// createEntry is the shared implementation of CreateDir and Create: resolve
// the parent directory, reject a duplicate active sibling, find or grow a
// free slot, and append the new record to the tail of the parent's sibling
// chain in a single commit.
func (v *Vfs) createEntry(path string, isDir bool) (slot uint64, err error) {
	eng, err := v.handle.upgrade()
	if err != nil {
		return 0, err
	}

	segs := splitPath(path)
	if len(segs) == 0 {
		return 0, ErrFileNameTooBig
	}
	name := segs[len(segs)-1]
	if err := validateName(name); err != nil {
		return 0, err
	}

	dirSlot, dirRec, err := eng.resolver.resolveParentDir(path)
	if err != nil {
		return 0, err
	}

	if _, _, found, err := eng.resolver.findChild(dirRec.Contents, name); err != nil {
		return 0, err
	} else if found {
		return 0, ErrNameAlreadyInUse
	}

	freeSlot, ok, err := eng.table.FindFreeSlot()
	if err != nil {
		return 0, err
	}
	if !ok {
		oldPage, oldCount := eng.loc.Page, eng.loc.PageCount
		if err := eng.table.Grow(); err != nil {
			return 0, err
		}
		eng.metrics.RecordRelocation("file_table")
		eng.logger.LogRelocate("file_table", oldPage, eng.loc.Page, eng.loc.PageCount-oldCount)
		freeSlot, ok, err = eng.table.FindFreeSlot()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrOutOfMemory
		}
	}

	now := eng.clock.NowSeconds()
	newRec := Record{
		IsActive:      true,
		IsDirectory:   isDir,
		CreationTime:  now,
		LastWriteTime: now,
		Name:          name,
	}

	entries := []JournalEntry{journalNewFileTable(freeSlot, newRec)}

	linkSlot, linkRec := dirSlot, dirRec
	if dirRec.Contents == 0 {
		linkRec.Contents = freeSlot
	} else {
		for linkSlot = dirRec.Contents; ; linkSlot = linkRec.Next {
			if linkRec, err = eng.table.Read(linkSlot); err != nil {
				return 0, err
			}
			if linkRec.Next == 0 {
				break
			}
		}
		linkRec.Next = freeSlot
	}
	entries = append(entries, journalNewFileTable(linkSlot, linkRec))

	if err := eng.commit(entries); err != nil {
		return 0, err
	}
	return freeSlot, nil
}

// CreateDir creates an empty directory at path. The parent must already
// exist and be a directory; a name already in use under that parent fails
// with ErrNameAlreadyInUse.
func (v *Vfs) CreateDir(path string) error {
	start := time.Now()
	_, err := v.createEntry(path, true)
	v.logOp("CreateDir", path, start, err)
	return err
}

// Create creates an empty file at path in one commit and returns a handle to
// it, as OpenFile would for the new file.
func (v *Vfs) Create(path string) (*File, error) {
	start := time.Now()
	slot, err := v.createEntry(path, false)
	v.logOp("Create", path, start, err)
	if err != nil {
		return nil, err
	}
	if eng, uerr := v.handle.upgrade(); uerr == nil {
		eng.metrics.IncOpenHandles()
	}
	return newFile(v.handle, path, slot), nil
}

// OpenFile opens an existing file at path for reading and writing. It fails
// with ErrFileNotFound if path does not exist, or refers to a directory.
func (v *Vfs) OpenFile(path string) (*File, error) {
	start := time.Now()
	eng, err := v.handle.upgrade()
	if err != nil {
		v.logOp("OpenFile", path, start, err)
		return nil, err
	}

	slot, rec, err := eng.resolver.ResolveLeaf(path)
	if err == nil && rec.IsDirectory {
		err = ErrFileNotFound
	}
	v.logOp("OpenFile", path, start, err)
	if err != nil {
		return nil, err
	}

	eng.metrics.IncOpenHandles()
	return newFile(v.handle, path, slot), nil
}

// DirEntry is one entry returned while iterating a directory. path is the
// full path DirIterator re-resolved to produce this entry; OpenEntry uses it
// to reopen the same entry without the caller having to reassemble it from
// the directory it came from and Name.
type DirEntry struct {
	Name          string
	IsDirectory   bool
	Size          uint64
	CreationTime  uint64
	LastWriteTime uint64

	path string
}

// Path returns the full path this entry was resolved from.
func (e DirEntry) Path() string {
	return e.path
}

// ReadDir opens path (which must be a directory) for iteration, returning a
// DirIterator. An empty path refers to the root.
func (v *Vfs) ReadDir(path string) (*DirIterator, error) {
	start := time.Now()
	eng, err := v.handle.upgrade()
	if err != nil {
		v.logOp("ReadDir", path, start, err)
		return nil, err
	}

	_, rec, err := eng.resolver.ResolveLeaf(path)
	if err == nil && !rec.IsDirectory {
		err = ErrFileNotFound
	}
	v.logOp("ReadDir", path, start, err)
	if err != nil {
		return nil, err
	}

	return newDirIterator(v.handle, path)
}

// OpenEntry opens the file a DirEntry (as produced by DirIterator.Next)
// refers to, by re-resolving its path. It fails with ErrFileNotFound if e
// refers to a directory or no longer resolves, exactly like OpenFile.
func (v *Vfs) OpenEntry(e DirEntry) (*File, error) {
	return v.OpenFile(e.path)
}

// Delete removes the entry at path. If it is a directory, every descendant
// is removed too (§4.9): descendants are deactivated depth-first, each in
// its own commit, before the directory itself is unlinked from its parent.
// A recursive delete is therefore not atomic: a crash partway through leaves
// the directory linked in place with some of its children already
// deactivated.
func (v *Vfs) Delete(path string) error {
	start := time.Now()
	eng, err := v.handle.upgrade()
	if err != nil {
		v.logOp("Delete", path, start, err)
		return err
	}

	parentSlot, predSlot, leafSlot, leafRec, err := eng.resolver.ResolveForSplice(path)
	if err != nil {
		v.logOp("Delete", path, start, err)
		return err
	}

	if leafRec.IsDirectory {
		if err := deleteChildren(eng, leafRec.Contents); err != nil {
			v.logOp("Delete", path, start, err)
			return err
		}
	}

	parentRec, err := eng.table.Read(parentSlot)
	if err != nil {
		v.logOp("Delete", path, start, err)
		return err
	}

	// §4.9: the content-bitmap free and both record writes (unlink from the
	// parent's sibling chain, zero the leaf's own slot) land in a single
	// commit, so a crash never leaves the leaf active with its content pages
	// already freed (I3/I4).
	var entries []JournalEntry
	if !leafRec.IsDirectory && leafRec.Size > 0 {
		pages := ceilDivPages(leafRec.Size)
		entries = append(entries, journalNewBitmap(leafRec.Contents, leafRec.Contents+pages, false))
	}

	if predSlot == parentSlot {
		updated := parentRec
		updated.Contents = leafRec.Next
		entries = append(entries, journalNewFileTable(predSlot, updated))
	} else {
		predRec, err := eng.table.Read(predSlot)
		if err != nil {
			v.logOp("Delete", path, start, err)
			return err
		}
		predRec.Next = leafRec.Next
		entries = append(entries, journalNewFileTable(predSlot, predRec))
	}
	entries = append(entries, journalNewFileTable(leafSlot, Record{}))

	err = eng.commit(entries)
	v.logOp("Delete", path, start, err)
	return err
}

// deleteChildren recursively frees every descendant of a directory whose
// file-table slot's Contents field is firstChild, without touching the
// directory record itself (the caller splices that out separately).
func deleteChildren(eng *engine, firstChild uint64) error {
	cur := firstChild
	for cur != 0 {
		rec, err := eng.table.Read(cur)
		if err != nil {
			return err
		}
		next := rec.Next
		if rec.IsActive {
			if rec.IsDirectory {
				if err := deleteChildren(eng, rec.Contents); err != nil {
					return err
				}
			}

			var entries []JournalEntry
			if !rec.IsDirectory && rec.Size > 0 {
				pages := ceilDivPages(rec.Size)
				entries = append(entries, journalNewBitmap(rec.Contents, rec.Contents+pages, false))
			}
			entries = append(entries, journalNewFileTable(cur, Record{}))
			if err := eng.commit(entries); err != nil {
				return err
			}
		}
		cur = next
	}
	return nil
}

// PrintTree writes an indented listing of path and everything beneath it to
// w, for debugging (§12 supplement; not part of the original distilled
// surface, but present in the source this spec was distilled from).
func (v *Vfs) PrintTree(w io.Writer, path string) error {
	eng, err := v.handle.upgrade()
	if err != nil {
		return err
	}
	slot, rec, err := eng.resolver.ResolveLeaf(path)
	if err != nil {
		return err
	}
	return printTreeNode(w, eng, rec.Name, slot, rec, 0)
}

func printTreeNode(w io.Writer, eng *engine, name string, slot uint64, rec Record, depth int) error {
	indent := strings.Repeat("  ", depth)
	if rec.IsDirectory {
		if name == "" {
			name = "/"
		}
		if _, err := fmt.Fprintf(w, "%s%s/\n", indent, name); err != nil {
			return err
		}
		cur := rec.Contents
		for cur != 0 {
			childRec, err := eng.table.Read(cur)
			if err != nil {
				return err
			}
			if childRec.IsActive {
				if err := printTreeNode(w, eng, childRec.Name, cur, childRec, depth+1); err != nil {
					return err
				}
			}
			cur = childRec.Next
		}
		return nil
	}
	_, err := fmt.Fprintf(w, "%s%s (%d bytes)\n", indent, name, rec.Size)
	return err
}

func (v *Vfs) logOp(operation, path string, start time.Time, err error) {
	if eng, uerr := v.handle.upgrade(); uerr == nil {
		eng.logger.LogOperation(operation, path, time.Since(start), err)
	}
}
