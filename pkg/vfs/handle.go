package vfs

import (
	"fmt"
	"io"
)

// SeekWhence selects the reference point for File.Seek.
type SeekWhence int

const (
	SeekStart SeekWhence = iota
	SeekCurrent
	SeekEnd
)

// Metadata is the subset of a file record exposed to callers.
type Metadata struct {
	Size          uint64
	CreationTime  uint64
	LastWriteTime uint64
}

// File is a handle onto a single non-directory record (C8). It carries only
// a slot index, a byte cursor and the path it was opened with; it holds no
// owning reference to the engine, only the weak engineHandle shared by the
// whole store, and re-resolves its path at the top of every operation. If
// the engine has been closed, or the path no longer resolves (the file was
// deleted, or a parent directory was), every operation fails with
// ErrFileNotFound (or ErrDirectoryNotFound, if an intermediate segment is
// what went missing).
//
// File is not safe for concurrent use from multiple goroutines.
type File struct {
	handle *engineHandle
	path   string
	slot   uint64
	cursor uint64
	closed bool
}

func newFile(h *engineHandle, path string, slot uint64) *File {
	return &File{handle: h, path: path, slot: slot}
}

// Close releases no resource of its own — a File's only state is a path and
// a cursor, and the engine it refers to outlives any individual handle. It
// exists so callers can `defer f.Close()` in the usual Go idiom; it keeps
// the vfs_open_handles gauge accurate and is otherwise a no-op. Calling it
// more than once, or not at all, is harmless.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if eng, err := f.handle.upgrade(); err == nil {
		eng.metrics.DecOpenHandles()
	}
	return nil
}

func (f *File) resolve() (*engine, Record, error) {
	eng, err := f.handle.upgrade()
	if err != nil {
		return nil, Record{}, err
	}
	slot, rec, err := eng.resolver.ResolveLeaf(f.path)
	if err != nil {
		return nil, Record{}, err
	}
	f.slot = slot
	return eng, rec, nil
}

// Read reads up to len(buf) bytes starting at the cursor, returning io.EOF
// once the cursor has reached the end of the file's content, matching the
// standard io.Reader contract (the spec's "0 means EOF" translated to Go
// idiom).
func (f *File) Read(buf []byte) (int, error) {
	eng, rec, err := f.resolve()
	if err != nil {
		return 0, err
	}
	if f.cursor >= rec.Size {
		return 0, io.EOF
	}
	avail := rec.Size - f.cursor
	n := uint64(len(buf))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0, nil
	}
	if err := eng.store.readAt(pageOffset(rec.Contents)+int64(f.cursor), buf[:n]); err != nil {
		return 0, err
	}
	f.cursor += n
	eng.metrics.RecordHandleRead(int(n))
	return int(n), nil
}

// Write writes buf at the cursor, growing and relocating the file's content
// run first if necessary, then advances the cursor by len(buf). Short
// writes are never produced: either the whole of buf lands, or the call
// fails and the file is untouched.
//
// Per §4.8/§9 the relocation commit (when one is needed) and the
// size/last_write_time commit are kept separate, in that order: coalescing
// them would record the new size before the newly written bytes are
// durable, so a crash in between could expose stale bytes in the grown
// region under a size that already claims them.
func (f *File) Write(buf []byte) (int, error) {
	eng, rec, err := f.resolve()
	if err != nil {
		return 0, err
	}

	if end := f.cursor + uint64(len(buf)); end < f.cursor || end > MaxAddressablePages*PageSize {
		return 0, ErrOutOfMemory
	}
	need := ceilDivPages(f.cursor + uint64(len(buf)))
	have := ceilDivPages(rec.Size)

	if need > have {
		newStart, ok, err := eng.bitmap.FirstFit(need, PageRange{Start: rec.Contents, End: rec.Contents + have})
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrOutOfMemory
		}

		oldEnd := rec.Contents + have
		newEnd := newStart + need
		maxPages := oldEnd
		if newEnd > maxPages {
			maxPages = newEnd
		}
		if err := eng.store.ensureLengthPages(maxPages); err != nil {
			return 0, err
		}
		if rec.Size > 0 {
			old := make([]byte, rec.Size)
			if err := eng.store.readAt(pageOffset(rec.Contents), old); err != nil {
				return 0, err
			}
			if err := eng.store.writeAt(pageOffset(newStart), old); err != nil {
				return 0, err
			}
		}

		var entries []JournalEntry
		if have > 0 {
			entries = append(entries, journalNewBitmap(rec.Contents, rec.Contents+have, false))
		}
		entries = append(entries, journalNewBitmap(newStart, newStart+need, true))
		relocated := rec
		relocated.Contents = newStart
		entries = append(entries, journalNewFileTable(f.slot, relocated))

		if err := eng.commit(entries); err != nil {
			return 0, err
		}
		oldStart := rec.Contents
		rec.Contents = newStart
		eng.metrics.RecordRelocation("file_content")
		eng.logger.LogRelocate("file_content", oldStart, newStart, need)
	}

	if err := eng.store.writeAt(pageOffset(rec.Contents)+int64(f.cursor), buf); err != nil {
		return 0, err
	}

	newSize := rec.Size
	if f.cursor+uint64(len(buf)) > newSize {
		newSize = f.cursor + uint64(len(buf))
	}
	rec.Size = newSize
	rec.LastWriteTime = eng.clock.NowSeconds()
	if err := eng.commit([]JournalEntry{journalNewFileTable(f.slot, rec)}); err != nil {
		return 0, err
	}

	f.cursor += uint64(len(buf))
	eng.metrics.RecordHandleWrite(len(buf))
	return len(buf), nil
}

// Seek repositions the cursor. Start rejects pos == size (seek-to-EOF),
// preserving the source's stricter-than-usual behavior (§9) rather than the
// more permissive pos <= size a typical Seek allows. End is intentionally
// left unchecked, also per §9: a large negative offset wraps the cursor to
// a huge value exactly as the original did, rather than silently clamping
// it — a subsequent Read/Write against that cursor simply sees it as past
// EOF (Read returns io.EOF; Write fails with ErrOutOfMemory, since the
// cursor lies beyond the store's addressable range) instead of corrupting
// file state.
func (f *File) Seek(offset int64, whence SeekWhence) error {
	_, rec, err := f.resolve()
	if err != nil {
		return err
	}

	switch whence {
	case SeekStart:
		if offset < 0 || uint64(offset) >= rec.Size {
			return ErrInvalidSeek
		}
		f.cursor = uint64(offset)
	case SeekCurrent:
		np := int64(f.cursor) + offset
		if np < 0 || uint64(np) >= rec.Size {
			return ErrInvalidSeek
		}
		f.cursor = uint64(np)
	case SeekEnd:
		f.cursor = uint64(int64(rec.Size) + offset)
	default:
		return fmt.Errorf("%w: unknown whence %d", ErrInvalidSeek, whence)
	}
	return nil
}

// Flush forces any durable-but-not-yet-fsynced host writes out. Content
// bytes written by Write are already fsynced as part of the metadata commit
// that follows them (§5); Flush exists for callers that want an explicit
// synchronization point regardless.
func (f *File) Flush() error {
	eng, err := f.handle.upgrade()
	if err != nil {
		return err
	}
	return eng.store.flush()
}

// Metadata returns the file's current size and timestamps.
func (f *File) Metadata() (Metadata, error) {
	_, rec, err := f.resolve()
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Size: rec.Size, CreationTime: rec.CreationTime, LastWriteTime: rec.LastWriteTime}, nil
}

// ceilDivPages returns the number of PageSize pages needed to hold n bytes.
func ceilDivPages(n uint64) uint64 {
	return (n + PageSize - 1) / PageSize
}
