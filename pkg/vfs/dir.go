package vfs

import "io"

// DirIterator iterates the children of a directory (C9). The set of names
// is snapshotted at construction time; each call to Next re-resolves that
// name against the directory's *current* state. An entry deleted after
// ReadDir was called but before Next reaches it yields ErrFileNotFound for
// that one call rather than stale data — iteration does not stop there, the
// next call to Next picks up where it left off. This mirrors a B-tree
// iterator re-reading its current leaf instead of trusting a cached copy
// (pkg/btree/iterator.go's BIter), adapted here because a directory's
// sibling-chain is a live, mutable list rather than an immutable snapshot.
//
// DirIterator is not safe for concurrent use.
type DirIterator struct {
	handle  *engineHandle
	dirPath string
	names   []string
	idx     int
}

// newDirIterator snapshots the names of dirPath's active children, in link
// order, at construction time (§4.11) — not lazily on the first Next — so a
// deletion that happens after ReadDir returns is something Next observes as
// a miss on re-resolution, not an entry silently absent from the walk.
func newDirIterator(h *engineHandle, dirPath string) (*DirIterator, error) {
	it := &DirIterator{handle: h, dirPath: dirPath, idx: -1}

	eng, err := h.upgrade()
	if err != nil {
		return nil, err
	}
	_, dirRec, err := eng.resolver.ResolveLeaf(dirPath)
	if err != nil {
		return nil, err
	}

	cur := dirRec.Contents
	for cur != 0 {
		rec, err := eng.table.Read(cur)
		if err != nil {
			return nil, err
		}
		if rec.IsActive {
			it.names = append(it.names, rec.Name)
		}
		cur = rec.Next
	}
	return it, nil
}

// Next returns the next entry, io.EOF once the snapshot is exhausted, or
// ErrFileNotFound for a slot whose name no longer resolves under the
// directory (it was deleted since ReadDir observed it) — that error is not
// terminal, the next call to Next continues with the following name.
func (it *DirIterator) Next() (DirEntry, error) {
	eng, err := it.handle.upgrade()
	if err != nil {
		return DirEntry{}, err
	}

	it.idx++
	if it.idx >= len(it.names) {
		return DirEntry{}, io.EOF
	}
	name := it.names[it.idx]
	entryPath := joinPath(it.dirPath, name)

	_, dirRec, err := eng.resolver.ResolveLeaf(it.dirPath)
	if err != nil {
		return DirEntry{}, err
	}
	_, rec, found, err := eng.resolver.findChild(dirRec.Contents, name)
	if err != nil {
		return DirEntry{}, err
	}
	if !found {
		return DirEntry{path: entryPath}, ErrFileNotFound
	}
	return DirEntry{
		Name:          rec.Name,
		IsDirectory:   rec.IsDirectory,
		Size:          rec.Size,
		CreationTime:  rec.CreationTime,
		LastWriteTime: rec.LastWriteTime,
		path:          entryPath,
	}, nil
}

// Close is a no-op kept for symmetry with File.Close and the usual Go
// `defer it.Close()` idiom; a DirIterator owns no resource beyond the
// shared engine handle.
func (it *DirIterator) Close() error {
	return nil
}
