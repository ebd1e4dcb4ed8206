package vfs

import "strings"

// splitPath splits a `/`-delimited path into non-empty segments. There is no
// `.`/`..` interpretation and no absolute/relative distinction (§9): a
// leading or doubled slash simply produces no empty segment.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// joinPath composes a child name onto a directory path for re-resolution.
// dir may be "" (the root), in which case name is returned on its own.
func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// resolver is the path resolver (C5): it walks the linked-list directory
// tree rooted at slot 0, following Contents to descend and Next to walk a
// sibling chain.
type resolver struct {
	table *FileTable
}

func newResolver(table *FileTable) *resolver {
	return &resolver{table: table}
}

// findChild scans the sibling chain starting at firstChild for an active
// record named name.
func (r *resolver) findChild(firstChild uint64, name string) (slot uint64, rec Record, found bool, err error) {
	cur := firstChild
	for cur != 0 {
		rec, err := r.table.Read(cur)
		if err != nil {
			return 0, Record{}, false, err
		}
		if rec.IsActive && rec.Name == name {
			return cur, rec, true, nil
		}
		cur = rec.Next
	}
	return 0, Record{}, false, nil
}

// descendToParentDir walks every segment but the last, starting from the
// root, and returns the slot of the directory the final segment should be
// looked up in.
func (r *resolver) descendToParentDir(segs []string) (uint64, error) {
	dirSlot := uint64(0)
	for _, seg := range segs {
		dirRec, err := r.table.Read(dirSlot)
		if err != nil {
			return 0, err
		}
		childSlot, childRec, found, err := r.findChild(dirRec.Contents, seg)
		if err != nil {
			return 0, err
		}
		if !found || !childRec.IsDirectory {
			return 0, ErrDirectoryNotFound
		}
		dirSlot = childSlot
	}
	return dirSlot, nil
}

// ResolveLeaf resolves path to its (slot, record). An empty path resolves to
// the root itself (slot 0).
func (r *resolver) ResolveLeaf(path string) (slot uint64, rec Record, err error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		rootRec, err := r.table.Read(0)
		return 0, rootRec, err
	}

	dirSlot, err := r.descendToParentDir(segs[:len(segs)-1])
	if err != nil {
		return 0, Record{}, err
	}

	dirRec, err := r.table.Read(dirSlot)
	if err != nil {
		return 0, Record{}, err
	}
	leafSlot, leafRec, found, err := r.findChild(dirRec.Contents, segs[len(segs)-1])
	if err != nil {
		return 0, Record{}, err
	}
	if !found {
		return 0, Record{}, ErrFileNotFound
	}
	return leafSlot, leafRec, nil
}

// ResolveForSplice resolves path the way Create and Delete need it: the
// parent directory's slot, the slot of the sibling that precedes the leaf in
// its parent's linked list (equal to parentSlot when the leaf is the first
// child), and the leaf's own slot and record. It fails with
// ErrDirectoryNotFound if any intermediate segment is missing or isn't a
// directory, and ErrFileNotFound if the leaf itself doesn't exist.
func (r *resolver) ResolveForSplice(path string) (parentSlot, predSlot, leafSlot uint64, leafRec Record, err error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return 0, 0, 0, Record{}, ErrFileNotFound
	}

	dirSlot, err := r.descendToParentDir(segs[:len(segs)-1])
	if err != nil {
		return 0, 0, 0, Record{}, err
	}

	dirRec, err := r.table.Read(dirSlot)
	if err != nil {
		return 0, 0, 0, Record{}, err
	}

	leafName := segs[len(segs)-1]
	pred := dirSlot
	cur := dirRec.Contents
	for cur != 0 {
		rec, err := r.table.Read(cur)
		if err != nil {
			return 0, 0, 0, Record{}, err
		}
		if rec.IsActive && rec.Name == leafName {
			return dirSlot, pred, cur, rec, nil
		}
		pred = cur
		cur = rec.Next
	}
	return dirSlot, pred, 0, Record{}, ErrFileNotFound
}

// resolveParentDir is used by Create: it only needs the parent directory's
// slot and record (to find the current tail of the sibling chain), failing
// with ErrDirectoryNotFound exactly like ResolveForSplice's descent.
func (r *resolver) resolveParentDir(path string) (dirSlot uint64, dirRec Record, err error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return 0, Record{}, ErrDirectoryNotFound
	}
	dirSlot, err = r.descendToParentDir(segs[:len(segs)-1])
	if err != nil {
		return 0, Record{}, err
	}
	dirRec, err = r.table.Read(dirSlot)
	return dirSlot, dirRec, err
}
