// Package vfs implements a single-file virtual filesystem: a hierarchical,
// POSIX-like directory/file tree whose entire persistent state lives inside
// one host-OS file, laid out as a sequence of fixed-size pages.
//
// The package is not safe for concurrent use. Every exported method on Vfs,
// File and DirIterator assumes a single goroutine drives it at a time; there
// is no internal locking.
package vfs

import "errors"

// Sentinel errors returned by the public API. Callers should compare with
// errors.Is, since internal wrapping adds context via fmt.Errorf("...: %w").
var (
	// ErrFileNameTooBig is returned when a name exceeds MaxNameLength bytes
	// of UTF-8, either at Create/CreateDir or while encoding a record.
	ErrFileNameTooBig = errors.New("vfs: file name too big")

	// ErrDirectoryNotFound is returned when an intermediate path segment is
	// missing, or refers to something that isn't a directory.
	ErrDirectoryNotFound = errors.New("vfs: directory not found")

	// ErrFileNotFound is returned when a leaf path segment is missing,
	// OpenFile is called on a directory, or a handle/iterator outlives the
	// engine or the path it was pinned to.
	ErrFileNotFound = errors.New("vfs: file not found")

	// ErrNameAlreadyInUse is returned by Create/CreateDir when an active
	// sibling with the same name already exists.
	ErrNameAlreadyInUse = errors.New("vfs: name already in use")

	// ErrPageNumberTooBig is returned by bitmap operations addressing a page
	// beyond the store's addressable range.
	ErrPageNumberTooBig = errors.New("vfs: page number too big")

	// ErrOutOfMemory is returned when the allocator cannot find a free page
	// run of the requested length anywhere in the addressable range.
	ErrOutOfMemory = errors.New("vfs: out of memory")

	// ErrRecordSizeMismatch indicates a record codec invariant was violated
	// (wrong-sized byte block). Internal only; should never surface from a
	// well-formed store.
	ErrRecordSizeMismatch = errors.New("vfs: record size mismatch")

	// ErrIncompleteRead indicates the host file returned fewer bytes than
	// requested without an error. Internal only.
	ErrIncompleteRead = errors.New("vfs: incomplete read")

	// ErrIncompleteWrite indicates the host file wrote fewer bytes than
	// requested without an error. Internal only.
	ErrIncompleteWrite = errors.New("vfs: incomplete write")

	// ErrInvalidSeek is returned by File.Seek for an out-of-range position.
	ErrInvalidSeek = errors.New("vfs: invalid seek")

	// ErrBadSignature is returned by Open when an existing file doesn't look
	// like a vfs store (the page size in its header is not PageSize).
	ErrBadSignature = errors.New("vfs: not a vfs store")
)
