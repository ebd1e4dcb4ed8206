package vfs

import (
	"fmt"
	"io"
	"os"
)

// HostFile is the byte-oriented random-access store the engine requires from
// its host. It is the only thing the core storage engine asks of the outside
// world besides a Clock (see clock.go). A real open store is backed by
// osHostFile; tests may substitute any other implementation.
type HostFile interface {
	// ReadExact reads exactly len(buf) bytes starting at offset off, or
	// returns ErrIncompleteRead if the file is shorter than off+len(buf).
	ReadExact(off int64, buf []byte) error

	// WriteAll writes every byte of buf at offset off, extending the file
	// if necessary.
	WriteAll(off int64, buf []byte) error

	// Length returns the current length of the store in bytes.
	Length() (int64, error)

	// SetLength truncates or extends the store to exactly n bytes.
	SetLength(n int64) error

	// Flush makes prior writes durable.
	Flush() error

	// Close releases the underlying resource. After Close, no other method
	// may be called.
	Close() error
}

// osHostFile adapts an *os.File to HostFile using absolute-offset
// ReadAt/WriteAt, matching the teacher's pread/pwrite-at-offset style
// (pkg/storage/kv.go) without the mmap layer: the VFS store is capped at
// 8*PageSize pages (128MiB at the default page size), small enough that
// direct syscalls are simpler and sufficient.
type osHostFile struct {
	f *os.File
}

// OpenOSFile opens (creating if necessary) name as a HostFile backed by a
// real OS file.
func OpenOSFile(name string) (HostFile, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("vfs: open host file: %w", err)
	}
	return &osHostFile{f: f}, nil
}

func (h *osHostFile) ReadExact(off int64, buf []byte) error {
	n, err := h.f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return fmt.Errorf("vfs: read host file: %w", err)
	}
	if n != len(buf) {
		return ErrIncompleteRead
	}
	return nil
}

func (h *osHostFile) WriteAll(off int64, buf []byte) error {
	n, err := h.f.WriteAt(buf, off)
	if err != nil {
		return fmt.Errorf("vfs: write host file: %w", err)
	}
	if n != len(buf) {
		return ErrIncompleteWrite
	}
	return nil
}

func (h *osHostFile) Length() (int64, error) {
	info, err := h.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("vfs: stat host file: %w", err)
	}
	return info.Size(), nil
}

func (h *osHostFile) SetLength(n int64) error {
	if err := h.f.Truncate(n); err != nil {
		return fmt.Errorf("vfs: truncate host file: %w", err)
	}
	return nil
}

func (h *osHostFile) Flush() error {
	if err := h.f.Sync(); err != nil {
		return fmt.Errorf("vfs: flush host file: %w", err)
	}
	return nil
}

func (h *osHostFile) Close() error {
	if err := h.f.Close(); err != nil {
		return fmt.Errorf("vfs: close host file: %w", err)
	}
	return nil
}
