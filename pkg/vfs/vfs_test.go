// ABOUTME: Integration tests for the VFS facade
// ABOUTME: Verifies directory/file creation, delete, persistence across reopen, and weak-handle semantics

package vfs

import (
	"io"
	"path/filepath"
	"testing"
)

func openTestVfs(t *testing.T) (*Vfs, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.vfs")
	v, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return v, path
}

func TestCreateDirAndFile(t *testing.T) {
	v, _ := openTestVfs(t)
	defer v.Close()

	if err := v.CreateDir("a"); err != nil {
		t.Fatalf("CreateDir(a): %v", err)
	}
	if err := v.CreateDir("a/b"); err != nil {
		t.Fatalf("CreateDir(a/b): %v", err)
	}
	f, err := v.Create("a/b/x")
	if err != nil {
		t.Fatalf("Create(a/b/x): %v", err)
	}
	if _, err := f.Write([]byte("Hello World!")); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func TestCreateDuplicateNameRejected(t *testing.T) {
	v, _ := openTestVfs(t)
	defer v.Close()

	if _, err := v.Create("dup"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := v.Create("dup"); err != ErrNameAlreadyInUse {
		t.Fatalf("got %v, want ErrNameAlreadyInUse", err)
	}
	if err := v.CreateDir("dup"); err != ErrNameAlreadyInUse {
		t.Fatalf("got %v, want ErrNameAlreadyInUse", err)
	}
}

func TestCreateUnderMissingParentFails(t *testing.T) {
	v, _ := openTestVfs(t)
	defer v.Close()

	if _, err := v.Create("missing/x"); err != ErrDirectoryNotFound {
		t.Fatalf("got %v, want ErrDirectoryNotFound", err)
	}
}

func TestOpenFileOnDirectoryFails(t *testing.T) {
	v, _ := openTestVfs(t)
	defer v.Close()

	if err := v.CreateDir("d"); err != nil {
		t.Fatalf("CreateDir: %v", err)
	}
	if _, err := v.OpenFile("d"); err != ErrFileNotFound {
		t.Fatalf("got %v, want ErrFileNotFound", err)
	}
}

// Scenario: data persistency — create dir a, dir a/b, file a/b/x, write
// "Hello World!", close, reopen, read back.
func TestDataPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.vfs")

	v, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := v.CreateDir("a"); err != nil {
		t.Fatalf("CreateDir(a): %v", err)
	}
	if err := v.CreateDir("a/b"); err != nil {
		t.Fatalf("CreateDir(a/b): %v", err)
	}
	f, err := v.Create("a/b/x")
	if err != nil {
		t.Fatalf("Create(a/b/x): %v", err)
	}
	if _, err := f.Write([]byte("Hello World!")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := v.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	v2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer v2.Close()

	f2, err := v2.OpenFile("a/b/x")
	if err != nil {
		t.Fatalf("OpenFile after reopen: %v", err)
	}
	got, err := io.ReadAll(asReader(f2))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "Hello World!" {
		t.Fatalf("got %q, want %q", got, "Hello World!")
	}
}

// Scenario: delete frees pages. Write 3.5 pages worth of bytes (4 content
// pages), confirm they're allocated, delete, confirm they're freed.
func TestDeleteFreesContentPages(t *testing.T) {
	v, _ := openTestVfs(t)
	defer v.Close()

	f, err := v.Create("f")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	payload := make([]byte, 3*PageSize+PageSize/2)
	if _, err := f.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	eng, err := v.handle.upgrade()
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	_, rec, err := eng.resolver.ResolveLeaf("f")
	if err != nil {
		t.Fatalf("ResolveLeaf: %v", err)
	}
	pages := ceilDivPages(rec.Size)
	if pages != 4 {
		t.Fatalf("got %d content pages, want 4", pages)
	}
	for p := rec.Contents; p < rec.Contents+pages; p++ {
		if allocated, _ := eng.bitmap.IsAllocated(p); !allocated {
			t.Fatalf("page %d should be allocated before delete", p)
		}
	}

	if err := v.Delete("f"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for p := rec.Contents; p < rec.Contents+pages; p++ {
		if allocated, _ := eng.bitmap.IsAllocated(p); allocated {
			t.Fatalf("page %d should be free after delete", p)
		}
	}

	if _, err := v.OpenFile("f"); err != ErrFileNotFound {
		t.Fatalf("got %v, want ErrFileNotFound", err)
	}
}

func TestDeleteDirectoryRemovesDescendants(t *testing.T) {
	v, _ := openTestVfs(t)
	defer v.Close()

	if err := v.CreateDir("a"); err != nil {
		t.Fatalf("CreateDir(a): %v", err)
	}
	if err := v.CreateDir("a/b"); err != nil {
		t.Fatalf("CreateDir(a/b): %v", err)
	}
	if _, err := v.Create("a/b/x"); err != nil {
		t.Fatalf("Create(a/b/x): %v", err)
	}
	if _, err := v.Create("a/y"); err != nil {
		t.Fatalf("Create(a/y): %v", err)
	}

	if err := v.Delete("a"); err != nil {
		t.Fatalf("Delete(a): %v", err)
	}

	if _, err := v.OpenFile("a/b/x"); err != ErrDirectoryNotFound && err != ErrFileNotFound {
		t.Fatalf("got %v after deleting ancestor", err)
	}
}

// Scenario: file-table overflow. On a fresh store with default page size,
// creating P/R + 1 files forces the table to relocate into a 2-page run.
func TestFileTableOverflowRelocates(t *testing.T) {
	v, _ := openTestVfs(t)
	defer v.Close()

	count := PageSize/RecordSize + 1
	for i := 0; i < count; i++ {
		name := "f" + itoa(i)
		if _, err := v.Create(name); err != nil {
			t.Fatalf("Create(%s) [%d/%d]: %v", name, i, count, err)
		}
	}

	eng, err := v.handle.upgrade()
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if eng.loc.Page != InitialTablePage {
		t.Fatalf("got file table page %d, want %d", eng.loc.Page, InitialTablePage)
	}
	if eng.loc.PageCount != 2 {
		t.Fatalf("got file table page count %d, want 2", eng.loc.PageCount)
	}
}

// Scenario: stale handle after engine close. Operations on a handle whose
// Vfs has been closed fail with ErrFileNotFound rather than panicking or
// touching a closed file descriptor.
func TestHandleFailsAfterClose(t *testing.T) {
	v, _ := openTestVfs(t)

	f, err := v.Create("f")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := v.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := f.Write([]byte("x")); err != ErrFileNotFound {
		t.Fatalf("Write after close: got %v, want ErrFileNotFound", err)
	}
	if _, err := f.Read(make([]byte, 1)); err != ErrFileNotFound {
		t.Fatalf("Read after close: got %v, want ErrFileNotFound", err)
	}
	if _, err := f.Metadata(); err != ErrFileNotFound {
		t.Fatalf("Metadata after close: got %v, want ErrFileNotFound", err)
	}
}

// Scenario: iterator sees deletion. An entry deleted after ReadDir is
// called, but before the iterator reaches it, yields ErrFileNotFound for
// that one call; iteration continues past it rather than stopping.
func TestDirIteratorSkipsDeletedEntry(t *testing.T) {
	v, _ := openTestVfs(t)
	defer v.Close()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := v.Create(name); err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
	}

	it, err := v.ReadDir("")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if err := v.Delete("b"); err != nil {
		t.Fatalf("Delete(b): %v", err)
	}

	seen := map[string]bool{}
	misses := 0
	for {
		entry, err := it.Next()
		if err == io.EOF {
			break
		}
		if err == ErrFileNotFound {
			misses++
			continue
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		seen[entry.Name] = true
	}

	if seen["b"] {
		t.Fatal("deleted entry b should not be returned as live data")
	}
	if misses != 1 {
		t.Fatalf("got %d ErrFileNotFound entries, want 1 (for b)", misses)
	}
	if !seen["a"] || !seen["c"] {
		t.Fatalf("expected to see a and c, got %+v", seen)
	}
}

// Scenario: out of memory on create. A page store artificially limited to
// the addressable range should surface ErrOutOfMemory rather than looping
// forever or corrupting state, once every page is exhausted.
func TestOutOfMemoryOnCreate(t *testing.T) {
	v, _ := openTestVfs(t)
	defer v.Close()

	eng, err := v.handle.upgrade()
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	// Mark every addressable page allocated except the ones already in use,
	// so the very next FindFreeSlot-triggered Grow (or any future content
	// allocation) has nowhere to go.
	if err := eng.bitmap.SetRange(InitialTablePage+1, MaxAddressablePages, true); err != nil {
		t.Fatalf("SetRange: %v", err)
	}

	// The table's one page holds PageSize/RecordSize slots; fill them all so
	// the next Create is forced to Grow, which must fail with ErrOutOfMemory
	// since there is no free page left anywhere.
	slots := PageSize / RecordSize
	for i := 0; i < slots; i++ {
		if _, err := v.Create("f" + itoa(i)); err != nil {
			if err == ErrOutOfMemory {
				return
			}
			t.Fatalf("Create f%d: %v", i, err)
		}
	}
	if _, err := v.Create("overflow"); err != ErrOutOfMemory {
		t.Fatalf("got %v, want ErrOutOfMemory", err)
	}
}

func TestSeekStartRejectsEOF(t *testing.T) {
	v, _ := openTestVfs(t)
	defer v.Close()

	f, err := v.Create("f")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Seek(3, SeekStart); err != ErrInvalidSeek {
		t.Fatalf("Seek(Start, size): got %v, want ErrInvalidSeek", err)
	}
	if err := f.Seek(2, SeekStart); err != nil {
		t.Fatalf("Seek(Start, size-1): %v", err)
	}
}

// TestSeekEndUnbounded documents the deliberately-preserved quirk: a large
// negative End offset is not rejected, it wraps the cursor the same way the
// source's u64 arithmetic would. A subsequent Read simply observes the
// cursor as past EOF.
func TestSeekEndUnbounded(t *testing.T) {
	v, _ := openTestVfs(t)
	defer v.Close()

	f, err := v.Create("f")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := f.Seek(-1000, SeekEnd); err != nil {
		t.Fatalf("Seek(End, -1000) should not error, got %v", err)
	}
	n, err := f.Read(make([]byte, 1))
	if n != 0 || err != io.EOF {
		t.Fatalf("Read after wrapped seek: n=%d err=%v, want n=0 err=io.EOF", n, err)
	}
}

// itoa avoids pulling in strconv for a handful of small, non-negative ints
// in test names.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// asReader adapts *File to io.Reader for io.ReadAll; File.Read already
// matches the io.Reader signature, this just names the conversion.
func asReader(f *File) io.Reader { return f }
