// ABOUTME: Tests for the allocation bitmap
// ABOUTME: Verifies set/range operations and first-fit allocation with the reallocating hint

package vfs

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *pageStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bitmap.vfs")
	host, err := OpenOSFile(path)
	if err != nil {
		t.Fatalf("OpenOSFile: %v", err)
	}
	store := newPageStore(host)
	if err := store.ensureLengthPages(BitmapPage + 1); err != nil {
		t.Fatalf("ensureLengthPages: %v", err)
	}
	return store
}

func TestBitmapSetAndIsAllocated(t *testing.T) {
	b := newBitmap(newTestStore(t))

	for _, p := range []uint64{0, 1, 7, 8, 9, 4095} {
		allocated, err := b.IsAllocated(p)
		if err != nil {
			t.Fatalf("IsAllocated(%d): %v", p, err)
		}
		if allocated {
			t.Fatalf("page %d allocated before any Set", p)
		}
	}

	if err := b.Set(8, true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	allocated, err := b.IsAllocated(8)
	if err != nil || !allocated {
		t.Fatalf("page 8 should be allocated, got %v, %v", allocated, err)
	}
	if allocated, _ := b.IsAllocated(7); allocated {
		t.Fatal("page 7 should still be free")
	}
	if allocated, _ := b.IsAllocated(9); allocated {
		t.Fatal("page 9 should still be free")
	}
}

func TestBitmapSetRange(t *testing.T) {
	b := newBitmap(newTestStore(t))

	if err := b.SetRange(10, 14, true); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	for p := uint64(10); p < 14; p++ {
		if allocated, _ := b.IsAllocated(p); !allocated {
			t.Fatalf("page %d should be allocated", p)
		}
	}
	if allocated, _ := b.IsAllocated(14); allocated {
		t.Fatal("page 14 should be free (end is exclusive)")
	}

	if err := b.SetRange(10, 14, false); err != nil {
		t.Fatalf("SetRange free: %v", err)
	}
	for p := uint64(10); p < 14; p++ {
		if allocated, _ := b.IsAllocated(p); allocated {
			t.Fatalf("page %d should be free again", p)
		}
	}
}

func TestBitmapFirstFitLowestStart(t *testing.T) {
	b := newBitmap(newTestStore(t))

	if err := b.SetRange(0, 3, true); err != nil {
		t.Fatalf("SetRange: %v", err)
	}

	start, ok, err := b.FirstFit(2, PageRange{})
	if err != nil {
		t.Fatalf("FirstFit: %v", err)
	}
	if !ok {
		t.Fatal("expected a fit")
	}
	if start != 3 {
		t.Fatalf("got start %d, want 3", start)
	}
}

func TestBitmapFirstFitReallocatingHint(t *testing.T) {
	b := newBitmap(newTestStore(t))

	if err := b.SetRange(0, 3, true); err != nil {
		t.Fatalf("SetRange: %v", err)
	}

	// Without the hint, pages 0-2 are occupied, so the first fit for 3 pages
	// starts at page 3.
	start, ok, err := b.FirstFit(3, PageRange{})
	if err != nil || !ok || start != 3 {
		t.Fatalf("FirstFit without hint: start=%d ok=%v err=%v", start, ok, err)
	}

	// With pages 0-2 marked reallocating, those pages count as free too, so a
	// 3-page run can start right at page 0.
	start, ok, err = b.FirstFit(3, PageRange{Start: 0, End: 3})
	if err != nil {
		t.Fatalf("FirstFit with hint: %v", err)
	}
	if !ok || start != 0 {
		t.Fatalf("FirstFit with hint: start=%d ok=%v", start, ok)
	}
}

func TestBitmapHighestAllocatedPage(t *testing.T) {
	b := newBitmap(newTestStore(t))

	if _, ok, err := b.HighestAllocatedPage(); err != nil || ok {
		t.Fatalf("expected no allocated pages, ok=%v err=%v", ok, err)
	}

	if err := b.SetRange(0, 5, true); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	if err := b.Set(100, true); err != nil {
		t.Fatalf("Set: %v", err)
	}

	highest, ok, err := b.HighestAllocatedPage()
	if err != nil || !ok {
		t.Fatalf("HighestAllocatedPage: highest=%d ok=%v err=%v", highest, ok, err)
	}
	if highest != 100 {
		t.Fatalf("got highest %d, want 100", highest)
	}
}
