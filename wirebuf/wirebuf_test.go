package wirebuf

import "testing"

// TestNewSliceAndRelease verifies New allocates a buffer of the
// requested size and that Release past the last reference clears it.
func TestNewSliceAndRelease(t *testing.T) {
	b := New(100)
	if b.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", b.Len())
	}
	view := b.Slice(10, 20)
	if len(view) != 10 {
		t.Fatalf("Slice length = %d, want 10", len(view))
	}
	b.Release()
	if b.Bytes() != nil {
		t.Fatal("Bytes() should be nil after the last Release")
	}
}

// TestAcquireReleaseKeepsBufferAliveUntilLastRelease verifies the
// backing array is only returned to the pool once every Acquire has a
// matching Release.
func TestAcquireReleaseKeepsBufferAliveUntilLastRelease(t *testing.T) {
	b := New(64)
	b.Acquire() // second outstanding reference

	b.Release() // drops to 1
	if b.Bytes() == nil {
		t.Fatal("buffer released too early: one reference still outstanding")
	}

	b.Release() // drops to 0
	if b.Bytes() != nil {
		t.Fatal("buffer should be released once the last reference drops")
	}
}

// TestWrapDoesNotPoolBackingArray verifies Wrap adopts the given slice
// directly; Release on it must not corrupt the pool tiers used by New.
func TestWrapDoesNotPoolBackingArray(t *testing.T) {
	data := []byte("external source bytes")
	b := Wrap(data)
	if string(b.Bytes()) != "external source bytes" {
		t.Fatal("Wrap should adopt the given slice verbatim")
	}
	b.Release()
}

// TestMultipleTierSizesRoundTrip exercises several size classes to make
// sure the tier lookup picks a buffer at least as large as requested.
func TestMultipleTierSizesRoundTrip(t *testing.T) {
	for _, size := range []int{1, 4096, 4097, 1 << 20, 1 << 24} {
		b := New(size)
		if b.Len() != size {
			t.Fatalf("New(%d).Len() = %d", size, b.Len())
		}
		b.Release()
	}
}
