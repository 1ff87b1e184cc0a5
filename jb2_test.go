package djvu

import (
	"encoding/binary"
	"testing"
)

func checkerboardBitmap(w, h int) *Bitmap {
	bm := NewBitmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bm.Set(x, y, (x+y)%2 == 0)
		}
	}
	return bm
}

func TestEncodeSjbzHeader(t *testing.T) {
	bm := checkerboardBitmap(20, 10)
	out := EncodeSjbz(bm)
	if len(out) < 8 {
		t.Fatalf("Sjbz payload too short: %d bytes", len(out))
	}
	w := binary.BigEndian.Uint32(out[0:4])
	h := binary.BigEndian.Uint32(out[4:8])
	if w != 20 || h != 10 {
		t.Fatalf("header = %dx%d, want 20x10", w, h)
	}
}

func TestEncodeSjbzDeterministic(t *testing.T) {
	bm1 := checkerboardBitmap(15, 15)
	bm2 := checkerboardBitmap(15, 15)
	out1 := EncodeSjbz(bm1)
	out2 := EncodeSjbz(bm2)
	if len(out1) != len(out2) {
		t.Fatalf("nondeterministic lengths: %d vs %d", len(out1), len(out2))
	}
	for i := range out1 {
		if out1[i] != out2[i] {
			t.Fatalf("nondeterministic byte at %d", i)
		}
	}
}

func TestEncodeSjbzUniformCompressesWell(t *testing.T) {
	bm := NewBitmap(64, 64) // all zero: maximally compressible
	out := EncodeSjbz(bm)
	if len(out) >= 64*64/8 {
		t.Fatalf("expected compression on an all-blank bitmap, got %d bytes", len(out))
	}
}

func TestEncodeSjbzRefinedHeader(t *testing.T) {
	ref := checkerboardBitmap(20, 10)
	bm := checkerboardBitmap(20, 10)
	bm.Set(3, 3, !bm.Get(3, 3)) // a near-match, not identical
	out := EncodeSjbzRefined(bm, ref, 0, 0)
	if len(out) < 16 {
		t.Fatalf("refined Sjbz payload too short: %d bytes", len(out))
	}
	w := binary.BigEndian.Uint32(out[0:4])
	h := binary.BigEndian.Uint32(out[4:8])
	cx := int32(binary.BigEndian.Uint32(out[8:12]))
	cy := int32(binary.BigEndian.Uint32(out[12:16]))
	if w != 20 || h != 10 || cx != 0 || cy != 0 {
		t.Fatalf("header = %dx%d off=(%d,%d), want 20x10 off=(0,0)", w, h, cx, cy)
	}
}

func TestEncodeSjbzRefinedIdenticalCompressesBetterThanDirect(t *testing.T) {
	bm := checkerboardBitmap(32, 32)
	ref := checkerboardBitmap(32, 32)
	direct := EncodeSjbz(bm)
	refined := EncodeSjbzRefined(bm, ref, 0, 0)
	// Compare the coded streams only: the refined payload carries a 16-byte
	// header, the direct one an 8-byte header.
	refinedBody, directBody := len(refined)-16, len(direct)-8
	if refinedBody >= directBody {
		t.Fatalf("refinement coding against an identical reference should compress better than direct coding: refined=%d direct=%d", refinedBody, directBody)
	}
}

func TestRefinementContextValueOutOfBoundsIsWhite(t *testing.T) {
	cur := NewBitmap(4, 4)
	ref := NewBitmap(4, 4)
	if ctx := refinementContextValue(cur, ref, 0, 0, 0, 0); ctx != 0 {
		t.Fatalf("context at origin with blank bitmaps = %d, want 0", ctx)
	}
}

func TestGenericTemplateContextCausal(t *testing.T) {
	bm := checkerboardBitmap(5, 5)
	// The context at (0,0) must not depend on any pixel other than
	// out-of-bounds (always 0), since no neighbour is in bounds.
	if ctx := genericTemplateContext(bm, 0, 0); ctx != 0 {
		t.Fatalf("context at origin = %d, want 0 (no in-bounds neighbours)", ctx)
	}
}
