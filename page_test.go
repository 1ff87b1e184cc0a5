package djvu

import (
	"bytes"
	"testing"
)

func TestPageEncodeMinimal(t *testing.T) {
	p := &Page{Index: 0, Width: 100, Height: 100}
	p = &[]Page{p.normalize(DefaultOptions())}[0]

	out, err := p.Encode(DefaultOptions())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(out[:4], []byte("FORM")) {
		t.Fatalf("expected FORM at start, got %q", out[:4])
	}
	if !bytes.Equal(out[8:12], []byte("DJVU")) {
		t.Fatalf("expected DJVU secondary id, got %q", out[8:12])
	}
	if !bytes.Equal(out[12:16], []byte("INFO")) {
		t.Fatalf("expected INFO first chunk, got %q", out[12:16])
	}
}

// TestPageInfoWidthHeight covers scenario S1's INFO payload check.
func TestPageInfoWidthHeight(t *testing.T) {
	p := &Page{Index: 0, Width: 100, Height: 100, DPI: 300, Gamma: 2.2, Version: 26}
	out, err := p.Encode(DefaultOptions())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	infoStart := 20 // FORM(4)+len(4)+DJVU(4)+INFO(4)+len(4)
	got := out[infoStart : infoStart+4]
	want := []byte{0x00, 0x64, 0x00, 0x64}
	if !bytes.Equal(got, want) {
		t.Fatalf("INFO width/height = % x, want % x", got, want)
	}
}

func TestPageEncodeRejectsZeroDims(t *testing.T) {
	p := &Page{Index: 0, Width: 0, Height: 10}
	_, err := p.Encode(DefaultOptions())
	if err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestPageEncodeWithForegroundMask(t *testing.T) {
	bm := checkerboardBitmap(20, 20)
	p := &Page{
		Index:          1,
		Width:          20,
		Height:         20,
		ForegroundMask: &Layer{Bitmap: bm},
	}
	out, err := p.Encode(DefaultOptions())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Contains(out, []byte("Sjbz")) {
		t.Fatal("expected Sjbz chunk in output")
	}
}

func TestPageEncodeWithRefinedForegroundMask(t *testing.T) {
	ref := checkerboardBitmap(20, 20)
	bm := checkerboardBitmap(20, 20)
	bm.Set(2, 2, !bm.Get(2, 2))
	p := &Page{
		Index:          1,
		Width:          20,
		Height:         20,
		ForegroundMask: &Layer{Bitmap: bm, Reference: ref, OffsetX: 0, OffsetY: 0},
	}
	out, err := p.Encode(DefaultOptions())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Contains(out, []byte("Sjbz")) {
		t.Fatal("expected Sjbz chunk in output")
	}
}

func TestPageEncodeWithBackground(t *testing.T) {
	pix := randomPixmap(16, 16, 7)
	p := &Page{
		Index:      2,
		Width:      16,
		Height:     16,
		Background: &Layer{Pixmap: pix},
	}
	out, err := p.Encode(DefaultOptions())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Contains(out, []byte("BG44")) {
		t.Fatal("expected BG44 chunk in output")
	}
}
