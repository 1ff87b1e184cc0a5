package djvu

import "encoding/binary"

// JB2 bilevel coder: direct (no-library) Sjbz encoding (spec §4.6).
//
// This is a direct generic-region encoding of the whole bitmap: each
// pixel is ZP-coded under a context drawn from a fixed causal
// neighbourhood of already-coded pixels, the same raster-scan
// arithmetic-coding shape as JBIG2's generic region decoder (grounded on
// jdeng-gojbig2/internal/jbig2/grd_proc.go's GRDProc, read-only reference
// — not imported, see SPEC_FULL.md §10) but with this package's own ZP
// coder and its own (smaller, non-adaptive) template rather than
// GBTemplate 0's pixel layout. Symbol-library extraction (Djbz) is not
// built.

// genericTemplate is the 10-pixel causal neighbourhood used as the ZP
// context for each bitmap pixel: left-neighbours on the current row plus
// the two rows above, none of which reference a not-yet-coded pixel.
var genericTemplate = [10][2]int{
	{-1, 0}, {-2, 0},
	{0, -1}, {-1, -1}, {1, -1}, {-2, -1}, {2, -1},
	{0, -2}, {-1, -2}, {1, -2},
}

// genericContext holds the 1024 adaptive ZP contexts for one generic
// region encode (2^10 possible neighbourhood patterns).
type genericContext struct {
	ctx [1024]uint8
}

func genericTemplateContext(bm *Bitmap, x, y int) uint16 {
	var c uint16
	for i, d := range genericTemplate {
		xx, yy := x+d[0], y+d[1]
		var bit uint16
		if xx >= 0 && yy >= 0 && xx < bm.Width && yy < bm.Height && bm.Get(xx, yy) {
			bit = 1
		}
		c |= bit << uint(i)
	}
	return c
}

// EncodeGenericBitmap ZP-codes bm in raster order under the causal
// neighbourhood context, writing into enc.
func EncodeGenericBitmap(enc *ZPEncoder, gc *genericContext, bm *Bitmap) {
	for y := 0; y < bm.Height; y++ {
		for x := 0; x < bm.Width; x++ {
			ctx := genericTemplateContext(bm, x, y)
			bit := 0
			if bm.Get(x, y) {
				bit = 1
			}
			enc.EncodeBit(&gc.ctx[ctx], bit)
		}
	}
}

// EncodeSjbz produces a direct-encoded Sjbz chunk payload: an 8-byte
// width/height header followed by the ZP-coded generic region stream.
func EncodeSjbz(bm *Bitmap) []byte {
	enc := NewZPEncoder()
	var gc genericContext
	EncodeGenericBitmap(enc, &gc, bm)
	body := enc.Flush()

	out := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(bm.Width))
	binary.BigEndian.PutUint32(out[4:8], uint32(bm.Height))
	copy(out[8:], body)
	return out
}

// RefinementContext holds the adaptive ZP contexts for cross-coding a
// matched symbol instance against a reference bitmap (spec §4.6's symbol
// library hook). 2^11 entries: 4 causal bits from the bitmap being coded,
// 7 bits from a window into the reference bitmap.
//
// Grounded on context.rs's get_refinement_context_with_base, the context
// function actually wired into encode_bitmap_refine (a separate, unused
// 13-bit get_refinement_context also exists there but nothing calls it,
// so it has no Go counterpart here).
type RefinementContext struct {
	ctx [1 << 11]uint8
}

// refinementContextValue computes the 11-bit context for the pixel at
// (x, y) in current, given already-coded pixels of current and a 3x3
// window into reference displaced by (cxOffset, cyOffset). Pixels outside
// either bitmap's bounds read as 0 (white).
func refinementContextValue(current, reference *Bitmap, x, y int, cxOffset, cyOffset int32) uint16 {
	cur := func(xx, yy int) uint16 {
		if current.Get(xx, yy) {
			return 1
		}
		return 0
	}
	ref := func(xx, yy int) uint16 {
		rx, ry := xx+int(cxOffset), yy+int(cyOffset)
		if reference.Get(rx, ry) {
			return 1
		}
		return 0
	}

	return cur(x-1, y-1)<<10 |
		cur(x, y-1)<<9 |
		cur(x+1, y-1)<<8 |
		cur(x-1, y)<<7 |
		ref(x, y-1)<<6 |
		ref(x-1, y)<<5 |
		ref(x, y)<<4 |
		ref(x+1, y)<<3 |
		ref(x-1, y+1)<<2 |
		ref(x, y+1)<<1 |
		ref(x+1, y+1)<<0
}

// EncodeBitmapRefine ZP-codes bm in raster order, cross-coded against
// reference displaced by (cxOffset, cyOffset), for a symbol instance that
// is a near-match of a dictionary glyph rather than a fresh shape.
func EncodeBitmapRefine(enc *ZPEncoder, rc *RefinementContext, bm, reference *Bitmap, cxOffset, cyOffset int32) {
	coded := NewBitmap(bm.Width, bm.Height)
	for y := 0; y < bm.Height; y++ {
		for x := 0; x < bm.Width; x++ {
			ctx := refinementContextValue(coded, reference, x, y, cxOffset, cyOffset)
			bit := 0
			if bm.Get(x, y) {
				bit = 1
			}
			enc.EncodeBit(&rc.ctx[ctx], bit)
			if bit == 1 {
				coded.Set(x, y, true)
			}
		}
	}
}

// EncodeSjbzRefined produces a refinement-coded Sjbz chunk payload: the
// same 8-byte width/height header as EncodeSjbz, the 8-byte
// cx_offset/cy_offset displacement, then the cross-coded ZP stream.
func EncodeSjbzRefined(bm, reference *Bitmap, cxOffset, cyOffset int32) []byte {
	enc := NewZPEncoder()
	var rc RefinementContext
	EncodeBitmapRefine(enc, &rc, bm, reference, cxOffset, cyOffset)
	body := enc.Flush()

	out := make([]byte, 16+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(bm.Width))
	binary.BigEndian.PutUint32(out[4:8], uint32(bm.Height))
	binary.BigEndian.PutUint32(out[8:12], uint32(cxOffset))
	binary.BigEndian.PutUint32(out[12:16], uint32(cyOffset))
	copy(out[16:], body)
	return out
}
