package djvu

import "encoding/binary"

// Page is one page of a Document (spec §3).
type Page struct {
	Index  uint32
	Width  int
	Height int
	DPI    uint16
	Gamma  float32
	Version uint8

	// Background is the page's continuous-tone layer, encoded as BG44.
	Background *Layer
	// ForegroundMask is the page's bilevel text/line-art mask, encoded as Sjbz.
	ForegroundMask *Layer
	// ForegroundColor is the page's continuous-tone foreground, encoded as FG44
	// (plus an FGbz palette chunk).
	ForegroundColor *Layer

	Annotations []byte
	Text        []byte

	// Dictionaries lists shared-dictionary IDs this page's Sjbz references,
	// in insertion order (spec §4.8: "INCL chunks ... in insertion order").
	Dictionaries []string
}

// normalize applies document-wide defaults to zero-valued fields.
func (p Page) normalize(opts Options) Page {
	if p.DPI == 0 {
		p.DPI = opts.DPI
	}
	if p.Gamma == 0 {
		p.Gamma = opts.Gamma
	}
	if p.Version == 0 {
		p.Version = opts.Version
	}
	return p
}

func (p *Page) valid() error {
	if p.Width <= 0 || p.Height <= 0 {
		return ErrInvalidInput
	}
	if p.Background != nil && p.Background.Pixmap != nil && !p.Background.Pixmap.valid() {
		return ErrInvalidInput
	}
	if p.ForegroundColor != nil && p.ForegroundColor.Pixmap != nil && !p.ForegroundColor.Pixmap.valid() {
		return ErrInvalidInput
	}
	if p.ForegroundMask != nil && p.ForegroundMask.Bitmap != nil && !p.ForegroundMask.Bitmap.valid() {
		return ErrInvalidInput
	}
	if p.ForegroundMask != nil && p.ForegroundMask.Reference != nil && !p.ForegroundMask.Reference.valid() {
		return ErrInvalidInput
	}
	return nil
}

// Encode assembles the page's FORM:DJVU byte buffer (spec §4.8's fixed
// chunk order): INFO, INCL*, Sjbz?, FGbz?, FG44?, BG44?, TXTz/TXTa?,
// ANTz/ANTa?.
func (p *Page) Encode(opts Options) ([]byte, error) {
	if err := p.valid(); err != nil {
		return nil, &PageError{Index: p.Index, Err: err}
	}

	c := NewChunkBuilder()
	c.BeginForm([4]byte{'D', 'J', 'V', 'U'})

	c.WriteChunk([4]byte{'I', 'N', 'F', 'O'}, p.encodeInfo())

	for _, id := range p.Dictionaries {
		payload := append([]byte(id), 0)
		c.WriteChunk([4]byte{'I', 'N', 'C', 'L'}, payload)
	}

	if p.ForegroundMask != nil && p.ForegroundMask.Bitmap != nil {
		if p.ForegroundMask.Reference != nil {
			c.WriteChunk([4]byte{'S', 'j', 'b', 'z'}, EncodeSjbzRefined(
				p.ForegroundMask.Bitmap, p.ForegroundMask.Reference,
				p.ForegroundMask.OffsetX, p.ForegroundMask.OffsetY))
		} else {
			c.WriteChunk([4]byte{'S', 'j', 'b', 'z'}, EncodeSjbz(p.ForegroundMask.Bitmap))
		}
	}

	if p.ForegroundColor != nil && p.ForegroundColor.Pixmap != nil {
		c.WriteChunk([4]byte{'F', 'G', 'b', 'z'}, encodeFGbzPalette(p.ForegroundColor.Pixmap))
		c.WriteChunk([4]byte{'F', 'G', '4', '4'}, encodeContinuousTone(p.ForegroundColor.Pixmap, opts.Quality))
	}

	if p.Background != nil && p.Background.Pixmap != nil {
		c.WriteChunk([4]byte{'B', 'G', '4', '4'}, encodeContinuousTone(p.Background.Pixmap, opts.Quality))
	}

	if len(p.Text) > 0 {
		c.WriteChunk([4]byte{'T', 'X', 'T', 'z'}, BZZEncode(p.Text))
	}
	if len(p.Annotations) > 0 {
		c.WriteChunk([4]byte{'A', 'N', 'T', 'z'}, BZZEncode(p.Annotations))
	}

	c.EndForm()
	return c.Bytes(), nil
}

// encodeInfo builds the 10-byte INFO payload (spec §4.8 item 1).
func (p *Page) encodeInfo() []byte {
	out := make([]byte, 10)
	binary.BigEndian.PutUint16(out[0:2], uint16(p.Width))
	binary.BigEndian.PutUint16(out[2:4], uint16(p.Height))
	out[4] = 0 // minor version
	out[5] = p.Version
	binary.BigEndian.PutUint16(out[6:8], p.DPI)
	out[8] = byte(p.Gamma*10 + 0.5)
	out[9] = 0 // rotation
	return out
}

// encodeFGbzPalette builds a minimal single-entry FGbz palette: version
// byte, entry count, then one averaged RGB triple. A full palette
// quantiser is beyond this encoder's scope (spec §1 non-goals).
func encodeFGbzPalette(pix *Pixmap) []byte {
	var rs, gs, bs, n int
	for y := 0; y < pix.Height; y++ {
		for x := 0; x < pix.Width; x++ {
			r, g, b := pix.At(x, y)
			rs += int(r)
			gs += int(g)
			bs += int(b)
			n++
		}
	}
	if n == 0 {
		n = 1
	}
	return []byte{1, 1, byte(rs / n), byte(gs / n), byte(bs / n)}
}

// encodeContinuousTone builds an FG44/BG44 payload: a small header
// (version, chroma flag, dimensions, slice count) followed by the ZP
// bit-stream for luma and, for color pixmaps, the two chroma planes
// (spec §4.4: "FG44 and BG44 chunks each carry a chunk header ... followed
// by the ZP bit-stream").
func encodeContinuousTone(pix *Pixmap, quality int) []byte {
	isColor := pix.Space == RGB
	var opp *Opponent
	if isColor {
		opp = RGBToOpponent(pix, true)
	} else {
		y := NewCoeffPlane(pix.Width, pix.Height)
		for row := 0; row < pix.Height; row++ {
			for col := 0; col < pix.Width; col++ {
				r, _, _ := pix.At(col, row)
				y.C[row*y.RowBytes+col] = int16(r)
			}
		}
		opp = &Opponent{Y: y}
	}

	opp.Y.ForwardTransformTo(nil, pyramidMaxScale)
	startBit := maxAbsBits(opp.Y)
	budget := budgetForQuality(pix.Width*pix.Height, quality)
	lumaBytes := EncodePyramid(opp.Y, startBit, budget)

	var cbBytes, crBytes []byte
	if isColor {
		opp.Cb.ForwardTransformTo(nil, pyramidMaxScale)
		opp.Cr.ForwardTransformTo(nil, pyramidMaxScale)
		chromaBudget := budget
		if chromaBudget > 0 {
			chromaBudget /= 4
		}
		cbBytes = EncodePyramid(opp.Cb, startBit, chromaBudget)
		crBytes = EncodePyramid(opp.Cr, startBit, chromaBudget)
	}

	header := make([]byte, 8)
	header[0] = 1 // version
	if isColor {
		header[1] = 1
	}
	binary.BigEndian.PutUint16(header[2:4], uint16(pix.Width))
	binary.BigEndian.PutUint16(header[4:6], uint16(pix.Height))
	header[6] = byte(startBit + 1) // slice count: bit-planes startBit..0 (the byte budget may stop coding sooner)
	header[7] = 0

	out := header
	out = appendLenPrefixed(out, lumaBytes)
	if isColor {
		out = appendLenPrefixed(out, cbBytes)
		out = appendLenPrefixed(out, crBytes)
	}
	return out
}

func appendLenPrefixed(dst, data []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, data...)
	return dst
}

// maxAbsBits returns the bit index of the highest set bit across plane's
// coefficients (the starting bit-plane for successive-approximation
// coding), or 0 for an all-zero plane.
func maxAbsBits(plane *CoeffPlane) int {
	var maxAbs int32
	for _, v := range plane.C {
		a := int32(v)
		if a < 0 {
			a = -a
		}
		if a > maxAbs {
			maxAbs = a
		}
	}
	bits := 0
	for (int32(1) << uint(bits+1)) <= maxAbs {
		bits++
	}
	return bits
}

// budgetForQuality returns the per-plane byte budget for the successive-
// approximation coder (spec §6: "quality ... scales IW44 byte budget;
// 100 ≈ encode all bit-planes"). 0 means unlimited.
func budgetForQuality(area, quality int) int {
	if quality >= 100 {
		return 0
	}
	budget := area * quality / 400
	if budget < 64 {
		budget = 64
	}
	return budget
}
