package djvu

// ZP adaptive binary arithmetic coder (spec §4.1).
//
// A context is an 8-bit mutable byte holding an index into a 256-entry
// transition table; the low half of the index space (states 0..127)
// represents contexts currently predicting bit 0 as most probable, the
// high half (128..255) predicts bit 1. Each table row gives the
// probability split `z` (the interval width given to the *least*
// probable symbol) plus the next state for each outcome. This mirrors
// the register/renormalization shape of a classic adaptive binary range
// coder (same family as the MQ coder underlying JPEG2000's EBCOT and the
// QM coder underlying JBIG2's arithmetic decoder) built around DjVu's
// own stated semantics: split at `p` (probability of the MPS), renormalize
// while the interval is narrower than 2^15, and flush to guarantee a
// decoder reads back every coded bit.

const (
	zpHalf       = 128
	zpRungCount  = 47
	zpInitA      = 0x8000 // interval width register, renormalised while < 2^15
	zpRenormBits = 15
)

// zpRung is one entry of the probability ladder shared by both polarities.
type zpRung struct {
	z     uint32 // interval width assigned to the least-probable symbol
	nSame uint8  // next rung on a most-probable outcome (same polarity)
	nFlip uint8  // next rung on a least-probable outcome
	flip  bool   // whether a least-probable outcome flips the MPS polarity
}

// zpLadder is the probability ladder: wide splits (near 50/50) at low
// rungs, increasingly skewed splits at high rungs. Shape grounded on the
// MQ coder's probability-estimation table (same monotonically decreasing
// interval-width chain, same "early rungs flip on LPS" pattern); the z
// values are the MQ coder's Qe values, used unchanged.
var zpLadder = [zpRungCount]zpRung{
	{0x5601, 1, 1, true}, {0x3401, 2, 6, false}, {0x1801, 3, 9, false},
	{0x0AC1, 4, 12, false}, {0x0521, 5, 29, false}, {0x0221, 38, 33, false},
	{0x5601, 7, 6, true}, {0x5401, 8, 14, false}, {0x4801, 9, 14, false},
	{0x3801, 10, 14, false}, {0x3001, 11, 17, false}, {0x2401, 12, 18, false},
	{0x1C01, 13, 20, false}, {0x1601, 29, 21, false}, {0x5601, 15, 14, true},
	{0x5401, 16, 14, false}, {0x5101, 17, 15, false}, {0x4801, 18, 16, false},
	{0x3801, 19, 17, false}, {0x3401, 20, 18, false}, {0x3001, 21, 19, false},
	{0x2801, 22, 19, false}, {0x2401, 23, 20, false}, {0x2201, 24, 21, false},
	{0x1C01, 25, 22, false}, {0x1801, 26, 23, false}, {0x1601, 27, 24, false},
	{0x1401, 28, 25, false}, {0x1201, 29, 26, false}, {0x1101, 30, 27, false},
	{0x0AC1, 31, 28, false}, {0x09C1, 32, 29, false}, {0x08A1, 33, 30, false},
	{0x0521, 34, 31, false}, {0x0441, 35, 32, false}, {0x02A1, 36, 33, false},
	{0x0221, 37, 34, false}, {0x0141, 38, 35, false}, {0x0111, 39, 36, false},
	{0x0085, 40, 37, false}, {0x0049, 41, 38, false}, {0x0025, 42, 39, false},
	{0x0015, 43, 40, false}, {0x0009, 44, 41, false}, {0x0005, 45, 42, false},
	{0x0001, 45, 43, false}, {0x5601, 46, 46, false},
}

type zpRow struct {
	z     uint32
	mps   uint8 // 0 or 1: the symbol this state currently predicts
	nmps  uint8 // next state index on a most-probable outcome
	nlps  uint8 // next state index on a least-probable outcome
}

var zpTable [256]zpRow

func init() {
	for half := 0; half < 2; half++ {
		base := half * zpHalf
		other := (1 - half) * zpHalf
		for i := 0; i < zpHalf; i++ {
			idx := base + i
			if i >= zpRungCount {
				// Padding beyond the real ladder self-loops on the final
				// (near-uniform) rung; never reached from a freshly
				// initialised context.
				last := zpLadder[zpRungCount-1]
				zpTable[idx] = zpRow{z: last.z, mps: uint8(half), nmps: uint8(idx), nlps: uint8(idx)}
				continue
			}
			r := zpLadder[i]
			nlps := other + int(r.nFlip)
			if !r.flip {
				nlps = base + int(r.nFlip)
			}
			zpTable[idx] = zpRow{
				z:    r.z,
				mps:  uint8(half),
				nmps: uint8(base + int(r.nSame)),
				nlps: uint8(nlps),
			}
		}
	}
}

// NewZPContext returns a freshly initialised context byte, predicting
// bit 0 with the least committed (near-uniform) probability.
func NewZPContext() uint8 { return 0 }

// ZPEncoder implements the ZP encoder side: encode_bit, encode_bit_fixed,
// and flush (spec §4.1).
type ZPEncoder struct {
	a   uint32 // interval width register
	c   uint32 // code register (accumulates output bits, with carry)
	ct  int    // bits remaining until the next byte is emitted
	buf []byte
	bp  int // index of the last emitted byte, -1 before the first
}

// NewZPEncoder creates an encoder ready to accept encode_bit calls.
func NewZPEncoder() *ZPEncoder {
	e := &ZPEncoder{}
	e.Reset()
	return e
}

// Reset reinitialises the encoder for a new bitstream (e.g. a new page).
func (e *ZPEncoder) Reset() {
	e.a = zpInitA
	e.c = 0
	e.ct = 12
	e.buf = e.buf[:0]
	e.bp = -1
}

// EncodeBit encodes bit under the adaptive context *ctx, updating it
// in place per the transition table.
func (e *ZPEncoder) EncodeBit(ctx *uint8, bit int) {
	row := &zpTable[*ctx]
	if bit == int(row.mps) {
		e.stepMPS(row.z)
		*ctx = row.nmps
	} else {
		e.stepLPS(row.z)
		*ctx = row.nlps
	}
}

// EncodeBitFixed encodes bit using a caller-supplied fixed probability p
// (the interval width given to bit==0, out of zpInitA) without touching
// any adaptive context. Used for housekeeping flags that must not adapt.
// Bit 0 is treated as the fixed coder's "most probable" outcome.
func (e *ZPEncoder) EncodeBitFixed(bit int, p uint32) {
	z := zpInitA - p
	if bit == 0 {
		e.stepMPS(z)
	} else {
		e.stepLPS(z)
	}
}

// stepMPS narrows the interval for the most-probable outcome: shrink `a`
// by the least-probable symbol's width `z`; renormalise (and possibly
// exchange into the LPS sub-interval) only if the remaining width
// underflows the 2^15 threshold.
func (e *ZPEncoder) stepMPS(z uint32) {
	e.a -= z
	if e.a < (1 << zpRenormBits) {
		if e.a < z {
			e.a = z
		} else {
			e.c += z
		}
		e.renormEnc()
		return
	}
	e.c += z
}

// stepLPS narrows the interval for the least-probable outcome; this
// always underflows the threshold (z is always < 2^15), so it always
// renormalises.
func (e *ZPEncoder) stepLPS(z uint32) {
	e.a -= z
	if e.a < z {
		e.c += z
	} else {
		e.a = z
	}
	e.renormEnc()
}

func (e *ZPEncoder) renormEnc() {
	for e.a < (1 << zpRenormBits) {
		e.a <<= 1
		e.c <<= 1
		e.ct--
		if e.ct == 0 {
			e.byteout()
		}
	}
}

func (e *ZPEncoder) byteout() {
	if e.bp < 0 {
		e.buf = append(e.buf, byte(e.c>>19))
		e.bp = 0
		e.c &= 0x7FFFF
		e.ct = 8
		return
	}
	if e.c >= 0x8000000 {
		e.buf[e.bp]++
		for e.buf[e.bp] == 0 && e.bp > 0 {
			e.bp--
			e.buf[e.bp]++
		}
		e.bp = len(e.buf)
		e.buf = append(e.buf, byte((e.c&0x7FFFFFF)>>19))
		e.c &= 0x7FFFF
		e.ct = 8
		return
	}
	e.bp = len(e.buf)
	e.buf = append(e.buf, byte(e.c>>19))
	e.c &= 0x7FFFF
	e.ct = 8
}

// Flush pads the code register so a decoder reading the emitted bytes
// back can recover every encoded bit, and returns the final byte slice.
// Flush may be called only once.
func (e *ZPEncoder) Flush() []byte {
	// The two bytes below drop the register's low 11-ct bits, and the
	// decoder reads zeros past the end; round c up to the next value with
	// those bits clear, which stays inside [c, c+a) since a >= 2^15.
	if e.ct < 11 {
		mask := uint32(1)<<uint(11-e.ct) - 1
		e.c = (e.c + mask) &^ mask
	}
	e.c <<= uint(e.ct)
	e.byteout()
	e.c <<= uint(e.ct)
	e.byteout()
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out
}

// ZPDecoder implements the ZP decoder side, the inverse of ZPEncoder.
// It is used only for this package's own round-trip tests (spec §8
// invariant 3); full document decoding is out of scope (spec §1).
type ZPDecoder struct {
	a    uint32
	c    uint32
	ct   int
	data []byte
	pos  int
}

// NewZPDecoder creates a decoder over an already-flushed ZP bitstream.
func NewZPDecoder(data []byte) *ZPDecoder {
	d := &ZPDecoder{data: data}
	d.a = zpInitA
	if len(d.data) > 0 {
		d.c = uint32(d.data[0]) << 16
	}
	d.pos = 1
	d.ct = 0
	d.bytein()
	d.c <<= 7
	d.ct -= 7
	return d
}

func (d *ZPDecoder) bytein() {
	var next byte
	if d.pos < len(d.data) {
		next = d.data[d.pos]
	}
	d.c |= uint32(next) << 8
	d.pos++
	d.ct += 8
}

// DecodeBit decodes one bit under context *ctx, updating it in place.
// Mirrors EncodeBit's codeMPS/codeLPS split exactly, so for identical
// context sequences it recovers the bit EncodeBit was given.
func (d *ZPDecoder) DecodeBit(ctx *uint8) int {
	row := &zpTable[*ctx]
	z := row.z
	d.a -= z
	chigh := d.c >> 16
	if chigh < z {
		// LPS sub-interval, but if a underflowed too the roles swap
		// (LPS_EXCHANGE): the decoded bit is actually the MPS.
		if d.a < z {
			*ctx = row.nmps
			d.a = z
			d.renorm()
			return int(row.mps)
		}
		d.a = z
		bit := 1 - int(row.mps)
		*ctx = row.nlps
		d.renorm()
		return bit
	}
	d.c -= z << 16
	if d.a < (1 << zpRenormBits) {
		if d.a < z {
			bit := 1 - int(row.mps)
			*ctx = row.nlps
			d.renorm()
			return bit
		}
		*ctx = row.nmps
		d.renorm()
		return int(row.mps)
	}
	*ctx = row.nmps
	return int(row.mps)
}

// DecodeBitFixed decodes one bit using a fixed probability p (the
// interval width given to bit==0), mirroring EncodeBitFixed (bit 0 is
// the fixed coder's "most probable" outcome).
func (d *ZPDecoder) DecodeBitFixed(p uint32) int {
	z := zpInitA - p
	d.a -= z
	chigh := d.c >> 16
	if chigh < z {
		if d.a < z {
			d.a = z
			d.renorm()
			return 0
		}
		d.a = z
		d.renorm()
		return 1
	}
	d.c -= z << 16
	if d.a < (1 << zpRenormBits) {
		if d.a < z {
			d.renorm()
			return 1
		}
		d.renorm()
		return 0
	}
	return 0
}

func (d *ZPDecoder) renorm() {
	for d.a < (1 << zpRenormBits) {
		if d.ct == 0 {
			d.bytein()
		}
		d.a <<= 1
		d.c <<= 1
		d.ct--
	}
}
