package djvu

import "encoding/binary"

// IFF chunk writer: [id:4][len:u32 BE][payload][pad?] framing, with FORM
// nesting via reserve/backpatch (spec §4.7). Structural shape (reserve a
// length field, stream nested content, patch the field on close) is
// grounded on codestream_write.go's marker-segment writer, generalized
// from JPEG2000's flat marker stream to IFF's nested chunk tree.

// djvuMagic is the 4-byte file preamble, outside the IFF chunk structure
// itself (spec §4.7).
var djvuMagic = [4]byte{0x41, 0x54, 0x26, 0x54} // "AT&T"

// ChunkBuilder assembles an IFF byte stream in memory, buffering the
// whole tree so FORM length fields can be back-patched once their
// content is known.
type ChunkBuilder struct {
	buf       []byte
	formStack []int // offsets of each open FORM's reserved length field
}

// NewChunkBuilder returns an empty builder.
func NewChunkBuilder() *ChunkBuilder {
	return &ChunkBuilder{}
}

// WriteMagic appends the file preamble. Callers write it once, before the
// top-level FORM.
func (c *ChunkBuilder) WriteMagic() {
	c.buf = append(c.buf, djvuMagic[:]...)
}

// WriteChunk appends a complete leaf chunk: id, length, payload, and (if
// payload has odd length) one 0x00 pad byte. The length field records
// len(payload) exactly, excluding the pad byte (spec §3: "framed size is
// 8 + payload.len() + (payload.len() & 1) on disk").
func (c *ChunkBuilder) WriteChunk(id [4]byte, payload []byte) {
	c.buf = append(c.buf, id[:]...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	c.buf = append(c.buf, lenBuf[:]...)
	c.buf = append(c.buf, payload...)
	if len(payload)%2 == 1 {
		c.buf = append(c.buf, 0)
	}
}

// BeginForm opens a FORM chunk with the given secondary ID (e.g. "DJVU",
// "DJVM", "DJVI"), reserving its length field for EndForm.
func (c *ChunkBuilder) BeginForm(secondaryID [4]byte) {
	c.buf = append(c.buf, 'F', 'O', 'R', 'M')
	c.formStack = append(c.formStack, len(c.buf))
	c.buf = append(c.buf, 0, 0, 0, 0) // reserved length field
	c.buf = append(c.buf, secondaryID[:]...)
}

// EndForm closes the most recently opened FORM, back-patching its length
// field to the secondary ID plus all nested chunks and their padding
// (spec §4.7), and pads the FORM itself to an even boundary if needed.
func (c *ChunkBuilder) EndForm() {
	n := len(c.formStack)
	off := c.formStack[n-1]
	c.formStack = c.formStack[:n-1]

	length := len(c.buf) - off - 4
	binary.BigEndian.PutUint32(c.buf[off:off+4], uint32(length))
	if length%2 == 1 {
		c.buf = append(c.buf, 0)
	}
}

// Offset returns the current write position, useful for a caller that
// wants to record DIRM offsets while building the top-level FORM:DJVM.
func (c *ChunkBuilder) Offset() int { return len(c.buf) }

// Bytes returns the assembled byte stream. Calling it with any FORM still
// open returns an incomplete (unpatched) stream — callers must match every
// BeginForm with an EndForm first.
func (c *ChunkBuilder) Bytes() []byte { return c.buf }
