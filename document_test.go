package djvu

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDocumentSingleEmptyPageMagic covers scenario S1.
func TestDocumentSingleEmptyPageMagic(t *testing.T) {
	doc := NewDocument(DefaultOptions())
	require.NoError(t, doc.AddPage(Page{Index: 0, Width: 100, Height: 100}))
	out, err := doc.Finalize()
	require.NoError(t, err)
	wantPrefix := []byte{0x41, 0x54, 0x26, 0x54, 0x46, 0x4F, 0x52, 0x4D}
	assert.Equal(t, wantPrefix, out[:8])
	assert.Equal(t, []byte("DJVM"), out[12:16])
}

// TestDIRMRoundTrip decodes buildDIRMChunk's output and checks it against
// the worked example in scenario S2.
func TestDIRMRoundTrip(t *testing.T) {
	offsets := []uint32{0x54, 0xE02, 0x1CF52}
	sizes := []uint32{0xDAD, 0x1C150, 0x1EC5}
	kinds := []int{dirmKindDJVI, dirmKindDJVU, dirmKindDJVU}
	ids := []string{"dict0002.iff", "p0001.djvu", "p0002.djvu"}

	payload := buildDIRMChunk(offsets, sizes, kinds, ids)

	require.Equal(t, byte(dirmFlagsVersion), payload[0])
	n := binary.BigEndian.Uint16(payload[1:3])
	require.Equal(t, uint16(3), n)

	pos := 3
	gotOffsets := make([]uint32, n)
	for i := range gotOffsets {
		gotOffsets[i] = binary.BigEndian.Uint32(payload[pos : pos+4])
		pos += 4
	}
	assert.Equal(t, offsets, gotOffsets)

	tail := BZZDecode(payload[pos:])
	tpos := 0
	gotSizes := make([]uint32, n)
	for i := range gotSizes {
		gotSizes[i] = uint32(tail[tpos])<<16 | uint32(tail[tpos+1])<<8 | uint32(tail[tpos+2])
		tpos += 3
	}
	assert.Equal(t, sizes, gotSizes)

	gotFlags := make([]byte, n)
	for i := range gotFlags {
		gotFlags[i] = tail[tpos]
		tpos++
	}
	assert.Equal(t, []byte{0, 1, 1}, gotFlags)

	for i, want := range ids {
		end := bytes.IndexByte(tail[tpos:], 0)
		require.GreaterOrEqual(t, end, 0, "id[%d] not NUL-terminated", i)
		got := string(tail[tpos : tpos+end])
		assert.Equal(t, want, got)
		tpos += end + 1
	}
}

// TestDocumentParallelDeterminism covers scenario S4.
func TestDocumentParallelDeterminism(t *testing.T) {
	build := func(parallel bool) []byte {
		opts := DefaultOptions()
		opts.Parallel = parallel
		doc := NewDocument(opts)
		for i := uint32(0); i < 10; i++ {
			pix := randomPixmap(8, 8, byte(i))
			err := doc.AddPage(Page{
				Index:      i,
				Width:      8,
				Height:     8,
				Background: &Layer{Pixmap: pix},
			})
			require.NoError(t, err)
		}
		out, err := doc.Finalize()
		require.NoError(t, err)
		return out
	}

	seq := build(false)
	par := build(true)
	assert.Equal(t, seq, par, "sequential and parallel encodes must produce identical output")
}

// TestDocumentOutOfOrderInsertion covers scenario S5 / invariant 7: pages
// appear in ascending index order regardless of AddPage call order.
func TestDocumentOutOfOrderInsertion(t *testing.T) {
	doc := NewDocument(DefaultOptions())
	for _, idx := range []uint32{2, 0, 1} {
		require.NoError(t, doc.AddPage(Page{Index: idx, Width: 10, Height: 10}))
	}
	out, err := doc.Finalize()
	require.NoError(t, err)

	// Page IDs live in DIRM's BZZ-compressed tail. DIRM is the first chunk
	// in FORM:DJVM: magic (4) + FORM header (8) + "DJVM" (4) + DIRM header (8).
	dirmLen := binary.BigEndian.Uint32(out[20:24])
	dirm := out[24 : 24+dirmLen]
	n := int(binary.BigEndian.Uint16(dirm[1:3]))
	tail := BZZDecode(dirm[3+4*n:])

	var positions []int
	for _, id := range [][]byte{[]byte("p0000.djvu"), []byte("p0001.djvu"), []byte("p0002.djvu")} {
		pos := bytes.Index(tail, id)
		require.GreaterOrEqual(t, pos, 0, "id %q not found in output", id)
		positions = append(positions, pos)
	}
	assert.True(t, positions[0] < positions[1] && positions[1] < positions[2], "page IDs not in ascending order: %v", positions)
}

// TestDocumentAllChunksEvenOffsets covers invariant 5.
func TestDocumentAllChunksEvenOffsets(t *testing.T) {
	doc := NewDocument(DefaultOptions())
	for _, idx := range []uint32{0, 1} {
		require.NoError(t, doc.AddPage(Page{Index: idx, Width: 13, Height: 9}))
	}
	out, err := doc.Finalize()
	require.NoError(t, err)
	assert.Zero(t, len(out)%2, "total output length %d is odd", len(out))

	// Walk the chunks inside FORM:DJVM (DIRM, then each page's FORM:DJVU).
	for pos := 16; pos+8 <= len(out); {
		assert.Zero(t, pos%2, "chunk at odd offset %d", pos)
		length := int(binary.BigEndian.Uint32(out[pos+4 : pos+8]))
		pos += 8 + length + length%2
	}
}

// TestDocumentDuplicateIndexRejected covers the DuplicateIndex error kind.
func TestDocumentDuplicateIndexRejected(t *testing.T) {
	doc := NewDocument(DefaultOptions())
	require.NoError(t, doc.AddPage(Page{Index: 0, Width: 5, Height: 5}))
	err := doc.AddPage(Page{Index: 0, Width: 5, Height: 5})
	assert.Equal(t, ErrDuplicateIndex, err)
}

// TestDocumentFinalizeTwiceFails covers the AlreadyFinalized error kind.
func TestDocumentFinalizeTwiceFails(t *testing.T) {
	doc := NewDocument(DefaultOptions())
	require.NoError(t, doc.AddPage(Page{Index: 0, Width: 5, Height: 5}))
	_, err := doc.Finalize()
	require.NoError(t, err)
	_, err = doc.Finalize()
	assert.Equal(t, ErrAlreadyFinalized, err)
	err = doc.AddPage(Page{Index: 1, Width: 5, Height: 5})
	assert.Equal(t, ErrAlreadyFinalized, err)
}

// TestDocumentFailingPageStaysOpen checks that a page-level error leaves
// the document usable, per the coordinator's error policy (spec §7).
func TestDocumentFailingPageStaysOpen(t *testing.T) {
	doc := NewDocument(DefaultOptions())
	require.NoError(t, doc.AddPage(Page{Index: 0, Width: 0, Height: 0}))
	_, err := doc.Finalize()
	require.Error(t, err)

	var pageErr *PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, uint32(0), pageErr.Index)

	// The document must still be Open: a corrected AddPage should succeed.
	assert.NoError(t, doc.AddPage(Page{Index: 1, Width: 5, Height: 5}))
}

// TestDocumentSharedDictionary covers the DIRM DJVI component path.
func TestDocumentSharedDictionary(t *testing.T) {
	doc := NewDocument(DefaultOptions())
	dict := NewChunkBuilder()
	dict.BeginForm([4]byte{'D', 'J', 'V', 'I'})
	dict.WriteChunk([4]byte{'D', 'j', 'b', 'z'}, []byte{1, 2, 3})
	dict.EndForm()

	require.NoError(t, doc.AddSharedDictionary("dict0002.iff", dict.Bytes()))
	require.NoError(t, doc.AddPage(Page{Index: 0, Width: 5, Height: 5, Dictionaries: []string{"dict0002.iff"}}))
	out, err := doc.Finalize()
	require.NoError(t, err)
	assert.Contains(t, string(out), "dict0002.iff")
	assert.Contains(t, string(out), "DJVI")
}
