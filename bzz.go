package djvu

import "bytes"

// BZZ general-purpose block-sort compressor (spec §4.2), used for the
// DIRM payload's compressed tail. Pipeline: Burrows-Wheeler transform of
// each block, move-to-front ranking, then ZP coding of the rank stream
// with a small binary-tree context set — the general shape described in
// spec §4.2, built directly on zp.go (this package's own ZP coder; no
// teacher analogue exists for block-sort compression, see DESIGN.md).

// bzzBlockSize is the maximum BWT block size (spec §4.2: "typical 4096 bytes").
const bzzBlockSize = 4096

// byteTree holds the 255 internal-node contexts of a binary-tree byte
// coder: to encode a byte, walk 8 adaptive binary decisions from the
// root (node 1) to a leaf (node 256..511, discarded — we only need the
// internal nodes 1..255).
type byteTree [256]uint8

func encodeByteZP(enc *ZPEncoder, tree *byteTree, v byte) {
	node := 1
	for bit := 7; bit >= 0; bit-- {
		b := int((v >> uint(bit)) & 1)
		enc.EncodeBit(&tree[node], b)
		node = node*2 + b
	}
}

func decodeByteZP(dec *ZPDecoder, tree *byteTree) byte {
	node := 1
	for i := 0; i < 8; i++ {
		b := dec.DecodeBit(&tree[node])
		node = node*2 + b
	}
	return byte(node - 256)
}

func encodeUint32ZP(enc *ZPEncoder, tree *byteTree, v uint32) {
	encodeByteZP(enc, tree, byte(v>>24))
	encodeByteZP(enc, tree, byte(v>>16))
	encodeByteZP(enc, tree, byte(v>>8))
	encodeByteZP(enc, tree, byte(v))
}

func decodeUint32ZP(dec *ZPDecoder, tree *byteTree) uint32 {
	b0 := decodeByteZP(dec, tree)
	b1 := decodeByteZP(dec, tree)
	b2 := decodeByteZP(dec, tree)
	b3 := decodeByteZP(dec, tree)
	return uint32(b0)<<24 | uint32(b1)<<16 | uint32(b2)<<8 | uint32(b3)
}

// BZZEncode compresses data into a BZZ block stream.
func BZZEncode(data []byte) []byte {
	enc := NewZPEncoder()
	var lenTree, idxTree, rankTree byteTree

	encodeUint32ZP(enc, &lenTree, uint32(len(data)))

	for off := 0; off < len(data); {
		end := off + bzzBlockSize
		if end > len(data) {
			end = len(data)
		}
		block := data[off:end]
		L, primary := bwtForward(block)
		ranks := mtfEncode(L)

		encodeUint32ZP(enc, &idxTree, uint32(len(block)))
		encodeUint32ZP(enc, &idxTree, uint32(primary))
		for _, r := range ranks {
			encodeByteZP(enc, &rankTree, r)
		}
		off = end
	}
	return enc.Flush()
}

// BZZDecode reverses BZZEncode. It is used only by this package's own
// round-trip tests (spec §8 invariant 2); reading an externally produced
// DjVu file is out of scope.
func BZZDecode(encoded []byte) []byte {
	dec := NewZPDecoder(encoded)
	var lenTree, idxTree, rankTree byteTree

	total := decodeUint32ZP(dec, &lenTree)
	out := make([]byte, 0, total)

	for uint32(len(out)) < total {
		blockLen := decodeUint32ZP(dec, &idxTree)
		primary := decodeUint32ZP(dec, &idxTree)

		ranks := make([]byte, blockLen)
		for i := range ranks {
			ranks[i] = decodeByteZP(dec, &rankTree)
		}
		L := mtfDecode(ranks)
		block := bwtInverse(L, int(primary))
		out = append(out, block...)
	}
	return out
}

// bwtForward computes the Burrows-Wheeler transform of block: the last
// column L of the sorted rotation matrix, plus the row index (primary)
// of the unrotated block within that sorted order.
func bwtForward(block []byte) (L []byte, primary int) {
	n := len(block)
	if n == 0 {
		return nil, 0
	}
	doubled := make([]byte, 2*n)
	copy(doubled, block)
	copy(doubled[n:], block)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sortInts(idx, func(a, b int) bool {
		return bytes.Compare(doubled[a:a+n], doubled[b:b+n]) < 0
	})

	L = make([]byte, n)
	for i, start := range idx {
		L[i] = block[(start+n-1)%n]
		if start == 0 {
			primary = i
		}
	}
	return L, primary
}

// bwtInverse reconstructs the original block from its BWT last column L
// and primary row index, via the standard LF-mapping walk.
func bwtInverse(L []byte, primary int) []byte {
	n := len(L)
	if n == 0 {
		return nil
	}
	var count [256]int
	for _, c := range L {
		count[c]++
	}
	var base [256]int
	sum := 0
	for c := 0; c < 256; c++ {
		base[c] = sum
		sum += count[c]
	}
	lf := make([]int, n)
	var occ [256]int
	for i, c := range L {
		lf[i] = base[c] + occ[c]
		occ[c]++
	}

	out := make([]byte, n)
	x := primary
	for k := n - 1; k >= 0; k-- {
		out[k] = L[x]
		x = lf[x]
	}
	return out
}

// sortInts sorts idx in place using less, via a plain insertion/quicksort
// hybrid equivalent to sort.Slice but kept local so bwtForward's rotation
// comparator stays obviously in one place with the data it closes over.
func sortInts(idx []int, less func(a, b int) bool) {
	quicksortInts(idx, 0, len(idx)-1, less)
}

func quicksortInts(idx []int, lo, hi int, less func(a, b int) bool) {
	for lo < hi {
		if hi-lo < 12 {
			insertionSortInts(idx[lo:hi+1], less)
			return
		}
		p := partitionInts(idx, lo, hi, less)
		if p-lo < hi-p {
			quicksortInts(idx, lo, p-1, less)
			lo = p + 1
		} else {
			quicksortInts(idx, p+1, hi, less)
			hi = p - 1
		}
	}
}

func partitionInts(idx []int, lo, hi int, less func(a, b int) bool) int {
	mid := lo + (hi-lo)/2
	idx[mid], idx[hi] = idx[hi], idx[mid]
	pivot := idx[hi]
	store := lo
	for i := lo; i < hi; i++ {
		if less(idx[i], pivot) {
			idx[i], idx[store] = idx[store], idx[i]
			store++
		}
	}
	idx[store], idx[hi] = idx[hi], idx[store]
	return store
}

func insertionSortInts(idx []int, less func(a, b int) bool) {
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && less(idx[j], idx[j-1]); j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
}

// mtfEncode performs move-to-front ranking of data over the byte alphabet.
func mtfEncode(data []byte) []byte {
	var table [256]byte
	for i := range table {
		table[i] = byte(i)
	}
	out := make([]byte, len(data))
	for i, c := range data {
		idx := 0
		for table[idx] != c {
			idx++
		}
		out[i] = byte(idx)
		copy(table[1:idx+1], table[0:idx])
		table[0] = c
	}
	return out
}

// mtfDecode reverses mtfEncode.
func mtfDecode(ranks []byte) []byte {
	var table [256]byte
	for i := range table {
		table[i] = byte(i)
	}
	out := make([]byte, len(ranks))
	for i, r := range ranks {
		c := table[r]
		out[i] = c
		copy(table[1:int(r)+1], table[0:r])
		table[0] = c
	}
	return out
}
