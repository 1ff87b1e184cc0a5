package djvu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// dirmFlagsVersion is the DIRM "flags_version" byte: bit 7 set means
// bundled, bits 6..0 carry the format version (spec §6).
const dirmFlagsVersion = 0x80 | 1

// DIRM component-kind bits, packed into the low 6 bits of flags[i] (spec §6).
const (
	dirmKindDJVI  = 0
	dirmKindDJVU  = 1
	dirmKindThumb = 2
)

// Document coordinates a set of pages and shared dictionaries into a
// single multi-page DjVu byte stream. A Document is safe for concurrent
// AddPage calls from multiple goroutines; Finalize may run only once.
//
// Registry shape (mutex-guarded map, reject-on-duplicate, explicit
// Open/Finalized state) generalises the per-tile loop in the deleted
// encoder.go, which processed a fixed, pre-sized tile grid rather than
// an open-ended set of caller-supplied pages.
type Document struct {
	opts    Options
	logger  *slog.Logger
	traceID uuid.UUID

	mu         sync.Mutex
	pages      map[uint32]Page
	dicts      []sharedDictionary
	navigation *Navigation
	finalized  bool
}

type sharedDictionary struct {
	id   string
	data []byte // raw FORM:DJVI bytes
}

// NewDocument returns an empty, Open document with the given options. A
// fresh trace ID identifies every log line this document's AddPage and
// Finalize calls emit, so multiple documents encoding concurrently can be
// told apart in a shared log stream.
func NewDocument(opts Options) *Document {
	opts = opts.normalize()
	return &Document{
		opts:    opts,
		logger:  loggerOrDefault(opts.Logger),
		traceID: uuid.New(),
		pages:   make(map[uint32]Page),
	}
}

// AddPage registers a page under its Index. Pages may be added in any
// order and from any goroutine; order is restored at Finalize (spec §4.9
// item 1, §8 invariant 7).
func (d *Document) AddPage(p Page) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.finalized {
		d.logger.Warn("add_page after finalize", "trace_id", d.traceID, "page_index", p.Index)
		return ErrAlreadyFinalized
	}
	if _, exists := d.pages[p.Index]; exists {
		d.logger.Warn("duplicate page index", "trace_id", d.traceID, "page_index", p.Index)
		return ErrDuplicateIndex
	}
	d.pages[p.Index] = p.normalize(d.opts)
	d.logger.Debug("add_page", "trace_id", d.traceID, "page_index", p.Index, "width", p.Width, "height", p.Height)
	return nil
}

// AddSharedDictionary registers a shared JB2 dictionary's pre-encoded
// FORM:DJVI bytes under id (e.g. "dict0002.iff"), for pages to reference
// via Page.Dictionaries.
func (d *Document) AddSharedDictionary(id string, formDJVI []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.finalized {
		return ErrAlreadyFinalized
	}
	d.dicts = append(d.dicts, sharedDictionary{id: id, data: formDJVI})
	d.logger.Debug("add_shared_dictionary", "trace_id", d.traceID, "dict_id", id, "bytes", len(formDJVI))
	return nil
}

// SetNavigation registers the document's bookmark tree, emitted as an
// optional NAVM chunk inside FORM:DJVM at Finalize. A nil or empty
// Navigation omits the chunk entirely.
func (d *Document) SetNavigation(nav *Navigation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.finalized {
		return ErrAlreadyFinalized
	}
	d.navigation = nav
	return nil
}

// pageEncodeResult pairs an encoded page with its source index and any
// error, so parallel encoding can report the failing index without
// racing on a shared slice.
type pageEncodeResult struct {
	index uint32
	form  []byte
	err   error
}

// Finalize encodes every registered page, assigns file IDs, builds DIRM,
// and returns the complete byte stream: magic, FORM:DJVM{DIRM, shared
// FORM:DJVI*, FORM:DJVU* in index order} (spec §4.9 items 2-5). On a
// per-page encode error, Finalize returns that error and the document
// remains Open so the caller may fix the offending page and retry.
func (d *Document) Finalize() ([]byte, error) {
	d.mu.Lock()
	if d.finalized {
		d.mu.Unlock()
		return nil, ErrAlreadyFinalized
	}
	indices := make([]uint32, 0, len(d.pages))
	for idx := range d.pages {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	pages := make([]Page, len(indices))
	for i, idx := range indices {
		pages[i] = d.pages[idx]
	}
	dicts := append([]sharedDictionary(nil), d.dicts...)
	nav := d.navigation
	opts := d.opts
	d.mu.Unlock()

	d.logger.Debug("finalize_start", "trace_id", d.traceID, "page_count", len(pages), "dict_count", len(dicts))

	forms, err := d.encodePages(pages, opts)
	if err != nil {
		var pe *PageError
		if errors.As(err, &pe) {
			d.logger.Error("finalize_page_failed", "trace_id", d.traceID, "page_index", pe.Index, "error", err)
		} else {
			d.logger.Error("finalize_failed", "trace_id", d.traceID, "error", err)
		}
		return nil, err
	}

	out := assembleDocument(dicts, pages, forms, nav)
	d.mu.Lock()
	d.finalized = true
	d.mu.Unlock()
	d.logger.Debug("finalize_done", "trace_id", d.traceID, "bytes", len(out))
	return out, nil
}

// encodePages encodes each page's FORM:DJVU independently, in parallel if
// opts.Parallel, preserving ascending index order in the result
// (generalised from the deleted encoder.go's per-tile loop, spec §4.9 item 2).
func (d *Document) encodePages(pages []Page, opts Options) ([][]byte, error) {
	results := make([]pageEncodeResult, len(pages))

	if !opts.Parallel {
		for i, p := range pages {
			form, err := p.Encode(opts)
			results[i] = pageEncodeResult{index: p.Index, form: form, err: err}
			if err != nil {
				break
			}
		}
	} else {
		var wg sync.WaitGroup
		for i, p := range pages {
			wg.Add(1)
			go func(i int, p Page) {
				defer wg.Done()
				form, err := p.Encode(opts)
				results[i] = pageEncodeResult{index: p.Index, form: form, err: err}
			}(i, p)
		}
		wg.Wait()
	}

	forms := make([][]byte, len(pages))
	for i, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		forms[i] = r.form
	}
	return forms, nil
}

// assembleDocument lays out the final byte stream: magic, then
// FORM:DJVM containing DIRM, an optional NAVM, each shared FORM:DJVI,
// then each FORM:DJVU in index order (spec §4.9 item 5; NAVM is the
// bookmark tree recovered from djvu_nav.rs, spec §6's chunk-ID list).
func assembleDocument(dicts []sharedDictionary, pages []Page, forms [][]byte, nav *Navigation) []byte {
	type component struct {
		id   string
		kind int
		data []byte
	}

	components := make([]component, 0, len(dicts)+len(pages))
	for _, dict := range dicts {
		components = append(components, component{id: dict.id, kind: dirmKindDJVI, data: dict.data})
	}
	for i, p := range pages {
		components = append(components, component{
			id:   fmt.Sprintf("p%04d.djvu", p.Index),
			kind: dirmKindDJVU,
			data: forms[i],
		})
	}

	c := NewChunkBuilder()
	c.WriteMagic()
	c.BeginForm([4]byte{'D', 'J', 'V', 'M'})

	// DIRM's offset[i] values are absolute file offsets of each component
	// FORM's first byte. They depend on DIRM's own encoded length (and on
	// whether a NAVM chunk sits between DIRM and the components), so build
	// DIRM first against placeholder offsets, discover the true chunk
	// sizes, then compute real offsets and rebuild.
	sizes := make([]uint32, len(components))
	ids := make([]string, len(components))
	kinds := make([]int, len(components))
	for i, comp := range components {
		sizes[i] = uint32(len(comp.data))
		ids[i] = comp.id
		kinds[i] = comp.kind
	}

	placeholderDIRM := buildDIRMChunk(make([]uint32, len(components)), sizes, kinds, ids)
	dirmChunkLen := 8 + len(placeholderDIRM) + len(placeholderDIRM)%2

	navPayload := nav.Encode()
	navChunkLen := 0
	if navPayload != nil {
		navChunkLen = 8 + len(navPayload) + len(navPayload)%2
	}

	// Offsets are relative to the very start of the file (the magic's
	// first byte), per spec §4.9 item 5.
	offset := uint32(len(djvuMagic)) + 8 + 4 /* FORM + len + secondary ID */
	offset += uint32(dirmChunkLen) + uint32(navChunkLen)
	offsets := make([]uint32, len(components))
	for i, comp := range components {
		offsets[i] = offset
		// comp.data is a full FORM chunk (header included, already
		// padded to even length by the page/dictionary's own EndForm).
		offset += uint32(len(comp.data))
		if len(comp.data)%2 == 1 {
			offset++
		}
	}

	dirmPayload := buildDIRMChunk(offsets, sizes, kinds, ids)
	c.WriteChunk([4]byte{'D', 'I', 'R', 'M'}, dirmPayload)

	if navPayload != nil {
		c.WriteChunk([4]byte{'N', 'A', 'V', 'M'}, navPayload)
	}

	for _, comp := range components {
		c.buf = append(c.buf, comp.data...)
		if len(comp.data)%2 == 1 {
			c.buf = append(c.buf, 0)
		}
	}

	c.EndForm()
	return c.Bytes()
}

// buildDIRMChunk assembles the DIRM payload: an unencoded prefix
// (flags_version, n_files, offset[i]*) followed by a BZZ-compressed tail
// (size[i]*, flags[i]*, NUL-terminated IDs) per spec §6.
func buildDIRMChunk(offsets, sizes []uint32, kinds []int, ids []string) []byte {
	n := len(offsets)

	prefix := make([]byte, 0, 3+4*n)
	prefix = append(prefix, dirmFlagsVersion)
	var n16 [2]byte
	binary.BigEndian.PutUint16(n16[:], uint16(n))
	prefix = append(prefix, n16[:]...)
	for _, off := range offsets {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], off)
		prefix = append(prefix, b[:]...)
	}

	tail := make([]byte, 0, 4*n+len(ids))
	for _, size := range sizes {
		tail = append(tail, byte(size>>16), byte(size>>8), byte(size))
	}
	for _, kind := range kinds {
		tail = append(tail, byte(kind))
	}
	for _, id := range ids {
		tail = append(tail, []byte(id)...)
		tail = append(tail, 0)
	}

	compressedTail := BZZEncode(tail)
	return append(prefix, compressedTail...)
}
