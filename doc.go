// Package djvu encodes multi-page DjVu documents from in-memory image data.
//
// Callers build Pages from continuous-tone backgrounds (Pixmap layers,
// compressed with the IW44 wavelet coder) and bilevel masks (Bitmap layers,
// compressed with the JB2 symbol coder), hand them to a Document in any
// order and from any goroutine, and call Finalize to obtain a single
// standards-conformant DjVu byte stream.
//
//	doc := djvu.NewDocument(djvu.DefaultOptions())
//	doc.AddPage(djvu.Page{Index: 0, Width: 100, Height: 100})
//	data, err := doc.Finalize()
//
// This package does not decode DjVu, does not read images from disk, and
// does not provide a command-line interface; it only turns pixel buffers
// already in memory into a byte slice.
package djvu
