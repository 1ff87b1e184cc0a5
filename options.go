package djvu

import "log/slog"

// Options controls document-wide encoding parameters (spec §6).
type Options struct {
	// DPI is written into each page's INFO chunk. Range 72..4800.
	DPI uint16

	// Gamma is written into INFO as round(Gamma*10). Range 1.0..5.0.
	Gamma float32

	// Quality scales the IW44 byte budget; 100 means encode all bit-planes.
	// Range 0..100.
	Quality int

	// Version sets INFO's major/minor version fields.
	Version uint8

	// Parallel enables concurrent per-page encoding in Finalize.
	Parallel bool

	// Logger receives structured add_page/finalize events, keyed by the
	// document's trace ID. Nil uses slog's process-wide default logger.
	Logger *slog.Logger
}

// DefaultOptions returns the documented defaults (spec §6).
func DefaultOptions() Options {
	return Options{
		DPI:      300,
		Gamma:    2.2,
		Quality:  75,
		Version:  26,
		Parallel: false,
	}
}

// normalize clamps option fields to their valid ranges, applying the
// documented defaults to out-of-range or zero values.
func (o Options) normalize() Options {
	if o.DPI < 72 || o.DPI > 4800 {
		o.DPI = 300
	}
	if o.Gamma < 1.0 || o.Gamma > 5.0 {
		o.Gamma = 2.2
	}
	if o.Quality < 0 {
		o.Quality = 0
	}
	if o.Quality > 100 {
		o.Quality = 100
	}
	if o.Version == 0 {
		o.Version = 26
	}
	return o
}
