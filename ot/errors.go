package ot

import "errors"

// Sentinel errors returned while loading a font. Shaping a successfully
// parsed font never returns these: unknown glyphs map to .notdef and
// unrecognized subtable formats are treated as absent tables instead of
// aborting the parse.
var (
	// ErrInvalidFont is returned when the sfnt header, TTC header or DFONT
	// resource map cannot be parsed.
	ErrInvalidFont = errors.New("ot: invalid font")

	// ErrInvalidTable is returned when a table's own header is truncated
	// or internally inconsistent.
	ErrInvalidTable = errors.New("ot: invalid table")

	// ErrTableNotFound is returned by Font.TableData for a tag absent
	// from the font's table directory.
	ErrTableNotFound = errors.New("ot: table not found")

	// ErrInvalidOffset is returned when a sub-table offset points outside
	// the bounds of its containing slice.
	ErrInvalidOffset = errors.New("ot: offset out of range")

	// ErrInvalidFormat is returned when a sub-table declares a format
	// number this package does not implement.
	ErrInvalidFormat = errors.New("ot: unsupported subtable format")

	// ErrMissingRequiredTable is returned lazily, on first access, for
	// head/maxp/hhea/hmtx/cmap when absent from the font.
	ErrMissingRequiredTable = errors.New("ot: required table missing")

	// ErrInvalidArgument is returned for malformed caller input: an empty
	// tag string (TagFromString), a non-positive hmtx metric count, a nil
	// loca for ParseGlyf, a non-simple glyph for ParseSimpleGlyph. Tag
	// strings of other lengths are padded or truncated, unknown axis tags
	// are ignored and variation values are clamped; none of these is
	// reported as an error.
	ErrInvalidArgument = errors.New("ot: invalid argument")
)
