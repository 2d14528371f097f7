package ot

import "encoding/binary"

// glyf/loca Table Implementation (metrics-only subset)
// HarfBuzz equivalent: OT/glyf/glyf.hh
//
// Outline rendering is out of scope; only what gvar-based advance-delta
// and extents computation needs is kept: per-glyph byte ranges, a simple
// glyph's point coordinates (on- and off-curve), and the static bounding
// box header.

// GlyphExtents is a glyph's bounding box in font design units.
type GlyphExtents struct {
	XBearing int16
	YBearing int16
	Width    int16
	Height   int16
}

// GlyphPoint is a single outline point in font design units.
type GlyphPoint struct {
	X, Y int16
}

// Loca is a parsed loca (glyph location) table: offsets into glyf.
type Loca struct {
	offsets []uint32
}

// ParseLoca parses a loca table. format is head.IndexToLocFormat
// (0 = short/half-offsets, 1 = long offsets).
func ParseLoca(data []byte, numGlyphs int, format int16) (*Loca, error) {
	count := numGlyphs + 1
	l := &Loca{offsets: make([]uint32, count)}
	if format == 0 {
		if len(data) < count*2 {
			return nil, ErrInvalidTable
		}
		for i := 0; i < count; i++ {
			l.offsets[i] = uint32(binary.BigEndian.Uint16(data[i*2:])) * 2
		}
	} else {
		if len(data) < count*4 {
			return nil, ErrInvalidTable
		}
		for i := 0; i < count; i++ {
			l.offsets[i] = binary.BigEndian.Uint32(data[i*4:])
		}
	}
	return l, nil
}

// Glyf is a parsed glyf table paired with its loca offsets.
type Glyf struct {
	data []byte
	loca *Loca
}

// ParseGlyf pairs glyf table bytes with parsed loca offsets.
func ParseGlyf(data []byte, loca *Loca) (*Glyf, error) {
	if loca == nil {
		return nil, ErrInvalidArgument
	}
	return &Glyf{data: data, loca: loca}, nil
}

// GetGlyphBytes returns the raw glyf record for glyph, or nil if the
// glyph is empty (e.g. space) or out of range.
func (g *Glyf) GetGlyphBytes(glyph GlyphID) []byte {
	idx := int(glyph)
	if idx < 0 || idx+1 >= len(g.loca.offsets) {
		return nil
	}
	start, end := g.loca.offsets[idx], g.loca.offsets[idx+1]
	if end <= start || int(end) > len(g.data) {
		return nil
	}
	return g.data[start:end]
}

// GetGlyphExtents returns the static (non-variable) bounding box stored
// in the glyph's header.
func (g *Glyf) GetGlyphExtents(glyph GlyphID) (GlyphExtents, bool) {
	b := g.GetGlyphBytes(glyph)
	if b == nil || len(b) < 10 {
		return GlyphExtents{}, false
	}
	xMin := int16(binary.BigEndian.Uint16(b[2:]))
	yMin := int16(binary.BigEndian.Uint16(b[4:]))
	xMax := int16(binary.BigEndian.Uint16(b[6:]))
	yMax := int16(binary.BigEndian.Uint16(b[8:]))
	return GlyphExtents{
		XBearing: xMin,
		YBearing: yMax,
		Width:    xMax - xMin,
		Height:   yMin - yMax,
	}, true
}

// GetContourPointCount returns the number of on-curve+off-curve points in
// a simple glyph's outline (not counting phantom points), or 0 for
// composite/empty glyphs.
func (g *Glyf) GetContourPointCount(glyph GlyphID) int {
	b := g.GetGlyphBytes(glyph)
	if b == nil || len(b) < 10 {
		return 0
	}
	numberOfContours := int16(binary.BigEndian.Uint16(b[0:]))
	if numberOfContours <= 0 {
		return 0
	}
	points, _, err := ParseSimpleGlyph(b)
	if err != nil {
		return 0
	}
	return len(points)
}

// ParseSimpleGlyph decodes a simple glyph's flags and point coordinates.
// Returns the point coordinates and the end-of-contour indexes.
func ParseSimpleGlyph(data []byte) ([]GlyphPoint, []int, error) {
	if len(data) < 10 {
		return nil, nil, ErrInvalidTable
	}
	numberOfContours := int(int16(binary.BigEndian.Uint16(data[0:])))
	if numberOfContours <= 0 {
		return nil, nil, ErrInvalidArgument
	}

	pos := 10
	if pos+numberOfContours*2 > len(data) {
		return nil, nil, ErrInvalidOffset
	}
	endPts := make([]int, numberOfContours)
	for i := 0; i < numberOfContours; i++ {
		endPts[i] = int(binary.BigEndian.Uint16(data[pos+i*2:]))
	}
	pos += numberOfContours * 2

	numPoints := 0
	if numberOfContours > 0 {
		numPoints = endPts[numberOfContours-1] + 1
	}

	if pos+2 > len(data) {
		return nil, nil, ErrInvalidOffset
	}
	instructionLength := int(binary.BigEndian.Uint16(data[pos:]))
	pos += 2 + instructionLength
	if pos > len(data) {
		return nil, nil, ErrInvalidOffset
	}

	const (
		flagOnCurve      = 0x01
		flagXShort       = 0x02
		flagYShort       = 0x04
		flagRepeat       = 0x08
		flagXSame        = 0x10
		flagYSame        = 0x20
	)

	flags := make([]byte, numPoints)
	for i := 0; i < numPoints; {
		if pos >= len(data) {
			return nil, nil, ErrInvalidOffset
		}
		f := data[pos]
		pos++
		flags[i] = f
		i++
		if f&flagRepeat != 0 {
			if pos >= len(data) {
				return nil, nil, ErrInvalidOffset
			}
			repeat := int(data[pos])
			pos++
			for r := 0; r < repeat && i < numPoints; r++ {
				flags[i] = f
				i++
			}
		}
	}

	points := make([]GlyphPoint, numPoints)

	x := int16(0)
	for i := 0; i < numPoints; i++ {
		f := flags[i]
		switch {
		case f&flagXShort != 0:
			if pos >= len(data) {
				return nil, nil, ErrInvalidOffset
			}
			dx := int16(data[pos])
			pos++
			if f&flagXSame == 0 {
				dx = -dx
			}
			x += dx
		case f&flagXSame == 0:
			if pos+2 > len(data) {
				return nil, nil, ErrInvalidOffset
			}
			x += int16(binary.BigEndian.Uint16(data[pos:]))
			pos += 2
		}
		points[i].X = x
	}

	y := int16(0)
	for i := 0; i < numPoints; i++ {
		f := flags[i]
		switch {
		case f&flagYShort != 0:
			if pos >= len(data) {
				return nil, nil, ErrInvalidOffset
			}
			dy := int16(data[pos])
			pos++
			if f&flagYSame == 0 {
				dy = -dy
			}
			y += dy
		case f&flagYSame == 0:
			if pos+2 > len(data) {
				return nil, nil, ErrInvalidOffset
			}
			y += int16(binary.BigEndian.Uint16(data[pos:]))
			pos += 2
		}
		points[i].Y = y
	}

	return points, endPts, nil
}
