package ot

import "encoding/binary"

// HVAR (Horizontal Metrics Variations) Table Implementation
// HarfBuzz equivalent: OT/HVAR.hh, OT/ItemVariationStore.hh
//
// HVAR stores per-glyph advance-width deltas as an indexed item variation
// store: each glyph maps (via an optional DeltaSetIndexMap, or its glyph
// id directly) to an (outer, inner) index into a list of ItemVariationData
// subtables, each of which blends a small set of region deltas using
// scalars derived from the current normalized design coordinates.

type variationRegion struct {
	// per-axis (startCoord, peakCoord, endCoord), all in F2Dot14 float form
	axes []regionAxisCoords
}

type regionAxisCoords struct {
	start, peak, end float64
}

type itemVariationData struct {
	regionIndexes []uint16
	deltaSets     [][]int32 // deltaSets[itemIndex][regionIndex]
}

type deltaSetIndexMap struct {
	entries []uint32 // packed (outer<<16 | inner) per glyph, or per-mapped entry
	present bool
}

// Hvar is a parsed HVAR table.
type Hvar struct {
	regions   []variationRegion
	varData   []itemVariationData
	indexMap  deltaSetIndexMap
}

// ParseHvar parses an HVAR table.
func ParseHvar(data []byte) (*Hvar, error) {
	if len(data) < 8 {
		return nil, ErrInvalidTable
	}
	majorVersion := binary.BigEndian.Uint16(data[0:])
	if majorVersion != 1 {
		return nil, ErrInvalidFormat
	}
	itemVarStoreOffset := binary.BigEndian.Uint32(data[4:])
	advanceWidthMapOffset := binary.BigEndian.Uint32(data[8:])

	h := &Hvar{}

	if itemVarStoreOffset != 0 && int(itemVarStoreOffset) < len(data) {
		regions, varData, err := parseItemVariationStore(data, int(itemVarStoreOffset))
		if err != nil {
			return nil, err
		}
		h.regions = regions
		h.varData = varData
	}

	if advanceWidthMapOffset != 0 && int(advanceWidthMapOffset) < len(data) {
		h.indexMap = parseDeltaSetIndexMap(data, int(advanceWidthMapOffset))
	}

	return h, nil
}

func parseItemVariationStore(data []byte, offset int) ([]variationRegion, []itemVariationData, error) {
	if offset+8 > len(data) {
		return nil, nil, ErrInvalidOffset
	}
	format := binary.BigEndian.Uint16(data[offset:])
	if format != 1 {
		return nil, nil, ErrInvalidFormat
	}
	regionListOffset := int(binary.BigEndian.Uint32(data[offset+2:]))
	itemVarDataCount := int(binary.BigEndian.Uint16(data[offset+6:]))

	regions, axisCount, err := parseVariationRegionList(data, offset+regionListOffset)
	if err != nil {
		return nil, nil, err
	}

	varDataOffsets := make([]int, itemVarDataCount)
	base := offset + 8
	if base+itemVarDataCount*4 > len(data) {
		return nil, nil, ErrInvalidOffset
	}
	for i := 0; i < itemVarDataCount; i++ {
		varDataOffsets[i] = offset + int(binary.BigEndian.Uint32(data[base+i*4:]))
	}

	varData := make([]itemVariationData, itemVarDataCount)
	for i, vOff := range varDataOffsets {
		vd, err := parseItemVariationData(data, vOff)
		if err != nil {
			continue
		}
		_ = axisCount
		varData[i] = vd
	}

	return regions, varData, nil
}

func parseVariationRegionList(data []byte, offset int) ([]variationRegion, int, error) {
	if offset+4 > len(data) {
		return nil, 0, ErrInvalidOffset
	}
	axisCount := int(binary.BigEndian.Uint16(data[offset:]))
	regionCount := int(binary.BigEndian.Uint16(data[offset+2:]))

	recordSize := axisCount * 6
	base := offset + 4
	if base+regionCount*recordSize > len(data) {
		return nil, 0, ErrInvalidOffset
	}

	regions := make([]variationRegion, regionCount)
	for r := 0; r < regionCount; r++ {
		rg := variationRegion{axes: make([]regionAxisCoords, axisCount)}
		for a := 0; a < axisCount; a++ {
			off := base + r*recordSize + a*6
			rg.axes[a] = regionAxisCoords{
				start: f2dot14ToFloat(binary.BigEndian.Uint16(data[off:])),
				peak:  f2dot14ToFloat(binary.BigEndian.Uint16(data[off+2:])),
				end:   f2dot14ToFloat(binary.BigEndian.Uint16(data[off+4:])),
			}
		}
		regions[r] = rg
	}

	return regions, axisCount, nil
}

func parseItemVariationData(data []byte, offset int) (itemVariationData, error) {
	if offset+6 > len(data) {
		return itemVariationData{}, ErrInvalidOffset
	}
	itemCount := int(binary.BigEndian.Uint16(data[offset:]))
	shortDeltaCount := int(binary.BigEndian.Uint16(data[offset+2:]))
	regionIndexCount := int(binary.BigEndian.Uint16(data[offset+4:]))

	base := offset + 6
	if base+regionIndexCount*2 > len(data) {
		return itemVariationData{}, ErrInvalidOffset
	}
	regionIndexes := make([]uint16, regionIndexCount)
	for i := 0; i < regionIndexCount; i++ {
		regionIndexes[i] = binary.BigEndian.Uint16(data[base+i*2:])
	}

	rowSize := shortDeltaCount*2 + (regionIndexCount - shortDeltaCount)
	if rowSize < 0 {
		rowSize = regionIndexCount // all-short fallback guard
	}
	deltaBase := base + regionIndexCount*2

	deltaSets := make([][]int32, itemCount)
	for i := 0; i < itemCount; i++ {
		rowOff := deltaBase + i*rowSize
		row := make([]int32, regionIndexCount)
		for r := 0; r < regionIndexCount; r++ {
			if r < shortDeltaCount {
				off := rowOff + r*2
				if off+2 > len(data) {
					continue
				}
				row[r] = int32(int16(binary.BigEndian.Uint16(data[off:])))
			} else {
				off := rowOff + shortDeltaCount*2 + (r - shortDeltaCount)
				if off+1 > len(data) {
					continue
				}
				row[r] = int32(int8(data[off]))
			}
		}
		deltaSets[i] = row
	}

	return itemVariationData{regionIndexes: regionIndexes, deltaSets: deltaSets}, nil
}

func parseDeltaSetIndexMap(data []byte, offset int) deltaSetIndexMap {
	if offset+4 > len(data) {
		return deltaSetIndexMap{}
	}
	format := data[offset]
	entryFormat := data[offset+1]
	mapCount := int(binary.BigEndian.Uint16(data[offset+2:]))

	entrySize := int(((entryFormat>>4)&3)+1)
	innerBits := (entryFormat & 0xF) + 1

	headerLen := 4
	if format == 0 {
		headerLen = 4
	}
	base := offset + headerLen

	m := deltaSetIndexMap{entries: make([]uint32, mapCount), present: true}
	for i := 0; i < mapCount; i++ {
		off := base + i*entrySize
		if off+entrySize > len(data) {
			break
		}
		var raw uint32
		for b := 0; b < entrySize; b++ {
			raw = raw<<8 | uint32(data[off+b])
		}
		outer := raw >> uint(innerBits)
		inner := raw & ((1 << uint(innerBits)) - 1)
		m.entries[i] = outer<<16 | inner
	}
	return m
}

// HasData reports whether the HVAR table carries any variation regions.
func (h *Hvar) HasData() bool { return h != nil && len(h.regions) > 0 }

// GetAdvanceDelta returns the horizontal advance-width delta for glyph at
// the given normalized (F2Dot14 fixed-point int) design coordinates.
func (h *Hvar) GetAdvanceDelta(glyph GlyphID, normalizedCoordsI []int) float64 {
	if h == nil || len(h.varData) == 0 {
		return 0
	}

	var outer, inner uint32
	if h.indexMap.present {
		idx := int(glyph)
		if idx >= len(h.indexMap.entries) {
			idx = len(h.indexMap.entries) - 1
		}
		if idx < 0 {
			return 0
		}
		packed := h.indexMap.entries[idx]
		outer, inner = packed>>16, packed&0xFFFF
	} else {
		outer, inner = 0, uint32(glyph)
	}

	if int(outer) >= len(h.varData) {
		return 0
	}
	vd := h.varData[outer]
	if int(inner) >= len(vd.deltaSets) {
		return 0
	}
	row := vd.deltaSets[inner]

	coords := make([]float64, len(normalizedCoordsI))
	for i, c := range normalizedCoordsI {
		coords[i] = f2dot14ToFloat(uint16(c))
	}

	var total float64
	for i, regionIdx := range vd.regionIndexes {
		if int(regionIdx) >= len(h.regions) || i >= len(row) {
			continue
		}
		scalar := regionScalar(h.regions[regionIdx], coords)
		if scalar != 0 {
			total += scalar * float64(row[i])
		}
	}
	return total
}

func regionScalar(region variationRegion, coords []float64) float64 {
	scalar := 1.0
	for i, axis := range region.axes {
		var v float64
		if i < len(coords) {
			v = coords[i]
		}
		switch {
		case axis.peak == 0:
			continue
		case v == axis.peak:
			continue
		case v < axis.start || v > axis.end:
			return 0
		case v < axis.peak:
			if axis.peak == axis.start {
				continue
			}
			scalar *= (v - axis.start) / (axis.peak - axis.start)
		default:
			if axis.peak == axis.end {
				continue
			}
			scalar *= (axis.end - v) / (axis.end - axis.peak)
		}
	}
	return scalar
}
