package ot

import "encoding/binary"

// cmap (Character to Glyph Index Mapping) Table Implementation
//
// HarfBuzz equivalent: hb-ot-cmap-table.hh
//
// Only the subtable formats actually shipped by fonts in the wild for
// Unicode lookup are implemented: 0 (byte encoding), 4 (segment mapping,
// BMP), 6 (trimmed table), 12 (segmented coverage, full Unicode), and 14
// (Unicode variation sequences). Formats 2, 8, 10 and 13 (CJK mixed
// 16/32-bit, rare stacking forms) are skipped during subtable selection.

type cmapSubtable interface {
	lookup(cp Codepoint) (GlyphID, bool)
}

// Cmap is a parsed cmap table, holding the single best Unicode subtable
// chosen at parse time plus an optional format-14 variation subtable and
// a symbol-font flag used by the Arabic PUA fallback path.
type Cmap struct {
	unicode   cmapSubtable
	variation *cmapFormat14
	symbol    bool
	fontPage  uint16
}

// ParseCmap parses a cmap table and selects the subtable used for
// Unicode-to-glyph lookup: prefer (3,10) or (0,4)/(0,6) full-repertoire
// format 12 tables, then (3,1)/(0,3) format 4 BMP tables, then (1,0)
// format 0 Mac Roman tables as a last resort. Symbol subtables (3,0)
// are kept separately and only consulted when no Unicode subtable
// matches, mirroring how symbol fonts are actually authored.
func ParseCmap(data []byte) (*Cmap, error) {
	if len(data) < 4 {
		return nil, ErrInvalidTable
	}
	numTables := int(binary.BigEndian.Uint16(data[2:]))
	if 4+numTables*8 > len(data) {
		return nil, ErrInvalidTable
	}

	type encRecord struct {
		platformID uint16
		encodingID uint16
		offset     uint32
	}
	records := make([]encRecord, numTables)
	for i := 0; i < numTables; i++ {
		off := 4 + i*8
		records[i] = encRecord{
			platformID: binary.BigEndian.Uint16(data[off:]),
			encodingID: binary.BigEndian.Uint16(data[off+2:]),
			offset:     binary.BigEndian.Uint32(data[off+4:]),
		}
	}

	c := &Cmap{}

	bestScore := -1
	var symbolOffset uint32
	haveSymbol := false

	for _, r := range records {
		if int(r.offset) >= len(data) {
			continue
		}
		score := -1
		switch {
		case r.platformID == 3 && r.encodingID == 10:
			score = 5
		case r.platformID == 0 && r.encodingID >= 4:
			score = 5
		case r.platformID == 3 && r.encodingID == 1:
			score = 4
		case r.platformID == 0 && (r.encodingID == 3 || r.encodingID == 2):
			score = 3
		case r.platformID == 3 && r.encodingID == 0:
			symbolOffset = r.offset
			haveSymbol = true
			continue
		case r.platformID == 1 && r.encodingID == 0:
			score = 1
		}
		if score > bestScore {
			sub, err := parseCmapSubtable(data, int(r.offset))
			if err != nil {
				continue
			}
			c.unicode = sub
			bestScore = score
		}
	}

	if c.unicode == nil && haveSymbol {
		if sub, err := parseCmapSubtable(data, int(symbolOffset)); err == nil {
			c.unicode = sub
			c.symbol = true
		}
	}

	for _, r := range records {
		if r.platformID == 0 && r.encodingID == 5 && int(r.offset) < len(data) {
			if v14, err := parseCmapFormat14(data, int(r.offset)); err == nil {
				c.variation = v14
			}
		}
	}

	if c.unicode == nil {
		return nil, ErrMissingRequiredTable
	}
	return c, nil
}

func parseCmapSubtable(data []byte, offset int) (cmapSubtable, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	format := binary.BigEndian.Uint16(data[offset:])
	switch format {
	case 0:
		return parseCmapFormat0(data, offset)
	case 4:
		return parseCmapFormat4(data, offset)
	case 6:
		return parseCmapFormat6(data, offset)
	case 12:
		return parseCmapFormat12(data, offset)
	default:
		return nil, ErrInvalidFormat
	}
}

// Lookup maps a Unicode codepoint to a glyph ID via the selected Unicode
// subtable (or the symbol subtable, for symbol fonts with PUA mappings).
func (c *Cmap) Lookup(cp Codepoint) (GlyphID, bool) {
	if c.unicode == nil {
		return 0, false
	}
	return c.unicode.lookup(cp)
}

// LookupVariation maps a base codepoint plus a Unicode variation selector
// to a variant glyph, per the format-14 subtable. Returns ok=false when no
// format-14 table is present or the sequence is unregistered, in which
// case the caller should fall back to Lookup(base).
func (c *Cmap) LookupVariation(base, selector Codepoint) (GlyphID, bool) {
	if c.variation == nil {
		return 0, false
	}
	return c.variation.lookup(base, selector)
}

// IsSymbol reports whether the selected subtable came from a (3,0)
// Microsoft Symbol cmap.
func (c *Cmap) IsSymbol() bool { return c.symbol }

// SetFontPage records the Private Use Area font page (from OS/2
// fsSelection on version-0 symbol fonts) used to remap Arabic
// presentation-form codepoints into the font's PUA range.
func (c *Cmap) SetFontPage(page uint16) { c.fontPage = page }

// FontPage returns the font page set by SetFontPage, or 0 if none.
func (c *Cmap) FontPage() uint16 { return c.fontPage }

// --- format 0: byte encoding table ---

type cmapFormat0 struct {
	glyphs [256]GlyphID
}

func parseCmapFormat0(data []byte, offset int) (*cmapFormat0, error) {
	if offset+262 > len(data) {
		return nil, ErrInvalidOffset
	}
	t := &cmapFormat0{}
	for i := 0; i < 256; i++ {
		t.glyphs[i] = GlyphID(data[offset+6+i])
	}
	return t, nil
}

func (t *cmapFormat0) lookup(cp Codepoint) (GlyphID, bool) {
	if cp > 255 {
		return 0, false
	}
	g := t.glyphs[cp]
	return g, g != 0
}

// --- format 4: segment mapping to delta values (BMP) ---

type cmapFormat4 struct {
	endCodes    []uint16
	startCodes  []uint16
	idDeltas    []int16
	idRangeOffs []uint16
	// glyphIDArray slice and its absolute offset, used when idRangeOffset != 0
	data       []byte
	rangeBase  int
}

func parseCmapFormat4(data []byte, offset int) (*cmapFormat4, error) {
	if offset+14 > len(data) {
		return nil, ErrInvalidOffset
	}
	segCountX2 := int(binary.BigEndian.Uint16(data[offset+6:]))
	segCount := segCountX2 / 2
	if segCount == 0 {
		return nil, ErrInvalidTable
	}

	endOff := offset + 14
	if endOff+segCountX2 > len(data) {
		return nil, ErrInvalidOffset
	}
	startOff := endOff + segCountX2 + 2 // +2 for reservedPad
	if startOff+segCountX2 > len(data) {
		return nil, ErrInvalidOffset
	}
	deltaOff := startOff + segCountX2
	if deltaOff+segCountX2 > len(data) {
		return nil, ErrInvalidOffset
	}
	rangeOff := deltaOff + segCountX2
	if rangeOff+segCountX2 > len(data) {
		return nil, ErrInvalidOffset
	}

	t := &cmapFormat4{
		endCodes:    make([]uint16, segCount),
		startCodes:  make([]uint16, segCount),
		idDeltas:    make([]int16, segCount),
		idRangeOffs: make([]uint16, segCount),
		data:        data,
		rangeBase:   rangeOff,
	}
	for i := 0; i < segCount; i++ {
		t.endCodes[i] = binary.BigEndian.Uint16(data[endOff+i*2:])
		t.startCodes[i] = binary.BigEndian.Uint16(data[startOff+i*2:])
		t.idDeltas[i] = int16(binary.BigEndian.Uint16(data[deltaOff+i*2:]))
		t.idRangeOffs[i] = binary.BigEndian.Uint16(data[rangeOff+i*2:])
	}
	return t, nil
}

func (t *cmapFormat4) lookup(cp Codepoint) (GlyphID, bool) {
	if cp > 0xFFFF {
		return 0, false
	}
	c := uint16(cp)

	lo, hi := 0, len(t.endCodes)-1
	idx := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if c <= t.endCodes[mid] {
			idx = mid
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	if idx == -1 || c < t.startCodes[idx] {
		return 0, false
	}

	if t.idRangeOffs[idx] == 0 {
		g := uint16(int32(c) + int32(t.idDeltas[idx]))
		return GlyphID(g), g != 0
	}

	glyphOff := t.rangeBase + idx*2 + int(t.idRangeOffs[idx]) + int(c-t.startCodes[idx])*2
	if glyphOff+2 > len(t.data) {
		return 0, false
	}
	g := binary.BigEndian.Uint16(t.data[glyphOff:])
	if g == 0 {
		return 0, false
	}
	g = uint16(int32(g) + int32(t.idDeltas[idx]))
	return GlyphID(g), g != 0
}

// --- format 6: trimmed table mapping ---

type cmapFormat6 struct {
	firstCode uint16
	glyphs    []GlyphID
}

func parseCmapFormat6(data []byte, offset int) (*cmapFormat6, error) {
	if offset+10 > len(data) {
		return nil, ErrInvalidOffset
	}
	first := binary.BigEndian.Uint16(data[offset+6:])
	count := int(binary.BigEndian.Uint16(data[offset+8:]))
	if offset+10+count*2 > len(data) {
		return nil, ErrInvalidOffset
	}
	t := &cmapFormat6{firstCode: first, glyphs: make([]GlyphID, count)}
	for i := 0; i < count; i++ {
		t.glyphs[i] = GlyphID(binary.BigEndian.Uint16(data[offset+10+i*2:]))
	}
	return t, nil
}

func (t *cmapFormat6) lookup(cp Codepoint) (GlyphID, bool) {
	if cp < Codepoint(t.firstCode) {
		return 0, false
	}
	idx := int(cp) - int(t.firstCode)
	if idx >= len(t.glyphs) {
		return 0, false
	}
	g := t.glyphs[idx]
	return g, g != 0
}

// --- format 12: segmented coverage (full Unicode) ---

type cmap12Group struct {
	startChar  uint32
	endChar    uint32
	startGlyph uint32
}

type cmapFormat12 struct {
	groups []cmap12Group
}

func parseCmapFormat12(data []byte, offset int) (*cmapFormat12, error) {
	if offset+16 > len(data) {
		return nil, ErrInvalidOffset
	}
	numGroups := int(binary.BigEndian.Uint32(data[offset+12:]))
	groupOff := offset + 16
	if groupOff+numGroups*12 > len(data) {
		return nil, ErrInvalidOffset
	}
	t := &cmapFormat12{groups: make([]cmap12Group, numGroups)}
	for i := 0; i < numGroups; i++ {
		off := groupOff + i*12
		t.groups[i] = cmap12Group{
			startChar:  binary.BigEndian.Uint32(data[off:]),
			endChar:    binary.BigEndian.Uint32(data[off+4:]),
			startGlyph: binary.BigEndian.Uint32(data[off+8:]),
		}
	}
	return t, nil
}

func (t *cmapFormat12) lookup(cp Codepoint) (GlyphID, bool) {
	c := uint32(cp)
	lo, hi := 0, len(t.groups)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		g := &t.groups[mid]
		switch {
		case c < g.startChar:
			hi = mid - 1
		case c > g.endChar:
			lo = mid + 1
		default:
			gid := g.startGlyph + (c - g.startChar)
			return GlyphID(gid), gid != 0
		}
	}
	return 0, false
}

// --- format 14: Unicode variation sequences ---

type varSelectorRecord struct {
	selector           uint32
	defaultUVSOffset   uint32
	nonDefaultUVSOffset uint32
}

type cmapFormat14 struct {
	data      []byte
	base      int
	selectors []varSelectorRecord
}

func parseCmapFormat14(data []byte, offset int) (*cmapFormat14, error) {
	if offset+10 > len(data) {
		return nil, ErrInvalidOffset
	}
	numRecords := int(binary.BigEndian.Uint32(data[offset+6:]))
	recOff := offset + 10
	if recOff+numRecords*11 > len(data) {
		return nil, ErrInvalidOffset
	}
	t := &cmapFormat14{data: data, base: offset}
	t.selectors = make([]varSelectorRecord, numRecords)
	for i := 0; i < numRecords; i++ {
		off := recOff + i*11
		sel := uint32(data[off])<<16 | uint32(data[off+1])<<8 | uint32(data[off+2])
		def := binary.BigEndian.Uint32(data[off+3:])
		nondef := binary.BigEndian.Uint32(data[off+7:])
		t.selectors[i] = varSelectorRecord{selector: sel, defaultUVSOffset: def, nonDefaultUVSOffset: nondef}
	}
	return t, nil
}

func (t *cmapFormat14) lookup(base, selector Codepoint) (GlyphID, bool) {
	var rec *varSelectorRecord
	for i := range t.selectors {
		if t.selectors[i].selector == uint32(selector) {
			rec = &t.selectors[i]
			break
		}
	}
	if rec == nil {
		return 0, false
	}

	if rec.nonDefaultUVSOffset != 0 {
		off := t.base + int(rec.nonDefaultUVSOffset)
		if off+4 <= len(t.data) {
			count := int(binary.BigEndian.Uint32(t.data[off:]))
			mapOff := off + 4
			lo, hi := 0, count-1
			for lo <= hi {
				mid := (lo + hi) / 2
				entryOff := mapOff + mid*5
				if entryOff+5 > len(t.data) {
					break
				}
				uv := uint32(t.data[entryOff])<<16 | uint32(t.data[entryOff+1])<<8 | uint32(t.data[entryOff+2])
				switch {
				case uint32(base) < uv:
					hi = mid - 1
				case uint32(base) > uv:
					lo = mid + 1
				default:
					gid := binary.BigEndian.Uint16(t.data[entryOff+3:])
					return GlyphID(gid), gid != 0
				}
			}
		}
	}
	// Default UVS table means "use the normal cmap mapping"; indicate
	// absence here so the caller falls back to Lookup(base).
	return 0, false
}
