package ot

import "encoding/binary"

// GDEF (Glyph Definition) Table Implementation
//
// HarfBuzz equivalent: hb-ot-layout-gdef-table.hh
//
// GDEF carries the glyph class used to filter GSUB/GPOS lookup
// application (LookupFlag Ignore* bits), the mark-attachment class used
// by MarkAttachmentType filtering, and named mark glyph sets used by
// UseMarkFilteringSet.

// GlyphClass is the GDEF glyph class (§6.1: GDEF glyph class def).
type GlyphClass int

const (
	GlyphClassUnclassified GlyphClass = 0
	GlyphClassBase         GlyphClass = 1
	GlyphClassLigature     GlyphClass = 2
	GlyphClassMark         GlyphClass = 3
	GlyphClassComponent    GlyphClass = 4
)

// GDEF represents a parsed Glyph Definition table.
type GDEF struct {
	majorVersion uint16
	minorVersion uint16

	glyphClassDef     *ClassDef
	markAttachClassDef *ClassDef

	attachListOffset   uint32
	ligCaretListOffset uint32

	markGlyphSets []*Coverage // GDEF 1.2+: MarkGlyphSetsDef coverage tables
}

// ParseGDEF parses a GDEF table from data.
func ParseGDEF(data []byte) (*GDEF, error) {
	if len(data) < 12 {
		return nil, ErrInvalidTable
	}

	major := binary.BigEndian.Uint16(data[0:])
	minor := binary.BigEndian.Uint16(data[2:])
	if major != 1 {
		return nil, ErrInvalidFormat
	}

	glyphClassOff := binary.BigEndian.Uint16(data[4:])
	attachListOff := binary.BigEndian.Uint16(data[6:])
	ligCaretListOff := binary.BigEndian.Uint16(data[8:])
	markAttachClassOff := binary.BigEndian.Uint16(data[10:])

	g := &GDEF{
		majorVersion:       major,
		minorVersion:       minor,
		attachListOffset:   uint32(attachListOff),
		ligCaretListOffset: uint32(ligCaretListOff),
	}

	if glyphClassOff != 0 {
		g.glyphClassDef, _ = ParseClassDef(data, int(glyphClassOff))
	}
	if markAttachClassOff != 0 {
		g.markAttachClassDef, _ = ParseClassDef(data, int(markAttachClassOff))
	}

	// GDEF 1.2 adds MarkGlyphSetsDef at a fixed offset after the core
	// header; GDEF 1.3 additionally adds an ItemVarStore offset which
	// this port does not need (no variable GDEF classes are consumed).
	if minor >= 2 && len(data) >= 14 {
		markGlyphSetsOff := binary.BigEndian.Uint16(data[12:])
		if markGlyphSetsOff != 0 && int(markGlyphSetsOff) < len(data) {
			g.parseMarkGlyphSets(data, int(markGlyphSetsOff))
		}
	}

	return g, nil
}

func (g *GDEF) parseMarkGlyphSets(data []byte, offset int) {
	if offset+4 > len(data) {
		return
	}
	format := binary.BigEndian.Uint16(data[offset:])
	if format != 1 {
		return
	}
	count := int(binary.BigEndian.Uint16(data[offset+2:]))
	if offset+4+count*4 > len(data) {
		return
	}
	sets := make([]*Coverage, 0, count)
	for i := 0; i < count; i++ {
		covOff := binary.BigEndian.Uint32(data[offset+4+i*4:])
		if covOff == 0 {
			sets = append(sets, nil)
			continue
		}
		cov, err := ParseCoverage(data, offset+int(covOff))
		if err != nil {
			sets = append(sets, nil)
			continue
		}
		sets = append(sets, cov)
	}
	g.markGlyphSets = sets
}

// Version returns the GDEF table's major and minor version.
func (g *GDEF) Version() (uint16, uint16) { return g.majorVersion, g.minorVersion }

// HasGlyphClasses reports whether a GlyphClassDef subtable is present.
func (g *GDEF) HasGlyphClasses() bool { return g.glyphClassDef != nil }

// HasAttachList reports whether an AttachList subtable is present.
func (g *GDEF) HasAttachList() bool { return g.attachListOffset != 0 }

// HasLigCaretList reports whether a LigCaretList subtable is present.
func (g *GDEF) HasLigCaretList() bool { return g.ligCaretListOffset != 0 }

// HasMarkAttachClasses reports whether a MarkAttachClassDef is present.
func (g *GDEF) HasMarkAttachClasses() bool { return g.markAttachClassDef != nil }

// HasMarkGlyphSets reports whether GDEF 1.2+ mark glyph sets are present.
func (g *GDEF) HasMarkGlyphSets() bool { return len(g.markGlyphSets) > 0 }

// MarkGlyphSetCount returns the number of mark glyph sets.
func (g *GDEF) MarkGlyphSetCount() int { return len(g.markGlyphSets) }

// GetGlyphClass returns the GDEF glyph class for glyph, or
// GlyphClassUnclassified if no GlyphClassDef is present or the glyph is
// unlisted.
func (g *GDEF) GetGlyphClass(glyph GlyphID) GlyphClass {
	if g.glyphClassDef == nil {
		return GlyphClassUnclassified
	}
	return GlyphClass(g.glyphClassDef.GetClass(glyph))
}

// GetMarkAttachClass returns the mark-attachment class for glyph, or 0
// if no MarkAttachClassDef is present.
func (g *GDEF) GetMarkAttachClass(glyph GlyphID) int {
	if g.markAttachClassDef == nil {
		return 0
	}
	return g.markAttachClassDef.GetClass(glyph)
}

// IsInMarkGlyphSet reports whether glyph is a member of mark glyph set
// setIndex. Returns false for an out-of-range index.
func (g *GDEF) IsInMarkGlyphSet(glyph GlyphID, setIndex int) bool {
	if setIndex < 0 || setIndex >= len(g.markGlyphSets) {
		return false
	}
	cov := g.markGlyphSets[setIndex]
	if cov == nil {
		return false
	}
	return cov.GetCoverage(glyph) != NotCovered
}

// BuildDigest folds every glyph referenced by GDEF's GlyphClassDef into
// a SetDigest, used by GPOS's mark/base precomputation to quickly tell
// whether a lookup pass needs to consult GDEF at all.
func (g *GDEF) BuildDigest() SetDigest {
	var d SetDigest
	if g == nil {
		return d
	}
	if g.glyphClassDef != nil {
		for glyph := range g.glyphClassDef.Mapping() {
			d.Add(glyph)
		}
	}
	return d
}
