package ot

import "encoding/binary"

// Hmtx is a parsed hmtx (Horizontal Metrics) table.
// HarfBuzz equivalent: OT/hmtx.hh (hb_ot_hmtx_accelerator_t)
type Hmtx struct {
	longMetrics []longHorMetric
	lsbs        []int16 // extra left-side bearings for glyphs beyond longMetrics
}

type longHorMetric struct {
	advanceWidth uint16
	lsb          int16
}

// ParseHmtxFromFont reads hhea to learn numberOfHMetrics, then parses the
// hmtx table accordingly. HarfBuzz does the equivalent lookup inside
// hb_ot_hmtx_accelerator_t::create().
func ParseHmtxFromFont(font *Font) (*Hmtx, error) {
	hheaData, err := font.TableData(TagHhea)
	if err != nil {
		return nil, err
	}
	hhea, err := ParseHhea(hheaData)
	if err != nil {
		return nil, err
	}
	data, err := font.TableData(TagHmtx)
	if err != nil {
		return nil, err
	}
	return ParseHmtx(data, int(hhea.NumberOfHMetrics), font.NumGlyphs())
}

// ParseHmtx parses an hmtx table given the number of long metrics records
// (from hhea.numberOfHMetrics) and the font's total glyph count.
func ParseHmtx(data []byte, numberOfHMetrics, numGlyphs int) (*Hmtx, error) {
	if numberOfHMetrics <= 0 {
		return nil, ErrInvalidArgument
	}
	if len(data) < numberOfHMetrics*4 {
		return nil, ErrInvalidTable
	}

	h := &Hmtx{longMetrics: make([]longHorMetric, numberOfHMetrics)}
	for i := 0; i < numberOfHMetrics; i++ {
		off := i * 4
		h.longMetrics[i] = longHorMetric{
			advanceWidth: binary.BigEndian.Uint16(data[off:]),
			lsb:          int16(binary.BigEndian.Uint16(data[off+2:])),
		}
	}

	extra := numGlyphs - numberOfHMetrics
	if extra > 0 {
		lsbOff := numberOfHMetrics * 4
		if len(data) >= lsbOff+extra*2 {
			h.lsbs = make([]int16, extra)
			for i := 0; i < extra; i++ {
				h.lsbs[i] = int16(binary.BigEndian.Uint16(data[lsbOff+i*2:]))
			}
		}
	}

	return h, nil
}

// GetAdvanceWidth returns the advance width for glyph, clamping to the
// last long metric entry for glyph ids beyond numberOfHMetrics, per the
// OpenType spec's monospace-tail convention.
func (h *Hmtx) GetAdvanceWidth(glyph GlyphID) uint16 {
	if len(h.longMetrics) == 0 {
		return 0
	}
	idx := int(glyph)
	if idx < len(h.longMetrics) {
		return h.longMetrics[idx].advanceWidth
	}
	return h.longMetrics[len(h.longMetrics)-1].advanceWidth
}

// GetLsb returns the left side bearing for glyph.
func (h *Hmtx) GetLsb(glyph GlyphID) int16 {
	idx := int(glyph)
	if idx < len(h.longMetrics) {
		return h.longMetrics[idx].lsb
	}
	extraIdx := idx - len(h.longMetrics)
	if extraIdx >= 0 && extraIdx < len(h.lsbs) {
		return h.lsbs[extraIdx]
	}
	if len(h.longMetrics) > 0 {
		return h.longMetrics[len(h.longMetrics)-1].lsb
	}
	return 0
}
