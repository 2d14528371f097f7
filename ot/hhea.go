package ot

import "encoding/binary"

// Hhea is a parsed hhea (Horizontal Header) table.
// HarfBuzz equivalent: OT/hhea.hh (hb_ot_hhea_t)
type Hhea struct {
	Ascender           int16
	Descender          int16
	LineGap            int16
	NumberOfHMetrics   uint16
}

// ParseHhea parses an hhea table.
func ParseHhea(data []byte) (*Hhea, error) {
	if len(data) < 36 {
		return nil, ErrInvalidTable
	}
	return &Hhea{
		Ascender:         int16(binary.BigEndian.Uint16(data[4:])),
		Descender:        int16(binary.BigEndian.Uint16(data[6:])),
		LineGap:          int16(binary.BigEndian.Uint16(data[8:])),
		NumberOfHMetrics: binary.BigEndian.Uint16(data[34:]),
	}, nil
}
