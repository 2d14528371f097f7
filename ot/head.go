package ot

import "encoding/binary"

// Head is a parsed head (Font Header) table.
// HarfBuzz equivalent: OT/head.hh
type Head struct {
	UnitsPerEm       uint16
	IndexToLocFormat int16
	FontRevision     float64
	MacStyle         uint16
}

// ParseHead parses a head table.
func ParseHead(data []byte) (*Head, error) {
	if len(data) < 54 {
		return nil, ErrInvalidTable
	}
	return &Head{
		FontRevision:     fixed16_16(binary.BigEndian.Uint32(data[4:])),
		UnitsPerEm:       binary.BigEndian.Uint16(data[18:]),
		MacStyle:         binary.BigEndian.Uint16(data[44:]),
		IndexToLocFormat: int16(binary.BigEndian.Uint16(data[50:])),
	}, nil
}

func fixed16_16(v uint32) float64 {
	return float64(int32(v)) / (1 << 16)
}
