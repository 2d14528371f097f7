package ot

import "encoding/binary"

// OS2 is a parsed OS/2 (OS/2 and Windows Metrics) table. Only the fields
// consumed elsewhere in this package are kept: symbol-font page selection
// and the bold/italic style bits used by synthetic emboldening decisions.
// HarfBuzz equivalent: OT/os2.hh
type OS2 struct {
	Version     uint16
	FsSelection uint16
	UsWeightClass uint16
}

// ParseOS2 parses an OS/2 table.
func ParseOS2(data []byte) (*OS2, error) {
	if len(data) < 64 {
		return nil, ErrInvalidTable
	}
	return &OS2{
		Version:       binary.BigEndian.Uint16(data[0:]),
		UsWeightClass: binary.BigEndian.Uint16(data[4:]),
		FsSelection:   binary.BigEndian.Uint16(data[62:]),
	}, nil
}

const (
	fsSelectionItalic = 0x0001
	fsSelectionBold   = 0x0020
	fsSelectionRegular = 0x0040
)

// IsBold reports whether the Bold bit of fsSelection is set.
func (o *OS2) IsBold() bool { return o.FsSelection&fsSelectionBold != 0 }

// IsItalic reports whether the Italic bit of fsSelection is set.
func (o *OS2) IsItalic() bool { return o.FsSelection&fsSelectionItalic != 0 }
