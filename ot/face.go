package ot

// Face pairs a parsed Font with the metrics Shaper needs up front
// (units-per-em, ascender/descender) so they don't need re-deriving from
// head/hhea on every call.
// HarfBuzz equivalent: hb_face_t / hb_font_t split in hb-face.hh, hb-font.hh
type Face struct {
	Font *Font

	upem      uint16
	ascender  int16
	descender int16
}

// NewFace builds a Face from a parsed Font, reading head for unitsPerEm
// and hhea for the ascender/descender fallback used when vmtx is absent.
func NewFace(font *Font) (*Face, error) {
	f := &Face{Font: font, upem: 1000}

	if font.HasTable(TagHead) {
		data, err := font.TableData(TagHead)
		if err == nil {
			if head, err := ParseHead(data); err == nil && head.UnitsPerEm != 0 {
				f.upem = head.UnitsPerEm
			}
		}
	}

	if font.HasTable(TagHhea) {
		data, err := font.TableData(TagHhea)
		if err == nil {
			if hhea, err := ParseHhea(data); err == nil {
				f.ascender = hhea.Ascender
				f.descender = hhea.Descender
			}
		}
	}

	if f.ascender == 0 && f.descender == 0 {
		// HarfBuzz falls back to 0.8/-0.2 of upem when hhea is absent.
		f.ascender = int16(float64(f.upem) * 0.8)
		f.descender = -int16(float64(f.upem) * 0.2)
	}

	return f, nil
}

// Upem returns the font's units-per-em.
func (f *Face) Upem() uint16 { return f.upem }

// Ascender returns the font's ascender in font units.
func (f *Face) Ascender() int16 { return f.ascender }

// Descender returns the font's descender in font units (negative).
func (f *Face) Descender() int16 { return f.descender }
