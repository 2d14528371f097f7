package ot

import "encoding/binary"

// Parser is a cursor over an immutable byte buffer, reading big-endian
// OpenType primitives. It carries no state beyond its position: all
// table parsing is a pure function of the bytes a Parser was built from.
// HarfBuzz equivalent: hb_ot_layout parsing helpers built on hb-open-type.hh.
type Parser struct {
	data []byte
	pos  int
}

// NewParser wraps data for sequential reads starting at offset 0.
func NewParser(data []byte) *Parser {
	return &Parser{data: data}
}

// Offset returns the current read position.
func (p *Parser) Offset() int { return p.pos }

// SetOffset repositions the cursor. It does not validate the new
// position; the next read will fail with ErrInvalidOffset if it is out
// of range.
func (p *Parser) SetOffset(off int) { p.pos = off }

// Skip advances the cursor by n bytes (may be negative).
func (p *Parser) Skip(n int) { p.pos += n }

// Remaining returns the number of unread bytes.
func (p *Parser) Remaining() int {
	if p.pos >= len(p.data) {
		return 0
	}
	return len(p.data) - p.pos
}

// Len returns the total length of the underlying buffer.
func (p *Parser) Len() int { return len(p.data) }

// Bytes returns the underlying buffer. Callers must not mutate it.
func (p *Parser) Bytes() []byte { return p.data }

// Slice returns an independent sub-cursor over data[offset : offset+length].
func (p *Parser) Slice(offset, length int) (*Parser, error) {
	if offset < 0 || length < 0 || offset+length > len(p.data) {
		return nil, ErrInvalidOffset
	}
	return NewParser(p.data[offset : offset+length]), nil
}

// SliceFrom returns an independent sub-cursor over data[offset:].
func (p *Parser) SliceFrom(offset int) (*Parser, error) {
	if offset < 0 || offset > len(p.data) {
		return nil, ErrInvalidOffset
	}
	return NewParser(p.data[offset:]), nil
}

func (p *Parser) need(n int) error {
	if p.pos < 0 || p.pos+n > len(p.data) {
		return ErrInvalidOffset
	}
	return nil
}

// U8 reads an unsigned 8-bit integer.
func (p *Parser) U8() (uint8, error) {
	if err := p.need(1); err != nil {
		return 0, err
	}
	v := p.data[p.pos]
	p.pos++
	return v, nil
}

// I8 reads a signed 8-bit integer.
func (p *Parser) I8() (int8, error) {
	v, err := p.U8()
	return int8(v), err
}

// U16 reads a big-endian unsigned 16-bit integer.
func (p *Parser) U16() (uint16, error) {
	if err := p.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(p.data[p.pos:])
	p.pos += 2
	return v, nil
}

// I16 reads a big-endian signed 16-bit integer.
func (p *Parser) I16() (int16, error) {
	v, err := p.U16()
	return int16(v), err
}

// U24 reads a big-endian unsigned 24-bit integer (Offset24 / Uint24).
func (p *Parser) U24() (uint32, error) {
	if err := p.need(3); err != nil {
		return 0, err
	}
	v := uint32(p.data[p.pos])<<16 | uint32(p.data[p.pos+1])<<8 | uint32(p.data[p.pos+2])
	p.pos += 3
	return v, nil
}

// U32 reads a big-endian unsigned 32-bit integer.
func (p *Parser) U32() (uint32, error) {
	if err := p.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(p.data[p.pos:])
	p.pos += 4
	return v, nil
}

// I32 reads a big-endian signed 32-bit integer.
func (p *Parser) I32() (int32, error) {
	v, err := p.U32()
	return int32(v), err
}

// Tag reads a 4-byte Tag.
func (p *Parser) Tag() (Tag, error) {
	v, err := p.U32()
	return Tag(v), err
}

// F2Dot14 reads a 16-bit signed fixed-point number with 2 integer bits
// and 14 fractional bits, as used for variation axis coordinates and
// device-table deltas.
func (p *Parser) F2Dot14() (float64, error) {
	v, err := p.I16()
	if err != nil {
		return 0, err
	}
	return float64(v) / (1 << 14), nil
}

// Fixed reads a 16.16 fixed-point number, as used for table version
// numbers and some metrics fields.
func (p *Parser) Fixed() (float64, error) {
	v, err := p.I32()
	if err != nil {
		return 0, err
	}
	return float64(v) / (1 << 16), nil
}

// PeekU16At reads a u16 at an absolute offset without moving the cursor.
func (p *Parser) PeekU16At(offset int) (uint16, error) {
	if offset < 0 || offset+2 > len(p.data) {
		return 0, ErrInvalidOffset
	}
	return binary.BigEndian.Uint16(p.data[offset:]), nil
}

// PeekU32At reads a u32 at an absolute offset without moving the cursor.
func (p *Parser) PeekU32At(offset int) (uint32, error) {
	if offset < 0 || offset+4 > len(p.data) {
		return 0, ErrInvalidOffset
	}
	return binary.BigEndian.Uint32(p.data[offset:]), nil
}
