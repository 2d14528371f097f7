package ot

import "encoding/binary"

// fvar (Font Variations) Table Implementation
// HarfBuzz equivalent: OT/fvar.hh

// AxisInfo describes one variation axis.
type AxisInfo struct {
	Tag          Tag
	MinValue     float32
	DefaultValue float32
	MaxValue     float32
	Flags        uint16
	NameID       uint16
}

// NamedInstance is one entry of fvar's named instance list.
type NamedInstance struct {
	SubfamilyNameID uint16
	Coords          []float32
	PostScriptNameID uint16
}

// Fvar is a parsed fvar table.
type Fvar struct {
	axes      []AxisInfo
	instances []NamedInstance
}

// ParseFvar parses an fvar table.
func ParseFvar(data []byte) (*Fvar, error) {
	if len(data) < 16 {
		return nil, ErrInvalidTable
	}
	majorVersion := binary.BigEndian.Uint16(data[0:])
	if majorVersion != 1 {
		return nil, ErrInvalidFormat
	}
	axesArrayOffset := int(binary.BigEndian.Uint16(data[4:]))
	axisCount := int(binary.BigEndian.Uint16(data[8:]))
	axisSize := int(binary.BigEndian.Uint16(data[10:]))
	instanceCount := int(binary.BigEndian.Uint16(data[12:]))
	instanceSize := int(binary.BigEndian.Uint16(data[14:]))

	if axisSize < 20 || axesArrayOffset+axisCount*axisSize > len(data) {
		return nil, ErrInvalidTable
	}

	f := &Fvar{axes: make([]AxisInfo, axisCount)}
	for i := 0; i < axisCount; i++ {
		off := axesArrayOffset + i*axisSize
		f.axes[i] = AxisInfo{
			Tag:          Tag(binary.BigEndian.Uint32(data[off:])),
			MinValue:     float32(fixed16_16(binary.BigEndian.Uint32(data[off+4:]))),
			DefaultValue: float32(fixed16_16(binary.BigEndian.Uint32(data[off+8:]))),
			MaxValue:     float32(fixed16_16(binary.BigEndian.Uint32(data[off+12:]))),
			Flags:        binary.BigEndian.Uint16(data[off+16:]),
			NameID:       binary.BigEndian.Uint16(data[off+18:]),
		}
	}

	if instanceCount > 0 && instanceSize >= 4+axisCount*4 {
		instArrayOffset := axesArrayOffset + axisCount*axisSize
		f.instances = make([]NamedInstance, 0, instanceCount)
		for i := 0; i < instanceCount; i++ {
			off := instArrayOffset + i*instanceSize
			if off+4+axisCount*4 > len(data) {
				break
			}
			inst := NamedInstance{
				SubfamilyNameID: binary.BigEndian.Uint16(data[off:]),
				Coords:          make([]float32, axisCount),
			}
			for a := 0; a < axisCount; a++ {
				inst.Coords[a] = float32(fixed16_16(binary.BigEndian.Uint32(data[off+4+a*4:])))
			}
			if instanceSize >= 6+axisCount*4 {
				inst.PostScriptNameID = binary.BigEndian.Uint16(data[off+4+axisCount*4:])
			}
			f.instances = append(f.instances, inst)
		}
	}

	return f, nil
}

// HasData reports whether the table declares any variation axes.
func (f *Fvar) HasData() bool { return f != nil && len(f.axes) > 0 }

// AxisCount returns the number of variation axes.
func (f *Fvar) AxisCount() int { return len(f.axes) }

// AxisInfos returns the axis records in declaration order.
func (f *Fvar) AxisInfos() []AxisInfo { return f.axes }

// NamedInstanceAt returns the named instance at index, if present.
func (f *Fvar) NamedInstanceAt(index int) (NamedInstance, bool) {
	if index < 0 || index >= len(f.instances) {
		return NamedInstance{}, false
	}
	return f.instances[index], true
}

// NamedInstanceCount returns the number of named instances.
func (f *Fvar) NamedInstanceCount() int { return len(f.instances) }

// NormalizeAxisValue maps a design-space axis value to the standard
// normalized [-1, 1] range, per the OpenType "Normalization of default
// value" algorithm in the fvar spec section (piecewise linear between
// min/default/max).
func (f *Fvar) NormalizeAxisValue(axisIndex int, value float32) float32 {
	if axisIndex < 0 || axisIndex >= len(f.axes) {
		return 0
	}
	a := f.axes[axisIndex]

	v := value
	if v < a.MinValue {
		v = a.MinValue
	}
	if v > a.MaxValue {
		v = a.MaxValue
	}

	switch {
	case v == a.DefaultValue:
		return 0
	case v < a.DefaultValue:
		if a.DefaultValue == a.MinValue {
			return 0
		}
		return -(a.DefaultValue - v) / (a.DefaultValue - a.MinValue)
	default:
		if a.MaxValue == a.DefaultValue {
			return 0
		}
		return (v - a.DefaultValue) / (a.MaxValue - a.DefaultValue)
	}
}
