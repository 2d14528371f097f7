package ot

import "encoding/binary"

// avar (Axis Variations) Table Implementation
// HarfBuzz equivalent: OT/avar.hh
//
// avar remaps each axis's normalized [-1,1] coordinate through a
// piecewise-linear segment map before gvar/HVAR delta lookup consumes it.

type avarSegmentMap struct {
	fromCoords []float64 // F2Dot14 values, ascending
	toCoords   []float64
}

// Avar is a parsed avar table.
type Avar struct {
	segmentMaps []avarSegmentMap
}

// ParseAvar parses an avar table.
func ParseAvar(data []byte) (*Avar, error) {
	if len(data) < 8 {
		return nil, ErrInvalidTable
	}
	majorVersion := binary.BigEndian.Uint16(data[0:])
	if majorVersion != 1 {
		return nil, ErrInvalidFormat
	}
	axisCount := int(binary.BigEndian.Uint16(data[6:]))

	a := &Avar{segmentMaps: make([]avarSegmentMap, axisCount)}
	pos := 8
	for i := 0; i < axisCount; i++ {
		if pos+2 > len(data) {
			return nil, ErrInvalidOffset
		}
		positionMapCount := int(binary.BigEndian.Uint16(data[pos:]))
		pos += 2
		if pos+positionMapCount*4 > len(data) {
			return nil, ErrInvalidOffset
		}
		sm := avarSegmentMap{
			fromCoords: make([]float64, positionMapCount),
			toCoords:   make([]float64, positionMapCount),
		}
		for j := 0; j < positionMapCount; j++ {
			off := pos + j*4
			sm.fromCoords[j] = f2dot14ToFloat(binary.BigEndian.Uint16(data[off:]))
			sm.toCoords[j] = f2dot14ToFloat(binary.BigEndian.Uint16(data[off+2:]))
		}
		a.segmentMaps[i] = sm
		pos += positionMapCount * 4
	}

	return a, nil
}

func f2dot14ToFloat(v uint16) float64 {
	return float64(int16(v)) / (1 << 14)
}

func floatToF2Dot14Raw(v float64) int16 {
	return int16(v * (1 << 14))
}

// HasData reports whether avar declares any segment maps.
func (a *Avar) HasData() bool { return a != nil && len(a.segmentMaps) > 0 }

// MapCoords applies each axis's segment map to the corresponding
// normalized coordinate (given and returned as F2Dot14 fixed-point
// ints, matching the Shaper's normalizedCoordsI representation).
func (a *Avar) MapCoords(coordsI []int) []int {
	out := make([]int, len(coordsI))
	for i, c := range coordsI {
		if i >= len(a.segmentMaps) {
			out[i] = c
			continue
		}
		out[i] = int(floatToF2Dot14Raw(a.mapAxis(i, f2dot14ToFloat(uint16(c)))))
	}
	return out
}

func (a *Avar) mapAxis(axisIndex int, v float64) float64 {
	sm := a.segmentMaps[axisIndex]
	if len(sm.fromCoords) == 0 {
		return v
	}
	if v <= sm.fromCoords[0] {
		return sm.toCoords[0] + (v-sm.fromCoords[0])
	}
	last := len(sm.fromCoords) - 1
	if v >= sm.fromCoords[last] {
		return sm.toCoords[last] + (v - sm.fromCoords[last])
	}
	for i := 0; i < last; i++ {
		x0, x1 := sm.fromCoords[i], sm.fromCoords[i+1]
		if v >= x0 && v <= x1 {
			if x1 == x0 {
				return sm.toCoords[i]
			}
			y0, y1 := sm.toCoords[i], sm.toCoords[i+1]
			t := (v - x0) / (x1 - x0)
			return y0 + t*(y1-y0)
		}
	}
	return v
}
