package ot

import (
	"encoding/binary"
	"testing"
)

// buildAvar builds a minimal avar table (version 1) for a single axis whose
// segment map bends the normalized range so that 0.5 maps to 0.25.
func buildAvar(t *testing.T) []byte {
	t.Helper()
	data := make([]byte, 8)
	binary.BigEndian.PutUint16(data[0:], 1) // majorVersion
	binary.BigEndian.PutUint16(data[2:], 0) // minorVersion
	binary.BigEndian.PutUint16(data[6:], 1) // axisCount

	// One axis, 3 position map entries: (-1,-1), (0.5,0.25), (1,1).
	entries := [][2]float64{{-1, -1}, {0.5, 0.25}, {1, 1}}
	axisHeader := make([]byte, 2)
	binary.BigEndian.PutUint16(axisHeader, uint16(len(entries)))
	data = append(data, axisHeader...)
	for _, e := range entries {
		data = binary.BigEndian.AppendUint16(data, uint16(floatToF2Dot14Raw(e[0])))
		data = binary.BigEndian.AppendUint16(data, uint16(floatToF2Dot14Raw(e[1])))
	}
	return data
}

func TestParseAvarMapsCoords(t *testing.T) {
	avar, err := ParseAvar(buildAvar(t))
	if err != nil {
		t.Fatalf("ParseAvar: %v", err)
	}
	if !avar.HasData() {
		t.Fatal("expected HasData true")
	}

	in := []int{int(floatToF2Dot14Raw(0.5))}
	out := avar.MapCoords(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 coord out, got %d", len(out))
	}
	got := f2dot14ToFloat(uint16(out[0]))
	if diff := got - 0.25; diff > 0.001 || diff < -0.001 {
		t.Errorf("MapCoords(0.5) = %v, want ~0.25", got)
	}
}

func TestParseAvarRejectsBadVersion(t *testing.T) {
	data := make([]byte, 8)
	binary.BigEndian.PutUint16(data[0:], 2) // unsupported major version
	if _, err := ParseAvar(data); err == nil {
		t.Error("expected error for unsupported avar version")
	}
}

// buildHvar builds a minimal HVAR table with one variation region on a
// single axis (start=0, peak=1, end=1 -- the common "only active in the
// positive direction" shape) and one glyph whose delta for that region is
// 100, with no DeltaSetIndexMap (so glyph id indexes directly into the
// single ItemVariationData's delta sets). Offsets inside the ItemVariation
// store are relative to ivsOffset, same as the values ParseHvar reads them
// as; laid out here as consecutive fixed blocks so each offset is a
// constant instead of threaded through append calls:
//
//	ivs[0:8)    ItemVariationStore header (format, regionListOffset=12,
//	            itemVarDataCount=1)
//	ivs[8:12)   varDataOffsets[0] = 22
//	ivs[12:22)  VariationRegionList (axisCount=1, regionCount=1)
//	ivs[22:32)  ItemVariationData (itemCount=1, one region, delta=100)
func buildHvar(t *testing.T) []byte {
	t.Helper()

	const ivsOffset = 12
	const regionListOff = 12
	const varDataOff = 22

	ivs := make([]byte, 32)
	binary.BigEndian.PutUint16(ivs[0:], 1)                     // format
	binary.BigEndian.PutUint32(ivs[2:], uint32(regionListOff)) // regionListOffset
	binary.BigEndian.PutUint16(ivs[6:], 1)                     // itemVarDataCount
	binary.BigEndian.PutUint32(ivs[8:], uint32(varDataOff))    // varDataOffsets[0]

	// VariationRegionList: one axis, one region (start=0, peak=1, end=1).
	binary.BigEndian.PutUint16(ivs[12:], 1) // axisCount
	binary.BigEndian.PutUint16(ivs[14:], 1) // regionCount
	binary.BigEndian.PutUint16(ivs[16:], uint16(floatToF2Dot14Raw(0)))
	binary.BigEndian.PutUint16(ivs[18:], uint16(floatToF2Dot14Raw(1)))
	binary.BigEndian.PutUint16(ivs[20:], uint16(floatToF2Dot14Raw(1)))

	// ItemVariationData: itemCount=1 (glyph 0), shortDeltaCount=1,
	// regionIndexCount=1, regionIndexes=[0], one row with delta=100.
	binary.BigEndian.PutUint16(ivs[22:], 1) // itemCount
	binary.BigEndian.PutUint16(ivs[24:], 1) // shortDeltaCount
	binary.BigEndian.PutUint16(ivs[26:], 1) // regionIndexCount
	binary.BigEndian.PutUint16(ivs[28:], 0) // regionIndexes[0]
	binary.BigEndian.PutUint16(ivs[30:], 100)

	data := make([]byte, 12)
	binary.BigEndian.PutUint16(data[0:], 1)                 // majorVersion
	binary.BigEndian.PutUint32(data[4:], uint32(ivsOffset)) // itemVarStoreOffset
	binary.BigEndian.PutUint32(data[8:], 0)                 // advanceWidthMapOffset (none)
	return append(data, ivs...)
}

func TestParseHvarAdvanceDelta(t *testing.T) {
	hvar, err := ParseHvar(buildHvar(t))
	if err != nil {
		t.Fatalf("ParseHvar: %v", err)
	}
	if !hvar.HasData() {
		t.Fatal("expected HasData true")
	}

	// At the region's peak (coord=1), the scalar is 1.0: full delta applies.
	atPeak := hvar.GetAdvanceDelta(0, []int{int(floatToF2Dot14Raw(1))})
	if atPeak != 100 {
		t.Errorf("GetAdvanceDelta at peak = %v, want 100", atPeak)
	}

	// At the default (coord=0), coord equals the region's start, so the
	// triangular scalar is exactly 0 and the delta doesn't apply.
	atDefault := hvar.GetAdvanceDelta(0, []int{0})
	if atDefault != 0 {
		t.Errorf("GetAdvanceDelta at default = %v, want 0", atDefault)
	}

	// Glyph with no row falls back to zero delta.
	if d := hvar.GetAdvanceDelta(5, []int{int(floatToF2Dot14Raw(1))}); d != 0 {
		t.Errorf("GetAdvanceDelta for out-of-range glyph = %v, want 0", d)
	}
}

func TestParseVmtxAdvanceHeightAndTsb(t *testing.T) {
	// 2 vMetrics glyphs + 1 glyph sharing the last advance height.
	data := make([]byte, 0, 4*2+2)
	data = binary.BigEndian.AppendUint16(data, 1000) // glyph0 advanceHeight
	data = binary.BigEndian.AppendUint16(data, uint16(int16(10)))
	data = binary.BigEndian.AppendUint16(data, 900) // glyph1 advanceHeight
	data = binary.BigEndian.AppendUint16(data, uint16(int16(-5)))
	data = binary.BigEndian.AppendUint16(data, uint16(int16(20))) // glyph2 tsb only

	vmtx, err := ParseVmtx(data, 2, 3)
	if err != nil {
		t.Fatalf("ParseVmtx: %v", err)
	}

	if got := vmtx.GetAdvanceHeight(0); got != 1000 {
		t.Errorf("glyph0 advance height = %d, want 1000", got)
	}
	if got := vmtx.GetAdvanceHeight(1); got != 900 {
		t.Errorf("glyph1 advance height = %d, want 900", got)
	}
	// glyph2 has no explicit vMetric entry: shares glyph1's advance height.
	if got := vmtx.GetAdvanceHeight(2); got != 900 {
		t.Errorf("glyph2 advance height (shared) = %d, want 900", got)
	}
	if got := vmtx.GetTsb(2); got != 20 {
		t.Errorf("glyph2 tsb = %d, want 20", got)
	}
}

func TestParseVORGFallsBackToDefault(t *testing.T) {
	data := make([]byte, 0, 8+2*4)
	data = binary.BigEndian.AppendUint16(data, 1)                    // majorVersion
	data = binary.BigEndian.AppendUint16(data, 0)                    // minorVersion
	data = binary.BigEndian.AppendUint16(data, uint16(int16(880)))   // defaultVertOriginY
	data = binary.BigEndian.AppendUint16(data, 2)                    // numRecords
	data = binary.BigEndian.AppendUint16(data, 5)                    // glyphIndex
	data = binary.BigEndian.AppendUint16(data, uint16(int16(950)))   // vertOriginY
	data = binary.BigEndian.AppendUint16(data, 9)                    // glyphIndex
	data = binary.BigEndian.AppendUint16(data, uint16(int16(-20)))   // vertOriginY

	vorg, err := ParseVORG(data)
	if err != nil {
		t.Fatalf("ParseVORG: %v", err)
	}

	if got := vorg.GetVertOriginY(5); got != 950 {
		t.Errorf("glyph5 vertOriginY = %d, want 950", got)
	}
	if got := vorg.GetVertOriginY(9); got != -20 {
		t.Errorf("glyph9 vertOriginY = %d, want -20", got)
	}
	if got := vorg.GetVertOriginY(0); got != 880 {
		t.Errorf("glyph0 (no entry) vertOriginY = %d, want default 880", got)
	}
}
