package ot

import (
	"encoding/binary"
	"testing"
)

// buildMorxNonContextual builds a minimal 'morx' table with a single chain
// and a single non-contextual (type 4) subtable whose lookup table is AAT
// format 0 (flat array indexed by glyph id).
func buildMorxNonContextual(t *testing.T, values []uint16) []byte {
	t.Helper()

	var lookup []byte
	lookup = binary.BigEndian.AppendUint16(lookup, 0) // format 0
	for _, v := range values {
		lookup = binary.BigEndian.AppendUint16(lookup, v)
	}

	subHeader := make([]byte, 12)
	subLength := uint32(12 + len(lookup))
	binary.BigEndian.PutUint32(subHeader[0:], subLength)
	binary.BigEndian.PutUint32(subHeader[4:], uint32(morxTypeNonContextual)) // coverage: type only
	binary.BigEndian.PutUint32(subHeader[8:], 0x00000001)                   // subFeatureFlags
	subtable := append(subHeader, lookup...)

	chainHeader := make([]byte, 16)
	binary.BigEndian.PutUint32(chainHeader[0:], 0x00000001) // defaultFlags
	binary.BigEndian.PutUint32(chainHeader[8:], 0)           // nFeatureEntries
	binary.BigEndian.PutUint32(chainHeader[12:], 1)          // nSubtables
	chain := append(chainHeader, subtable...)
	binary.BigEndian.PutUint32(chain[4:], uint32(len(chain))) // chainLength

	header := make([]byte, 8)
	binary.BigEndian.PutUint16(header[0:], 2) // version
	binary.BigEndian.PutUint32(header[4:], 1) // nChains

	return append(header, chain...)
}

func TestParseMorxNonContextual(t *testing.T) {
	data := buildMorxNonContextual(t, []uint16{10, 11, 12})

	morx, err := ParseMorx(data)
	if err != nil {
		t.Fatalf("ParseMorx: %v", err)
	}
	if len(morx.chains) != 1 {
		t.Fatalf("expected 1 chain, got %d", len(morx.chains))
	}
	chain := morx.chains[0]
	if chain.defaultFlags != 0x00000001 {
		t.Fatalf("defaultFlags = %#x, want 0x1", chain.defaultFlags)
	}
	if len(chain.subtables) != 1 {
		t.Fatalf("expected 1 subtable, got %d", len(chain.subtables))
	}
	sub := chain.subtables[0]
	if sub.subtableType != morxTypeNonContextual {
		t.Fatalf("subtableType = %d, want %d", sub.subtableType, morxTypeNonContextual)
	}
	if sub.nonContextual == nil {
		t.Fatal("nonContextual lookup table not parsed")
	}

	for glyph, want := range []uint16{10, 11, 12} {
		got, ok := sub.nonContextual.lookup(GlyphID(glyph))
		if !ok || got != want {
			t.Errorf("lookup(%d) = %d, %v; want %d, true", glyph, got, ok, want)
		}
	}
}

func TestApplyMorxNonContextualSubstitution(t *testing.T) {
	data := buildMorxNonContextual(t, []uint16{100, 101, 102})
	morx, err := ParseMorx(data)
	if err != nil {
		t.Fatalf("ParseMorx: %v", err)
	}

	buf := NewBuffer()
	buf.Info = []GlyphInfo{{GlyphID: 0}, {GlyphID: 1}, {GlyphID: 2}}
	buf.Pos = make([]GlyphPos, 3)

	ApplyMorx(morx, buf)

	want := []GlyphID{100, 101, 102}
	for i, w := range want {
		if buf.Info[i].GlyphID != w {
			t.Errorf("glyph[%d] = %d, want %d", i, buf.Info[i].GlyphID, w)
		}
	}
}

func TestApplyMorxSkipsDisabledSubtable(t *testing.T) {
	data := buildMorxNonContextual(t, []uint16{100, 101, 102})
	// The chain header's defaultFlags and the subtable's flags are both
	// 0x1 in the fixture; zeroing the parsed chain's defaultFlags makes
	// them stop intersecting, so the subtable must not run.
	morx, err := ParseMorx(data)
	if err != nil {
		t.Fatalf("ParseMorx: %v", err)
	}
	morx.chains[0].defaultFlags = 0 // no sub-feature bits enabled

	buf := NewBuffer()
	buf.Info = []GlyphInfo{{GlyphID: 0}, {GlyphID: 1}}
	buf.Pos = make([]GlyphPos, 2)

	ApplyMorx(morx, buf)

	if buf.Info[0].GlyphID != 0 || buf.Info[1].GlyphID != 1 {
		t.Fatalf("subtable ran despite defaultFlags disabling it: %+v", buf.Info)
	}
}

func TestAATLookupTableFormat8Trimmed(t *testing.T) {
	data := make([]byte, 6+3*2)
	binary.BigEndian.PutUint16(data[0:], 8)  // format
	binary.BigEndian.PutUint16(data[2:], 5)  // firstGlyph
	binary.BigEndian.PutUint16(data[4:], 3)  // glyphCount
	binary.BigEndian.PutUint16(data[6:], 50)
	binary.BigEndian.PutUint16(data[8:], 51)
	binary.BigEndian.PutUint16(data[10:], 52)

	lk, err := parseAATLookupTable(data)
	if err != nil {
		t.Fatalf("parseAATLookupTable: %v", err)
	}
	if v, ok := lk.lookup(6); !ok || v != 51 {
		t.Errorf("lookup(6) = %d, %v; want 51, true", v, ok)
	}
	if _, ok := lk.lookup(4); ok {
		t.Errorf("lookup(4) should miss (below firstGlyph)")
	}
}

func TestAATLookupTableFormat2Range(t *testing.T) {
	// BinSrchHeader: unitSize(2)=6 nUnits(2)=1 searchRange entrySelector rangeShift
	data := make([]byte, 12+6)
	binary.BigEndian.PutUint16(data[0:], 2) // format
	binary.BigEndian.PutUint16(data[2:], 6) // unitSize
	binary.BigEndian.PutUint16(data[4:], 1) // nUnits
	binary.BigEndian.PutUint16(data[12:], 20) // lastGlyph
	binary.BigEndian.PutUint16(data[14:], 10) // firstGlyph
	binary.BigEndian.PutUint16(data[16:], 7)  // value

	lk, err := parseAATLookupTable(data)
	if err != nil {
		t.Fatalf("parseAATLookupTable: %v", err)
	}
	if v, ok := lk.lookup(15); !ok || v != 7 {
		t.Errorf("lookup(15) = %d, %v; want 7, true", v, ok)
	}
	if _, ok := lk.lookup(21); ok {
		t.Errorf("lookup(21) should miss (outside range)")
	}
}
