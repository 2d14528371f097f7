package ot

import (
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Unicode Character Database access, backed by golang.org/x/text/unicode/norm
// rather than a generated table: this port has no UnicodeData.txt generator
// step, so canonical decomposition/composition and combining class all go
// through x/text's compiled UCD tables instead.
// HarfBuzz equivalent: hb-ucd.cc (generated from the same UCD source data).

// Decompose returns the canonical decomposition of cp as a pair of
// codepoints, matching hb_ucd_decompose()'s binary (always two outputs,
// second may be 0) shape. Singleton and non-canonical (compatibility)
// decompositions are not surfaced, matching HarfBuzz's NFD-only behavior.
func Decompose(cp Codepoint) (Codepoint, Codepoint, bool) {
	r := rune(cp)
	dec := norm.NFD.Properties(utf8Encode(r)).Decomposition()
	if dec == nil {
		return 0, 0, false
	}
	runes := []rune(string(dec))
	switch len(runes) {
	case 1:
		return 0, 0, false
	case 2:
		return Codepoint(runes[0]), Codepoint(runes[1]), true
	default:
		// Multi-level decomposition: recompose all but the last rune to
		// recover the first-level pair (e.g. U+1E09 -> U+00E7 U+0301).
		first := []rune(norm.NFC.String(string(runes[:len(runes)-1])))
		if len(first) != 1 {
			return 0, 0, false
		}
		return Codepoint(first[0]), Codepoint(runes[len(runes)-1]), true
	}
}

// Compose returns the canonical composition of a and b, if one exists.
// HarfBuzz equivalent: hb_ucd_compose() in hb-ucd.cc
func Compose(a, b Codepoint) (Codepoint, bool) {
	buf := append(utf8Encode(rune(a)), utf8Encode(rune(b))...)
	composed := norm.NFC.String(string(buf))
	runes := []rune(composed)
	if len(runes) != 1 {
		return 0, false
	}
	return Codepoint(runes[0]), true
}

// getCombiningClass returns the Unicode canonical combining class (CCC)
// of cp. HarfBuzz equivalent: hb_ucd_combining_class() in hb-ucd.cc
func getCombiningClass(cp Codepoint) uint8 {
	return uint8(norm.NFD.Properties(utf8Encode(rune(cp))).CCC())
}

func utf8Encode(r rune) []byte {
	b := make([]byte, utf8.UTFMax)
	n := utf8.EncodeRune(b, r)
	return b[:n]
}
