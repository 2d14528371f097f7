package ot

// bidiMirrorTable maps a codepoint to its bidi-mirrored counterpart, used
// by rotateChars to substitute paired punctuation (brackets, parens, angle
// quotes) when laying out right-to-left and bottom-to-top runs.
// HarfBuzz equivalent: hb_unicode_funcs_t::mirroring() -> hb_ucd_mirroring()
// in hb-ucd.cc, generated from Unicode's BidiMirroring.txt.
//
// golang.org/x/text/unicode/bidi (this package's external bidi collaborator,
// see bidi.go) resolves paragraph embedding levels but does not expose the
// mirroring table, so this is a hand-curated subset covering the pairs that
// actually occur in running RTL text: brackets, parens, braces, angle
// brackets/quotes and a handful of math comparison operators. It is not the
// full ~500-entry BidiMirroring.txt.
var bidiMirrorTable = map[Codepoint]Codepoint{
	0x0028: 0x0029, // ( LEFT PARENTHESIS
	0x0029: 0x0028, // ) RIGHT PARENTHESIS
	0x003C: 0x003E, // < LESS-THAN SIGN
	0x003E: 0x003C, // > GREATER-THAN SIGN
	0x005B: 0x005D, // [ LEFT SQUARE BRACKET
	0x005D: 0x005B, // ] RIGHT SQUARE BRACKET
	0x007B: 0x007D, // { LEFT CURLY BRACKET
	0x007D: 0x007B, // } RIGHT CURLY BRACKET

	0x00AB: 0x00BB, // « LEFT-POINTING DOUBLE ANGLE QUOTATION MARK
	0x00BB: 0x00AB, // » RIGHT-POINTING DOUBLE ANGLE QUOTATION MARK

	0x2039: 0x203A, // ‹ SINGLE LEFT-POINTING ANGLE QUOTATION MARK
	0x203A: 0x2039, // › SINGLE RIGHT-POINTING ANGLE QUOTATION MARK

	0x2264: 0x2265, // ≤ LESS-THAN OR EQUAL TO
	0x2265: 0x2264, // ≥ GREATER-THAN OR EQUAL TO
	0x2266: 0x2267, // ≦ LESS-THAN OVER EQUAL TO
	0x2267: 0x2266, // ≧ GREATER-THAN OVER EQUAL TO
	0x2268: 0x2269, // ≨ [LESS-THAN BUT NOT EQUAL TO]
	0x2269: 0x2268, // ≩ [GREATER-THAN BUT NOT EQUAL TO]

	0x2215: 0x29F5, // ∕ DIVISION SLASH
	0x29F5: 0x2215, // ⧵ REVERSE SOLIDUS OPERATOR

	0x2308: 0x2309, // ⌈ LEFT CEILING
	0x2309: 0x2308, // ⌉ RIGHT CEILING
	0x230A: 0x230B, // ⌊ LEFT FLOOR
	0x230B: 0x230A, // ⌋ RIGHT FLOOR

	0x2329: 0x232A, // 〈 LEFT-POINTING ANGLE BRACKET
	0x232A: 0x2329, // 〉 RIGHT-POINTING ANGLE BRACKET

	0x3008: 0x3009, // 〈 LEFT ANGLE BRACKET
	0x3009: 0x3008, // 〉 RIGHT ANGLE BRACKET
	0x300A: 0x300B, // 《 LEFT DOUBLE ANGLE BRACKET
	0x300B: 0x300A, // 》 RIGHT DOUBLE ANGLE BRACKET
	0x300C: 0x300D, // 「 LEFT CORNER BRACKET
	0x300D: 0x300C, // 」 RIGHT CORNER BRACKET
	0x300E: 0x300F, // 『 LEFT WHITE CORNER BRACKET
	0x300F: 0x300E, // 』 RIGHT WHITE CORNER BRACKET
	0x3010: 0x3011, // 【 LEFT BLACK LENTICULAR BRACKET
	0x3011: 0x3010, // 】 RIGHT BLACK LENTICULAR BRACKET
	0x3014: 0x3015, // 〔 LEFT TORTOISE SHELL BRACKET
	0x3015: 0x3014, // 〕 RIGHT TORTOISE SHELL BRACKET
	0x3016: 0x3017, // 〖 LEFT WHITE LENTICULAR BRACKET
	0x3017: 0x3016, // 〗 RIGHT WHITE LENTICULAR BRACKET
	0x3018: 0x3019, // 〘 LEFT WHITE TORTOISE SHELL BRACKET
	0x3019: 0x3018, // 〙 RIGHT WHITE TORTOISE SHELL BRACKET
	0x301A: 0x301B, // 〚 LEFT WHITE SQUARE BRACKET
	0x301B: 0x301A, // 〛 RIGHT WHITE SQUARE BRACKET

	0xFF08: 0xFF09, // ( FULLWIDTH LEFT PARENTHESIS
	0xFF09: 0xFF08, // ) FULLWIDTH RIGHT PARENTHESIS
	0xFF1C: 0xFF1E, // ＜ FULLWIDTH LESS-THAN SIGN
	0xFF1E: 0xFF1C, // ＞ FULLWIDTH GREATER-THAN SIGN
	0xFF3B: 0xFF3D, // ［ FULLWIDTH LEFT SQUARE BRACKET
	0xFF3D: 0xFF3B, // ］ FULLWIDTH RIGHT SQUARE BRACKET
	0xFF5B: 0xFF5D, // ｛ FULLWIDTH LEFT CURLY BRACKET
	0xFF5D: 0xFF5B, // ｝ FULLWIDTH RIGHT CURLY BRACKET
	0xFF5F: 0xFF60, // ｟ FULLWIDTH LEFT WHITE PARENTHESIS
	0xFF60: 0xFF5F, // ｠ FULLWIDTH RIGHT WHITE PARENTHESIS
	0xFF62: 0xFF63, // ｢ HALFWIDTH LEFT CORNER BRACKET
	0xFF63: 0xFF62, // ｣ HALFWIDTH RIGHT CORNER BRACKET
}
