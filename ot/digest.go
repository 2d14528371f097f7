package ot

// SetDigest is a three-bank bloom filter over glyph ids, used to reject
// lookup/subtable application in O(1) before walking real coverage
// tables. False positives are allowed; false negatives are not.
//
// HarfBuzz equivalent: hb_set_digest_t in hb-set-digest.hh. HarfBuzz
// composes three single-bank digests shifted by 0, 4 and 9 bits over a
// machine word; this port instead keeps three fixed 32-bit banks shifted
// by 1, 5 and 11 bits, matching the bank count and rejection behavior
// described for this port's digest design.
type SetDigest struct {
	banks [3]uint32
}

var digestShifts = [3]uint{1, 5, 11}

// Add records a single glyph id in the digest.
func (d *SetDigest) Add(g GlyphID) {
	for i, s := range digestShifts {
		d.banks[i] |= 1 << ((uint32(g) >> s) & 31)
	}
}

// AddRange records every glyph id in [first, last] (inclusive).
func (d *SetDigest) AddRange(first, last GlyphID) {
	if last < first {
		return
	}
	// A range wider than 1024 glyphs already covers all 32 residues of
	// the shift-1 and shift-5 banks, so cap the explicit loop and fill
	// every bank instead; for the shift-11 bank this sets more bits than
	// the range needs, which only adds false positives.
	const maxExplicit = 1024
	if int(last)-int(first) > maxExplicit {
		for i, s := range digestShifts {
			for r := uint32(0); r < 32; r++ {
				_ = s
				d.banks[i] |= 1 << r
			}
		}
		return
	}
	for g := uint32(first); g <= uint32(last); g++ {
		d.Add(GlyphID(g))
	}
}

// AddCoverage folds every glyph referenced by a Coverage table into the
// digest. Used when building a lookup's digest at parse time.
func (d *SetDigest) AddCoverage(c *Coverage) {
	if c == nil {
		return
	}
	for _, g := range c.Glyphs() {
		d.Add(g)
	}
}

// MayHave reports whether g might be a member of the set this digest
// was built from. False means g is definitely absent.
func (d *SetDigest) MayHave(g GlyphID) bool {
	for i, s := range digestShifts {
		bit := uint32(1) << ((uint32(g) >> s) & 31)
		if d.banks[i]&bit == 0 {
			return false
		}
	}
	return true
}

// MayIntersect reports whether this digest's set might share a member
// with other's set. False means the two sets are definitely disjoint.
func (d *SetDigest) MayIntersect(other *SetDigest) bool {
	for i := range digestShifts {
		if d.banks[i]&other.banks[i] == 0 {
			return false
		}
	}
	return true
}

// Union merges other's banks into d in place.
func (d *SetDigest) Union(other *SetDigest) {
	for i := range d.banks {
		d.banks[i] |= other.banks[i]
	}
}

// Reset clears the digest back to empty.
func (d *SetDigest) Reset() {
	d.banks = [3]uint32{}
}

// BufferDigest builds a digest covering every glyph id currently present
// in info. Rebuilt whenever GSUB/GPOS changes the buffer's length.
func BufferDigest(info []GlyphInfo) SetDigest {
	var d SetDigest
	for i := range info {
		d.Add(info[i].GlyphID)
	}
	return d
}
