package ot

import "golang.org/x/text/unicode/bidi"

// Bidi run splitting, backed by golang.org/x/text/unicode/bidi.
//
// The Bidi algorithm itself is treated as an external collaborator: this
// package consumes it as a pure function producing embedding-level runs,
// the same way HarfBuzz expects its caller (e.g. Pango, ICU) to segment
// a paragraph before calling hb_shape() per run. Buffer.GuessSegmentProperties
// is a degraded fallback for callers that hand this package a single run
// directly; SplitBidiRuns should drive segmentation whenever the caller has
// a full paragraph, since sampling the first ten codepoints cannot
// correctly split mixed-direction or mixed-script text.

// BidiRun is one direction-homogeneous run of a paragraph, in byte offsets
// into the original string.
type BidiRun struct {
	Text      string
	Start     int
	End       int
	Direction Direction
}

// SplitBidiRuns resolves paragraph embedding levels for text and splits it
// into direction-homogeneous runs suitable for individual Shape calls.
func SplitBidiRuns(text string) ([]BidiRun, error) {
	var p bidi.Paragraph
	if _, err := p.SetString(text); err != nil {
		return nil, err
	}
	ordering, err := p.Order()
	if err != nil {
		return nil, err
	}

	runs := make([]BidiRun, 0, ordering.NumRuns())
	offset := 0
	for i := 0; i < ordering.NumRuns(); i++ {
		r := ordering.Run(i)
		s := r.String()
		dir := DirectionLTR
		if r.Direction() == bidi.RightToLeft {
			dir = DirectionRTL
		}
		runs = append(runs, BidiRun{
			Text:      s,
			Start:     offset,
			End:       offset + len(s),
			Direction: dir,
		})
		offset += len(s)
	}
	return runs, nil
}

// BidiClassOf returns the Unicode bidi character class for cp, used by
// complex-script pre-shapers that need to distinguish e.g. Arabic letters
// from neutral punctuation without running full paragraph resolution.
func BidiClassOf(cp Codepoint) bidi.Class {
	props, _ := bidi.LookupRune(rune(cp))
	return props.Class()
}
