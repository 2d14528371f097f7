package ot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitBidiRunsMixedDirection(t *testing.T) {
	// "abc" (Latin, LTR) + Hebrew alef-bet-gimel (RTL) + "xyz" (Latin, LTR).
	text := "abc" + "אבג" + "xyz"

	runs, err := SplitBidiRuns(text)
	if err != nil {
		t.Fatalf("SplitBidiRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d: %+v", len(runs), runs)
	}

	want := []BidiRun{
		{Text: "abc", Start: 0, End: 3, Direction: DirectionLTR},
		{Text: "אבג", Start: 3, End: 9, Direction: DirectionRTL},
		{Text: "xyz", Start: 9, End: 12, Direction: DirectionLTR},
	}
	if diff := cmp.Diff(want, runs); diff != "" {
		t.Errorf("SplitBidiRuns mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitBidiRunsSingleDirection(t *testing.T) {
	runs, err := SplitBidiRuns("hello world")
	if err != nil {
		t.Fatalf("SplitBidiRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run for uniformly-LTR text, got %d: %+v", len(runs), runs)
	}
	if runs[0].Direction != DirectionLTR {
		t.Errorf("direction = %v, want DirectionLTR", runs[0].Direction)
	}
	if runs[0].Start != 0 || runs[0].End != len("hello world") {
		t.Errorf("run offsets = [%d,%d), want [0,%d)", runs[0].Start, runs[0].End, len("hello world"))
	}
}

func TestSplitBidiRunsEmpty(t *testing.T) {
	runs, err := SplitBidiRuns("")
	if err != nil {
		t.Fatalf("SplitBidiRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs for empty text, got %+v", runs)
	}
}

func TestBidiClassOf(t *testing.T) {
	tests := []struct {
		name string
		cp   Codepoint
	}{
		{"Latin letter", 'A'},
		{"Hebrew letter", 0x05d0},
		{"Arabic letter", 0x0628},
		{"digit", '5'},
	}
	// BidiClassOf should not panic and should distinguish the Hebrew
	// letter's class from the Latin letter's (strong-R vs strong-L).
	classes := make(map[Codepoint]interface{}, len(tests))
	for _, tt := range tests {
		classes[tt.cp] = BidiClassOf(tt.cp)
	}
	if classes['A'] == classes[Codepoint(0x05d0)] {
		t.Errorf("expected Latin and Hebrew letters to resolve to different bidi classes, both got %v", classes['A'])
	}
}
