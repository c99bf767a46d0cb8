package estimate

import (
	"strings"
	"testing"
)

func TestExtractDimensions(t *testing.T) {
	cases := []struct {
		text          string
		width, length float64
		ok            bool
	}{
		{"10x20 deck", 10, 20, true},
		{"10 x 20", 10, 20, true},
		{"10 by 20", 10, 20, true},
		{"10 feet by 20 feet", 10, 20, true},
		{"12.5 x 8", 12.5, 8, true},
		{"no numbers here", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		w, l, ok := ExtractDimensions(tc.text)
		if ok != tc.ok || w != tc.width || l != tc.length {
			t.Errorf("ExtractDimensions(%q) = (%v, %v, %v), want (%v, %v, %v)",
				tc.text, w, l, ok, tc.width, tc.length, tc.ok)
		}
	}
}

func TestExtractStatedArea(t *testing.T) {
	cases := []struct {
		text string
		area float64
		ok   bool
	}{
		{"about 500 square feet", 500, true},
		{"500 sqft", 500, true},
		{"500 sq ft", 500, true},
		{"500 sq. ft", 500, true},
		{"no area", 0, false},
	}
	for _, tc := range cases {
		area, ok := ExtractStatedArea(tc.text)
		if ok != tc.ok || area != tc.area {
			t.Errorf("ExtractStatedArea(%q) = (%v, %v), want (%v, %v)", tc.text, area, ok, tc.area, tc.ok)
		}
	}
}

func TestValidateDimensionsMismatch(t *testing.T) {
	info := ValidateDimensions("10x10 deck, about 500 square feet")
	if !info.HasMismatch {
		t.Fatal("expected mismatch for 10x10 vs 500 sqft")
	}
	area, ok := info.Area()
	if !ok || area != 100 {
		t.Fatalf("Area() = (%v, %v), want (100, true)", area, ok)
	}
	msg := info.CorrectionMessage()
	if !strings.Contains(msg, "100 square feet") || !strings.Contains(msg, "500 sqft") {
		t.Errorf("unexpected correction message: %q", msg)
	}
}

func TestValidateDimensionsWithinTolerance(t *testing.T) {
	// 10x20 = 200; stated 205 is within the 5% band.
	info := ValidateDimensions("10x20, roughly 205 sqft")
	if info.HasMismatch {
		t.Fatal("did not expect mismatch within tolerance")
	}
	if info.CorrectionMessage() != "" {
		t.Errorf("expected empty correction message, got %q", info.CorrectionMessage())
	}
}

func TestValidateDimensionsStatedOnly(t *testing.T) {
	info := ValidateDimensions("my lawn is 500 sqft")
	if info.HasDimensions || info.HasMismatch {
		t.Fatalf("unexpected flags: %+v", info)
	}
	area, ok := info.Area()
	if !ok || area != 500 {
		t.Fatalf("Area() = (%v, %v), want (500, true)", area, ok)
	}
}
