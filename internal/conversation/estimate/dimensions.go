package estimate

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	dimsXRegex      = regexp.MustCompile(`(\d+\.?\d*)\s*x\s*(\d+\.?\d*)`)
	dimsByRegex     = regexp.MustCompile(`(\d+\.?\d*)\s*(?:feet?|ft|')?\s*by\s*(\d+\.?\d*)\s*(?:feet?|ft|')?`)
	statedAreaRegex = regexp.MustCompile(`(\d+\.?\d*)\s*(?:sq\.?\s*f(?:ee)?t|square\s*f(?:ee)?t|sqft)`)
)

// mismatchTolerance allows stated areas within 5% of the computed area to
// pass as visitor rounding.
const mismatchTolerance = 0.05

// DimensionInfo is the result of scanning conversation text for area figures.
type DimensionInfo struct {
	Width          float64
	Length         float64
	CalculatedArea float64
	StatedArea     float64
	HasDimensions  bool
	HasStatedArea  bool
	HasMismatch    bool
}

// Area returns the figure pricing must use. The computed width*length area
// always wins over a conflicting stated figure.
func (d DimensionInfo) Area() (float64, bool) {
	switch {
	case d.HasDimensions:
		return d.CalculatedArea, true
	case d.HasStatedArea:
		return d.StatedArea, true
	default:
		return 0, false
	}
}

// ExtractDimensions finds "10x20" or "10 by 20" style measurements.
func ExtractDimensions(text string) (width, length float64, ok bool) {
	if text == "" {
		return 0, 0, false
	}
	normalized := strings.ToLower(text)

	m := dimsXRegex.FindStringSubmatch(normalized)
	if m == nil {
		m = dimsByRegex.FindStringSubmatch(normalized)
	}
	if m == nil {
		return 0, 0, false
	}

	width, errW := parseNumber(m[1])
	length, errL := parseNumber(m[2])
	if errW != nil || errL != nil {
		return 0, 0, false
	}
	return width, length, true
}

// ExtractStatedArea finds "500 sqft" / "500 square feet" style figures.
func ExtractStatedArea(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	m := statedAreaRegex.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, false
	}
	area, err := parseNumber(m[1])
	if err != nil {
		return 0, false
	}
	return area, true
}

// ValidateDimensions scans text for both dimension and stated-area figures
// and flags a mismatch when they disagree beyond the tolerance.
func ValidateDimensions(text string) DimensionInfo {
	var info DimensionInfo

	if w, l, ok := ExtractDimensions(text); ok {
		info.Width = w
		info.Length = l
		info.CalculatedArea = w * l
		info.HasDimensions = true
	}
	if area, ok := ExtractStatedArea(text); ok {
		info.StatedArea = area
		info.HasStatedArea = true
	}

	if info.HasDimensions && info.HasStatedArea {
		tolerance := info.CalculatedArea * mismatchTolerance
		diff := info.CalculatedArea - info.StatedArea
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			info.HasMismatch = true
		}
	}

	return info
}

// CorrectionMessage builds the sentence prefixed to the assistant reply
// when the visitor's stated area disagrees with the computed one. Returns
// an empty string when there is nothing to correct.
func (d DimensionInfo) CorrectionMessage() string {
	if !d.HasMismatch {
		return ""
	}
	return "Just to confirm: a " + formatNumber(d.Width) + "x" + formatNumber(d.Length) +
		" area is " + formatNumber(d.CalculatedArea) + " square feet (not " +
		formatNumber(d.StatedArea) + " sqft). I'll base the estimate on " +
		formatNumber(d.CalculatedArea) + " square feet. "
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
