package logic

import "math/bits"

// DigitUnknown is returned when a segment pattern matches no digit.
const DigitUnknown = -1

// glyphs maps digits 0-9 to their 7-segment patterns.
// Bit order: bit6=a(top) bit5=b bit4=c bit3=d(bottom) bit2=e bit1=f bit0=g(middle).
var glyphs = [10]uint8{
	0b1111110, // 0
	0b0110000, // 1
	0b1101101, // 2
	0b1111001, // 3
	0b0110011, // 4
	0b1011011, // 5
	0b1011111, // 6
	0b1110000, // 7
	0b1111111, // 8
	0b1110011, // 9
}

// Glyph returns the canonical segment pattern for digit d (0-9).
func Glyph(d int) uint8 {
	return glyphs[d]
}

// DecodeDigit converts a 7-bit segment pattern to a digit.
// It tries an exact match, then the nearest pattern within one flipped bit,
// then both checks again on the bit-reversed pattern (reversed wiring).
// Returns DigitUnknown if nothing matches.
func DecodeDigit(seg uint8) int {
	seg &= 0x7F
	if d := matchGlyph(seg); d != DigitUnknown {
		return d
	}
	return matchGlyph(reverse7(seg))
}

func matchGlyph(seg uint8) int {
	for d, g := range glyphs {
		if seg == g {
			return d
		}
	}

	best, bestDist := DigitUnknown, 8
	for d, g := range glyphs {
		if dist := bits.OnesCount8(seg ^ g); dist < bestDist {
			best, bestDist = d, dist
		}
	}
	if bestDist <= 1 {
		return best
	}
	return DigitUnknown
}

func reverse7(seg uint8) uint8 {
	return bits.Reverse8(seg) >> 1
}
