package logic

import (
	"errors"
	"fmt"
)

// FrameBits is the number of bits in one display frame.
const FrameBits = 24

// Checksum masks: these bits must read zero in every valid frame.
const (
	p1ChecksumMask = 0b1001011 // bits 6,3,1,0
	p4ChecksumMask = 0b001
)

const (
	p1HundredsMask = 0b0110000 // bits 5 and 4 both set adds 100
	p1HeaterBit    = 2
	p4LightBit     = 1
	p4PumpBit      = 2
)

// ErrChecksum is returned for frames whose checksum bits are not zero.
var ErrChecksum = errors.New("frame checksum mismatch")

// Fields are the four parts of a 24-bit frame.
type Fields struct {
	P1 uint8 // status flags, hundreds flag, checksum bits (7 bits)
	P2 uint8 // tens digit segments (7 bits)
	P3 uint8 // ones digit segments (7 bits)
	P4 uint8 // pump/light/parity (3 bits)
}

// Split breaks a raw frame into its fields.
func Split(frame uint32) Fields {
	frame &= 0xFFFFFF
	return Fields{
		P1: uint8(frame>>17) & 0x7F,
		P2: uint8(frame>>10) & 0x7F,
		P3: uint8(frame>>3) & 0x7F,
		P4: uint8(frame) & 0x7,
	}
}

// Frame packs the fields back into a 24-bit frame.
func (f Fields) Frame() uint32 {
	return uint32(f.P1&0x7F)<<17 | uint32(f.P2&0x7F)<<10 | uint32(f.P3&0x7F)<<3 | uint32(f.P4&0x7)
}

// Valid reports whether the checksum bits of p1 and p4 are all zero.
func (f Fields) Valid() bool {
	return f.P1&p1ChecksumMask == 0 && f.P4&p4ChecksumMask == 0
}

func (f Fields) String() string {
	return fmt.Sprintf("p1=0x%02X p2=0x%02X p3=0x%02X p4=0x%X", f.P1, f.P2, f.P3, f.P4)
}

// Reading is a validated, decoded frame.
type Reading struct {
	Raw    uint32
	Fields Fields
	Tens   int
	Ones   int
	// Temp is TempUnknown for zero frames or when either digit is unknown.
	Temp   int
	Zero   bool
	Heater bool
	Pump   bool
	Light  bool
}

// Decode validates a raw frame and decodes its fields.
// Invalid frames return ErrChecksum and a zero Reading.
func Decode(frame uint32) (Reading, error) {
	f := Split(frame)
	if !f.Valid() {
		return Reading{}, fmt.Errorf("%w (p1 masked=0x%02X p4 lsb=%d)", ErrChecksum, f.P1&p1ChecksumMask, f.P4&p4ChecksumMask)
	}

	r := Reading{
		Raw:    frame & 0xFFFFFF,
		Fields: f,
		Tens:   DecodeDigit(f.P2),
		Ones:   DecodeDigit(f.P3),
		Temp:   TempUnknown,
		// Blank frames decode to unknown digits but still count as showing zero.
		Zero:   f.P2 == 0 && f.P3 == 0,
		Heater: f.P1>>p1HeaterBit&1 == 1,
		Pump:   f.P4>>p4PumpBit&1 == 1,
		Light:  f.P4>>p4LightBit&1 == 1,
	}
	if !r.Zero {
		r.Temp = Temperature(f.P1, r.Tens, r.Ones)
	}
	return r, nil
}

// Temperature combines two digits and the hundreds flag of p1.
// Returns TempUnknown if either digit is unknown.
func Temperature(p1 uint8, tens, ones int) int {
	if tens < 0 || ones < 0 {
		return TempUnknown
	}
	t := tens*10 + ones
	if p1&p1HundredsMask == p1HundredsMask {
		t += 100
	}
	return t
}
