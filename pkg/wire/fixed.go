package wire

// Fixed is a signed decimal packed into 32 bits: 24 integer bits (one of
// them the sign) and 8 fractional bits. It is the protocol's only
// non-integer numeric kind.
type Fixed int32

// FixedFromFloat converts a float64 to Fixed, truncating precision beyond
// the 8 fractional bits. Values representable in 24.8 round-trip exactly.
func FixedFromFloat(f float64) Fixed {
	return Fixed(f * 256.0)
}

// FixedFromInt converts an integer to Fixed.
func FixedFromInt(i int32) Fixed {
	return Fixed(i << 8)
}

// Float returns the value as a float64. Exact for all Fixed values: the
// 32 significant bits fit a float64 mantissa.
func (f Fixed) Float() float64 {
	return float64(f) / 256.0
}

// Int returns the integer part, truncated toward negative infinity.
func (f Fixed) Int() int32 {
	return int32(f >> 8)
}
