package program

// Router wait times travel as an 8-bit pseudo-float: mantissa in the low
// nibble, exponent in the high nibble, decoding to ((m + 16) << e) - 16
// clock cycles. Not every integer is representable, so encoding is exact
// or an error.

// DecodeWaitTime expands an 8-bit wait-time code to clock cycles.
func DecodeWaitTime(code uint8) int {
	m := int(code & 0xF)
	e := int(code >> 4)
	return ((m + 16) << e) - 16
}

// EncodeWaitTime finds the code that decodes exactly to cycles. A value
// with no exact code is an EncodeError naming the nearest representable
// value.
func EncodeWaitTime(cycles int) (uint8, error) {
	nearest := 0
	for code := 0; code < 256; code++ {
		v := DecodeWaitTime(uint8(code))
		if v == cycles {
			return uint8(code), nil
		}
		if abs(v-cycles) < abs(nearest-cycles) {
			nearest = v
		}
	}
	return 0, EncodeError{
		What:    "router wait-time",
		Value:   float64(cycles),
		Nearest: float64(nearest),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
