package vin

// Length is the fixed VIN length.
const Length = 17

// checkPosition is the zero-based index of the check digit.
const checkPosition = 8

var weights = [Length]int{8, 7, 6, 5, 4, 3, 2, 10, 0, 9, 8, 7, 6, 5, 4, 3, 2}

// transliteration maps legal VIN letters to their numeric value. I, O and Q
// are absent on purpose: they never appear in a VIN.
var transliteration = map[byte]int{
	'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8,
	'J': 1, 'K': 2, 'L': 3, 'M': 4, 'N': 5, 'P': 7, 'R': 9,
	'S': 2, 'T': 3, 'U': 4, 'V': 5, 'W': 6, 'X': 7, 'Y': 8, 'Z': 9,
}

// IsLegal reports whether c belongs to the VIN alphabet [A-HJ-NPR-Z0-9].
func IsLegal(c byte) bool {
	if c >= '0' && c <= '9' {
		return true
	}
	_, ok := transliteration[c]
	return ok
}

// ShapeOK reports whether token has the VIN shape: exactly 17 characters
// from the legal alphabet.
func ShapeOK(token string) bool {
	if len(token) != Length {
		return false
	}
	for i := 0; i < len(token); i++ {
		if !IsLegal(token[i]) {
			return false
		}
	}
	return true
}

// CheckDigit returns the check character expected at position 9 of token.
// ok is false when token does not have the VIN shape.
func CheckDigit(token string) (check byte, ok bool) {
	if !ShapeOK(token) {
		return 0, false
	}
	sum := 0
	for i := 0; i < Length; i++ {
		sum += value(token[i]) * weights[i]
	}
	remainder := sum % 11
	if remainder == 10 {
		return 'X', true
	}
	return byte('0' + remainder), true
}

// Valid reports whether token has the VIN shape and carries a correct check
// digit.
func Valid(token string) bool {
	expected, ok := CheckDigit(token)
	if !ok {
		return false
	}
	return token[checkPosition] == expected
}

func value(c byte) int {
	if c >= '0' && c <= '9' {
		return int(c - '0')
	}
	return transliteration[c]
}
