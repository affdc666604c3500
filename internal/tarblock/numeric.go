package tarblock

import "fmt"

// parseOctal interprets a NUL- and space-padded octal field.
//
// Leading and trailing padding is ignored; an empty field parses as 0. Any
// other non-octal byte fails with ErrFormat.
func parseOctal(b []byte) (int64, error) {
	b = trimPadding(b)
	var v int64
	for _, c := range b {
		if c < '0' || c > '7' {
			return 0, fmt.Errorf("%w: %q is not octal", ErrFormat, b)
		}
		if v > MaxNumeric11>>3 {
			// More than 11 significant digits cannot come from a
			// well-formed ustar field.
			return 0, fmt.Errorf("%w: %q overflows", ErrFormat, b)
		}
		v = v<<3 | int64(c-'0')
	}
	return v, nil
}

// formatOctal writes n as zero-padded octal into b, NUL-terminated.
// It reports false when n does not fit in len(b)-1 octal digits.
func formatOctal(b []byte, n int64) bool {
	if n < 0 {
		return false
	}
	i := len(b) - 1
	b[i] = 0
	for i--; i >= 0; i-- {
		b[i] = byte('0' + n&7)
		n >>= 3
	}
	return n == 0
}

// formatString writes s into b left-padded with '0' to len(b)-1 bytes,
// NUL-terminated. It reports false when s does not fit.
func formatString(b []byte, s string) bool {
	width := len(b) - 1
	if len(s) > width {
		return false
	}
	for i := range width - len(s) {
		b[i] = '0'
	}
	copy(b[width-len(s):], s)
	b[width] = 0
	return true
}

// trimPadding strips leading and trailing NULs and spaces.
func trimPadding(b []byte) []byte {
	for len(b) > 0 && (b[0] == 0 || b[0] == ' ') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == 0 || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}
