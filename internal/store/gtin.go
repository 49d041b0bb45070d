package store

// GTIN codes come in 8, 12, 13 and 14 digit forms; longer forms pad shorter
// ones with leading zeros. stripGTINZeros removes exactly one level of
// padding (14→13, 13→12, 12→8) so a lookup can retry with the next shorter
// known length.
func stripGTINZeros(code string) (string, bool) {
	if !isDigits(code) {
		return code, false
	}
	switch len(code) {
	case 14, 13:
		if code[0] == '0' {
			return code[1:], true
		}
	case 12:
		if code[:4] == "0000" {
			return code[4:], true
		}
	}
	return code, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
