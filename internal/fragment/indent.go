package fragment

// CountColumn returns the display column of the first non-whitespace
// character of line, expanding tabs to tabSize stops. A whitespace-only line
// yields the width of the whole line.
func CountColumn(line string, tabSize int) int {
	if tabSize <= 0 {
		tabSize = 4
	}
	n := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\t':
			n += tabSize - n%tabSize
		case ' ', '\v', '\f', '\r':
			n++
		default:
			return n
		}
	}
	return n
}

// IsBlank reports whether line holds only whitespace.
func IsBlank(line string) bool {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ', '\t', '\v', '\f', '\r':
		default:
			return false
		}
	}
	return true
}
