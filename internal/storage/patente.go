package storage

import "strings"

const patenteMaxLen = 6

// NormalizarPatente reduces a plate to its canonical form: uppercase,
// alphanumeric only, at most six characters. "ab-12cd" -> "AB12CD".
func NormalizarPatente(patente string) string {
	var b strings.Builder
	b.Grow(patenteMaxLen)
	for _, r := range strings.ToUpper(patente) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == patenteMaxLen {
				break
			}
		}
	}
	return b.String()
}
