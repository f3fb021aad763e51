package storage

import "testing"

func TestNormalizarPatente(t *testing.T) {
	cases := map[string]string{
		"ab-12cd":   "AB12CD",
		"AB12CD":    "AB12CD",
		" bc·fg 12": "BCFG12",
		"abcd-1234": "ABCD12",
		"":          "",
		"--··--":    "",
	}
	for in, want := range cases {
		if got := NormalizarPatente(in); got != want {
			t.Fatalf("NormalizarPatente(%q) = %q, want %q", in, got, want)
		}
	}
}
