package app

import "testing"

func TestSummarize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain", "A desert planet.", 0, "A desert planet."},
		{"markup", "<p>Desert <b>planet</b></p><p>Spice</p>", 0, "Desert planet Spice"},
		{"script", "<script>alert(1)</script>Safe<style>p{}</style> text", 0, "Safe text"},
		{"truncate", "abcdefghij", 4, "abcd…"},
		{"runes", "书书书书书", 3, "书书书…"},
		{"whitespace", "  many \n\t spaces  ", 0, "many spaces"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Summarize(tc.in, tc.max); got != tc.want {
				t.Fatalf("Summarize(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}
