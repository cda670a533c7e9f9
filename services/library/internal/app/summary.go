package app

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Summarize reduces a book description, which may carry HTML markup, to at
// most maxRunes runes of plain text. Script and style bodies are dropped.
func Summarize(description string, maxRunes int) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(description))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a malformed tail; keep what was read either way.
			return truncate(collapse(b.String()), maxRunes)
		case html.StartTagToken, html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skip++
				} else if skip > 0 {
					skip--
				}
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
