package ocrmd

import (
	"regexp"
	"strings"
)

// OCR text cleanup. Scanned-book OCR output carries predictable artifacts:
// ligature glyphs, words hyphenated across line breaks, hard line wraps in
// the middle of sentences, runs of whitespace, and stray separator
// characters on otherwise empty lines.

var ligatures = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
	"’", "'",
	"‘", "'",
	"“", `"`,
	"”", `"`,
	"—", "-",
	"–", "-",
)

var (
	dehyphen        = regexp.MustCompile(`(\w+)-\n(\w+)`)
	midSentenceWrap = regexp.MustCompile(`([^.!?:\n-])\n([^\n])`)
	multiSpace      = regexp.MustCompile(`[ \t]{2,}`)
	multiBlank      = regexp.MustCompile(`\n{3,}`)
	straySeparator  = regexp.MustCompile(`(?m)^[\s|_~=\-.,:;'"]{1,4}$`)
)

// CleanText normalizes raw OCR output before text-only emission: joins
// hyphenated line-break splits, unwraps lines broken mid-sentence, collapses
// whitespace runs, and drops short lines consisting only of separator noise.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = ligatures.Replace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = dehyphen.ReplaceAllString(text, "$1$2")
	text = straySeparator.ReplaceAllString(text, "")
	text = midSentenceWrap.ReplaceAllString(text, "$1 $2")
	text = multiSpace.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = multiBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
