package text

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxChars = 1200
	DefaultOverlap  = 200
)

var (
	paragraphRe  = regexp.MustCompile(`\n{2,}`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Clean collapses whitespace runs to single spaces and trims the ends.
// Applied to chunks at flush time only, never to intermediate buffers.
func Clean(t string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(t, " "))
}

// Chunk splits text into overlapping chunks of at most maxChars,
// aligned to paragraph boundaries where possible. Paragraphs are
// accumulated greedily; when one does not fit, the buffer is flushed
// and the next buffer is seeded with the last overlap characters of
// the flushed one. A single paragraph larger than maxChars is sliced
// into maxChars pieces with the same overlap seeding.
//
// Pure and deterministic: identical input yields identical output.
func Chunk(text string, maxChars, overlap int) []string {
	if maxChars <= 0 {
		return nil
	}

	var paragraphs []string
	for _, p := range paragraphRe.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var chunks []string
	buf := ""

	// Sizes and cut points are in runes, not bytes, so multi-byte text
	// is never split mid-rune. Chunks must stay valid UTF-8 all the way
	// into the TEXT column.
	for _, p := range paragraphs {
		if utf8.RuneCountInString(buf)+utf8.RuneCountInString(p)+2 <= maxChars {
			if buf == "" {
				buf = p
			} else {
				buf = buf + "\n\n" + p
			}
			continue
		}

		if buf != "" {
			chunks = append(chunks, Clean(buf))
		}

		carry := ""
		if overlap > 0 && buf != "" {
			r := []rune(buf)
			start := len(r) - overlap
			if start < 0 {
				start = 0
			}
			carry = string(r[start:])
		}
		buf = strings.TrimSpace(carry + " " + p)

		// A paragraph larger than maxChars is sliced directly. The cut
		// point must advance at least one rune per iteration so that
		// overlap >= maxChars still terminates.
		for utf8.RuneCountInString(buf) > maxChars {
			r := []rune(buf)
			chunks = append(chunks, Clean(string(r[:maxChars])))
			cut := maxChars - overlap
			if cut < 1 {
				cut = 1
			}
			buf = Clean(string(r[cut:]))
		}
	}

	if buf != "" {
		chunks = append(chunks, Clean(buf))
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
