package ritual

import (
	"strings"
	"time"
	"unicode/utf8"
)

// isoLayout renders timestamps the way huellas have always been cut from:
// millisecond precision, UTC, trailing Z.
const isoLayout = "2006-01-02T15:04:05.000Z"

// ISOTimestamp formats t in UTC with millisecond precision.
func ISOTimestamp(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// Tail returns the last n runes of s, or s itself if shorter.
func Tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// Head returns the first n runes of s, or s itself if shorter.
func Head(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Fingerprint keeps the first maxWords space-separated words of text that
// are longer than minRunes-1 runes, joined by spaces and suffixed with "...".
//
// The result is deliberately lossy: it is all that is kept of the original
// text, and all the matcher ever sees.
func Fingerprint(text string, maxWords, minRunes int) string {
	kept := make([]string, 0, maxWords)
	for _, w := range strings.Split(text, " ") {
		if len(kept) == maxWords {
			break
		}
		if utf8.RuneCountInString(w) >= minRunes {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ") + "..."
}

// TrimWords keeps the first n space-separated words of text followed by
// "...". Used wherever a record must not carry full text.
func TrimWords(text string, n int) string {
	words := strings.Split(text, " ")
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ") + "..."
}
