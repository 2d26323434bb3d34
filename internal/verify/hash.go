package verify

import (
	"strconv"
	"unicode/utf16"
)

// Hash computes the dedup hash of text: a 32-bit rolling multiply-add
// (h = h*31 + c) over UTF-16 code units with two's-complement wraparound,
// rendered as the base-36 absolute value.
//
// The hash is not cryptographic and collides by construction. A collision
// makes a new text look like a repeat; that is acceptable for a duplicate
// filter.
func Hash(text string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(text)) {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}
