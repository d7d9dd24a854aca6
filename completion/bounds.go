package completion

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// TokenBounds computes the identifier span under the cursor: the half-open
// byte range [start, end) of the longest run of letters, digits and
// underscores ending at the cursor. end always equals cursor; start is 0
// when the whole prefix is identifier-like.
//
// cursor is a byte offset with 0 <= cursor <= len(text). Violating the
// precondition is a programming fault and panics; it is never reported as a
// recoverable outcome.
func TokenBounds(text string, cursor int) (start, end int) {
	if cursor < 0 || cursor > len(text) {
		panic(fmt.Sprintf("completion: cursor %d out of range [0, %d]", cursor, len(text)))
	}
	start = cursor
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !isIdentRune(r) {
			break
		}
		start -= size
	}
	return start, cursor
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ByteOffset converts a rune offset into text to a byte offset. Front-ends
// count cursor positions in runes; the scanner works in bytes. A rune offset
// beyond the end of text is a programming fault and panics.
func ByteOffset(text string, runeOffset int) int {
	if runeOffset < 0 {
		panic(fmt.Sprintf("completion: rune offset %d out of range", runeOffset))
	}
	seen := 0
	for i := range text {
		if seen == runeOffset {
			return i
		}
		seen++
	}
	if seen == runeOffset {
		return len(text)
	}
	panic(fmt.Sprintf("completion: rune offset %d out of range [0, %d]", runeOffset, seen))
}

// RuneOffset converts a byte offset into text back to a rune offset.
func RuneOffset(text string, byteOffset int) int {
	if byteOffset < 0 || byteOffset > len(text) {
		panic(fmt.Sprintf("completion: byte offset %d out of range [0, %d]", byteOffset, len(text)))
	}
	return utf8.RuneCountInString(text[:byteOffset])
}
