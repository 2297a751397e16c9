package wire

import (
	"strings"
	"unicode"
	"unicode/utf16"
)

// Unescape replaces Java-style \uXXXX hex escapes with the characters they
// name. Surrogate pairs are joined; malformed escapes are kept verbatim.
func Unescape(s string) string {
	if !strings.Contains(s, `\u`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, ok := hexEscape(s, i)
		if !ok {
			b.WriteByte(s[i])
			i++
			continue
		}
		i += 6
		if utf16.IsSurrogate(r) {
			if low, ok := hexEscape(s, i); ok {
				if joined := utf16.DecodeRune(r, low); joined != unicode.ReplacementChar {
					b.WriteRune(joined)
					i += 6
					continue
				}
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func hexEscape(s string, i int) (rune, bool) {
	if i+6 > len(s) || s[i] != '\\' || s[i+1] != 'u' {
		return 0, false
	}
	var r rune
	for _, c := range []byte(s[i+2 : i+6]) {
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			return 0, false
		}
		r = r<<4 | rune(v)
	}
	return r, true
}
