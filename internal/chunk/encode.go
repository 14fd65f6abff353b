package chunk

import (
	"encoding/json"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// EncodeJSON renders v with the configured indentation, optionally escaping
// every non-ASCII rune as \uXXXX so downstream loaders restricted to ASCII
// input can consume the artifacts directly.
func EncodeJSON(v any, indent int, ensureASCII bool) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if indent > 0 {
		b, err = json.MarshalIndent(v, "", strings.Repeat(" ", indent))
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return nil, err
	}
	if ensureASCII {
		b = escapeNonASCII(b)
	}
	return b, nil
}

func escapeNonASCII(in []byte) []byte {
	ascii := true
	for _, c := range in {
		if c >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return in
	}
	var out []byte
	for i := 0; i < len(in); {
		r, size := utf8.DecodeRune(in[i:])
		if r < utf8.RuneSelf {
			out = append(out, in[i])
			i++
			continue
		}
		if r <= 0xFFFF {
			out = append(out, []byte(escaped(uint16(r)))...)
		} else {
			hi, lo := utf16.EncodeRune(r)
			out = append(out, []byte(escaped(uint16(hi))+escaped(uint16(lo)))...)
		}
		i += size
	}
	return out
}

const hexDigits = "0123456789abcdef"

func escaped(u uint16) string {
	return string([]byte{'\\', 'u',
		hexDigits[u>>12&0xF], hexDigits[u>>8&0xF], hexDigits[u>>4&0xF], hexDigits[u&0xF]})
}
