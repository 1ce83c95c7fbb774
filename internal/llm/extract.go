package llm

import (
	"strconv"
	"strings"
)

// Extract returns the string value at path in raw, a JSON document of one of
// the known provider shapes. It scans for key landmarks in order and captures
// the first match; it does not track nesting or array bounds. Numeric path
// segments other than 0 are not supported.
//
// For "error.message" the nested {"error":{"message":...}} form is preferred,
// falling back to a top-level "message".
func Extract(raw, path string) (string, bool) {
	if path == "error.message" {
		if v, ok := extractString(raw, []string{"error", "message"}); ok {
			return v, true
		}
		return extractString(raw, []string{"message"})
	}

	keys, ok := pathKeys(path)
	if !ok {
		return "", false
	}
	return extractString(raw, keys)
}

// ExtractInt returns the integer at path in raw. The captured value must be a
// run of digits; anything else is reported as absent.
func ExtractInt(raw, path string) (int, bool) {
	keys, ok := pathKeys(path)
	if !ok {
		return 0, false
	}
	start, ok := locate(raw, keys)
	if !ok {
		return 0, false
	}

	end := start
	for end < len(raw) && !strings.ContainsRune(",}] \t\r\n", rune(raw[end])) {
		end++
	}
	token := raw[start:end]
	if token == "" || strings.TrimLeft(token, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return n, true
}

// pathKeys splits path into its object keys. Index 0 segments are dropped
// since the first occurrence of the following key is the first element.
func pathKeys(path string) ([]string, bool) {
	var keys []string
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, false
		}
		if strings.TrimLeft(seg, "0123456789") == "" {
			if seg != "0" {
				return nil, false
			}
			continue
		}
		keys = append(keys, seg)
	}
	return keys, len(keys) > 0
}

// locate finds each key marker in turn and returns the offset of the value
// following the last one.
func locate(raw string, keys []string) (int, bool) {
	pos := 0
	for _, key := range keys {
		marker := `"` + key + `"`
		for {
			i := strings.Index(raw[pos:], marker)
			if i < 0 {
				return 0, false
			}
			after := skipSpace(raw, pos+i+len(marker))
			if after < len(raw) && raw[after] == ':' {
				pos = skipSpace(raw, after+1)
				break
			}
			// a string value equal to the key, keep looking
			pos += i + len(marker)
		}
	}
	return pos, true
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func extractString(raw string, keys []string) (string, bool) {
	start, ok := locate(raw, keys)
	if !ok || start >= len(raw) || raw[start] != '"' {
		return "", false
	}
	for end := start + 1; end < len(raw); end++ {
		switch raw[end] {
		case '\\':
			end++
		case '"':
			return unescape(raw[start+1 : end]), true
		}
	}
	return "", false
}

// unescape resolves the basic JSON escapes in one pass. \uXXXX sequences are
// left as written.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case '"':
			sb.WriteByte('"')
		case '\\':
			sb.WriteByte('\\')
		case '/':
			sb.WriteByte('/')
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
