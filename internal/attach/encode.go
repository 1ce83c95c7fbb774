package attach

import (
	"encoding/base64"
	"strings"
)

const radix64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Encode returns the standard padded base64 text of b. Empty input encodes to "".
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// encodeRadix64 is the bit-packing form of Encode for targets without a
// platform encoder. Output is identical to Encode.
func encodeRadix64(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow((len(b) + 2) / 3 * 4)

	for i := 0; i < len(b); i += 3 {
		n := len(b) - i
		if n > 3 {
			n = 3
		}

		// missing low-order bytes count as zero
		var group uint32
		group = uint32(b[i]) << 16
		if n > 1 {
			group |= uint32(b[i+1]) << 8
		}
		if n > 2 {
			group |= uint32(b[i+2])
		}

		sb.WriteByte(radix64Alphabet[group>>18&0x3f])
		sb.WriteByte(radix64Alphabet[group>>12&0x3f])
		if n > 1 {
			sb.WriteByte(radix64Alphabet[group>>6&0x3f])
		} else {
			sb.WriteByte('=')
		}
		if n > 2 {
			sb.WriteByte(radix64Alphabet[group&0x3f])
		} else {
			sb.WriteByte('=')
		}
	}

	return sb.String()
}
