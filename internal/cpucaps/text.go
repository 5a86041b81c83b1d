package cpucaps

import "bytes"

// DecodeText converts a fixed-size buffer filled by a backend into a string.
// The buffer may be NUL-terminated, unterminated, or empty. Without a
// terminator the whole buffer is decoded. Bytes outside the ASCII range
// decode as '?'.
func DecodeText(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	if len(buf) == 0 {
		return ""
	}

	out := make([]byte, len(buf))
	for i, b := range buf {
		if b > 0x7F {
			b = '?'
		}
		out[i] = b
	}
	return string(out)
}
