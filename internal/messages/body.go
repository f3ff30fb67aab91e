package messages

import (
	"bytes"
	"strings"
)

// DecodeAttributedBody extracts the plain text from an NSKeyedArchiver
// blob, the attributedBody column format modern iOS uses instead of the
// text column. The text follows a 0x01 0x2B marker with a BER-style
// length prefix:
//
//	0x00-0x7F  length in the byte itself
//	0x81       length in the next byte
//	0x82       length in the next 2 bytes, big-endian
//
// Returns "" when no usable text can be recovered.
func DecodeAttributedBody(blob []byte) string {
	if len(blob) == 0 {
		return ""
	}

	for i := 0; i < len(blob)-4; i++ {
		if blob[i] != 0x01 || blob[i+1] != 0x2B {
			continue
		}

		var textLen, textStart int
		lenByte := blob[i+2]
		switch {
		case lenByte < 0x80:
			textLen = int(lenByte)
			textStart = i + 3
		case lenByte == 0x81:
			textLen = int(blob[i+3])
			textStart = i + 4
		case lenByte == 0x82:
			textLen = int(blob[i+3])<<8 | int(blob[i+4])
			textStart = i + 5
		default:
			continue
		}

		// The archiver sometimes pads with NULs before the text.
		for textStart < len(blob) && blob[textStart] == 0x00 {
			textStart++
			textLen--
		}

		if textLen > 0 && textStart+textLen <= len(blob) {
			cleaned := trimNonText(string(blob[textStart : textStart+textLen]))
			if len(cleaned) > 10 {
				return cleaned
			}
		}
	}

	return longestPrintableRun(blob)
}

// Body returns the usable text of a message: the text column when it
// carries real content, otherwise whatever the blob decoder recovers.
func Body(text string, attributedBody []byte) string {
	if len(text) > 10 {
		return text
	}
	if len(attributedBody) > 0 {
		return DecodeAttributedBody(attributedBody)
	}
	return ""
}

// trimNonText strips control and archiver bytes from both ends while
// keeping printable ASCII and the Arabic blocks the bank messages use.
func trimNonText(s string) string {
	isText := func(r rune) bool {
		if r >= 0x20 && r <= 0x7e {
			return true
		}
		if r >= 0x0600 && r <= 0x06FF {
			return true
		}
		return r >= 0x0750 && r <= 0x077F
	}

	runes := []rune(s)
	start := 0
	for start < len(runes) && !isText(runes[start]) {
		start++
	}
	end := len(runes)
	for end > start && !isText(runes[end-1]) {
		end--
	}
	return strings.TrimSpace(string(runes[start:end]))
}

// longestPrintableRun is the fallback for blobs the marker scan cannot
// parse: the longest run of printable ASCII at least 15 bytes long.
func longestPrintableRun(blob []byte) string {
	printable := func(b byte) bool {
		return (b >= 0x20 && b <= 0x7e) || b == '\n' || b == '\r' || b == '\t'
	}

	var best []byte
	for i := 0; i < len(blob); {
		if !printable(blob[i]) {
			i++
			continue
		}
		j := i
		for j < len(blob) && printable(blob[j]) {
			j++
		}
		if j-i >= 15 && j-i > len(best) {
			best = blob[i:j]
		}
		i = j
	}

	return string(bytes.TrimSpace(best))
}
