package messages

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// markerBlob builds a blob in the archiver layout: junk prefix, the
// 0x01 0x2B marker, a length prefix in the given form, then the text.
func markerBlob(text string, pad int) []byte {
	blob := []byte{0x04, 0x0B, 0x73}
	blob = append(blob, 0x01, 0x2B)

	n := len(text) + pad
	switch {
	case n < 0x80:
		blob = append(blob, byte(n))
	case n <= 0xFF:
		blob = append(blob, 0x81, byte(n))
	default:
		blob = append(blob, 0x82, byte(n>>8), byte(n&0xFF))
	}

	for i := 0; i < pad; i++ {
		blob = append(blob, 0x00)
	}
	return append(blob, text...)
}

func TestDecodeAttributedBody_SimpleLength(t *testing.T) {
	text := "Your salary has been deposited"
	assert.Equal(t, text, DecodeAttributedBody(markerBlob(text, 0)))
}

func TestDecodeAttributedBody_OneByteLength(t *testing.T) {
	text := strings.Repeat("Purchase of AED 10.00 at STORE. ", 5)
	blob := markerBlob(text, 0)

	assert.Equal(t, strings.TrimSpace(text), DecodeAttributedBody(blob))
}

func TestDecodeAttributedBody_TwoByteLength(t *testing.T) {
	text := strings.Repeat("Purchase of AED 10.00 at STORE. ", 10)
	blob := markerBlob(text, 0)

	assert.Equal(t, strings.TrimSpace(text), DecodeAttributedBody(blob))
}

func TestDecodeAttributedBody_SkipsLeadingNULs(t *testing.T) {
	text := "PoS purchase SAR 48 at KAKAT"
	assert.Equal(t, text, DecodeAttributedBody(markerBlob(text, 2)))
}

func TestDecodeAttributedBody_PreservesArabic(t *testing.T) {
	text := "تم ايداع الراتب AED 23,500.00"
	assert.Equal(t, text, DecodeAttributedBody(markerBlob(text, 0)))
}

func TestDecodeAttributedBody_FallbackRun(t *testing.T) {
	// No marker anywhere; the decoder falls back to the longest
	// printable ASCII run.
	blob := []byte{0x04, 0x85, 0xFF}
	blob = append(blob, "Account credited with AED 150.00"...)
	blob = append(blob, 0x00, 0x86)

	assert.Equal(t, "Account credited with AED 150.00", DecodeAttributedBody(blob))
}

func TestDecodeAttributedBody_Unusable(t *testing.T) {
	tests := []struct {
		name string
		blob []byte
	}{
		{"empty", nil},
		{"runs too short", []byte{0x85, 'a', 'b', 'c', 0x86, 'x', 'y', 0x87}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, DecodeAttributedBody(tt.blob))
		})
	}
}

func TestBody(t *testing.T) {
	blob := markerBlob("decoded from attributed body", 0)

	tests := []struct {
		name string
		text string
		blob []byte
		want string
	}{
		{"text column wins", "PoS purchase SAR 48 at KAKAT", blob, "PoS purchase SAR 48 at KAKAT"},
		{"short text falls back to blob", "short text", blob, "decoded from attributed body"},
		{"empty text uses blob", "", blob, "decoded from attributed body"},
		{"nothing usable", "", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Body(tt.text, tt.blob))
		})
	}
}
