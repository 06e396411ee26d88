package protocol

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxLabelBytes bounds label size on the wire. Labels are human-chosen
// barrier names, not payloads.
const MaxLabelBytes = 256

// CanonicalLabel normalizes a label for federation-wide comparison:
// surrounding whitespace is trimmed and the text is NFC normalized, so
// differently-composed spellings of the same name compare equal.
func CanonicalLabel(label string) string {
	return norm.NFC.String(strings.TrimSpace(label))
}

// ValidateLabel checks a canonicalized label. It must be non-empty, valid
// UTF-8, and at most MaxLabelBytes bytes.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("label must not be empty")
	}
	if !utf8.ValidString(label) {
		return fmt.Errorf("label is not valid UTF-8")
	}
	if len(label) > MaxLabelBytes {
		return fmt.Errorf("label exceeds %d bytes (got %d)", MaxLabelBytes, len(label))
	}
	return nil
}
