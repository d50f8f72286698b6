package domain

import (
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// CodeKind tags the shape of a scanned string.
type CodeKind int

const (
	// CodeIdentifier is a UUID-shaped value matched against id or pickup_code.
	CodeIdentifier CodeKind = iota + 1
	// CodeNumeric is an all-digit value matched against order_number only.
	CodeNumeric
	// CodeOpaque is any other token, matched against pickup_code.
	CodeOpaque
)

func (k CodeKind) String() string {
	switch k {
	case CodeIdentifier:
		return "identifier"
	case CodeNumeric:
		return "numeric"
	case CodeOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// ErrEmptyCode is returned for blank scans.
var ErrEmptyCode = errors.New("scanned code is empty")

// embeddedCodeMarker prefixes codes printed inside URLs and ticket labels.
const embeddedCodeMarker = "order_"

// ScanCode is a classified scan ready for lookup.
type ScanCode struct {
	Raw    string
	Value  string
	Kind   CodeKind
	Number int64
}

// ClassifyCode runs the ordered classifier: identifier shape, then numeric, then opaque.
func ClassifyCode(raw string) (ScanCode, error) {
	value := strings.TrimSpace(raw)
	if idx := strings.Index(value, embeddedCodeMarker); idx >= 0 {
		value = strings.TrimSpace(value[idx+len(embeddedCodeMarker):])
	}
	if value == "" {
		return ScanCode{}, ErrEmptyCode
	}
	code := ScanCode{Raw: raw, Value: value}
	if isIdentifier(value) {
		code.Kind = CodeIdentifier
		return code, nil
	}
	if isDigits(value) {
		// values too large for order_number are treated as opaque tokens
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			code.Kind = CodeNumeric
			code.Number = n
			return code, nil
		}
	}
	code.Kind = CodeOpaque
	return code, nil
}

// isIdentifier accepts only the canonical 8-4-4-4-12 form.
func isIdentifier(value string) bool {
	if len(value) != 36 {
		return false
	}
	_, err := uuid.Parse(value)
	return err == nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}
