package model

import (
	"errors"
	"fmt"
)

// SourceType identifies the origin kind of a document. The set is closed:
// every chunk carries exactly one of these values and access policy is
// defined over them.
type SourceType string

const (
	SourcePDF SourceType = "pdf"
	SourceWeb SourceType = "web"
)

var ErrUnknownSourceType = errors.New("unknown source type")

// ParseSourceType validates an externally supplied source type string.
func ParseSourceType(s string) (SourceType, error) {
	switch SourceType(s) {
	case SourcePDF, SourceWeb:
		return SourceType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSourceType, s)
}
