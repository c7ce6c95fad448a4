package utils

import (
	"strings"
	"unicode"
)

// SenderInitial derives the single-letter avatar initial shown for a sender.
func SenderInitial(from string) string {
	for _, r := range from {
		if unicode.IsLetter(r) {
			return strings.ToUpper(string(r))
		}
	}
	return "?"
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
