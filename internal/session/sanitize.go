package session

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xiaot623/gogo/researcher/internal/domain"
)

// DefaultMaxQueryLength is used when no limit is configured.
const DefaultMaxQueryLength = 1000

// SanitizeQuery strips control and format characters, collapses whitespace
// and enforces the length limit (in runes). The returned query is never empty.
func SanitizeQuery(raw string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxQueryLength
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r), r == utf8.RuneError:
			return -1
		}
		return r
	}, strings.ToValidUTF8(raw, ""))

	query := strings.Join(strings.Fields(cleaned), " ")
	if query == "" {
		return "", domain.NewValidationError("query", "query cannot be empty")
	}
	if utf8.RuneCountInString(query) > maxLen {
		return "", domain.NewValidationError("query", fmt.Sprintf("query exceeds %d characters", maxLen))
	}
	return query, nil
}
