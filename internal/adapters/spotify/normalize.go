package spotify

import (
	"fmt"
	"strings"
	"unicode"
)

// noiseTokens are edition and credit words that do not identify a recording.
var noiseTokens = map[string]struct{}{
	"clean":      {},
	"deluxe":     {},
	"edition":    {},
	"edit":       {},
	"explicit":   {},
	"feat":       {},
	"featuring":  {},
	"ft":         {},
	"live":       {},
	"mix":        {},
	"mono":       {},
	"radio":      {},
	"remaster":   {},
	"remastered": {},
	"stereo":     {},
	"version":    {},
}

// referenceQuery builds the field-filtered search for a song the user named
// in a "songs like <title> by <artist>" message.
func referenceQuery(title, artist string) string {
	return fmt.Sprintf("track:%s artist:%s", foldReference(title), foldReference(artist))
}

// foldReference lowercases part and drops bracketed segments, punctuation and
// noise tokens. A part that folds to nothing is returned trimmed as typed.
func foldReference(part string) string {
	tokens := strings.Fields(cleanSeparators(stripBracketedSegments(strings.ToLower(part))))

	kept := tokens[:0]
	for _, token := range tokens {
		if _, drop := noiseTokens[token]; !drop {
			kept = append(kept, token)
		}
	}
	if len(kept) == 0 {
		return strings.TrimSpace(part)
	}
	return strings.Join(kept, " ")
}

func stripBracketedSegments(input string) string {
	var out strings.Builder
	depth := 0
	for _, r := range input {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				out.WriteRune(r)
			}
		}
	}
	return out.String()
}

// cleanSeparators keeps letters and digits and collapses every other run of
// runes into a single space.
func cleanSeparators(input string) string {
	var out strings.Builder
	lastSpace := false
	for _, r := range input {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			out.WriteRune(' ')
			lastSpace = true
		}
	}
	return out.String()
}
