package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reBlankLines  = regexp.MustCompile(`\n{3,}`)
	reInnerSpaces = regexp.MustCompile(`\s+`)
)

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func dropControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func trimLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = TrimAndNormalize(line)
	}
	return strings.Join(lines, "\n")
}

func collapseBlankLines(s string) string {
	return strings.TrimSpace(reBlankLines.ReplaceAllString(s, "\n\n"))
}

// SanitizeTitle normalizes single-line text.
func SanitizeTitle(input string) string {
	p := Pipeline{
		dropControl,
		TrimAndNormalize,
	}
	return p.Apply(input)
}

// SanitizeText normalizes free text while keeping paragraph breaks.
func SanitizeText(input string) string {
	p := Pipeline{
		normalizeLineEndings,
		dropControl,
		trimLines,
		collapseBlankLines,
	}
	return p.Apply(input)
}

// SanitizeIdentifier trims an identifier and removes any whitespace inside it.
// Case is preserved.
func SanitizeIdentifier(input string) string {
	return reInnerSpaces.ReplaceAllString(strings.TrimSpace(input), "")
}

func SanitizeSlice(values []string, strategy Strategy) []string {
	return NormalizeStringSlice(values, strategy)
}
