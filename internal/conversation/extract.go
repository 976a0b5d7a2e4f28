package conversation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// scorePatterns are tried in order; the first one yielding a valid rating wins.
var scorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(10|[0-9])\s*(?:/\s*10)?\b`), // "8", "8/10"
	regexp.MustCompile(`nota\s+(10|[0-9])\b`),          // "nota 8"
	regexp.MustCompile(`dou\s+(10|[0-9])\b`),           // "dou 8"
	regexp.MustCompile(`daria\s+(10|[0-9])\b`),         // "daria 8"
}

// ExtractScore finds an NPS rating (0-10) embedded in free text.
func ExtractScore(text string) (int, bool) {
	lower := strings.ToLower(text)
	for _, re := range scorePatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		score, err := strconv.Atoi(m[1])
		if err != nil || score < 0 || score > 10 {
			continue
		}
		return score, true
	}
	return 0, false
}

var ratingWords = regexp.MustCompile(`\b(nota|dou|daria)\b`)

// hasFeedback reports whether text says more than the rating itself.
func hasFeedback(text string) bool {
	rest := strings.ToLower(text)
	rest = scorePatterns[0].ReplaceAllString(rest, " ")
	rest = ratingWords.ReplaceAllString(rest, " ")
	letters := 0
	for _, r := range rest {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters > 3
}
