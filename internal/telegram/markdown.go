package telegram

import (
	"strings"
	"unicode/utf8"
)

// SplitMessage splits a message into chunks of at most maxLen runes,
// preferring to cut at a newline in the second half of a chunk.
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			parts = append(parts, string(runes))
			break
		}

		splitAt := maxLen
		if nl := lastNewline(runes[:maxLen]); nl > maxLen/2 {
			splitAt = nl + 1
		}

		parts = append(parts, string(runes[:splitAt]))
		runes = runes[splitAt:]
	}

	return parts
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}

// FixMarkdown closes unbalanced code spans and emphasis markers so that
// Telegram's legacy Markdown parser accepts the text.
func FixMarkdown(text string) string {
	if strings.Count(text, "```")%2 != 0 {
		text += "\n```"
	}
	text = closeInline(text, '`')
	return text
}

// EscapeMarkdown neutralizes the legacy Markdown control characters in
// user supplied text.
func EscapeMarkdown(text string) string {
	r := strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")
	return r.Replace(text)
}

func closeInline(text string, marker rune) string {
	var builder strings.Builder
	inBlock := false
	open := false

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if i+2 < len(runes) && string(runes[i:i+3]) == "```" {
			if open {
				builder.WriteRune(marker)
				open = false
			}
			inBlock = !inBlock
			builder.WriteString("```")
			i += 2
			continue
		}

		if !inBlock && runes[i] == marker {
			open = !open
		}
		builder.WriteRune(runes[i])
	}

	if open {
		builder.WriteRune(marker)
	}
	return builder.String()
}
