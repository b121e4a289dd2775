package prepare

import (
	"regexp"
	"strings"
)

var (
	fencedCode = regexp.MustCompile("(?s)```.*?```")
	inlineCode = regexp.MustCompile("`[^`]+`")
	urlPattern = regexp.MustCompile(`http\S+|www\.\S+`)
	markdown   = regexp.MustCompile("[*_>#`-]+")
	whitespace = regexp.MustCompile(`\s+`)

	emojiPattern = regexp.MustCompile(`[\x{1F600}-\x{1F64F}` +
		`\x{1F300}-\x{1F5FF}` +
		`\x{1F680}-\x{1F6FF}` +
		`\x{1F1E0}-\x{1F1FF}` +
		`\x{2700}-\x{27BF}` +
		`\x{1F900}-\x{1F9FF}` +
		`\x{2600}-\x{26FF}` +
		`\x{2B50}-\x{2B55}]+`)
)

// CleanMarkdown replaces code with [code] and URLs with [link], strips
// markdown formatting characters and collapses whitespace
func CleanMarkdown(text string) string {
	if text == "" {
		return ""
	}
	text = fencedCode.ReplaceAllString(text, " [code] ")
	text = inlineCode.ReplaceAllString(text, " [code] ")
	text = urlPattern.ReplaceAllString(text, " [link] ")
	text = markdown.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// ExtractEmojis returns each run of emoji characters in text
func ExtractEmojis(text string) []string {
	found := emojiPattern.FindAllString(text, -1)
	if found == nil {
		return []string{}
	}
	return found
}
