package standup

import "strings"

// Section markers of the standup template, in required order.
var sectionMarkers = [...]string{
	"Yesterday I:",
	"Today I will:",
	"Potential hard problems:",
}

// HelpText is sent to users whose post was rejected.
const HelpText = "Please format your standup correctly, here is a template example: ```\n" +
	"Yesterday I: [...]\n" +
	"Today I will: [...]\n" +
	"Potential hard problems: [...]\n" +
	"```\n"

// IsFormatted reports whether text follows the standup template: each marker
// starts a line (matched case-insensitively), the markers appear in order,
// and every section has non-whitespace content before the next marker or the
// end of the text.
func IsFormatted(text string) bool {
	next := 0
	hasContent := false
	for _, line := range strings.Split(text, "\n") {
		if next < len(sectionMarkers) && hasPrefixFold(line, sectionMarkers[next]) {
			if next > 0 && !hasContent {
				return false
			}
			hasContent = strings.TrimSpace(line[len(sectionMarkers[next]):]) != ""
			next++
			continue
		}
		if next > 0 && !hasContent && strings.TrimSpace(line) != "" {
			hasContent = true
		}
	}
	return next == len(sectionMarkers) && hasContent
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
