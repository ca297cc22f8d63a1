package routine

import (
	"fmt"
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize trims, lowercases and collapses internal whitespace to single spaces.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// SplitIntents splits draft text into candidate command lines.
// Each line is trimmed and blank lines are dropped; order is preserved.
// The 1-based index into the result is the position shown to users.
func SplitIntents(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// IsKey reports whether name can be written as a registry key: non-empty
// and without surrounding whitespace. Validated nicknames always are.
func IsKey(name string) bool {
	return name != "" && name == strings.TrimSpace(name)
}

// DraftFromDefinition reopens a saved routine for editing, one utterance per line.
func DraftFromDefinition(d Definition) Draft {
	var b strings.Builder
	for _, c := range d.Contexts {
		b.WriteString(c.Utterance)
		b.WriteString("\n")
	}
	return Draft{
		Nickname: d.Nickname,
		Intents:  b.String(),
	}
}

// Markdown renders a routine card: a heading and the ordered list of commands.
func Markdown(d Definition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", d.Nickname)
	if d.Utterance != "" {
		fmt.Fprintf(&b, "_%s_\n\n", d.Utterance)
	}
	for i, c := range d.Contexts {
		if c.Name != "" {
			fmt.Fprintf(&b, "%d. %s (`%s`)\n", i+1, c.Utterance, c.Name)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, c.Utterance)
		}
	}
	return b.String()
}
