package commands

import "strings"

const indentation = "  "

// longDesc strips the leading tabs that raw string literals carry in source and trims the
// surrounding blank lines.
func longDesc(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, "\t")
	}

	return strings.Join(lines, "\n")
}

// examples trims every line of s and indents it for the help output.
func examples(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			lines[i] = indentation + line
		} else {
			lines[i] = ""
		}
	}

	return strings.Join(lines, "\n")
}
