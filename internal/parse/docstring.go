package parse

import (
	"regexp"
	"strings"
)

var argEntryRe = regexp.MustCompile(`^(\*{0,2}[A-Za-z_][A-Za-z0-9_]*)\s*(\([^)]*\))?\s*:\s*(.*)$`)

// sections that end an Args block in Google-style docstrings.
var sectionHeaders = map[string]struct{}{
	"Returns:": {}, "Return:": {}, "Raises:": {}, "Yields:": {}, "Examples:": {},
	"Example:": {}, "Note:": {}, "Notes:": {}, "Attributes:": {}, "See Also:": {},
}

// ParseArgsSection extracts parameter descriptions from the Args: section of a
// Google-style docstring. Trailing periods are trimmed.
func ParseArgsSection(doc string) map[string]string {
	lines := strings.Split(doc, "\n")
	start := -1
	baseIndent := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "Args:" || trimmed == "Arguments:" || trimmed == "Parameters:" {
			start = i + 1
			baseIndent = indentOf(line)
			break
		}
	}
	if start < 0 {
		return nil
	}

	docs := make(map[string]string)
	var current string
	entryIndent := -1
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		indent := indentOf(line)
		if _, ok := sectionHeaders[trimmed]; ok || indent <= baseIndent {
			break
		}
		if entryIndent < 0 {
			entryIndent = indent
		}
		if indent <= entryIndent {
			m := argEntryRe.FindStringSubmatch(trimmed)
			if m == nil {
				current = ""
				continue
			}
			current = strings.TrimLeft(m[1], "*")
			docs[current] = m[3]
			continue
		}
		if current != "" {
			docs[current] = strings.TrimSpace(docs[current] + " " + trimmed)
		}
	}

	for name, desc := range docs {
		desc = strings.TrimRight(strings.TrimSpace(desc), "。.")
		if desc == "" {
			delete(docs, name)
			continue
		}
		docs[name] = desc
	}
	return docs
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
