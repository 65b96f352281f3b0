package lang

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

func init() {
	Languages["python"] = &Language{
		Name:       "python",
		Extensions: []string{".py"},
		lang:       python.GetLanguage(),
	}
}

// Python returns the registered Python language.
func Python() *Language {
	return Languages["python"]
}

// DefName returns the name of a function_definition or class_definition.
func DefName(node *sitter.Node, source []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return NodeText(name, source)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "identifier" {
			return NodeText(child, source)
		}
	}
	return ""
}

// DottedName flattens an identifier or attribute chain into "a.b.c".
// It reports false for any other expression.
func DottedName(node *sitter.Node, source []byte) (string, bool) {
	if node == nil {
		return "", false
	}
	switch node.Type() {
	case "identifier":
		return NodeText(node, source), true
	case "attribute":
		obj, ok := DottedName(node.ChildByFieldName("object"), source)
		if !ok {
			return "", false
		}
		attr := node.ChildByFieldName("attribute")
		if attr == nil {
			return "", false
		}
		return obj + "." + NodeText(attr, source), true
	case "dotted_name":
		parts := make([]string, 0, node.NamedChildCount())
		for _, c := range NamedChildren(node) {
			parts = append(parts, NodeText(c, source))
		}
		return strings.Join(parts, "."), true
	}
	return "", false
}

// StringValue returns the value of a plain or implicitly concatenated string
// literal. f-strings and byte strings are not values.
func StringValue(node *sitter.Node, source []byte) (string, bool) {
	switch node.Type() {
	case "string":
		return UnquotePython(NodeText(node, source))
	case "concatenated_string":
		var sb strings.Builder
		for _, part := range NamedChildren(node) {
			s, ok := StringValue(part, source)
			if !ok {
				return "", false
			}
			sb.WriteString(s)
		}
		return sb.String(), true
	}
	return "", false
}

// UnquotePython decodes a Python string literal including its prefix and quotes.
func UnquotePython(text string) (string, bool) {
	i := 0
	raw := false
	for i < len(text) && strings.ContainsRune("rRbBuUfF", rune(text[i])) {
		switch text[i] {
		case 'f', 'F', 'b', 'B':
			return "", false
		case 'r', 'R':
			raw = true
		}
		i++
	}
	body := text[i:]
	var quote string
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(body, q) && strings.HasSuffix(body, q) && len(body) >= 2*len(q) {
			quote = q
			break
		}
	}
	if quote == "" {
		return "", false
	}
	body = body[len(quote) : len(body)-len(quote)]
	if raw {
		return body, true
	}
	return unescape(body), true
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		case '\\', '\'', '"':
			sb.WriteByte(s[i])
		case '\n':
			// line continuation
		case 'x', 'u', 'U':
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[s[i]]
			if i+width < len(s) {
				if r, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32); err == nil {
					sb.WriteRune(rune(r))
					i += width
					continue
				}
			}
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
