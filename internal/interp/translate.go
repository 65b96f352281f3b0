package interp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokAtom  tokenKind = iota // identifier, number, string, reference or rewritten group
	tokOp                     // operator or punctuation
	tokOpen                   // ( [ {
	tokClose                  // ) ] }
)

type token struct {
	kind tokenKind
	text string // HCL source
}

func (t token) endsOperand() bool { return t.kind == tokAtom || t.kind == tokClose }

// multiOps are matched longest first.
var multiOps = []string{"...", "**", "//", "/*", "==", "!=", "<=", ">=", "&&", "||", "<<", ">>", "=>"}

// keywords maps Python spellings to HCL.
var keywords = map[string]token{
	"and":   {tokOp, "&&"},
	"or":    {tokOp, "||"},
	"not":   {tokOp, "!"},
	"True":  {tokAtom, "true"},
	"False": {tokAtom, "false"},
	"None":  {tokAtom, "null"},
}

// translate rewrites marker expression content into HCL source. Each
// `backticked` reference becomes a variable ref0, ref1, ... in order of
// appearance, or a ${refN} interpolation inside a string literal. Python's
// floor division and power operators become floor() and pow() calls.
func translate(content string) (string, []string, error) {
	toks, refs, err := lex(content)
	if err != nil {
		return "", nil, err
	}
	if toks, err = rewritePower(toks); err != nil {
		return "", nil, err
	}
	if toks, err = rewriteFloorDiv(toks); err != nil {
		return "", nil, err
	}
	return render(toks), refs, nil
}

func lex(content string) ([]token, []string, error) {
	var toks []token
	var refs []string
	bind := func(name string) string {
		refs = append(refs, name)
		return "ref" + strconv.Itoa(len(refs)-1)
	}

	for i := 0; i < len(content); {
		c := content[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == exprQuote[0]:
			end := strings.IndexByte(content[i+1:], c)
			if end < 0 {
				return nil, nil, errors.New("unbalanced backtick")
			}
			toks = append(toks, token{tokAtom, bind(content[i+1 : i+1+end])})
			i += end + 2
		case c == '"' || c == '\'':
			text, n, err := lexString(content[i:], bind)
			if err != nil {
				return nil, nil, err
			}
			toks = append(toks, token{tokAtom, text})
			i += n
		case c == '#':
			return nil, nil, errors.New("comments are not allowed in expressions")
		case isDigit(c):
			n := lexNumber(content[i:])
			toks = append(toks, token{tokAtom, content[i : i+n]})
			i += n
		case isIdentStart(c):
			j := i + 1
			for j < len(content) && isIdentPart(content[j]) {
				j++
			}
			word := content[i:j]
			if kw, ok := keywords[word]; ok {
				toks = append(toks, kw)
			} else {
				toks = append(toks, token{tokAtom, word})
			}
			i = j
		default:
			op := content[i : i+1]
			for _, m := range multiOps {
				if strings.HasPrefix(content[i:], m) {
					op = m
					break
				}
			}
			switch op {
			case "/*":
				return nil, nil, errors.New("comments are not allowed in expressions")
			case "<<", ">>":
				return nil, nil, fmt.Errorf("unsupported operator %q", op)
			}
			kind := tokOp
			switch op {
			case "(", "[", "{":
				kind = tokOpen
			case ")", "]", "}":
				kind = tokClose
			}
			toks = append(toks, token{kind, op})
			i += len(op)
		}
	}
	return toks, refs, nil
}

// lexString converts a single- or double-quoted literal at the start of s to
// an HCL template string and reports how many bytes it consumed.
func lexString(s string, bind func(string) string) (string, int, error) {
	q := s[0]
	var b strings.Builder
	b.WriteByte('"')
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == q:
			b.WriteByte('"')
			return b.String(), i + 1, nil
		case c == '\\' && i+1 < len(s):
			i++
			switch e := s[i]; e {
			case 'n':
				b.WriteString(`\n`)
			case 't':
				b.WriteString(`\t`)
			case 'r':
				b.WriteString(`\r`)
			case '\\':
				b.WriteString(`\\`)
			case '"':
				b.WriteString(`\"`)
			case '\'', exprQuote[0]:
				b.WriteByte(e)
			default:
				b.WriteString(`\\`)
				writeLiteral(&b, e, "")
			}
		case c == exprQuote[0]:
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return "", 0, errors.New("unbalanced backtick")
			}
			b.WriteString("${" + bind(s[i+1:i+1+end]) + "}")
			i += end + 1
		default:
			writeLiteral(&b, c, s[i+1:])
		}
	}
	return "", 0, errors.New("unterminated string literal")
}

// writeLiteral writes one byte of string content escaped for an HCL template.
func writeLiteral(b *strings.Builder, c byte, rest string) {
	switch c {
	case '"':
		b.WriteString(`\"`)
	case '\\':
		b.WriteString(`\\`)
	case '\n':
		b.WriteString(`\n`)
	case '\t':
		b.WriteString(`\t`)
	case '\r':
		b.WriteString(`\r`)
	case '$', '%':
		if strings.HasPrefix(rest, "{") {
			b.WriteByte(c)
		}
		b.WriteByte(c)
	default:
		b.WriteByte(c)
	}
}

func lexNumber(s string) int {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i+1 < len(s) && s[i] == '.' && isDigit(s[i+1]) {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

// rewritePower turns a ** b into pow(a, b), right to left so the operator
// associates to the right. The left operand takes no unary prefix: -a ** b
// is -(a ** b).
func rewritePower(toks []token) ([]token, error) {
	for {
		i := lastOp(toks, "**")
		if i < 0 {
			return toks, nil
		}
		start, err := operandStart(toks, i-1)
		if err != nil {
			return nil, err
		}
		end, err := operandEnd(toks, i+1)
		if err != nil {
			return nil, err
		}
		group := token{tokAtom, "pow(" + render(toks[start:i]) + ", " + render(toks[i+1:end]) + ")"}
		toks = splice(toks, start, end, group)
	}
}

// rewriteFloorDiv turns a // b into floor((a) / (b)), left to right. The left
// operand extends over the chain of *, / and % before it, which share the
// operator's precedence.
func rewriteFloorDiv(toks []token) ([]token, error) {
	for {
		i := firstOp(toks, "//")
		if i < 0 {
			return toks, nil
		}
		start, err := unaryStart(toks, i-1)
		if err != nil {
			return nil, err
		}
		for start >= 2 && isMulOp(toks[start-1]) {
			if start, err = unaryStart(toks, start-2); err != nil {
				return nil, err
			}
		}
		end, err := operandEnd(toks, i+1)
		if err != nil {
			return nil, err
		}
		group := token{tokAtom, "floor((" + render(toks[start:i]) + ") / (" + render(toks[i+1:end]) + "))"}
		toks = splice(toks, start, end, group)
	}
}

var errMissingOperand = errors.New("missing operand")

// operandStart returns the index of the first token of the primary
// expression, with its calls, indexes and attribute accesses, ending at end.
func operandStart(toks []token, end int) (int, error) {
	if end < 0 || !toks[end].endsOperand() {
		return 0, errMissingOperand
	}
	i := end
	for {
		if toks[i].kind == tokClose {
			open := matchOpen(toks, i)
			if open < 0 {
				return 0, errors.New("unbalanced brackets")
			}
			i = open
			if toks[i].text != "{" && i > 0 && toks[i-1].endsOperand() {
				i--
				continue
			}
			return i, nil
		}
		if i >= 2 && toks[i-1].text == "." && toks[i-2].endsOperand() {
			i -= 2
			continue
		}
		return i, nil
	}
}

// unaryStart is operandStart extended over any unary prefix operators.
func unaryStart(toks []token, end int) (int, error) {
	start, err := operandStart(toks, end)
	if err != nil {
		return 0, err
	}
	for start >= 1 && isUnary(toks[start-1]) && (start == 1 || !toks[start-2].endsOperand()) {
		start--
	}
	return start, nil
}

// operandEnd returns the index just past the unary-prefixed primary
// expression starting at start.
func operandEnd(toks []token, start int) (int, error) {
	i := start
	for i < len(toks) && isUnary(toks[i]) {
		i++
	}
	if i >= len(toks) {
		return 0, errMissingOperand
	}
	switch toks[i].kind {
	case tokOpen:
		closing := matchClose(toks, i)
		if closing < 0 {
			return 0, errors.New("unbalanced brackets")
		}
		i = closing + 1
	case tokAtom:
		i++
	default:
		return 0, errMissingOperand
	}
	for i < len(toks) {
		switch {
		case toks[i].text == "(" || toks[i].text == "[":
			closing := matchClose(toks, i)
			if closing < 0 {
				return 0, errors.New("unbalanced brackets")
			}
			i = closing + 1
		case toks[i].text == "." && i+1 < len(toks) && toks[i+1].kind == tokAtom:
			i += 2
		default:
			return i, nil
		}
	}
	return i, nil
}

func matchOpen(toks []token, closing int) int {
	depth := 0
	for i := closing; i >= 0; i-- {
		switch toks[i].kind {
		case tokClose:
			depth++
		case tokOpen:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func matchClose(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].kind {
		case tokOpen:
			depth++
		case tokClose:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isUnary(t token) bool {
	return t.kind == tokOp && (t.text == "-" || t.text == "!")
}

func isMulOp(t token) bool {
	return t.kind == tokOp && (t.text == "*" || t.text == "/" || t.text == "%")
}

func firstOp(toks []token, op string) int {
	for i, t := range toks {
		if t.kind == tokOp && t.text == op {
			return i
		}
	}
	return -1
}

func lastOp(toks []token, op string) int {
	for i := len(toks) - 1; i >= 0; i-- {
		if toks[i].kind == tokOp && toks[i].text == op {
			return i
		}
	}
	return -1
}

func splice(toks []token, start, end int, group token) []token {
	out := make([]token, 0, len(toks)-(end-start)+1)
	out = append(out, toks[:start]...)
	out = append(out, group)
	return append(out, toks[end:]...)
}

// render writes tokens out as HCL source.
func render(toks []token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && spaced(toks, i) {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
	}
	return b.String()
}

// spaced reports whether a space separates toks[i] from the token before it.
func spaced(toks []token, i int) bool {
	prev, t := toks[i-1], toks[i]
	switch {
	case t.text == "." || prev.text == "." || t.text == ",":
		return false
	case prev.kind == tokOpen || t.kind == tokClose:
		return false
	case t.kind == tokOpen && t.text != "{" && prev.endsOperand():
		return false
	case isUnary(prev) && (i == 1 || !toks[i-2].endsOperand()):
		return false
	}
	return true
}
