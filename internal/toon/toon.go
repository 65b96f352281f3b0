// Package toon implements TOON (Token-Oriented Object Notation) encoding of
// parameter chains.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/synconf/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// EncodeChain converts a resolved parameter chain into TOON format: one row
// per chain entry, then one row per exposed parameter.
func EncodeChain(chain model.Chain) string {
	var parts []string

	if len(chain) > 0 {
		parts = append(parts, fmt.Sprintf("entry: %s", encodeValue(string(chain[0].Identity))))
	}

	var entryRows [][]any
	for _, e := range chain {
		_, open := e.Signature.OpenKeyword()
		entryRows = append(entryRows, []any{
			string(e.Identity),
			callableKind(e.Callable),
			open,
		})
	}
	parts = append(parts, formatTabular("entries", []string{"callable", "kind", "open"}, entryRows))

	var paramRows [][]any
	for _, e := range chain {
		for _, p := range e.Signature.Params() {
			typ := ""
			if p.Type != nil {
				typ = p.Type.String()
			}
			def := ""
			if p.HasDefault {
				def = model.PyRepr(p.Default)
			}
			paramRows = append(paramRows, []any{
				string(e.Identity),
				p.Name,
				string(p.Kind),
				typ,
				def,
			})
		}
	}
	parts = append(parts, formatTabular("chain", []string{"callable", "parameter", "kind", "type", "default"}, paramRows))

	return strings.Join(parts, "\n")
}

func callableKind(c model.Callable) string {
	switch {
	case c.IsClass():
		return "class"
	case c.Func != nil && c.Func.Class != "":
		return "method"
	}
	return "function"
}

// formatTabular writes a TOON table. String cells are quoted as needed;
// booleans are written bare.
func formatTabular(name string, columns []string, rows [][]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			switch c := cell.(type) {
			case bool:
				encoded[i] = strconv.FormatBool(c)
			default:
				encoded[i] = encodeValue(fmt.Sprint(c))
			}
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
