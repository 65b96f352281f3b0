package tracer

import (
	"strings"

	"github.com/phobologic/synconf/internal/model"
)

// Defaults returns the default value of every parameter in the chain that
// declares a literal one. The entry nearest the start of the chain wins.
// Parameters whose default is not a literal are listed in skipped.
func Defaults(chain model.Chain) (defaults map[string]any, skipped []string) {
	defaults = make(map[string]any)
	for _, p := range chain.Parameters() {
		if p.Kind != model.Ordinary || !p.HasDefault {
			continue
		}
		if _, ok := p.Default.(model.Unevaluated); ok {
			skipped = append(skipped, p.Name)
			continue
		}
		defaults[p.Name] = model.Clone(p.Default)
	}
	return defaults, skipped
}

// FormatHelp renders the chain for display: one header per entry, then one
// line per parameter with its type, default and docstring description.
func FormatHelp(chain model.Chain) string {
	var b strings.Builder
	for i, entry := range chain {
		if i > 0 {
			b.WriteString("\n→ ")
		}
		b.WriteString(string(entry.Identity))
		b.WriteString(":")

		var docs map[string]string
		if entry.Callable.Func != nil {
			docs = entry.Callable.Func.Docs
		}
		for _, p := range entry.Signature.Params() {
			b.WriteString("\n    ")
			b.WriteString(paramLine(p, docs[p.Name]))
		}
	}
	return b.String()
}

func paramLine(p model.Param, doc string) string {
	switch p.Kind {
	case model.OpenKeyword:
		return "**" + p.Name
	case model.PositionalCollector:
		return "*" + p.Name
	}

	line := p.Name
	var details []string
	if p.Type != nil {
		details = append(details, p.Type.String())
	}
	if p.HasDefault {
		details = append(details, "default="+formatDefault(p.Default))
	}
	if len(details) > 0 {
		line += "(" + strings.Join(details, ", ") + ")"
	}
	if doc != "" {
		line += ": " + doc
	}
	return line
}

func formatDefault(v any) string {
	if s, ok := v.(string); ok {
		return "'" + s + "'"
	}
	return model.PyStr(v)
}
