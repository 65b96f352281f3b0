// Package validate checks configuration object nodes against the parameter
// chains of their targets: missing and unexpected keys, and value types.
package validate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/phobologic/synconf/internal/logging"
	"github.com/phobologic/synconf/internal/model"
	"github.com/phobologic/synconf/internal/symtab"
	"github.com/phobologic/synconf/internal/tracer"
)

// IssueKind classifies a validation issue.
type IssueKind string

const (
	MissingParameter    IssueKind = "Missing parameters"
	UnexpectedParameter IssueKind = "Unexpected parameters"
	TypeMismatch        IssueKind = "Type mismatch"
)

// Issue is one validation problem. Mapping issues list every offending
// parameter of one object; type issues describe one parameter.
type Issue struct {
	Kind IssueKind
	// Object is the target of the object node.
	Object string
	// Parameters holds the sorted dotted paths of a mapping issue.
	Parameters []string
	// Parameter is the dotted path of a type issue.
	Parameter  string
	Expected   string
	Actual     string
	ActualType string
}

func (i Issue) String() string {
	if i.Kind == TypeMismatch {
		return fmt.Sprintf("❌ %s\nParameter: %s\nExpected: %s\nActual: %s (%s)",
			i.Kind, i.Parameter, i.Expected, i.Actual, i.ActualType)
	}
	return fmt.Sprintf("❌ %s\nParameters: %s\nObject: %s", i.Kind, strings.Join(i.Parameters, ", "), i.Object)
}

// ValidationError aggregates every issue found in one pass.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return strings.Join(parts, "\n\n")
}

// Options selects which checks run.
type Options struct {
	ValidateType    bool
	ValidateMapping bool
	// Exclude lists dotted parameter paths skipped by every check.
	Exclude []string
}

// Validator checks object nodes.
type Validator struct {
	table    *symtab.Table
	resolver *tracer.Resolver
	opts     Options
	exclude  map[string]struct{}
	logger   *slog.Logger
}

// New creates a validator.
func New(table *symtab.Table, resolver *tracer.Resolver, opts Options, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = logging.NewNop()
	}
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, p := range opts.Exclude {
		exclude[p] = struct{}{}
	}
	return &Validator{table: table, resolver: resolver, opts: opts, exclude: exclude, logger: logger}
}

// Validate checks one object node against its resolved chain. path is the
// dotted location of node in the tree, "" for the root.
func (v *Validator) Validate(node map[string]any, chain model.Chain, path string) []Issue {
	object := model.TargetOf(node)
	if object == "" && len(chain) > 0 {
		object = string(chain[0].Identity)
	}
	return v.validate(node, chain.Parameters(), chain.OpenEnded(), object, path)
}

// ValidateObject resolves the chain of node's target and validates it.
func (v *Validator) ValidateObject(node map[string]any, path string) ([]Issue, error) {
	target := model.TargetOf(node)
	callable, err := v.resolver.Lookup(target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", displayPath(path), err)
	}
	chain, err := v.resolver.Resolve(callable)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", displayPath(path), err)
	}
	params := chain.Parameters()
	if fn := callable.Func; callable.Class == nil && fn != nil && fn.Kind == model.InstanceMethod && fn.Class != "" {
		// An unbound method target receives its instance as "self".
		self := model.Param{
			Name:  "self",
			Kind:  model.Ordinary,
			Type:  model.NamedType(fn.Module + "." + fn.Class),
			Scope: fn.Module,
		}
		params = append([]model.Param{self}, params...)
	}
	return v.validate(node, params, chain.OpenEnded(), target, path), nil
}

// ValidateRecursive validates every object node in tree, including object
// nodes nested inside other object nodes.
func (v *Validator) ValidateRecursive(tree any) ([]Issue, error) {
	var issues []Issue
	err := v.walk(tree, "", &issues)
	return issues, err
}

func (v *Validator) walk(value any, path string, issues *[]Issue) error {
	switch x := value.(type) {
	case map[string]any:
		if model.IsObject(x) {
			found, err := v.ValidateObject(x, path)
			if err != nil {
				return err
			}
			*issues = append(*issues, found...)
		}
		for _, key := range model.SortedKeys(x) {
			if key == model.TypeKey {
				continue
			}
			if err := v.walk(x[key], joinPath(path, key), issues); err != nil {
				return err
			}
		}
	case []any:
		for i, item := range x {
			if err := v.walk(item, fmt.Sprintf("%s[%d]", path, i), issues); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *Validator) validate(node map[string]any, params []model.Param, open bool, object, path string) []Issue {
	var issues []Issue
	if v.opts.ValidateMapping {
		issues = append(issues, v.mapping(node, params, open, object, path)...)
	}
	if v.opts.ValidateType {
		issues = append(issues, v.types(node, params, path)...)
	}
	return issues
}

func (v *Validator) mapping(node map[string]any, params []model.Param, open bool, object, path string) []Issue {
	expected := make(map[string]struct{}, len(params))
	var required []string
	for _, p := range params {
		if p.Kind != model.Ordinary {
			continue
		}
		expected[p.Name] = struct{}{}
		if p.Required() {
			required = append(required, p.Name)
		}
	}

	var issues []Issue
	if !open {
		var unexpected []string
		for key := range node {
			if key == model.TypeKey {
				continue
			}
			if _, ok := expected[key]; ok {
				continue
			}
			if p := joinPath(path, key); !v.excluded(p) {
				unexpected = append(unexpected, p)
			}
		}
		if len(unexpected) > 0 {
			sort.Strings(unexpected)
			issues = append(issues, Issue{Kind: UnexpectedParameter, Object: object, Parameters: unexpected})
		}
	}

	var missing []string
	for _, name := range required {
		if _, ok := node[name]; ok {
			continue
		}
		if p := joinPath(path, name); !v.excluded(p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		issues = append(issues, Issue{Kind: MissingParameter, Object: object, Parameters: missing})
	}
	return issues
}

func (v *Validator) types(node map[string]any, params []model.Param, path string) []Issue {
	byName := make(map[string]model.Param, len(params))
	for _, p := range params {
		if p.Kind == model.Ordinary {
			byName[p.Name] = p
		}
	}

	var issues []Issue
	for _, key := range model.SortedKeys(node) {
		p, ok := byName[key]
		if !ok || key == model.TypeKey || p.Type == nil {
			continue
		}
		paramPath := joinPath(path, key)
		if v.excluded(paramPath) {
			continue
		}
		if issue, bad := v.checkValue(node[key], p, paramPath); bad {
			issues = append(issues, issue)
		}
	}
	return issues
}

func (v *Validator) excluded(path string) bool {
	_, ok := v.exclude[path]
	return ok
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
