// Package builder runs the configuration-building pipeline: load and merge
// sources, drop REMOVE keys, complete defaults from parameter chains, resolve
// markers, expand LIST nodes and validate the result.
package builder

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/phobologic/synconf/internal/config"
	"github.com/phobologic/synconf/internal/interp"
	"github.com/phobologic/synconf/internal/logging"
	"github.com/phobologic/synconf/internal/model"
	"github.com/phobologic/synconf/internal/symtab"
	"github.com/phobologic/synconf/internal/tracer"
	"github.com/phobologic/synconf/internal/validate"
)

// Options configures a Builder.
type Options struct {
	Validate validate.Options
	// LookupEnv overrides os.LookupEnv for environment markers.
	LookupEnv func(string) (string, bool)
}

// Builder builds configuration trees against one symbol table.
type Builder struct {
	table     *symtab.Table
	resolver  *tracer.Resolver
	validator *validate.Validator
	engine    *interp.Engine
	opts      Options
	logger    *slog.Logger
}

// New creates a builder.
func New(table *symtab.Table, opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	resolver := tracer.NewResolver(table, logger)
	engineOpts := []interp.Option{interp.WithLogger(logger)}
	if opts.LookupEnv != nil {
		engineOpts = append(engineOpts, interp.WithLookupEnv(opts.LookupEnv))
	}
	return &Builder{
		table:     table,
		resolver:  resolver,
		validator: validate.New(table, resolver, opts.Validate, logger),
		engine:    interp.New(engineOpts...),
		opts:      opts,
		logger:    logger,
	}
}

// Build merges sources in order and runs the pipeline. A source is either a
// YAML file path or a key=value override.
func (b *Builder) Build(sources []string) (map[string]any, error) {
	return b.build(sources, nil)
}

// Sweep builds one tree per combination of the sweep arguments, each of the
// form key=[v1, v2]. Sweep values are applied after every source.
func (b *Builder) Sweep(sweep, sources []string) ([]map[string]any, error) {
	combos, err := config.ExpandSweep(sweep)
	if err != nil {
		return nil, err
	}
	trees := make([]map[string]any, 0, len(combos))
	for i, combo := range combos {
		tree, err := b.build(sources, combo)
		if err != nil {
			return nil, fmt.Errorf("sweep combination %d: %w", i+1, err)
		}
		trees = append(trees, tree)
	}
	return trees, nil
}

// Chain resolves the parameter chain of a dotted callable name.
func (b *Builder) Chain(object string) (model.Chain, error) {
	return b.resolver.ResolveName(object)
}

// Help renders the parameter chain of a dotted callable name.
func (b *Builder) Help(object string) (string, error) {
	chain, err := b.resolver.ResolveName(object)
	if err != nil {
		return "", err
	}
	return tracer.FormatHelp(chain), nil
}

func (b *Builder) build(sources []string, extra []config.Override) (map[string]any, error) {
	tree := map[string]any{}
	for _, src := range sources {
		if config.IsOverride(src) {
			o, err := config.ParseOverride(src)
			if err != nil {
				return nil, err
			}
			if err := config.Apply(tree, o); err != nil {
				return nil, err
			}
			continue
		}
		loaded, err := config.Load(src)
		if err != nil {
			return nil, err
		}
		config.DeepMerge(tree, loaded)
		b.logger.Debug("loaded config", "path", src)
	}
	if err := config.Apply(tree, extra...); err != nil {
		return nil, err
	}

	config.RemoveMarked(tree)
	if err := b.CompleteDefaults(tree); err != nil {
		return nil, err
	}
	if _, err := b.engine.ResolveAll(tree); err != nil {
		return nil, err
	}
	tree, ok := config.ProcessLists(tree).(map[string]any)
	if !ok {
		return nil, errors.New("top level of a configuration cannot be a LIST node")
	}

	if b.opts.Validate.ValidateType || b.opts.Validate.ValidateMapping {
		issues, err := b.validator.ValidateRecursive(tree)
		if err != nil {
			return nil, err
		}
		if len(issues) > 0 {
			return nil, &validate.ValidationError{Issues: issues}
		}
	}
	return tree, nil
}
