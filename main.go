// synconf builds validated configuration trees for Python callables by
// statically tracing their parameter chains.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/phobologic/synconf/internal/builder"
	"github.com/phobologic/synconf/internal/config"
	"github.com/phobologic/synconf/internal/logging"
	"github.com/phobologic/synconf/internal/model"
	"github.com/phobologic/synconf/internal/settings"
	"github.com/phobologic/synconf/internal/symtab"
	"github.com/phobologic/synconf/internal/toon"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "synconf",
		Short:         "Build and validate configurations for Python callables",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("synconf {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringP("dir", "C", ".", "project directory holding synconf.yaml and pyproject.toml")
	pf.StringSlice("roots", nil, "source roots to index (default: the project directory)")
	pf.Bool("validate-type", true, "check values against parameter annotations")
	pf.Bool("validate-mapping", true, "check for missing and unexpected parameters")
	pf.StringSlice("validate-exclude", nil, "dotted parameter paths to skip when validating")
	pf.String("log-level", "warn", "log level: debug, info, warn or error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("env-file", ".env", "dotenv file consulted for environment markers")
	pf.Int("cache-size", symtab.DefaultCacheSize, "number of parsed modules kept in memory")

	root.AddCommand(newBuildCmd(), newChainCmd(), newInitCmd())
	root.SetHelpCommand(newHelpCmd())
	return root
}

// app holds what every subcommand that touches Python sources needs.
type app struct {
	logger  *slog.Logger
	builder *builder.Builder
}

func setup(cmd *cobra.Command) (*app, error) {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return nil, err
	}
	s, err := settings.Load(dir, cmd.Flags())
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New(level, s.LogFormat, cmd.ErrOrStderr())

	lookupEnv, err := envLookup(s.EnvFile)
	if err != nil {
		return nil, err
	}

	table, err := symtab.Load(s.Roots, s.CacheSize, logger)
	if err != nil {
		return nil, fmt.Errorf("indexing sources: %w", err)
	}
	logger.Debug("indexed sources", "roots", s.Roots)

	b := builder.New(table, builder.Options{
		Validate:  s.ValidateOptions(),
		LookupEnv: lookupEnv,
	}, logger)
	return &app{logger: logger, builder: b}, nil
}

// envLookup consults the process environment first and the dotenv file at
// path second. A missing file is not an error.
func envLookup(path string) (func(string) (string, bool), error) {
	vars := map[string]string{}
	if path != "" {
		read, err := godotenv.Read(path)
		switch {
		case err == nil:
			vars = read
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return func(name string) (string, bool) {
		if v, ok := os.LookupEnv(name); ok {
			return v, true
		}
		v, ok := vars[name]
		return v, ok
	}, nil
}

func newBuildCmd() *cobra.Command {
	var sweep []string
	cmd := &cobra.Command{
		Use:   "build [config.yaml | key=value ...]",
		Short: "Merge configuration sources and print the validated result",
		Long: `Merge YAML files and key=value overrides in the order given, complete
defaults from each object's parameter chain, resolve ((...)) markers and
print the final configuration as YAML.

With --sweep, one configuration is printed per combination of the sweep
values, separated by "---".`,
		Example: `  synconf build train.yaml trainer.lr=0.01
  synconf build train.yaml --sweep 'trainer.lr=[0.1, 0.01]' --sweep 'seed=[1, 2]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			var trees []map[string]any
			if len(sweep) > 0 {
				trees, err = a.builder.Sweep(sweep, args)
			} else {
				var tree map[string]any
				tree, err = a.builder.Build(args)
				trees = []map[string]any{tree}
			}
			if err != nil {
				return err
			}
			a.logger.Debug("built configurations", "count", len(trees))
			return writeTrees(cmd.OutOrStdout(), trees)
		},
	}
	cmd.Flags().StringArrayVar(&sweep, "sweep", nil, "key=[v1, v2] values to sweep over (repeatable)")
	return cmd
}

func writeTrees(w io.Writer, trees []map[string]any) error {
	for i, tree := range trees {
		data, err := config.Marshal(tree)
		if err != nil {
			return err
		}
		if i > 0 {
			if _, err := io.WriteString(w, "---\n"); err != nil {
				return err
			}
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func newChainCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "chain <object>",
		Short: "Print the delegation chain of a callable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "toon" {
				return fmt.Errorf("unknown format %q (want text or toon)", format)
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			chain, err := a.builder.Chain(args[0])
			if err != nil {
				return err
			}
			out := formatChain(chain)
			if format == "toon" {
				out = toon.EncodeChain(chain)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or toon")
	return cmd
}

// formatChain lists chain identities, one per line, marking the entry that
// still accepts arbitrary keyword arguments.
func formatChain(chain model.Chain) string {
	lines := make([]string, 0, len(chain))
	for i, e := range chain {
		line := string(e.Identity)
		if i > 0 {
			line = "→ " + line
		}
		if p, ok := e.Signature.OpenKeyword(); ok {
			line += " (**" + p.Name + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func newHelpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "help [command | object]",
		Short: "Show help for a command, or the parameters an object accepts",
		Long: `With a command name, show that command's usage. With a dotted Python
name such as pkg.models.Trainer, list every parameter the object accepts
along its delegation chain.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			if len(args) == 0 {
				return root.Help()
			}
			if sub, _, err := root.Find(args); err == nil && sub != root {
				return sub.Help()
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			text, err := a.builder.Help(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
}
