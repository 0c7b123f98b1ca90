// Command hbs renders handlebars templates from the command line.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/neurodesk/handlebars/pkg/handlebars"
	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	verbose    bool

	cfg    hbsConfig
	logger *slog.Logger
}

func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	cfg, err := readConfig(a.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "hbs",
		Short:         "Render handlebars templates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "hbs.yaml", "Path to configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(a.renderCmd(), a.tokensCmd(), a.treeCmd(), a.helpersCmd(), a.testCmd())
	return root
}

func (a *app) renderCmd() *cobra.Command {
	var (
		dataPath string
		sets     []string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "render [template]",
		Short: "Render a template with YAML or JSON data",
		Long: "Render a template by name from the configured template source, or, when\n" +
			"none is configured, the template file given (\"-\" for stdin).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data any
			if dataPath != "" {
				b, err := readInput(dataPath, cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading data: %w", err)
				}
				if data, err = decodeData(b); err != nil {
					return err
				}
			}
			data, err := applySets(data, sets)
			if err != nil {
				return err
			}
			engine, err := a.cfg.newEngine(a.logger)
			if err != nil {
				return err
			}

			var out string
			if a.cfg.hasTemplateSource() {
				out, err = engine.Render(args[0], data)
			} else {
				var src []byte
				if src, err = readInput(args[0], cmd.InOrStdin()); err != nil {
					return fmt.Errorf("reading template: %w", err)
				}
				out, err = engine.RenderString(string(src), data)
			}
			if err != nil {
				return fmt.Errorf("rendering %s: %w", args[0], err)
			}
			if output != "" {
				return os.WriteFile(output, []byte(out), 0o644)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "YAML or JSON data file (\"-\" for stdin)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a data value as KEY=VALUE; dotted keys nest")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

// source reads a template file argument for the inspection commands.
func source(cmd *cobra.Command, path string) (string, error) {
	b, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading template: %w", err)
	}
	return string(b), nil
}

func (a *app) tokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens [file]",
		Short: "Print the token stream of a template, one JSON object per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := source(cmd, args[0])
			if err != nil {
				return err
			}
			open, close := a.cfg.delimiters()
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, tok := range handlebars.ScanDelims(src, open, close) {
				if err := enc.Encode(tok); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [file]",
		Short: "Print the parse tree of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := source(cmd, args[0])
			if err != nil {
				return err
			}
			engine, err := a.cfg.newEngine(a.logger)
			if err != nil {
				return err
			}
			tree, err := engine.Compile(src)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), handlebars.Pretty(tree))
			return err
		},
	}
}

func (a *app) helpersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "helpers",
		Short: "List the helpers available to templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.cfg.newEngine(a.logger)
			if err != nil {
				return err
			}
			for _, name := range engine.Helpers().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
