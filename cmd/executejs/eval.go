package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/executejs/backend/internal/execution"
	"github.com/spf13/cobra"
)

func newEvalCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "eval <code>...",
		Short: "Execute code given on the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, source{code: strings.Join(args, " ")})
		},
	}
}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run <file|->",
		Short: "Execute a file, or standard input with -",
		Long: `Execute a file. Relative imports resolve against the file's directory
unless --base-dir is given. Use - to read the code from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			return execute(cmd, opts, src)
		},
	}
}

// source is code to execute. name is the file's base name, whose extension
// selects TypeScript or JSX compilation; dir anchors relative imports.
type source struct {
	code string
	name string
	dir  string
}

func readSource(cmd *cobra.Command, path string) (source, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return source{}, fmt.Errorf("read stdin: %w", err)
		}
		return source{code: string(data)}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return source{}, fmt.Errorf("read %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return source{}, err
	}
	return source{code: string(data), name: filepath.Base(abs), dir: filepath.Dir(abs)}, nil
}

// execute runs code and prints its output. A failed execution prints the
// error on stderr and exits with status 1.
func execute(cmd *cobra.Command, opts *options, src source) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if src.dir != "" && opts.baseDir == "" {
		cfg.Execution.BaseDir = src.dir
	}
	opts.quietLogging(cfg)

	engine, err := opts.newEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	res := engine.Service.ExecuteFile(cmd.Context(), src.name, src.code)
	return printResult(cmd, res)
}

func printResult(cmd *cobra.Command, res *execution.ExecutionResult) error {
	if res.Success {
		fmt.Fprintln(cmd.OutOrStdout(), res.Result)
		return nil
	}

	out := cmd.OutOrStdout()
	for _, line := range res.Output.Stdout {
		fmt.Fprintln(out, line)
	}
	errOut := cmd.ErrOrStderr()
	for _, line := range res.Output.Stderr {
		fmt.Fprintln(errOut, line)
	}
	fmt.Fprintln(errOut, res.ErrorMessage())
	return &exitError{code: 1}
}
