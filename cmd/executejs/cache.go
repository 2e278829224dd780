package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/GriffinCanCode/executejs/backend/internal/npm"
	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

func newCacheCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the package cache",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List cached packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := opts.resolver()
			if err != nil {
				return err
			}
			packages, err := resolver.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), packages)
			}
			return writeTable(cmd.OutOrStdout(), packages)
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	var dryRun bool
	prune := &cobra.Command{
		Use:   "prune <pattern>",
		Short: "Remove packages whose name@version matches a glob",
		Long: `Remove cached packages whose name@version matches a doublestar glob.
"*" does not cross the slash of a scoped name; use "@scope/*" or "**".`,
		Example: `  executejs cache prune "lodash@*"
  executejs cache prune "@types/**"
  executejs cache prune "**"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := opts.resolver()
			if err != nil {
				return err
			}
			if dryRun {
				return previewPrune(cmd, resolver, args[0])
			}
			removed, err := resolver.Prune(cmd.Context(), args[0])
			for _, p := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", p.ID())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d package(s) removed\n", len(removed))
			return nil
		},
	}
	prune.Flags().BoolVar(&dryRun, "dry-run", false, "list matches without removing them")

	cmd.AddCommand(list, prune)
	return cmd
}

func (o *options) resolver() (*npm.Resolver, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	o.quietLogging(cfg)
	engine, err := o.newEngine(cfg)
	if err != nil {
		return nil, err
	}
	defer engine.Close()
	return engine.CacheResolver()
}

func previewPrune(cmd *cobra.Command, resolver *npm.Resolver, pattern string) error {
	matches, err := resolver.Match(cmd.Context(), pattern)
	if err != nil {
		return err
	}
	for _, p := range matches {
		fmt.Fprintf(cmd.OutOrStdout(), "would remove %s\n", p.ID())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d package(s) match\n", len(matches))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeTable(w io.Writer, packages []npm.CachedPackage) error {
	if len(packages) == 0 {
		_, err := fmt.Fprintln(w, "cache is empty")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tFILES\tSIZE\tSTATUS")
	for _, p := range packages {
		status := "ok"
		if !p.Complete {
			status = "incomplete"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", p.Name, p.Version, p.Files, humanSize(p.Size), status)
	}
	return tw.Flush()
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
