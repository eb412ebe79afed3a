// Package main implements the confinegen CLI tool.
//
// confinegen writes confinement wrappers for struct types annotated with
// //confine:entity. Each annotated source file gets a generated companion
// holding a class descriptor, a checked wrapper and a Wrap constructor that
// the runtime in github.com/kolkov/confinement/confine drives.
//
// Usage:
//
//	confinegen generate ./examples/entity    # write entity_confine.go
//	confinegen generate -n entity.go         # print instead of writing
//	confinegen version
//
// Typically invoked from a go:generate line:
//
//	//go:generate go run github.com/kolkov/confinement/cmd/confinegen generate .
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kolkov/confinement/cmd/confinegen/gen"
	"github.com/kolkov/confinement/confine"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "confinegen",
		Short:         "Generate confinement wrappers for managed entities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenerateCmd(), newVersionCmd())
	return root
}

func newGenerateCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "generate [dir|file.go]...",
		Short: "Write <file>_confine.go next to every annotated source file",
		Example: `  confinegen generate .
  confinegen generate --config confinegen.toml ./models/...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}

			cfg, err := gen.LoadConfig(configPath)
			if err != nil {
				return err
			}

			logger := zap.NewNop()
			if verbose {
				if logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
			}

			dirs, err := expandArgs(args)
			if err != nil {
				return err
			}

			outs, err := gen.New(cfg, logger).Run(cmd.Context(), dirs, !dryRun)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, out := range outs {
				if dryRun {
					fmt.Fprintf(w, "// ==> %s\n%s\n", out.Path, out.Code)
					continue
				}
				fmt.Fprintln(w, out.Path)
			}
			if len(outs) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "confinegen: no //confine:entity types found")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default "+gen.DefaultConfigFile+" if present)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print generated code instead of writing it")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log progress")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := confine.GetInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "confinegen version %s\n", info.Version)
		},
	}
}
