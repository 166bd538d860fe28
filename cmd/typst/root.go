// Package main is the delegated-but-specified-for-completeness CLI
// surface (spec §6 "The core does not own the CLI; it accepts a World
// instance initialised with the appropriate files, root path, and
// options"). It is a thin cobra/pflag shell, mirroring cmd/cue/cmd's
// root command in cuelang.org/go, that does nothing the core package
// itself doesn't already expose: every subcommand just builds a World
// and calls compiler.Compile.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/typst-lang/typst-core/compiler"
	"github.com/typst-lang/typst-core/world"
)

// addGlobalFlags wires the flags every subcommand shares, the way
// cuelang.org/go/cmd/cue/cmd.addGlobalFlags does for --trace and friends.
func addGlobalFlags(f *pflag.FlagSet, opts *rootOptions) {
	f.StringVar(&opts.root, "root", ".", "project root the world resolves relative imports against")
	f.StringVar(&opts.packageRoot, "package-root", "", "directory of installed @namespace/name:version packages")
}

type rootOptions struct {
	root        string
	packageRoot string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "typst",
		Short: "typst compiles Typst source into realized content",

		SilenceErrors: true,
		SilenceUsage:  true,
	}
	addGlobalFlags(root.PersistentFlags(), opts)
	root.AddCommand(newCompileCmd(opts))
	return root
}

func newCompileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <main.typ>",
		Short: "compile a source file and print its diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, opts, args[0])
		},
	}
}

func runCompile(cmd *cobra.Command, opts *rootOptions, mainPath string) error {
	main := world.SourceID{Path: mainPath}
	w := world.NewFileWorld(opts.root, opts.packageRoot, main)
	res, err := compiler.Compile(w)
	if err != nil {
		return err
	}
	for _, d := range res.Diagnostics.All() {
		fmt.Fprintln(cmd.OutOrStdout(), d.Severity, d.Message.String())
	}
	if res.Diagnostics.HasErrors() {
		return errPrintedError
	}
	return nil
}

var errPrintedError = fmt.Errorf("terminating because of errors")

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if err != errPrintedError {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
