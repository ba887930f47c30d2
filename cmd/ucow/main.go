// ucow - Cowgol-to-8080 cross compiler
//
// Usage: ucow compile [flags] file
//
// Flags:
//   -I dir     Add an include search directory (repeatable)
//   -o file    Write generated assembly to file
//   -O         Run the AST optimizer and peephole pass
//   -d         Log the optimizer's per-pass change log
//
// The compiler pipeline:
//   source.cow -> preprocessor -> lexer -> parser -> sem -> optimizer -> codegen -> peephole -> out.asm
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avwohl/ucow/internal/driver"
)

var (
	includeDirs []string
	outputFile  string
	doOptimize  bool
	debugLog    bool
)

func main() {
	root := &cobra.Command{
		Use:   "ucow",
		Short: "Cowgol-to-8080 cross compiler",
	}

	compileCmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a single Cowgol source file to 8080 assembly",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompile,
	}
	compileCmd.Flags().StringArrayVarP(&includeDirs, "include", "I", nil, "add an include search directory")
	compileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output assembly file")
	compileCmd.Flags().BoolVarP(&doOptimize, "optimize", "O", false, "run the AST optimizer and peephole pass")
	compileCmd.Flags().BoolVarP(&debugLog, "debug", "d", false, "log the optimizer's per-pass change log")
	root.AddCommand(compileCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ucow: %v\n", err)
		os.Exit(1)
	}
}

func runCompile(cmd *cobra.Command, args []string) error {
	source := args[0]
	out := outputFile
	if out == "" {
		out = strings.TrimSuffix(source, ".cow") + ".asm"
	}

	logger := zap.NewNop()
	if debugLog {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level.SetLevel(zap.DebugLevel)
		built, err := cfg.Build()
		if err != nil {
			return err
		}
		logger = built
		defer logger.Sync() //nolint:errcheck
	}

	result := driver.Compile(driver.Options{
		SourcePath:  source,
		IncludeDirs: includeDirs,
		OutputPath:  out,
		Optimize:    doOptimize,
		Debug:       debugLog,
		Logger:      logger,
	})

	if result.InternalErr != nil {
		fmt.Fprintf(os.Stderr, "ucow: internal error: %+v\n", result.InternalErr)
		os.Exit(2)
	}

	if !result.OK {
		for _, d := range result.Diagnostics {
			fmt.Fprintln(os.Stderr, d.String())
		}
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "wrote %s\n", out)
	return nil
}
