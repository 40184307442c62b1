package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/compiler"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled pipeline plus its content hash.
type CompilationResult struct {
	Pipeline ir.PipelineSpec `json:"pipeline"`
	SpecHash string          `json:"spec_hash"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <pipeline-dir>",
		Short: "Compile a CUE pipeline to canonical IR",
		Long: `Compile a CUE pipeline definition to IR.

The compiler parses the CUE files, validates the pipeline and prints the
compiled stages together with the spec hash that recorded runs refer to.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, pipelineDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, err := LoadPipeline(pipelineDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, pipelineDir)

	if errs := compiler.ValidatePipeline(loadResult.Spec); len(errs) > 0 {
		// Invalid pipelines cannot be compiled (exit code 2)
		e := errs[0]
		return outputCompileError(formatter, e.Code, fmt.Sprintf("%s: %s", e.Field, e.Message), errs)
	}

	result := &CompilationResult{
		Pipeline: *loadResult.Spec,
		SpecHash: loadResult.SpecHash,
	}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	p := result.Pipeline
	fmt.Fprintf(formatter.Writer, "✓ Compiled pipeline %s: %d stage(s), hash %s\n\n", p.Name, len(p.Stages), p.Hash)

	fmt.Fprintln(formatter.Writer, "Stages:")
	for i, st := range p.Stages {
		fmt.Fprintf(formatter.Writer, "  %d. %s (max_depth %d)\n", i, st.Name, st.MaxDepth)
	}
	fmt.Fprintln(formatter.Writer)

	if p.Auth.ReferenceDigest == "" {
		fmt.Fprintln(formatter.Writer, "Auth: placeholder reference")
	} else {
		fmt.Fprintf(formatter.Writer, "Auth: sha256 %s\n", p.Auth.ReferenceDigest)
	}
	fmt.Fprintf(formatter.Writer, "Spec hash: %s\n", result.SpecHash)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote canonical IR to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputLoadError reports a LoadPipeline failure with its CUE position.
func outputLoadError(formatter *OutputFormatter, err error) error {
	code, message := parseLoadError(err)
	if loadErr, ok := err.(*LoadError); ok && loadErr.Pos.IsValid() && formatter.Format != "json" {
		fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	return outputCompileError(formatter, code, message, nil)
}

// parseLoadError extracts error code and message from an error.
func parseLoadError(err error) (string, string) {
	if loadErr, ok := err.(*LoadError); ok {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the compilation result to a file as indented JSON.
func writeIRToFile(result *CompilationResult, filename string) error {
	// Use standard JSON with indentation for readability
	// (canonical JSON without indentation is used only for hashing)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
