package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bprogram/internal/ir"
	"github.com/roach88/bprogram/internal/program"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Program string
}

// CompiledProgram is the compiled form of one program.
type CompiledProgram struct {
	Name    string          `json:"name"`
	Hash    string          `json:"hash"`
	Program json.RawMessage `json:"program"` // canonical JSON
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Print the canonical JSON form and hash of programs",
		Long: `Compile a program file and print each program as canonical JSON
together with its content hash. Programs with the same canonical form hash
identically whichever source format they were written in.

Example:
  bpctl compile ./programs/hot_cold.cue
  bpctl compile ./programs/all.yaml --program hotCold --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Program, "program", "", "compile only the named program")

	return cmd
}

func runCompile(opts *CompileOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	programs, err := program.LoadFile(file)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load programs", err)
	}
	if opts.Program != "" {
		p, err := program.Select(programs, opts.Program)
		if err != nil {
			_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to select program", err)
		}
		programs = []*ir.Program{p}
	}

	compiled := make([]CompiledProgram, 0, len(programs))
	for _, p := range programs {
		if err := program.Check(p); err != nil {
			_ = formatter.Error(ErrCodeInvalid, err.Error(), nil)
			return WrapExitError(ExitFailure, "invalid program", err)
		}
		data, err := ir.MarshalCanonical(p)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to marshal program", err)
		}
		hash, err := ir.ProgramHash(*p)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to hash program", err)
		}
		formatter.VerboseLog("Compiled program: %s", p.Name)
		compiled = append(compiled, CompiledProgram{Name: p.Name, Hash: hash, Program: data})
	}

	return formatter.Success(compiled, func(w io.Writer) {
		for _, c := range compiled {
			fmt.Fprintf(w, "%s\n", c.Program)
			cyan.Fprintf(w, "%s %s\n", c.Name, c.Hash)
		}
	})
}
