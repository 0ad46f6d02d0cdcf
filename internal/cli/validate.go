package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bprogram/internal/compiler"
	"github.com/roach88/bprogram/internal/program"
)

// ValidationResult holds validation results for every file.
type ValidationResult struct {
	Valid bool         `json:"valid"`
	Files []FileResult `json:"files"`
}

// FileResult holds the findings of one program file.
type FileResult struct {
	File     string          `json:"file"`
	Error    string          `json:"error,omitempty"` // load or compile failure
	Programs []ProgramResult `json:"programs,omitempty"`
}

// ProgramResult holds the findings of one program.
type ProgramResult struct {
	Name     string                     `json:"name"`
	Valid    bool                       `json:"valid"`
	Findings []compiler.ValidationError `json:"findings,omitempty"`
	Cycles   []compiler.CycleWarning    `json:"cycles,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <files...>",
		Short: "Validate program files",
		Long: `Compile and validate program files (.cue, .yaml, .yml, .json).

Reports structural errors, warnings such as empty sync points, and event
chains that may keep selecting themselves (potential livelocks). Warnings
do not fail validation.

Exit codes:
  0 - All programs are valid
  1 - One or more programs have errors
  2 - Command error`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	result := ValidationResult{Valid: true, Files: make([]FileResult, 0, len(files))}

	for _, file := range files {
		fr := validateFile(file, formatter)
		if fr.Error != "" {
			result.Valid = false
		}
		for _, pr := range fr.Programs {
			if !pr.Valid {
				result.Valid = false
			}
		}
		result.Files = append(result.Files, fr)
	}

	text := func(w io.Writer) { printValidation(w, result) }
	if !result.Valid {
		if err := formatter.Failure(ErrCodeInvalid, "validation failed", result, text); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "validation failed")
	}
	return formatter.Success(result, text)
}

func validateFile(file string, formatter *OutputFormatter) FileResult {
	fr := FileResult{File: file}
	programs, err := program.LoadFile(file)
	if err != nil {
		fr.Error = err.Error()
		return fr
	}
	formatter.VerboseLog("Found %d program(s) in %s", len(programs), file)

	for _, p := range programs {
		formatter.VerboseLog("Validating program: %s", p.Name)
		findings := compiler.Validate(p)
		fr.Programs = append(fr.Programs, ProgramResult{
			Name:     p.Name,
			Valid:    !compiler.HasErrors(findings),
			Findings: findings,
			Cycles:   compiler.AnalyzeCycles(p),
		})
	}
	return fr
}

func printValidation(w io.Writer, result ValidationResult) {
	for _, fr := range result.Files {
		if fr.Error != "" {
			fail(w, "%s", fr.File)
			fmt.Fprintf(w, "  %s\n", fr.Error)
			continue
		}
		for _, pr := range fr.Programs {
			if pr.Valid {
				pass(w, "%s: %s", fr.File, pr.Name)
			} else {
				fail(w, "%s: %s", fr.File, pr.Name)
			}
			for _, f := range pr.Findings {
				if f.Severity == compiler.SeverityWarning {
					warnLine(w, "  %s", f.Error())
				} else {
					fmt.Fprintf(w, "  %s\n", f.Error())
				}
			}
			for _, c := range pr.Cycles {
				warnLine(w, "  %s", c.Message)
			}
		}
	}
	if result.Valid {
		fmt.Fprintln(w, "All programs valid")
	}
}
