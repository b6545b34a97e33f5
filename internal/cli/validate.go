package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationIssue is one problem found while validating program files.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Programs []string          `json:"programs,omitempty"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <programs-dir>",
		Short: "Validate program files without compiling waveforms",
		Long: `Validate CUE program files without quantizing waveform data.

Checks syntax, segment shapes, and marker windows. Faster than plan for
development feedback because no instrument profile is needed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, programsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadPrograms(programsDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, loadErr.Error())
		}
		_ = formatter.Error(ErrCodeGeneric, loadErrors[0].Error(), nil)
		return NewExitError(ExitCommandError, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, programsDir)

	var issues []ValidationIssue
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			issue := ValidationIssue{Code: loadErr.Code, Message: loadErr.Message}
			if loadErr.Pos.IsValid() {
				issue.Line = loadErr.Pos.Line()
			}
			issues = append(issues, issue)
		} else {
			issues = append(issues, ValidationIssue{Code: ErrCodeGeneric, Message: err.Error()})
		}
	}

	var names []string
	for _, p := range loadResult.Programs {
		names = append(names, p.Name)
	}

	if len(issues) > 0 {
		return outputValidationIssues(formatter, names, issues)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Programs: names})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d program(s) valid\n", len(names))
	return nil
}

// outputValidationIssues outputs validation failures and sets the exit code.
func outputValidationIssues(formatter *OutputFormatter, names []string, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Programs: names, Errors: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
