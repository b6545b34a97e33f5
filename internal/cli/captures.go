package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openqlab/awgctl/internal/snapshot"
)

// CaptureSummary is one capture header in list output.
type CaptureSummary struct {
	ID          int64  `json:"id"`
	TakenAt     string `json:"taken_at"`
	Label       string `json:"label,omitempty"`
	Channels    int    `json:"channels"`
	TableLength int    `json:"table_length"`
	Armed       string `json:"armed,omitempty"`
}

// NewCapturesCommand creates the captures command group.
func NewCapturesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captures",
		Short: "Inspect recorded instrument state captures",
	}

	cmd.AddCommand(newCapturesListCommand(rootOpts))
	cmd.AddCommand(newCapturesShowCommand(rootOpts))

	return cmd
}

func newCapturesListCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List captures in a capture database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapturesList(rootOpts, dbPath, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "capture database path")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func newCapturesShowCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath string
		id     int64
	)

	cmd := &cobra.Command{
		Use:           "show",
		Short:         "Show one capture's full state",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapturesShow(rootOpts, dbPath, id, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "capture database path")
	cmd.Flags().Int64Var(&id, "id", 0, "capture id (defaults to the latest)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runCapturesList(opts *RootOptions, dbPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	store, err := snapshot.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeCapture, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening capture database", err)
	}
	defer store.Close()

	metas, err := store.List(context.Background())
	if err != nil {
		_ = formatter.Error(ErrCodeCapture, err.Error(), nil)
		return WrapExitError(ExitCommandError, "listing captures", err)
	}

	summaries := make([]CaptureSummary, len(metas))
	for i, m := range metas {
		summaries[i] = CaptureSummary{
			ID:          m.ID,
			TakenAt:     m.TakenAt.UTC().Format(time.RFC3339),
			Label:       m.Label,
			Channels:    m.Channels,
			TableLength: m.TableLength,
			Armed:       m.ArmedProgram,
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(formatter.Writer, "no captures")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(formatter.Writer, "%d  %s  %d ch, %d rows", s.ID, s.TakenAt, s.Channels, s.TableLength)
		if s.Armed != "" {
			fmt.Fprintf(formatter.Writer, "  armed=%s", s.Armed)
		}
		if s.Label != "" {
			fmt.Fprintf(formatter.Writer, "  %q", s.Label)
		}
		fmt.Fprintln(formatter.Writer)
	}
	return nil
}

func runCapturesShow(opts *RootOptions, dbPath string, id int64, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	store, err := snapshot.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeCapture, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening capture database", err)
	}
	defer store.Close()

	ctx := context.Background()
	var capture snapshot.Capture
	if id > 0 {
		capture, err = store.Get(ctx, id)
	} else {
		capture, err = store.Latest(ctx)
	}
	if errors.Is(err, snapshot.ErrNotFound) {
		_ = formatter.Error(ErrCodeCapture, err.Error(), nil)
		return WrapExitError(ExitCommandError, "capture not found", err)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeCapture, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading capture", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(struct {
			CaptureSummary
			State json.RawMessage `json:"state"`
		}{
			CaptureSummary: CaptureSummary{
				ID:          capture.ID,
				TakenAt:     capture.TakenAt.UTC().Format(time.RFC3339),
				Label:       capture.Label,
				Channels:    capture.Channels,
				TableLength: capture.TableLength,
				Armed:       capture.ArmedProgram,
			},
			State: json.RawMessage(capture.Body),
		})
	}

	fmt.Fprintf(formatter.Writer, "capture %d taken %s\n", capture.ID, capture.TakenAt.UTC().Format(time.RFC3339))
	if capture.Label != "" {
		fmt.Fprintf(formatter.Writer, "label: %s\n", capture.Label)
	}
	fmt.Fprintf(formatter.Writer, "%s\n", capture.Body)
	return nil
}
