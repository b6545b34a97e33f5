package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/openqlab/awgctl/internal/awg"
	"github.com/openqlab/awgctl/internal/snapshot"
)

// SimulateResult summarizes one simulated session.
type SimulateResult struct {
	Programs    []string        `json:"programs"`
	TableLength int             `json:"table_length"`
	IdleAnchor  int             `json:"idle_anchor"`
	Armed       string          `json:"armed,omitempty"`
	CaptureID   int64           `json:"capture_id,omitempty"`
	Snapshot    json.RawMessage `json:"snapshot"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		armName string
		run     bool
		dbPath  string
		label   string
	)

	cmd := &cobra.Command{
		Use:   "simulate <programs-dir>",
		Short: "Upload all programs onto a simulated instrument",
		Long: `Build a simulated instrument from the profile, upload every program in
the directory onto it, and report the resulting device state. With --db the
final state is recorded as a capture.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(rootOpts, args[0], armName, run, dbPath, label, cmd)
		},
	}

	cmd.Flags().StringVar(&armName, "arm", "", "arm this program after uploading")
	cmd.Flags().BoolVar(&run, "run", false, "trigger playback of the armed program")
	cmd.Flags().StringVar(&dbPath, "db", "", "record the final state into this capture database")
	cmd.Flags().StringVar(&label, "label", "", "label for the recorded capture")

	return cmd
}

func runSimulate(opts *RootOptions, programsDir, armName string, run bool, dbPath, label string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	profile, err := LoadProfile(opts.ProfileFile, opts.Profile)
	if err != nil {
		_ = formatter.Error(ErrCodeBadProfile, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading profile", err)
	}

	loadResult, loadErrors := LoadPrograms(programsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, loadErr.Error())
		}
		_ = formatter.Error(ErrCodeGeneric, loadErrors[0].Error(), nil)
		return NewExitError(ExitCommandError, loadErrors[0].Error())
	}

	// Deterministic upload order regardless of file layout.
	programs := append([]LoadedProgram(nil), loadResult.Programs...)
	sort.Slice(programs, func(i, j int) bool { return programs[i].Name < programs[j].Name })

	ctl, err := awg.New(profile.NewSimulator(), awg.SyncClear)
	if err != nil {
		_ = formatter.Error(ErrCodeUpload, err.Error(), nil)
		return WrapExitError(ExitFailure, "initializing instrument", err)
	}

	routing := profile.UploadRouting()
	for _, lp := range programs {
		formatter.VerboseLog("Uploading program: %s", lp.Name)
		if err := ctl.Upload(lp.Name, lp.Table, routing, false); err != nil {
			_ = formatter.Error(ErrCodeUpload, err.Error(), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("uploading %q", lp.Name), err)
		}
	}

	if armName != "" {
		if err := ctl.Arm(armName); err != nil {
			_ = formatter.Error(ErrCodeUpload, err.Error(), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("arming %q", armName), err)
		}
		if run {
			if err := ctl.Run(); err != nil {
				_ = formatter.Error(ErrCodeUpload, err.Error(), nil)
				return WrapExitError(ExitFailure, "triggering playback", err)
			}
		}
	}

	snap := ctl.Snapshot()
	body, err := snap.CanonicalJSON()
	if err != nil {
		return WrapExitError(ExitFailure, "serializing state", err)
	}

	result := SimulateResult{
		Programs:    ctl.Programs(),
		TableLength: snap.TableLength,
		IdleAnchor:  snap.IdleAnchor,
		Armed:       snap.ArmedName,
		Snapshot:    json.RawMessage(body),
	}

	if dbPath != "" {
		store, err := snapshot.Open(dbPath)
		if err != nil {
			_ = formatter.Error(ErrCodeCapture, err.Error(), nil)
			return WrapExitError(ExitCommandError, "opening capture database", err)
		}
		defer store.Close()

		id, err := store.Record(context.Background(), label, time.Now(), snap)
		if err != nil {
			_ = formatter.Error(ErrCodeCapture, err.Error(), nil)
			return WrapExitError(ExitCommandError, "recording capture", err)
		}
		result.CaptureID = id
		formatter.VerboseLog("Recorded capture %d", id)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "table length %d, idle anchor %d\n", result.TableLength, result.IdleAnchor)
	for _, name := range result.Programs {
		info, err := ctl.ProgramInfo(name)
		if err != nil {
			return WrapExitError(ExitFailure, "describing programs", err)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %d element(s) at positions %v\n", name, info.ElementCount, info.Positions)
	}
	if result.Armed != "" {
		fmt.Fprintf(formatter.Writer, "armed: %s\n", result.Armed)
	}
	if result.CaptureID != 0 {
		fmt.Fprintf(formatter.Writer, "capture: %d\n", result.CaptureID)
	}
	return nil
}
