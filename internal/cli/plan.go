package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openqlab/awgctl/internal/awg"
)

// PlanWaveform is one waveform an upload would create.
type PlanWaveform struct {
	Name   string `json:"name"`
	Length int    `json:"length"`
	Digest string `json:"digest"`
}

// PlanProgram is the projected device footprint of one program.
type PlanProgram struct {
	Name      string         `json:"name"`
	Elements  int            `json:"elements"`
	Positions []int          `json:"positions"`
	Waveforms []PlanWaveform `json:"waveforms"`
}

// PlanResult is the full dry-run report.
type PlanResult struct {
	Programs []PlanProgram `json:"programs"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <programs-dir>",
		Short: "Show what each program would put on a blank instrument",
		Long: `Compile each program against the instrument profile and report the
waveforms and sequence-table positions an upload to a blank instrument
would create. Nothing is persisted; every program is planned in isolation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runPlan(opts *RootOptions, programsDir string, cmd *cobra.Command) error {
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

	routing := profile.UploadRouting()
	result := PlanResult{}

	for _, lp := range loadResult.Programs {
		formatter.VerboseLog("Planning program: %s", lp.Name)

		// A fresh simulated instrument per program keeps plans independent.
		ctl, err := awg.New(profile.NewSimulator(), awg.SyncClear)
		if err != nil {
			_ = formatter.Error(ErrCodeUpload, err.Error(), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("planning %q", lp.Name), err)
		}

		before := make(map[string]bool)
		for _, e := range ctl.Store().All() {
			before[e.Name] = true
		}

		if err := ctl.Upload(lp.Name, lp.Table, routing, false); err != nil {
			_ = formatter.Error(ErrCodeUpload, err.Error(), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("planning %q", lp.Name), err)
		}

		info, err := ctl.ProgramInfo(lp.Name)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("planning %q", lp.Name), err)
		}

		plan := PlanProgram{
			Name:      lp.Name,
			Elements:  info.ElementCount,
			Positions: info.Positions,
		}
		for _, e := range ctl.Store().All() {
			if before[e.Name] {
				continue
			}
			plan.Waveforms = append(plan.Waveforms, PlanWaveform{
				Name:   e.Name,
				Length: e.Length,
				Digest: e.Payload.Digest().Hex(),
			})
		}
		result.Programs = append(result.Programs, plan)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	for _, p := range result.Programs {
		fmt.Fprintf(formatter.Writer, "%s: %d element(s) at positions %v\n", p.Name, p.Elements, p.Positions)
		for _, w := range p.Waveforms {
			fmt.Fprintf(formatter.Writer, "  %s  %d samples  %s\n", w.Name, w.Length, w.Digest[:12])
		}
	}
	return nil
}
