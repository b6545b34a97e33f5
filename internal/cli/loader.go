package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/openqlab/awgctl/internal/program"
)

// LoadMode controls how errors are handled during program loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadedProgram is one program decoded from a CUE file, keyed by its
// declaration name.
type LoadedProgram struct {
	Name  string
	Table *program.Table
}

// LoadResult contains the results of loading programs from a directory.
type LoadResult struct {
	Programs  []LoadedProgram
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during program loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// rawSegment mirrors one segment literal in a CUE program file.
type rawSegment struct {
	Duration    float64                `json:"duration"`
	Repetitions int                    `json:"repetitions"`
	Levels      map[string]rawRamp     `json:"levels"`
	Markers     map[string][]rawWindow `json:"markers"`
}

type rawRamp struct {
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
}

type rawWindow struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// LoadPrograms loads and decodes CUE program files from a directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadPrograms(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	// Verify directory exists
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("program directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing program directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	programsVal := value.LookupPath(cue.ParsePath("program"))
	if programsVal.Exists() {
		iter, iterErr := programsVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating programs: %v", iterErr)})
			return result, errs
		}
		for iter.Next() {
			name := iter.Label()
			table, decodeErr := decodeProgram(iter.Value())
			if decodeErr != nil {
				errs = append(errs, &LoadError{
					Code:    ErrCodeBadProgram,
					Message: fmt.Sprintf("program %q: %v", name, decodeErr),
					Pos:     iter.Value().Pos(),
				})
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			result.Programs = append(result.Programs, LoadedProgram{Name: name, Table: table})
		}
	}

	if len(result.Programs) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no programs found"})
	}

	return result, errs
}

// decodeProgram decodes one program declaration into a table program.
func decodeProgram(v cue.Value) (*program.Table, error) {
	var raw struct {
		Segments []rawSegment `json:"segments"`
	}
	if err := v.Decode(&raw); err != nil {
		return nil, err
	}
	if len(raw.Segments) == 0 {
		return nil, fmt.Errorf("needs at least one segment")
	}

	segments := make([]program.Segment, len(raw.Segments))
	for i, rs := range raw.Segments {
		reps := rs.Repetitions
		if reps == 0 {
			reps = 1
		}
		seg := program.Segment{Duration: rs.Duration, Repetitions: reps}
		if len(rs.Levels) > 0 {
			seg.Levels = make(map[program.ChannelID]program.Ramp, len(rs.Levels))
			for ch, r := range rs.Levels {
				seg.Levels[program.ChannelID(ch)] = program.Ramp{Start: r.Start, Stop: r.Stop}
			}
		}
		if len(rs.Markers) > 0 {
			seg.Markers = make(map[program.ChannelID][]program.Window, len(rs.Markers))
			for ch, ws := range rs.Markers {
				windows := make([]program.Window, len(ws))
				for j, w := range ws {
					if w.To <= w.From {
						return nil, fmt.Errorf("segment %d: marker %s window %d: to (%v) must be after from (%v)",
							i, ch, j, w.To, w.From)
					}
					windows[j] = program.Window{From: w.From, To: w.To}
				}
				seg.Markers[program.ChannelID(ch)] = windows
			}
		}
		segments[i] = seg
	}

	return program.NewTable(segments...)
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeBadProgram  = "E007" // Program declaration failed to decode

	// Profile and device errors
	ErrCodeBadProfile = "E101" // Instrument profile invalid or missing
	ErrCodeUpload     = "E102" // Upload rejected or failed
	ErrCodeCapture    = "E103" // Capture store error
)
