package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqlab/awgctl/internal/program"
)

func TestLoadPrograms_DecodesTable(t *testing.T) {
	dir := writePrograms(t, sweepCUE)

	result, errs := LoadPrograms(dir, LoadModeFailFast)
	require.Empty(t, errs)
	require.Len(t, result.Programs, 1)
	assert.Equal(t, 1, result.FileCount)

	lp := result.Programs[0]
	assert.Equal(t, "sweep", lp.Name)

	leaves := lp.Table.Leaves()
	require.Len(t, leaves, 2)
	assert.Equal(t, 2, leaves[0].Repetitions)
	assert.Equal(t, 1, leaves[1].Repetitions, "omitted repetitions default to 1")
	assert.Equal(t, 8.0, leaves[0].Waveform.Duration())
	assert.True(t, leaves[0].Waveform.Defines(program.ChannelID("A")))
	assert.True(t, leaves[1].Waveform.Defines(program.ChannelID("M1")))
}

func TestLoadPrograms_MissingDirectory(t *testing.T) {
	result, errs := LoadPrograms("/nonexistent/directory/path", LoadModeFailFast)
	assert.Nil(t, result)
	require.Len(t, errs, 1)

	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestLoadPrograms_EmptyDirectory(t *testing.T) {
	result, errs := LoadPrograms(t.TempDir(), LoadModeFailFast)
	assert.Nil(t, result)
	require.Len(t, errs, 1)

	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeNoFiles, loadErr.Code)
}

func TestLoadPrograms_BadSegmentCollectsAll(t *testing.T) {
	bad := `
package programs

program: broken: {
	segments: [
		{duration: -1.0, levels: {A: {start: 0.0, stop: 0.0}}},
	]
}

program: fine: {
	segments: [
		{duration: 4.0, levels: {A: {start: 0.0, stop: 0.0}}},
	]
}
`
	dir := writePrograms(t, bad)

	result, errs := LoadPrograms(dir, LoadModeCollectAll)
	require.NotNil(t, result)
	require.Len(t, errs, 1)

	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeBadProgram, loadErr.Code)
	assert.Contains(t, loadErr.Message, "broken")

	// The healthy program still loads.
	require.Len(t, result.Programs, 1)
	assert.Equal(t, "fine", result.Programs[0].Name)
}

func TestLoadPrograms_RejectsInvertedMarkerWindow(t *testing.T) {
	bad := `
package programs

program: inverted: {
	segments: [
		{duration: 4.0, markers: {M1: [{from: 3.0, to: 1.0}]}},
	]
}
`
	dir := writePrograms(t, bad)

	_, errs := LoadPrograms(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "must be after")
}
