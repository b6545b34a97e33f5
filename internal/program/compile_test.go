package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqlab/awgctl/internal/wave"
)

// nestedProgram fakes an unflattened program for the depth precondition.
type nestedProgram struct {
	*Table
	depth int
}

func (p nestedProgram) Depth() int { return p.depth }

func testConfig(channels int) Config {
	cfg := Config{SampleRate: 1}
	for i := 0; i < channels; i++ {
		cfg.Channels = append(cfg.Channels, ChannelID(string(rune('A'+i))))
		cfg.Markers = append(cfg.Markers, [2]ChannelID{NoChannel, NoChannel})
		cfg.Amplitudes = append(cfg.Amplitudes, 1)
	}
	return cfg
}

func mustTable(t *testing.T, segments ...Segment) *Table {
	t.Helper()
	tab, err := NewTable(segments...)
	require.NoError(t, err)
	return tab
}

func TestCompile_DepthPrecondition(t *testing.T) {
	tab := mustTable(t, Segment{Duration: 4, Repetitions: 1})

	_, err := Compile(nestedProgram{Table: tab, depth: 2}, testConfig(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depth")
}

func TestCompile_ConfigPreconditions(t *testing.T) {
	tab := mustTable(t, Segment{Duration: 4, Repetitions: 1})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no channels", func(c *Config) { c.Channels = nil; c.Markers = nil; c.Amplitudes = nil }},
		{"marker pair count mismatch", func(c *Config) { c.Markers = c.Markers[:0] }},
		{"amplitude count mismatch", func(c *Config) { c.Amplitudes = append(c.Amplitudes, 1) }},
		{"transform count mismatch", func(c *Config) { c.Transforms = make([]func(float64) float64, 3) }},
		{"non-positive amplitude", func(c *Config) { c.Amplitudes[0] = 0 }},
		{"non-positive sample rate", func(c *Config) { c.SampleRate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(1)
			tt.mutate(&cfg)
			_, err := Compile(tab, cfg)
			assert.Error(t, err)
		})
	}
}

func TestCompile_UnassignedTripleYieldsIdleSentinel(t *testing.T) {
	tab := mustTable(t,
		Segment{Duration: 4, Repetitions: 1, Levels: map[ChannelID]Ramp{"A": {Start: 0.5, Stop: 0.5}}},
	)

	// Channel 1 assigned, channel 2 entirely unassigned.
	cfg := testConfig(2)
	cfg.Channels[1] = NoChannel

	compiled, err := Compile(tab, cfg)
	require.NoError(t, err)

	elements := compiled.Elements()
	require.Len(t, elements, 1)
	require.Len(t, elements[0].Entries, 2)

	assert.Equal(t, EntryPayload, elements[0].Entries[0].Kind)
	assert.Equal(t, EntryIdle, elements[0].Entries[1].Kind)
	assert.Equal(t, 4, elements[0].Entries[1].IdleLength)
	assert.Equal(t, []int{4}, compiled.IdleLengths())
	require.Len(t, compiled.Waveforms(), 1)
}

func TestCompile_IdleLengthsDeduplicated(t *testing.T) {
	tab := mustTable(t,
		Segment{Duration: 4, Repetitions: 1},
		Segment{Duration: 4, Repetitions: 2},
		Segment{Duration: 8, Repetitions: 1},
	)
	cfg := testConfig(1)
	cfg.Channels[0] = NoChannel

	compiled, err := Compile(tab, cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 8}, compiled.IdleLengths())
	assert.Empty(t, compiled.Waveforms())
}

func TestCompile_DeduplicatesEqualPayloads(t *testing.T) {
	// Two logically distinct leaves with the same quantized content.
	level := map[ChannelID]Ramp{"A": {Start: 0.25, Stop: 0.25}}
	tab := mustTable(t,
		Segment{Duration: 4, Repetitions: 1, Levels: level},
		Segment{Duration: 4, Repetitions: 3, Levels: map[ChannelID]Ramp{"A": {Start: 0.25, Stop: 0.25}}},
	)

	compiled, err := Compile(tab, testConfig(1))
	require.NoError(t, err)

	require.Len(t, compiled.Waveforms(), 1, "bit-identical payloads collapse to one")
	elements := compiled.Elements()
	require.Len(t, elements, 2)
	assert.Same(t, elements[0].Entries[0].Payload, elements[1].Entries[0].Payload,
		"both elements reference the same payload identity")
}

func TestCompile_PreservesRepetitionCounts(t *testing.T) {
	tab := mustTable(t,
		Segment{Duration: 2, Repetitions: 1, Levels: map[ChannelID]Ramp{"A": {}}},
		Segment{Duration: 2, Repetitions: 1000, Levels: map[ChannelID]Ramp{"A": {Start: 1, Stop: 1}}},
	)

	compiled, err := Compile(tab, testConfig(1))
	require.NoError(t, err)

	elements := compiled.Elements()
	assert.Equal(t, 1, elements[0].Repetitions)
	assert.Equal(t, 1000, elements[1].Repetitions)
	assert.False(t, elements[0].GotoEnabled, "compiler assigns no branches")
	assert.Zero(t, elements[0].GotoTarget)
}

func TestCompile_QuantizesThroughTransform(t *testing.T) {
	tab := mustTable(t,
		Segment{Duration: 2, Repetitions: 1, Levels: map[ChannelID]Ramp{"A": {Start: 0.5, Stop: 0.5}}},
	)
	cfg := testConfig(1)
	cfg.Transforms = []func(float64) float64{func(v float64) float64 { return -v }}

	compiled, err := Compile(tab, cfg)
	require.NoError(t, err)

	require.Len(t, compiled.Waveforms(), 1)
	samples := compiled.Waveforms()[0].Samples()
	assert.Equal(t, []uint16{4095, 4095}, samples, "0.5 V inverted then quantized")
}

func TestCompile_MarkerBits(t *testing.T) {
	tab := mustTable(t, Segment{
		Duration:    4,
		Repetitions: 1,
		Markers:     map[ChannelID][]Window{"M1": {{From: 1, To: 3}}},
	})
	cfg := testConfig(1)
	cfg.Channels[0] = NoChannel
	cfg.Markers[0] = [2]ChannelID{"M1", NoChannel}

	compiled, err := Compile(tab, cfg)
	require.NoError(t, err)

	require.Len(t, compiled.Waveforms(), 1)
	p := compiled.Waveforms()[0]
	assert.Equal(t, []uint16{8191, 8191, 8191, 8191}, p.Samples(),
		"unassigned analog channel samples to idle code")
	assert.Equal(t, []byte{0, 1, 1, 0}, p.Marker1())
	assert.Nil(t, p.Marker2())
}

func TestCompile_SampleCountIsFloorOfDurationTimesRate(t *testing.T) {
	tab := mustTable(t, Segment{Duration: 4.75, Repetitions: 1, Levels: map[ChannelID]Ramp{"A": {}}})

	compiled, err := Compile(tab, testConfig(1))
	require.NoError(t, err)
	assert.Equal(t, 4, compiled.Waveforms()[0].Len())
}

func TestCompile_FractionalRateSurvivesNormalization(t *testing.T) {
	// MakeCompatible stores a normalized length as n/rate seconds. At a
	// fractional rate multiplying back by the rate lands a hair under n, and
	// a naive floor would drop a sample.
	rate := 1e9 / 3
	tab := mustTable(t, Segment{
		Duration:    200 / rate,
		Repetitions: 1,
		Levels:      map[ChannelID]Ramp{"A": {Start: 0.5, Stop: 0.5}},
	})
	require.NoError(t, tab.MakeCompatible(256, 1, rate))

	cfg := testConfig(1)
	cfg.SampleRate = rate
	compiled, err := Compile(tab, cfg)
	require.NoError(t, err)
	require.Len(t, compiled.Waveforms(), 1)
	assert.Equal(t, 256, compiled.Waveforms()[0].Len())
}

func TestSamplesIn(t *testing.T) {
	rate := 1e9 / 3
	for _, n := range []int{1, 2, 250, 256, 999, 1000, 1999, 2000} {
		duration := float64(n) / rate
		assert.Equal(t, n, samplesIn(duration, rate), "n=%d", n)
	}

	// Genuinely fractional products still floor.
	assert.Equal(t, 4, samplesIn(4.75, 1))
	assert.Equal(t, 0, samplesIn(0.25, 1))
}

func TestCompile_SubSampleLeafFails(t *testing.T) {
	tab := mustTable(t, Segment{Duration: 0.25, Repetitions: 1})
	_, err := Compile(tab, testConfig(1))
	assert.Error(t, err)
}

func TestCompile_ResultReferencesDistinctPayloadsInFirstUseOrder(t *testing.T) {
	tab := mustTable(t,
		Segment{Duration: 2, Repetitions: 1, Levels: map[ChannelID]Ramp{"A": {Start: 0.1, Stop: 0.1}}},
		Segment{Duration: 2, Repetitions: 1, Levels: map[ChannelID]Ramp{"A": {Start: 0.9, Stop: 0.9}}},
		Segment{Duration: 2, Repetitions: 1, Levels: map[ChannelID]Ramp{"A": {Start: 0.1, Stop: 0.1}}},
	)

	compiled, err := Compile(tab, testConfig(1))
	require.NoError(t, err)

	waveforms := compiled.Waveforms()
	require.Len(t, waveforms, 2)
	assert.Same(t, waveforms[0], compiled.Elements()[0].Entries[0].Payload)
	assert.Same(t, waveforms[1], compiled.Elements()[1].Entries[0].Payload)
	assert.Same(t, waveforms[0], compiled.Elements()[2].Entries[0].Payload)
}

func TestCompile_IdlePayloadMatchesWaveIdle(t *testing.T) {
	// A leaf with an assigned channel at 0 V quantizes to the same content as
	// the canonical idle payload, so cross-program dedup works.
	tab := mustTable(t, Segment{Duration: 4, Repetitions: 1, Levels: map[ChannelID]Ramp{"A": {}}})

	compiled, err := Compile(tab, testConfig(1))
	require.NoError(t, err)
	require.Len(t, compiled.Waveforms(), 1)
	assert.True(t, compiled.Waveforms()[0].Equal(wave.Idle(4)))
}
