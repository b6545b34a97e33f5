package cli

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/openqlab/awgctl/internal/awg"
	"github.com/openqlab/awgctl/internal/device"
	"github.com/openqlab/awgctl/internal/program"
)

// ChannelRouting assigns one hardware channel its logical channel name and up
// to two logical marker names. Empty strings leave a slot unassigned.
type ChannelRouting struct {
	Channel string   `mapstructure:"channel" yaml:"channel"`
	Markers []string `mapstructure:"markers" yaml:"markers"`
}

// Profile describes one instrument: geometry, calibration, and the routing
// from logical channels in program files to hardware channels.
type Profile struct {
	Channels   int              `mapstructure:"channels" yaml:"channels"`
	SampleRate float64          `mapstructure:"sample_rate" yaml:"sample_rate"`
	Amplitudes []float64        `mapstructure:"amplitudes" yaml:"amplitudes"`
	Routing    []ChannelRouting `mapstructure:"routing" yaml:"routing"`
}

// rootProfileConfig is the top-level shape of a profile file.
type rootProfileConfig struct {
	ActiveProfile string              `mapstructure:"active_profile" yaml:"active_profile"`
	Profiles      map[string]*Profile `mapstructure:"profiles" yaml:"profiles"`
}

// LoadProfile reads an instrument profile from a config file. With name empty
// the file's active_profile entry selects the profile.
func LoadProfile(configFile, name string) (*Profile, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no profile file specified, use --profile-file")
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("AWGCTL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading profile file %s: %w", configFile, err)
	}

	var root rootProfileConfig
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("error unmarshaling profile file: %w", err)
	}

	if name == "" {
		name = root.ActiveProfile
	}
	if name == "" {
		name = "default"
	}

	profile, ok := root.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found in %s", name, configFile)
	}
	if err := profile.validate(name); err != nil {
		return nil, err
	}
	return profile, nil
}

func (p *Profile) validate(name string) error {
	if p.Channels < 1 {
		return fmt.Errorf("profile %q: channels must be at least 1, got %d", name, p.Channels)
	}
	if p.SampleRate <= 0 {
		return fmt.Errorf("profile %q: sample_rate must be positive, got %v", name, p.SampleRate)
	}
	switch len(p.Amplitudes) {
	case p.Channels:
	case 1:
		// Single amplitude applies to every channel.
		amp := p.Amplitudes[0]
		for i := 1; i < p.Channels; i++ {
			p.Amplitudes = append(p.Amplitudes, amp)
		}
	default:
		return fmt.Errorf("profile %q: got %d amplitudes for %d channels", name, len(p.Amplitudes), p.Channels)
	}
	for i, a := range p.Amplitudes {
		if a <= 0 {
			return fmt.Errorf("profile %q: amplitude %d must be positive, got %v", name, i+1, a)
		}
	}
	if len(p.Routing) != p.Channels {
		return fmt.Errorf("profile %q: got %d routing entries for %d channels", name, len(p.Routing), p.Channels)
	}
	for i, r := range p.Routing {
		if len(r.Markers) > 2 {
			return fmt.Errorf("profile %q: routing entry %d has %d markers, at most 2 allowed", name, i+1, len(r.Markers))
		}
	}
	return nil
}

// NewSimulator builds an in-memory instrument matching the profile.
func (p *Profile) NewSimulator() *device.Simulator {
	return device.NewSimulator(p.Channels, p.SampleRate, p.Amplitudes...)
}

// UploadRouting converts the profile's routing into the channel and marker
// assignment an upload expects: one channel and exactly two marker slots per
// hardware channel, padded with unassigned slots.
func (p *Profile) UploadRouting() awg.Routing {
	routing := awg.Routing{
		Channels: make([]program.ChannelID, p.Channels),
		Markers:  make([]program.ChannelID, 2*p.Channels),
	}
	for i, r := range p.Routing {
		routing.Channels[i] = program.ChannelID(r.Channel)
		for j, m := range r.Markers {
			routing.Markers[2*i+j] = program.ChannelID(m)
		}
	}
	return routing
}
