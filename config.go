package tune

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v2"
)

type (
	Config struct {
		SampleRate int

		// Durations tells how explicit note durations are read: "seconds"
		// (default) or "beats", which are scaled by 60/tempo. A missing
		// duration is always one beat.
		Durations DurationUnit

		MaxWhileIterations int
		MaxCallDepth       int

		// Clip is the largest absolute sample value the synth emits.
		Clip float64

		Chord    ChordConfig
		Defaults DefaultsConfig
	}

	ChordConfig struct {
		Normalize Normalization
		Peak      float64 // target peak of a peak-normalized chord at full volume
		Workers   int     // notes synthesized in parallel; 0 means one per CPU
	}

	DefaultsConfig struct {
		Tempo      int
		Volume     float64
		Instrument string
	}

	DurationUnit  string
	Normalization string
)

const (
	Seconds DurationUnit = "seconds"
	Beats   DurationUnit = "beats"

	NormalizePeak  Normalization = "peak"
	NormalizeCount Normalization = "count"
)

//go:embed config.yml
var defaultConfigYaml []byte

// DefaultConfig returns the configuration embedded in the binary.
func DefaultConfig() Config {
	var config Config
	if err := yaml.UnmarshalStrict(defaultConfigYaml, &config); err != nil {
		panic(fmt.Errorf("failed to unmarshal default config: %w", err))
	}
	return config
}

// LoadConfig returns the default configuration overlaid with the given file.
// With an empty filename, tune/config.yml in the user config directory is
// used if it exists. The returned config is always validated; the error
// reports a file that exists but could not be read or decoded.
func LoadConfig(filename string) (Config, error) {
	config := DefaultConfig()
	if filename == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return config, nil
		}
		filename = filepath.Join(dir, "tune", "config.yml")
		if _, err := os.Stat(filename); errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return config, fmt.Errorf("could not read config %v: %w", filename, err)
	}
	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		config.Validate()
		return config, fmt.Errorf("could not parse config %v: %w", filename, err)
	}
	config.Validate()
	return config, nil
}

// Validate replaces out of range values with the defaults.
func (c *Config) Validate() {
	def := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if c.Durations != Seconds && c.Durations != Beats {
		c.Durations = def.Durations
	}
	if c.MaxWhileIterations <= 0 {
		c.MaxWhileIterations = def.MaxWhileIterations
	}
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = def.MaxCallDepth
	}
	if c.Clip <= 0 || c.Clip > 1 {
		c.Clip = def.Clip
	}
	if c.Chord.Normalize != NormalizePeak && c.Chord.Normalize != NormalizeCount {
		c.Chord.Normalize = def.Chord.Normalize
	}
	if c.Chord.Peak <= 0 || c.Chord.Peak > c.Clip {
		c.Chord.Peak = min(def.Chord.Peak, c.Clip)
	}
	if c.Chord.Workers <= 0 {
		c.Chord.Workers = runtime.NumCPU()
	}
	if c.Defaults.Tempo <= 0 {
		c.Defaults.Tempo = def.Defaults.Tempo
	}
	c.Defaults.Volume = max(0, min(1, c.Defaults.Volume))
	if _, err := ParseInstrument(c.Defaults.Instrument); err != nil {
		c.Defaults.Instrument = def.Defaults.Instrument
	}
}
