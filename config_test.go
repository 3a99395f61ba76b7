package tune_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/tunelang/tune"
)

func TestDefaultConfig(t *testing.T) {
	c := tune.DefaultConfig()
	if c.SampleRate != 44100 || c.Durations != tune.Seconds || c.MaxWhileIterations != 1000 {
		t.Fatalf("got %+v, expected 44100 Hz, seconds and 1000 while iterations", c)
	}
	if c.Chord.Normalize != tune.NormalizePeak || c.Defaults.Instrument != "piano" || c.Defaults.Tempo != 120 {
		t.Fatalf("got %+v, expected peak normalization and piano at 120 BPM", c)
	}
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yml")
	contents := "durations: beats\nchord:\n  normalize: count\n  workers: 2\ndefaults:\n  volume: 3\n  instrument: kazoo\n"
	if err := os.WriteFile(filename, []byte(contents), 0644); err != nil {
		t.Fatalf("could not write config: %v", err)
	}
	c, err := tune.LoadConfig(filename)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if c.Durations != tune.Beats || c.Chord.Normalize != tune.NormalizeCount || c.Chord.Workers != 2 {
		t.Fatalf("got %+v, expected the values of the file", c)
	}
	if c.SampleRate != 44100 || c.Chord.Peak != 0.8 {
		t.Fatalf("got %+v, expected defaults for the keys the file does not set", c)
	}
	if c.Defaults.Volume != 1 || c.Defaults.Instrument != "piano" {
		t.Fatalf("got %+v, expected invalid defaults to be fixed", c.Defaults)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(filename, []byte("samplerate: 48000\nreverb: lots\n"), 0644); err != nil {
		t.Fatalf("could not write config: %v", err)
	}
	c, err := tune.LoadConfig(filename)
	if err == nil {
		t.Fatalf("expected an error for an unknown key")
	}
	if c.MaxCallDepth != 256 {
		t.Fatalf("got %+v, expected a usable config even on error", c)
	}
	if _, err := tune.LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	c := tune.Config{Clip: 2, Chord: tune.ChordConfig{Peak: 0.99}}
	c.Validate()
	if c.SampleRate != 44100 || c.Clip != 0.98 || c.Chord.Peak != 0.8 || c.Chord.Workers != runtime.NumCPU() {
		t.Fatalf("got %+v, expected defaults for every invalid value", c)
	}
	if c.Durations != tune.Seconds || c.Chord.Normalize != tune.NormalizePeak || c.Defaults.Tempo != 120 {
		t.Fatalf("got %+v, expected default enums", c)
	}
}
