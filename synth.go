package tune

type (
	// Tone is a single note to be rendered: a frequency, a duration in
	// seconds, the voice to render it with and the performance volume.
	Tone struct {
		Frequency float64
		Duration  float64
		Voice     Voice
		Volume    float64
	}

	// Synth renders tones into sample buffers. Synthesize must be safe to call
	// from several goroutines at once, as chords render their notes
	// concurrently.
	Synth interface {
		Synthesize(tone Tone) AudioBuffer
		SampleRate() int
	}

	// Mixer sums the buffers of a chord into one. Buffers whose length differs
	// from the first one are skipped and counted.
	Mixer interface {
		Mix(buffers []AudioBuffer, volume float64) (mixed AudioBuffer, skipped int)
	}
)

// Samples returns the number of samples a tone of the given duration spans.
func Samples(sampleRate int, duration float64) int {
	if duration <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(float64(sampleRate)*duration + 0.5)
}
