package tune

import (
	"errors"
	"sync"
	"time"
)

type (
	// AudioBuffer is a mono buffer of samples in the range [-1, 1] at the
	// sample rate of the context that plays it. A buffer is owned by the call
	// that produced it until it is handed to AudioContext.Play.
	AudioBuffer []float32

	// AudioContext is a playback sink. Play begins playing the buffer and
	// returns a CloserWaiter; Wait blocks for the buffer's length in seconds.
	AudioContext interface {
		Play(buffer AudioBuffer) (CloserWaiter, error)
		SampleRate() int
		Close() error
	}

	CloserWaiter interface {
		Close() error
		Wait()
	}

	// RenderContext collects everything played into one buffer without
	// waiting, for offline rendering and tests.
	RenderContext struct {
		Rate    int
		Buffers []AudioBuffer
		mutex   sync.Mutex
	}

	// SilentContext plays nothing but still blocks for the length of each
	// buffer, so a run keeps its pacing without an audio device.
	SilentContext struct {
		Rate int
	}

	teeContext struct {
		contexts []AudioContext
	}

	nopWaiter   struct{}
	sleepWaiter struct{ duration time.Duration }
	teeWaiter   []CloserWaiter
)

// Duration returns the length of the buffer at the given sample rate.
func (b AudioBuffer) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b)) * time.Second / time.Duration(sampleRate)
}

func (c *RenderContext) Play(buffer AudioBuffer) (CloserWaiter, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.Buffers = append(c.Buffers, buffer)
	return nopWaiter{}, nil
}

func (c *RenderContext) SampleRate() int { return c.Rate }
func (c *RenderContext) Close() error    { return nil }

// Buffer concatenates everything played so far.
func (c *RenderContext) Buffer() AudioBuffer {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	length := 0
	for _, b := range c.Buffers {
		length += len(b)
	}
	ret := make(AudioBuffer, 0, length)
	for _, b := range c.Buffers {
		ret = append(ret, b...)
	}
	return ret
}

func (c SilentContext) Play(buffer AudioBuffer) (CloserWaiter, error) {
	return sleepWaiter{duration: buffer.Duration(c.Rate)}, nil
}

func (c SilentContext) SampleRate() int { return c.Rate }
func (c SilentContext) Close() error    { return nil }

// TeeContext plays every buffer on all given contexts; Wait returns when all
// of them are done. The sample rate is the one of the first context.
func TeeContext(contexts ...AudioContext) AudioContext {
	return &teeContext{contexts: contexts}
}

func (t *teeContext) Play(buffer AudioBuffer) (CloserWaiter, error) {
	ret := make(teeWaiter, 0, len(t.contexts))
	var errs []error
	for _, c := range t.contexts {
		w, err := c.Play(buffer)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ret = append(ret, w)
	}
	return ret, errors.Join(errs...)
}

func (t *teeContext) SampleRate() int {
	if len(t.contexts) == 0 {
		return 0
	}
	return t.contexts[0].SampleRate()
}

func (t *teeContext) Close() error {
	var errs []error
	for _, c := range t.contexts {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (nopWaiter) Close() error { return nil }
func (nopWaiter) Wait()        {}

func (s sleepWaiter) Close() error { return nil }
func (s sleepWaiter) Wait()        { time.Sleep(s.duration) }

func (t teeWaiter) Wait() {
	for _, w := range t {
		w.Wait()
	}
}

func (t teeWaiter) Close() error {
	var errs []error
	for _, w := range t {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
