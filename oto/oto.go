// Package oto plays audio buffers on the default output device.
package oto

import (
	"bytes"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/tunelang/tune"
)

type (
	// Context implements tune.AudioContext on top of an oto context. Only one
	// can exist per process.
	Context struct {
		context *oto.Context
		rate    int
	}

	otoWaiter struct {
		player *oto.Player
		end    time.Time
	}
)

// pollInterval is how often Wait checks whether the device has drained the
// player after the nominal length of the buffer has passed.
const pollInterval = 5 * time.Millisecond

// NewContext opens the default output device for 16-bit stereo playback and
// waits until it is ready.
func NewContext(sampleRate int) (*Context, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}
	context, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{context: context, rate: sampleRate}, nil
}

func (c *Context) SampleRate() int {
	return c.rate
}

// Play starts playing the buffer. The returned waiter blocks until the buffer
// has been played; closing it stops playback.
func (c *Context) Play(buffer tune.AudioBuffer) (tune.CloserWaiter, error) {
	if err := c.context.Err(); err != nil {
		return nil, fmt.Errorf("oto context failed: %w", err)
	}
	data := FloatBufferTo16BitLE(buffer, nil)
	player := c.context.NewPlayer(bytes.NewReader(data))
	player.Play()
	return &otoWaiter{player: player, end: time.Now().Add(buffer.Duration(c.rate))}, nil
}

// Close suspends the device; oto contexts cannot be destroyed.
func (c *Context) Close() error {
	if err := c.context.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (w *otoWaiter) Wait() {
	time.Sleep(time.Until(w.end))
	for w.player.IsPlaying() {
		time.Sleep(pollInterval)
	}
}

func (w *otoWaiter) Close() error {
	if err := w.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
