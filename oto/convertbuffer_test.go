package oto_test

import (
	"bytes"
	"testing"

	"github.com/tunelang/tune/oto"
)

func TestFloatBufferTo16BitLE(t *testing.T) {
	out := oto.FloatBufferTo16BitLE([]float32{0, 1, -1, 2, -2, 0.5}, nil)
	expected := []byte{
		0x00, 0x00, 0x00, 0x00,
		0xff, 0x7f, 0xff, 0x7f,
		0x01, 0x80, 0x01, 0x80,
		0xff, 0x7f, 0xff, 0x7f,
		0x01, 0x80, 0x01, 0x80,
		0xff, 0x3f, 0xff, 0x3f,
	}
	if !bytes.Equal(out, expected) {
		t.Fatalf("got % x, expected % x", out, expected)
	}
}

func TestFloatBufferTo16BitLEAppends(t *testing.T) {
	out := oto.FloatBufferTo16BitLE([]float32{0}, []byte{42})
	if len(out) != 5 || out[0] != 42 {
		t.Fatalf("got % x, expected 2a followed by four zero bytes", out)
	}
}
