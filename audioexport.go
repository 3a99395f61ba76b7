package tune

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Wav returns the buffer as a stereo .wav file; both channels carry the same
// signal. If pcm16 is true, the samples are 16-bit signed integers, otherwise
// 32-bit IEEE floats.
func (b AudioBuffer) Wav(sampleRate int, pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	wavHeader(2*len(b), sampleRate, pcm16, buf)
	err := b.rawToBuffer(pcm16, buf)
	if err != nil {
		return nil, fmt.Errorf("Wav failed: %v", err)
	}
	return buf.Bytes(), nil
}

// Raw returns the interleaved stereo samples without any header.
func (b AudioBuffer) Raw(pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := b.rawToBuffer(pcm16, buf)
	if err != nil {
		return nil, fmt.Errorf("Raw failed: %v", err)
	}
	return buf.Bytes(), nil
}

// PCM16 quantizes the buffer to interleaved stereo 16-bit samples, clamping
// values outside [-1, 1].
func (b AudioBuffer) PCM16() []int16 {
	ret := make([]int16, 2*len(b))
	for i, v := range b {
		s := int16(clamp(int(v*math.MaxInt16), math.MinInt16, math.MaxInt16))
		ret[2*i] = s
		ret[2*i+1] = s
	}
	return ret
}

func (b AudioBuffer) rawToBuffer(pcm16 bool, buf *bytes.Buffer) error {
	var err error
	if pcm16 {
		err = binary.Write(buf, binary.LittleEndian, b.PCM16())
	} else {
		stereo := make([]float32, 2*len(b))
		for i, v := range b {
			stereo[2*i] = v
			stereo[2*i+1] = v
		}
		err = binary.Write(buf, binary.LittleEndian, stereo)
	}
	if err != nil {
		return fmt.Errorf("could not binary write data to binary buffer: %v", err)
	}
	return nil
}

// wavFormat is the fmt chunk of a stereo wave file. Float files carry the
// 2-byte extension size and a fact chunk, PCM files carry neither.
type wavFormat struct {
	Tag           uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

const (
	wavPCM       = 1
	wavIEEEFloat = 3
)

// wavHeader writes the RIFF header for numSamples interleaved stereo samples
// (L and R counted separately).
func wavHeader(numSamples, sampleRate int, pcm16 bool, buf *bytes.Buffer) {
	// http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
	format := wavFormat{Tag: wavIEEEFloat, Channels: 2, SampleRate: uint32(sampleRate), BitsPerSample: 32}
	if pcm16 {
		format.Tag, format.BitsPerSample = wavPCM, 16
	}
	format.BlockAlign = format.Channels * format.BitsPerSample / 8
	format.ByteRate = format.SampleRate * uint32(format.BlockAlign)
	dataSize := uint32(numSamples) * uint32(format.BitsPerSample/8)
	fmtSize, extra := uint32(16), uint32(0)
	if !pcm16 {
		fmtSize, extra = 18, 12 // extension size field + fact chunk
	}
	le := binary.LittleEndian
	buf.WriteString("RIFF")
	binary.Write(buf, le, 4+(8+fmtSize)+extra+(8+dataSize))
	buf.WriteString("WAVEfmt ")
	binary.Write(buf, le, fmtSize)
	binary.Write(buf, le, format)
	if !pcm16 {
		binary.Write(buf, le, uint16(0))
		buf.WriteString("fact")
		binary.Write(buf, le, [2]uint32{4, uint32(numSamples / 2)})
	}
	buf.WriteString("data")
	binary.Write(buf, le, dataSize)
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
