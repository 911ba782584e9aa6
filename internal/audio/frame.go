// Package audio holds the PCM frame type and the capture-side primitives of
// the wake-word pipeline.
package audio

import "math"

// Frame is one fixed-size chunk of mono signed 16-bit PCM samples. A frame is
// produced once, consumed once and then discarded.
type Frame []int16

// Level returns the mean absolute amplitude of the frame, the cheap signal
// used for voice-activity gating.
func (frame Frame) Level() float64 {
	if len(frame) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range frame {
		if sample < 0 {
			sum -= float64(sample)
		} else {
			sum += float64(sample)
		}
	}
	return sum / float64(len(frame))
}

// RMS returns the root mean square energy of the frame.
func (frame Frame) RMS() float64 {
	if len(frame) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range frame {
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// Silence returns a frame of n zero samples.
func Silence(n int) Frame {
	return make(Frame, n)
}

// BytesLE encodes the frame as little-endian 16-bit PCM, the format the
// transcription API expects.
func (frame Frame) BytesLE() []byte {
	out := make([]byte, len(frame)*2)
	for i, sample := range frame {
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out
}
