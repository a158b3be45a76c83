package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Segment is a mono PCM buffer. The heavy codec and loudness work happens
// in the external audio service; this package only covers the sample
// plumbing the synthesis pipeline needs before handing audio off.
type Segment struct {
	Samples []float64
	Rate    int
}

// Duration returns the segment length.
func (s *Segment) Duration() time.Duration {
	if s == nil || s.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.Rate) * float64(time.Second))
}

// Silence returns a zero-valued segment of the given duration.
func Silence(d time.Duration, rate int) *Segment {
	n := int(float64(rate) * d.Seconds())
	if n < 0 {
		n = 0
	}
	return &Segment{Samples: make([]float64, n), Rate: rate}
}

// Resample converts a segment to the target rate using linear
// interpolation. Segments already at the target rate are returned as-is.
func Resample(s *Segment, rate int) *Segment {
	if s == nil || len(s.Samples) == 0 {
		return &Segment{Rate: rate}
	}
	if s.Rate == rate {
		return s
	}
	ratio := float64(s.Rate) / float64(rate)
	n := int(float64(len(s.Samples)) / ratio)
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(s.Samples)-1 {
			out[i] = s.Samples[len(s.Samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = s.Samples[idx]*(1-frac) + s.Samples[idx+1]*frac
	}
	return &Segment{Samples: out, Rate: rate}
}

// AppendCrossfade joins b onto a with a linear crossfade. The fade length
// is clamped to the shorter of the two segments so a short chunk can never
// push the overlap out of range. Both segments must share a sample rate.
func AppendCrossfade(a, b *Segment, fade time.Duration) *Segment {
	if a == nil || len(a.Samples) == 0 {
		return b
	}
	if b == nil || len(b.Samples) == 0 {
		return a
	}

	overlap := int(float64(a.Rate) * fade.Seconds())
	if overlap > len(a.Samples) {
		overlap = len(a.Samples)
	}
	if overlap > len(b.Samples) {
		overlap = len(b.Samples)
	}

	n := len(a.Samples) + len(b.Samples) - overlap
	out := make([]float64, n)
	copy(out, a.Samples)

	start := len(a.Samples) - overlap
	for i := 0; i < overlap; i++ {
		t := float64(i+1) / float64(overlap+1)
		out[start+i] = a.Samples[start+i]*(1-t) + b.Samples[i]*t
	}
	copy(out[len(a.Samples):], b.Samples[overlap:])

	return &Segment{Samples: out, Rate: a.Rate}
}

// DuckingEnvelope shapes how a background bed is attenuated under a voice
// window: BaseGain applies under the voice, with linear attack/release
// ramps at the window edges instead of a hard cut.
type DuckingEnvelope struct {
	BaseGain float64
	Attack   time.Duration
	Release  time.Duration
}

// Overlay mixes voice on top of bed starting at the given offset, ducking
// the bed under the voice window. The output is long enough to hold both.
func Overlay(bed, voice *Segment, offset time.Duration, env DuckingEnvelope) *Segment {
	if voice == nil || len(voice.Samples) == 0 {
		return bed
	}
	rate := voice.Rate
	bed = Resample(bed, rate)

	startIdx := int(float64(rate) * offset.Seconds())
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + len(voice.Samples)

	n := len(bed.Samples)
	if endIdx > n {
		n = endIdx
	}
	out := make([]float64, n)
	copy(out, bed.Samples)

	attack := int(float64(rate) * env.Attack.Seconds())
	release := int(float64(rate) * env.Release.Seconds())

	for i := range out {
		gain := 1.0
		switch {
		case i >= startIdx && i < endIdx:
			gain = env.BaseGain
		case attack > 0 && i >= startIdx-attack && i < startIdx:
			t := float64(i-(startIdx-attack)) / float64(attack)
			gain = 1 - t*(1-env.BaseGain)
		case release > 0 && i >= endIdx && i < endIdx+release:
			t := float64(i-endIdx) / float64(release)
			gain = env.BaseGain + t*(1-env.BaseGain)
		}
		out[i] *= gain
	}

	for i, v := range voice.Samples {
		out[startIdx+i] += v
	}

	return &Segment{Samples: out, Rate: rate}
}

// DecodePCM16 converts little-endian signed 16-bit PCM bytes to a segment.
func DecodePCM16(data []byte, rate int) *Segment {
	n := len(data) / 2
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float64(v) / 32768.0
	}
	return &Segment{Samples: samples, Rate: rate}
}

// EncodePCM16 converts a segment to little-endian signed 16-bit PCM bytes,
// clipping out-of-range samples.
func EncodePCM16(s *Segment) []byte {
	out := make([]byte, len(s.Samples)*2)
	for i, v := range s.Samples {
		v = math.Max(-1, math.Min(1, v))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767)))
	}
	return out
}
