package audio

import (
	"math"
	"testing"
	"time"
)

func TestSilence_Duration(t *testing.T) {
	s := Silence(2*time.Second, 24000)
	if len(s.Samples) != 48000 {
		t.Fatalf("expected 48000 samples, got %d", len(s.Samples))
	}
	if got := s.Duration(); got != 2*time.Second {
		t.Errorf("expected 2s duration, got %v", got)
	}
	for i, v := range s.Samples {
		if v != 0 {
			t.Fatalf("expected silence, sample %d is %f", i, v)
		}
	}
}

func TestDuration_NilAndZeroRate(t *testing.T) {
	var s *Segment
	if s.Duration() != 0 {
		t.Error("expected zero duration for nil segment")
	}
	if (&Segment{Samples: make([]float64, 100)}).Duration() != 0 {
		t.Error("expected zero duration for zero rate")
	}
}

func TestResample_HalvesAndDoubles(t *testing.T) {
	src := &Segment{Samples: make([]float64, 48000), Rate: 48000}
	for i := range src.Samples {
		src.Samples[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 48000)
	}

	down := Resample(src, 24000)
	if down.Rate != 24000 {
		t.Fatalf("expected rate 24000, got %d", down.Rate)
	}
	if got, want := len(down.Samples), 24000; got != want {
		t.Fatalf("expected %d samples, got %d", want, got)
	}

	// Duration is preserved within a sample of tolerance.
	if d := down.Duration(); d < 999*time.Millisecond || d > 1001*time.Millisecond {
		t.Errorf("resample changed duration: %v", d)
	}
}

func TestResample_SameRatePassthrough(t *testing.T) {
	src := &Segment{Samples: []float64{0.1, 0.2}, Rate: 24000}
	if Resample(src, 24000) != src {
		t.Error("expected same-rate resample to return the input")
	}
}

func TestAppendCrossfade_Length(t *testing.T) {
	rate := 1000
	a := Silence(time.Second, rate)
	b := Silence(time.Second, rate)

	out := AppendCrossfade(a, b, 100*time.Millisecond)
	want := 1000 + 1000 - 100
	if len(out.Samples) != want {
		t.Fatalf("expected %d samples, got %d", want, len(out.Samples))
	}
}

func TestAppendCrossfade_FadeClampedToShortSegment(t *testing.T) {
	rate := 1000
	a := Silence(time.Second, rate)
	b := Silence(50*time.Millisecond, rate) // shorter than the fade

	out := AppendCrossfade(a, b, 200*time.Millisecond)
	want := 1000 + 50 - 50
	if len(out.Samples) != want {
		t.Fatalf("expected overlap clamped to 50 samples, got length %d", len(out.Samples))
	}
}

func TestAppendCrossfade_EmptySides(t *testing.T) {
	rate := 1000
	b := Silence(time.Second, rate)
	if out := AppendCrossfade(nil, b, time.Millisecond); out != b {
		t.Error("expected empty left side to return right side")
	}
	if out := AppendCrossfade(b, nil, time.Millisecond); out != b {
		t.Error("expected empty right side to return left side")
	}
}

func TestOverlay_DucksBedUnderVoice(t *testing.T) {
	rate := 1000
	bed := &Segment{Samples: make([]float64, 3000), Rate: rate}
	for i := range bed.Samples {
		bed.Samples[i] = 1.0
	}
	voice := Silence(time.Second, rate)

	env := DuckingEnvelope{BaseGain: 0.25}
	out := Overlay(bed, voice, time.Second, env)

	// Before the voice window the bed is untouched.
	if got := out.Samples[500]; got != 1.0 {
		t.Errorf("expected unity gain before voice, got %f", got)
	}
	// Under the voice window the bed is at base gain.
	if got := out.Samples[1500]; math.Abs(got-0.25) > 1e-9 {
		t.Errorf("expected base gain under voice, got %f", got)
	}
	// After the window the bed is back to unity.
	if got := out.Samples[2500]; got != 1.0 {
		t.Errorf("expected unity gain after voice, got %f", got)
	}
}

func TestOverlay_ExtendsOutputPastBed(t *testing.T) {
	rate := 1000
	bed := Silence(time.Second, rate)
	voice := Silence(time.Second, rate)

	out := Overlay(bed, voice, 500*time.Millisecond, DuckingEnvelope{BaseGain: 0.5})
	if len(out.Samples) != 1500 {
		t.Fatalf("expected output to cover the voice tail, got %d samples", len(out.Samples))
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	src := &Segment{Samples: []float64{0, 0.5, -0.5, 0.999, -1}, Rate: 24000}

	data := EncodePCM16(src)
	if len(data) != len(src.Samples)*2 {
		t.Fatalf("expected %d bytes, got %d", len(src.Samples)*2, len(data))
	}

	back := DecodePCM16(data, 24000)
	for i, v := range src.Samples {
		if math.Abs(back.Samples[i]-v) > 1.0/32000 {
			t.Errorf("sample %d: expected ~%f, got %f", i, v, back.Samples[i])
		}
	}
}

func TestEncodePCM16_ClipsOutOfRange(t *testing.T) {
	src := &Segment{Samples: []float64{2.0, -2.0}, Rate: 24000}
	back := DecodePCM16(EncodePCM16(src), 24000)
	if back.Samples[0] < 0.99 {
		t.Errorf("expected positive clip near 1.0, got %f", back.Samples[0])
	}
	if back.Samples[1] > -0.99 {
		t.Errorf("expected negative clip near -1.0, got %f", back.Samples[1])
	}
}
