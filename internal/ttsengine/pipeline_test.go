package ttsengine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/podforge/api/internal/audio"
	"github.com/podforge/api/internal/breaker"
)

// fakeSynth returns fixed-duration segments and can be scripted to fail.
type fakeSynth struct {
	perChunk  time.Duration
	rate      int
	failUntil int // fail the first N calls
	failAll   bool
	calls     int
	texts     []string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voice string) (*audio.Segment, error) {
	f.calls++
	f.texts = append(f.texts, text)
	if f.failAll || f.calls <= f.failUntil {
		return nil, errors.New("synthesis unavailable")
	}
	return audio.Silence(f.perChunk, f.rate), nil
}

func testPipeline(synth *fakeSynth) *Pipeline {
	cb := breaker.New("tts", breaker.Options{FailureThreshold: 100, RecoveryTimeout: time.Minute})
	return NewPipeline(synth, cb, Config{
		MaxChunkLen:  60,
		MinChunkLen:  5,
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
		SampleRate:   1000,
		ChunkGap:     100 * time.Millisecond,
	})
}

func TestRender_EmptyScriptYieldsOneSecondSilence(t *testing.T) {
	synth := &fakeSynth{perChunk: time.Second, rate: 1000}
	p := testPipeline(synth)

	seg, err := p.Render(context.Background(), "", "narrator-en-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seg.Duration() != time.Second {
		t.Errorf("expected 1s silence, got %v", seg.Duration())
	}
	if synth.calls != 0 {
		t.Errorf("expected no provider calls for empty script, got %d", synth.calls)
	}
	for _, v := range seg.Samples {
		if v != 0 {
			t.Fatal("expected pure silence")
		}
	}
}

func TestRender_StitchedDurationAccountsForGaps(t *testing.T) {
	synth := &fakeSynth{perChunk: time.Second, rate: 1000}
	p := testPipeline(synth)

	script := "First sentence goes right here. Second sentence follows after. Third sentence closes it."
	seg, err := p.Render(context.Background(), script, "narrator-en-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks := ChunkText(script, 60, 5)
	if len(chunks) < 2 {
		t.Fatalf("test script did not chunk: %v", chunks)
	}

	want := time.Duration(len(chunks))*time.Second + time.Duration(len(chunks)-1)*100*time.Millisecond
	got := seg.Duration()
	if got < want-10*time.Millisecond || got > want+10*time.Millisecond {
		t.Errorf("expected ~%v stitched duration for %d chunks, got %v", want, len(chunks), got)
	}
	if synth.calls != len(chunks) {
		t.Errorf("expected %d provider calls, got %d", len(chunks), synth.calls)
	}
}

func TestRender_RetriesThenSucceeds(t *testing.T) {
	synth := &fakeSynth{perChunk: time.Second, rate: 1000, failUntil: 2}
	p := testPipeline(synth)

	seg, err := p.Render(context.Background(), "One short sentence here.", "narrator-en-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if synth.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", synth.calls)
	}
	if seg.Duration() != time.Second {
		t.Errorf("expected the synthesized segment, got %v", seg.Duration())
	}
}

func TestRender_ExhaustedRetriesSubstituteSilence(t *testing.T) {
	synth := &fakeSynth{rate: 1000, failAll: true}
	p := testPipeline(synth)

	text := strings.Repeat("a", 50) + "."
	seg, err := p.Render(context.Background(), text, "narrator-en-1")
	if err != nil {
		t.Fatalf("expected degradation, not an error: %v", err)
	}

	// 51 chars at 60ms/char.
	want := estimateSpeechDuration(text)
	if got := seg.Duration(); got < want-10*time.Millisecond || got > want+10*time.Millisecond {
		t.Errorf("expected ~%v of substituted silence, got %v", want, got)
	}
	for _, v := range seg.Samples {
		if v != 0 {
			t.Fatal("expected substituted silence to be silent")
		}
	}
}

func TestRender_ContextCancellationAborts(t *testing.T) {
	synth := &fakeSynth{rate: 1000, failAll: true}
	p := testPipeline(synth)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Render(ctx, "One sentence here.", "narrator-en-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRender_ResamplesProviderOutput(t *testing.T) {
	// Provider answers at 48k, pipeline runs at 1k.
	synth := &fakeSynth{perChunk: time.Second, rate: 48000}
	p := testPipeline(synth)

	seg, err := p.Render(context.Background(), "One short sentence here.", "narrator-en-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seg.Rate != 1000 {
		t.Errorf("expected output at pipeline rate 1000, got %d", seg.Rate)
	}
}

func TestEstimateSpeechDuration_Floor(t *testing.T) {
	if got := estimateSpeechDuration("hi"); got != 500*time.Millisecond {
		t.Errorf("expected 500ms floor, got %v", got)
	}
	if got := estimateSpeechDuration(strings.Repeat("a", 100)); got != 6*time.Second {
		t.Errorf("expected 6s for 100 chars, got %v", got)
	}
}

func TestMixWithBed_NilBedReturnsVoice(t *testing.T) {
	p := testPipeline(&fakeSynth{rate: 1000})
	voice := audio.Silence(time.Second, 1000)
	if p.MixWithBed(voice, nil) != voice {
		t.Error("expected nil bed to return the voice unchanged")
	}
}

func TestMixWithBed_DucksBed(t *testing.T) {
	p := testPipeline(&fakeSynth{rate: 1000})

	bed := &audio.Segment{Samples: make([]float64, 2000), Rate: 1000}
	for i := range bed.Samples {
		bed.Samples[i] = 1.0
	}
	voice := audio.Silence(time.Second, 1000)

	out := p.MixWithBed(voice, bed)
	// Default envelope ducks to 0.25 under the voice window.
	if got := out.Samples[500]; got != 0.25 {
		t.Errorf("expected bed ducked to 0.25 under voice, got %f", got)
	}
	if got := out.Samples[1900]; got != 1.0 {
		t.Errorf("expected bed back at unity after release, got %f", got)
	}
}
