package ttsengine

import (
	"context"
	"log"
	"time"

	"github.com/podforge/api/internal/audio"
	"github.com/podforge/api/internal/breaker"
)

// Synthesizer is the external voice-synthesis provider surface.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*audio.Segment, error)
}

// Config tunes the synthesis pipeline.
type Config struct {
	MaxChunkLen  int
	MinChunkLen  int
	MaxAttempts  int
	RetryBackoff time.Duration
	SampleRate   int
	ChunkGap     time.Duration
	Crossfade    time.Duration
	Ducking      audio.DuckingEnvelope
}

func (c *Config) setDefaults() {
	if c.MaxChunkLen <= 0 {
		c.MaxChunkLen = 600
	}
	if c.MinChunkLen <= 0 {
		c.MinChunkLen = 40
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 24000
	}
	if c.ChunkGap < 0 {
		c.ChunkGap = 0
	}
	if c.Crossfade < 0 {
		c.Crossfade = 0
	}
	if c.Ducking.BaseGain <= 0 {
		c.Ducking = audio.DuckingEnvelope{
			BaseGain: 0.25,
			Attack:   300 * time.Millisecond,
			Release:  500 * time.Millisecond,
		}
	}
}

// Pipeline renders script text into a program voice track: chunk,
// synthesize with retry, stitch, optionally mix over a background bed.
type Pipeline struct {
	synth Synthesizer
	cb    *breaker.CircuitBreaker
	cfg   Config
}

// NewPipeline wires the pipeline. cb is the tts service breaker.
func NewPipeline(synth Synthesizer, cb *breaker.CircuitBreaker, cfg Config) *Pipeline {
	cfg.setDefaults()
	return &Pipeline{synth: synth, cb: cb, cfg: cfg}
}

// Render produces the stitched voice track for a script. Empty scripts
// yield one second of silence so downstream steps never see an empty
// artifact. A chunk whose synthesis exhausts all retries degrades to
// silence of its estimated duration instead of failing the episode.
func (p *Pipeline) Render(ctx context.Context, script, voice string) (*audio.Segment, error) {
	chunks := ChunkText(script, p.cfg.MaxChunkLen, p.cfg.MinChunkLen)
	if len(chunks) == 0 {
		return audio.Silence(time.Second, p.cfg.SampleRate), nil
	}

	var out *audio.Segment
	for _, chunk := range chunks {
		seg, err := p.synthesizeChunk(ctx, chunk, voice)
		if err != nil {
			return nil, err
		}
		seg = audio.Resample(seg, p.cfg.SampleRate)

		if out == nil {
			out = seg
			continue
		}
		if p.cfg.ChunkGap > 0 {
			out = audio.AppendCrossfade(out, audio.Silence(p.cfg.ChunkGap, p.cfg.SampleRate), 0)
		}
		out = audio.AppendCrossfade(out, seg, p.cfg.Crossfade)
	}
	if out == nil || len(out.Samples) == 0 {
		out = audio.Silence(time.Second, p.cfg.SampleRate)
	}
	return out, nil
}

// MixWithBed overlays the voice track onto a background bed with the
// configured ducking envelope. A nil bed returns the voice unchanged.
func (p *Pipeline) MixWithBed(voice, bed *audio.Segment) *audio.Segment {
	if bed == nil || len(bed.Samples) == 0 {
		return voice
	}
	return audio.Overlay(bed, voice, 0, p.cfg.Ducking)
}

// synthesizeChunk calls the provider with bounded retries and linear
// backoff. Exhausted retries substitute silence; only context cancellation
// aborts the pipeline.
func (p *Pipeline) synthesizeChunk(ctx context.Context, text, voice string) (*audio.Segment, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := p.cb.Allow(); err != nil {
			lastErr = err
		} else {
			seg, err := p.synth.Synthesize(ctx, text, voice)
			if err == nil {
				p.cb.RecordSuccess()
				return seg, nil
			}
			p.cb.RecordFailure()
			lastErr = err
		}

		if attempt < p.cfg.MaxAttempts {
			delay := time.Duration(attempt) * p.cfg.RetryBackoff
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	// Graceful degradation: one bad chunk must not fail the whole episode.
	log.Printf("[TTS] chunk synthesis exhausted %d attempts, substituting silence: %v", p.cfg.MaxAttempts, lastErr)
	return audio.Silence(estimateSpeechDuration(text), p.cfg.SampleRate), nil
}

// estimateSpeechDuration approximates how long the spoken chunk would have
// been, so the substituted silence keeps the program roughly in time.
func estimateSpeechDuration(text string) time.Duration {
	d := time.Duration(len(text)) * 60 * time.Millisecond
	if d < 500*time.Millisecond {
		d = 500 * time.Millisecond
	}
	return d
}
