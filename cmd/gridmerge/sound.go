package main

import (
	"log/slog"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"github.com/udisondev/gridmerge/internal/game"
)

const sampleRate = beep.SampleRate(44100)

// sounds plays short cues for interaction results. The zero value is silent.
type sounds struct {
	enabled bool
}

// newSounds initializes the speaker. Audio is optional: on failure the game
// runs silently.
func newSounds(enabled bool) *sounds {
	if !enabled {
		return &sounds{}
	}
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		slog.Warn("audio initialization failed, running without sound", "err", err)
		return &sounds{}
	}
	return &sounds{enabled: true}
}

// cue returns the tone sequence (Hz) for a result, nil if it is silent.
func cue(res game.Result) []float64 {
	if res.Victory {
		return []float64{523, 659, 784, 1047}
	}
	switch res.Kind {
	case game.KindPicked:
		return []float64{660}
	case game.KindMerged:
		return []float64{660, 880}
	case game.KindPlaced:
		return []float64{440}
	case game.KindTooFar, game.KindMismatch:
		return []float64{180}
	default:
		return nil
	}
}

// Play queues the cue for res.
func (s *sounds) Play(res game.Result) {
	if !s.enabled {
		return
	}
	tones := cue(res)
	if len(tones) == 0 {
		return
	}

	seq := make([]beep.Streamer, 0, len(tones))
	for _, freq := range tones {
		sine, err := generators.SineTone(sampleRate, freq)
		if err != nil {
			slog.Debug("tone skipped", "freq", freq, "err", err)
			continue
		}
		seq = append(seq, beep.Take(sampleRate.N(70*time.Millisecond), sine))
	}
	speaker.Play(&effects.Volume{Streamer: beep.Seq(seq...), Base: 2, Volume: -3})
}

// Close releases the audio device.
func (s *sounds) Close() {
	if s.enabled {
		speaker.Close()
		s.enabled = false
	}
}
