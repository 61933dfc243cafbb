package speech

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
)

// Format identifies the encoding of an audio payload.
type Format string

const (
	FormatMP3   Format = "mp3"
	FormatPCM16 Format = "pcm16" // little-endian mono
)

// Sink plays an audio payload to completion or until the context is
// cancelled. Implementations must be safe for sequential reuse.
type Sink interface {
	Play(ctx context.Context, data []byte, format Format, sampleRate int) error
}

// PlayerSink pipes audio into an external player process. With ffplay the
// same binary handles both MP3 and raw PCM; other players can be configured
// as long as they read from stdin.
type PlayerSink struct {
	// Command is the player binary, ffplay by default.
	Command string
}

// NewPlayerSink creates a sink around the given player command.
func NewPlayerSink(command string) *PlayerSink {
	if command == "" {
		command = "ffplay"
	}
	return &PlayerSink{Command: command}
}

func (p *PlayerSink) Play(ctx context.Context, data []byte, format Format, sampleRate int) error {
	if len(data) == 0 {
		return nil
	}
	args := []string{"-autoexit", "-nodisp", "-loglevel", "quiet"}
	if format == FormatPCM16 {
		if sampleRate <= 0 {
			sampleRate = 24000
		}
		args = append(args, "-f", "s16le", "-ar", fmt.Sprint(sampleRate), "-ch_layout", "mono")
	}
	args = append(args, "-i", "-")

	cmd := exec.CommandContext(ctx, p.Command, args...)
	cmd.Stdin = bytes.NewReader(data)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("audio player %s: %w", p.Command, err)
	}
	return nil
}

// beepSampleRate is the synthesis rate for the diagnostic beep.
const beepSampleRate = 24000

// Beep returns ~360ms of a 660Hz sine as 16-bit mono PCM, with a quick
// attack and an exponential decay. It signals that every speech engine
// failed; it is a diagnostic sound, never a speech substitute.
func Beep() []byte {
	const (
		durationMS = 360
		freq       = 660.0
		attackMS   = 10
	)
	n := beepSampleRate * durationMS / 1000
	attack := beepSampleRate * attackMS / 1000
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / beepSampleRate
		v := math.Sin(2 * math.Pi * freq * t)
		env := math.Exp(-6 * float64(i) / float64(n))
		if i < attack {
			env *= float64(i) / float64(attack)
		}
		s := int16(v * env * 0.6 * math.MaxInt16)
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}
